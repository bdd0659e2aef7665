package models

import "encoding/json"

// ContentRecord is a normalized article as served to callers.
// Title and URL are never empty.
type ContentRecord struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	ImageURL    string `json:"image_url"`
}

// RawArticle is one element of the upstream "results" array.
// Every field is optional on the wire; JSON null decodes to "".
type RawArticle struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	SourceID    string `json:"source_id"`
	PubDate     string `json:"pubDate"`
	ImageURL    string `json:"image_url"`
}

// NewsResponse is the upstream response envelope. Results is kept raw
// because error responses carry an object there instead of an array.
type NewsResponse struct {
	Status       string          `json:"status"`
	TotalResults int             `json:"totalResults"`
	Results      json.RawMessage `json:"results"`
	NextPage     string          `json:"nextPage,omitempty"`
}
