// Package sanitize turns raw upstream articles into bounded content records.
package sanitize

import (
	"strings"

	"github.com/headline-dev/headline/pkg/models"
)

// MaxRecords caps every sanitized result set.
const MaxRecords = 10

// Sanitize drops articles without a title or link, trims text fields and
// keeps at most MaxRecords survivors in upstream order.
func Sanitize(raw []models.RawArticle) []models.ContentRecord {
	out := make([]models.ContentRecord, 0, min(len(raw), MaxRecords))
	for _, a := range raw {
		if len(out) == MaxRecords {
			break
		}
		title := strings.TrimSpace(a.Title)
		link := strings.TrimSpace(a.Link)
		if title == "" || link == "" {
			continue
		}
		out = append(out, models.ContentRecord{
			Title:       title,
			Description: strings.TrimSpace(a.Description),
			URL:         link,
			Source:      a.SourceID,
			PublishedAt: a.PubDate,
			ImageURL:    a.ImageURL,
		})
	}
	return out
}
