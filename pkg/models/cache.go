package models

import "time"

// CacheEntry is a snapshot of one cached result set.
type CacheEntry struct {
	Category    string          `json:"category"`
	Country     string          `json:"country,omitempty"`
	Records     []ContentRecord `json:"records"`
	RefreshedAt time.Time       `json:"refreshed_at"`
}

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries   int64 `json:"entries"`
	Hits      int64 `json:"hits"`
	StaleHits int64 `json:"stale_hits"`
	Misses    int64 `json:"misses"`
}
