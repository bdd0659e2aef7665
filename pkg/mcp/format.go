package mcp

import (
	"fmt"
	"strings"

	"github.com/headline-dev/headline/pkg/content"
	"github.com/headline-dev/headline/pkg/models"
)

func formatResult(res content.Result) string {
	if len(res.Records) == 0 {
		return "No news found for this category."
	}
	var b strings.Builder
	for i, r := range res.Records {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
		if r.Source != "" || r.PublishedAt != "" {
			fmt.Fprintf(&b, "   %s %s\n", r.Source, r.PublishedAt)
		}
		fmt.Fprintf(&b, "   %s\n", r.URL)
		if r.Description != "" {
			fmt.Fprintf(&b, "   %s\n", r.Description)
		}
	}
	if res.Failed() {
		fmt.Fprintf(&b, "\n(served from cache: upstream unavailable)\n")
	}
	return b.String()
}

func formatCategories(cats []string) string {
	return "Categories: " + strings.Join(cats, ", ")
}

func formatCacheStats(s models.CacheStats) string {
	lookups := s.Hits + s.StaleHits + s.Misses
	var rate float64
	if lookups > 0 {
		rate = float64(s.Hits) / float64(lookups) * 100
	}
	return fmt.Sprintf("Entries:    %d\nFresh hits: %d\nStale hits: %d\nMisses:     %d\nHit rate:   %.1f%%\n",
		s.Entries, s.Hits, s.StaleHits, s.Misses, rate)
}

func formatFetchEntries(entries []models.FetchEntry) string {
	if len(entries) == 0 {
		return "No fetch attempts recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-15s %-8s %-12s %6s %7s %9s\n",
		"Time", "Category", "Country", "Outcome", "HTTP", "Records", "Latency")
	b.WriteString(strings.Repeat("-", 83) + "\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-20s %-15s %-8s %-12s %6d %7d %7dms\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Category, e.Country,
			e.Outcome, e.StatusCode, e.Records, e.LatencyMs)
	}
	return b.String()
}
