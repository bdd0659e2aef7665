package content

import (
	"time"

	"github.com/headline-dev/headline/pkg/models"
)

// Source says where the records in a Result came from.
type Source int

const (
	// SourceCache means a fresh cache entry was served without an upstream call.
	SourceCache Source = iota
	// SourceUpstream means the upstream call succeeded and the cache was updated.
	SourceUpstream
	// SourceFallback means the upstream call failed and whatever the cache held
	// for the fingerprint was served, possibly nothing.
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "fresh"
	case SourceUpstream:
		return "refreshed"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Result is the outcome of a Fetch. Records is never nil.
type Result struct {
	Records []models.ContentRecord
	Source  Source
	// Err is the upstream failure that caused a fallback.
	Err error
	// RefreshedAt is the time of the fetch that produced Records; zero when
	// nothing has ever been cached for the fingerprint.
	RefreshedAt time.Time
}

// Failed reports whether the upstream attempt failed.
func (r Result) Failed() bool {
	return r.Source == SourceFallback
}
