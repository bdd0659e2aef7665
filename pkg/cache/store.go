// Package cache holds fetched content lists in memory, keyed by request fingerprint.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/headline-dev/headline/pkg/models"
)

// DefaultFreshness is how long an entry is served without a refresh attempt.
const DefaultFreshness = 15 * time.Minute

// Fingerprint identifies one cacheable (category, country) request.
// It is comparable, so distinct pairs never share a slot.
type Fingerprint struct {
	Category string
	Country  string
}

// NewFingerprint derives the fingerprint for a request. An empty country
// means the caller did not supply one.
func NewFingerprint(category, country string) Fingerprint {
	return Fingerprint{Category: category, Country: country}
}

// String renders the fingerprint for logs.
func (f Fingerprint) String() string {
	if f.Country == "" {
		return f.Category
	}
	return f.Category + "/" + f.Country
}

// Key returns a collision-free string form, for use as a map or group key.
func (f Fingerprint) Key() string {
	return f.Category + "\x00" + f.Country
}

// Status is the outcome of a lookup.
type Status int

const (
	StatusAbsent Status = iota
	StatusStale
	StatusFresh
)

func (s Status) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	default:
		return "absent"
	}
}

// Entry is a cached result set and the time of the fetch that produced it.
type Entry struct {
	Records     []models.ContentRecord
	RefreshedAt time.Time
}

// Store is an in-memory content cache safe for concurrent use.
// Entries are only replaced by Put and removed by Clear; staleness never evicts.
type Store struct {
	mu        sync.RWMutex
	entries   map[Fingerprint]Entry
	freshness time.Duration
	now       func() time.Time

	hits      atomic.Int64
	staleHits atomic.Int64
	misses    atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to judge freshness.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store with the given freshness window.
func New(freshness time.Duration, opts ...Option) *Store {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	s := &Store{
		entries:   make(map[Fingerprint]Entry),
		freshness: freshness,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Freshness returns the configured freshness window.
func (s *Store) Freshness() time.Duration {
	return s.freshness
}

// Lookup returns the entry for fp and whether it is fresh, stale or absent.
// The returned records are a copy.
func (s *Store) Lookup(fp Fingerprint) (Entry, Status) {
	s.mu.RLock()
	e, ok := s.entries[fp]
	s.mu.RUnlock()

	if !ok {
		s.misses.Add(1)
		return Entry{}, StatusAbsent
	}

	e.Records = cloneRecords(e.Records)
	if s.now().Sub(e.RefreshedAt) < s.freshness {
		s.hits.Add(1)
		return e, StatusFresh
	}
	s.staleHits.Add(1)
	return e, StatusStale
}

// Peek returns a copy of the entry for fp regardless of freshness,
// without counting towards the stats.
func (s *Store) Peek(fp Fingerprint) (Entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[fp]
	s.mu.RUnlock()

	e.Records = cloneRecords(e.Records)
	return e, ok
}

// Put replaces the entry for fp.
func (s *Store) Put(fp Fingerprint, records []models.ContentRecord, refreshedAt time.Time) {
	e := Entry{Records: cloneRecords(records), RefreshedAt: refreshedAt}

	s.mu.Lock()
	s.entries[fp] = e
	s.mu.Unlock()
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[Fingerprint]Entry)
	s.mu.Unlock()
}

// Snapshot returns a copy of every entry, for diagnostics.
func (s *Store) Snapshot() []models.CacheEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.CacheEntry, 0, len(s.entries))
	for fp, e := range s.entries {
		out = append(out, models.CacheEntry{
			Category:    fp.Category,
			Country:     fp.Country,
			Records:     cloneRecords(e.Records),
			RefreshedAt: e.RefreshedAt,
		})
	}
	return out
}

// Stats returns cache performance metrics.
func (s *Store) Stats() (models.CacheStats, error) {
	s.mu.RLock()
	n := len(s.entries)
	s.mu.RUnlock()

	return models.CacheStats{
		Entries:   int64(n),
		Hits:      s.hits.Load(),
		StaleHits: s.staleHits.Load(),
		Misses:    s.misses.Load(),
	}, nil
}

func cloneRecords(in []models.ContentRecord) []models.ContentRecord {
	out := make([]models.ContentRecord, len(in))
	copy(out, in)
	return out
}
