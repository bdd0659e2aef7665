package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headline-dev/headline/pkg/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
	return New(DefaultFreshness, WithClock(clock.Now)), clock
}

func records(n int) []models.ContentRecord {
	out := make([]models.ContentRecord, n)
	for i := range out {
		out[i] = models.ContentRecord{Title: fmt.Sprintf("t%d", i), URL: fmt.Sprintf("https://x/%d", i)}
	}
	return out
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, NewFingerprint("technology", ""), NewFingerprint("technology", ""))
	assert.NotEqual(t, NewFingerprint("region", "in"), NewFingerprint("region", "us"))
	assert.NotEqual(t, NewFingerprint("region", ""), NewFingerprint("region", "in"))
	assert.NotEqual(t, NewFingerprint("a_b", ""), NewFingerprint("a", "b"))
	assert.Equal(t, "region/us", NewFingerprint("region", "us").String())
}

func TestLookupAbsent(t *testing.T) {
	s, _ := newTestStore(t)
	e, status := s.Lookup(NewFingerprint("sports", ""))
	assert.Equal(t, StatusAbsent, status)
	assert.Empty(t, e.Records)
}

func TestPutAndLookup(t *testing.T) {
	s, clock := newTestStore(t)
	fp := NewFingerprint("sports", "")

	s.Put(fp, records(3), clock.Now())

	e, status := s.Lookup(fp)
	require.Equal(t, StatusFresh, status)
	assert.Equal(t, records(3), e.Records)
	assert.Equal(t, clock.Now(), e.RefreshedAt)

	_, status = s.Lookup(NewFingerprint("sports", "us"))
	assert.Equal(t, StatusAbsent, status, "country is part of the fingerprint")
}

func TestFreshnessTransition(t *testing.T) {
	s, clock := newTestStore(t)
	fp := NewFingerprint("science", "")
	s.Put(fp, records(1), clock.Now())

	clock.Advance(DefaultFreshness - time.Second)
	_, status := s.Lookup(fp)
	assert.Equal(t, StatusFresh, status)

	clock.Advance(2 * time.Second)
	e, status := s.Lookup(fp)
	assert.Equal(t, StatusStale, status)
	assert.Equal(t, records(1), e.Records, "stale entries stay servable")
}

func TestPutOverwrites(t *testing.T) {
	s, clock := newTestStore(t)
	fp := NewFingerprint("health", "")

	s.Put(fp, records(5), clock.Now())
	clock.Advance(time.Hour)
	s.Put(fp, records(2), clock.Now())

	e, status := s.Lookup(fp)
	assert.Equal(t, StatusFresh, status)
	assert.Len(t, e.Records, 2)
}

func TestLookupReturnsCopy(t *testing.T) {
	s, clock := newTestStore(t)
	fp := NewFingerprint("business", "")
	in := records(2)
	s.Put(fp, in, clock.Now())
	in[0].Title = "mutated after put"

	e, _ := s.Lookup(fp)
	e.Records[1].Title = "mutated after lookup"

	again, _ := s.Lookup(fp)
	assert.Equal(t, records(2), again.Records)
}

func TestClear(t *testing.T) {
	s, clock := newTestStore(t)
	s.Put(NewFingerprint("a", ""), records(1), clock.Now())
	s.Put(NewFingerprint("b", ""), records(1), clock.Now())

	s.Clear()

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
	_, status := s.Lookup(NewFingerprint("a", ""))
	assert.Equal(t, StatusAbsent, status)
}

func TestStats(t *testing.T) {
	s, clock := newTestStore(t)
	fp := NewFingerprint("a", "")
	s.Put(fp, records(1), clock.Now())

	s.Lookup(fp)
	s.Lookup(NewFingerprint("b", ""))
	clock.Advance(DefaultFreshness)
	s.Lookup(fp)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, models.CacheStats{Entries: 1, Hits: 1, StaleHits: 1, Misses: 1}, stats)
}

func TestSnapshot(t *testing.T) {
	s, clock := newTestStore(t)
	s.Put(NewFingerprint("region", "us"), records(2), clock.Now())

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "region", snap[0].Category)
	assert.Equal(t, "us", snap[0].Country)
	assert.Len(t, snap[0].Records, 2)
}

func TestConcurrentAccess(t *testing.T) {
	s, clock := newTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fp := NewFingerprint(fmt.Sprintf("c%d", i%4), "")
			for j := 0; j < 100; j++ {
				s.Put(fp, records(j%10+1), clock.Now())
				e, status := s.Lookup(fp)
				assert.Equal(t, StatusFresh, status)
				assert.NotEmpty(t, e.Records)
				if j%50 == 0 {
					s.Snapshot()
				}
			}
		}(i)
	}
	wg.Wait()

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Entries)
}

func TestPeekIgnoresFreshnessAndStats(t *testing.T) {
	s, clock := newTestStore(t)
	fp := NewFingerprint("region", "in")

	_, ok := s.Peek(fp)
	assert.False(t, ok)

	s.Put(fp, records(2), clock.Now())
	clock.Advance(2 * DefaultFreshness)

	e, ok := s.Peek(fp)
	require.True(t, ok)
	assert.Len(t, e.Records, 2)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Hits+stats.StaleHits+stats.Misses)
}

func TestFingerprintKey(t *testing.T) {
	assert.NotEqual(t, NewFingerprint("ab", "").Key(), NewFingerprint("a", "b").Key())
	assert.Equal(t, NewFingerprint("a", "b").Key(), NewFingerprint("a", "b").Key())
}
