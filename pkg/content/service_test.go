package content

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headline-dev/headline/pkg/cache"
	"github.com/headline-dev/headline/pkg/category"
	"github.com/headline-dev/headline/pkg/config"
	"github.com/headline-dev/headline/pkg/models"
	"github.com/headline-dev/headline/pkg/upstream"
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

// fakeFetcher records every upstream call and answers with fn.
type fakeFetcher struct {
	mu    sync.Mutex
	calls []url.Values
	fn    func(ctx context.Context, params url.Values) ([]models.RawArticle, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, params url.Values) ([]models.RawArticle, error) {
	f.mu.Lock()
	f.calls = append(f.calls, params)
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, params)
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) Last() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeFetcher) Respond(raw []models.RawArticle, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = func(context.Context, url.Values) ([]models.RawArticle, error) { return raw, err }
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []models.FetchEntry
}

func (r *fakeRecorder) Record(_ context.Context, e models.FetchEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

type countingCloser struct{ n atomic.Int32 }

func (c *countingCloser) Close() error {
	c.n.Add(1)
	return nil
}

type harness struct {
	svc     *Service
	fetcher *fakeFetcher
	clock   *fakeClock
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
	store := cache.New(cache.DefaultFreshness, cache.WithClock(clock.Now))
	f := &fakeFetcher{}
	f.Respond(articles(3), nil)

	opts.APIKey = "test-key"
	opts.Language = "en"
	opts.Now = clock.Now
	svc := New(store, category.New(config.Default().Categories), f, opts)
	t.Cleanup(func() { _ = svc.Close() })
	return &harness{svc: svc, fetcher: f, clock: clock}
}

func articles(n int) []models.RawArticle {
	out := make([]models.RawArticle, n)
	for i := range out {
		out[i] = models.RawArticle{
			Title: fmt.Sprintf("Story %d", i),
			Link:  fmt.Sprintf("https://news.example.com/%d", i),
		}
	}
	return out
}

func titles(records []models.ContentRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

func TestFetchColdSuccess(t *testing.T) {
	h := newHarness(t, Options{})

	res := h.svc.Fetch(context.Background(), "technology", "")
	assert.Equal(t, SourceUpstream, res.Source)
	assert.NoError(t, res.Err)
	assert.Equal(t, []string{"Story 0", "Story 1", "Story 2"}, titles(res.Records))
	assert.Equal(t, h.clock.Now(), res.RefreshedAt)
	assert.Equal(t, 1, h.fetcher.Calls())

	params := h.fetcher.Last()
	assert.Equal(t, "test-key", params.Get("apikey"))
	assert.Equal(t, "en", params.Get("language"))
	assert.Equal(t, "technology", params.Get("category"))
	assert.False(t, params.Has("country"))
}

func TestFetchIdempotentWithinWindow(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	first := h.svc.GetContent(ctx, "science", "")
	h.fetcher.Respond(articles(5), nil)
	h.clock.Advance(time.Minute)
	second := h.svc.GetContent(ctx, "science", "")

	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.fetcher.Calls())

	res := h.svc.Fetch(ctx, "science", "")
	assert.Equal(t, SourceCache, res.Source)
}

func TestFetchCap(t *testing.T) {
	h := newHarness(t, Options{})
	h.fetcher.Respond(articles(40), nil)

	got := h.svc.GetContent(context.Background(), "sports", "")
	assert.Len(t, got, 10)
}

func TestFetchFiltersMalformed(t *testing.T) {
	h := newHarness(t, Options{})
	raw := articles(3)
	raw = append(raw[:1], append([]models.RawArticle{
		{Title: "missing url"},
	}, raw[1:]...)...)
	raw = append(raw, models.RawArticle{Title: "also missing url", Description: "x"})
	h.fetcher.Respond(raw, nil)

	got := h.svc.GetContent(context.Background(), "health", "")
	require.Len(t, got, 3)
	assert.Equal(t, []string{"Story 0", "Story 1", "Story 2"}, titles(got))
	for _, r := range got {
		assert.NotEmpty(t, r.Title)
		assert.NotEmpty(t, r.URL)
	}
}

func TestFetchFallbackToStale(t *testing.T) {
	failures := []error{
		fmt.Errorf("%w: dial tcp: connection refused", upstream.ErrTransport),
		&upstream.StatusError{StatusCode: 502},
		&upstream.APIError{Status: "error", Message: "rate limit exceeded"},
	}

	for _, failure := range failures {
		t.Run(string(upstream.Classify(failure)), func(t *testing.T) {
			h := newHarness(t, Options{})
			ctx := context.Background()

			prior := h.svc.GetContent(ctx, "business", "")
			refreshedAt := h.clock.Now()

			h.clock.Advance(cache.DefaultFreshness + time.Second)
			h.fetcher.Respond(nil, failure)

			res := h.svc.Fetch(ctx, "business", "")
			assert.Equal(t, SourceFallback, res.Source)
			assert.True(t, res.Failed())
			assert.ErrorIs(t, res.Err, failure)
			assert.Equal(t, prior, res.Records)
			assert.Equal(t, refreshedAt, res.RefreshedAt, "failed fetch must not touch the entry")
			assert.Equal(t, 2, h.fetcher.Calls())

			again := h.svc.Fetch(ctx, "business", "")
			assert.Equal(t, SourceFallback, again.Source, "entry stays stale after a failure")
			assert.Equal(t, 3, h.fetcher.Calls())
		})
	}
}

func TestFetchColdFailure(t *testing.T) {
	h := newHarness(t, Options{})
	h.fetcher.Respond(nil, errors.New("boom"))

	res := h.svc.Fetch(context.Background(), "entertainment", "")
	assert.Equal(t, SourceFallback, res.Source)
	assert.Error(t, res.Err)
	assert.NotNil(t, res.Records)
	assert.Empty(t, res.Records)
	assert.True(t, res.RefreshedAt.IsZero())

	got := h.svc.GetContent(context.Background(), "entertainment", "")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFetchFreshnessTransition(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	h.svc.GetContent(ctx, "technology", "")
	require.Equal(t, 1, h.fetcher.Calls())

	h.clock.Advance(cache.DefaultFreshness - time.Millisecond)
	h.svc.GetContent(ctx, "technology", "")
	assert.Equal(t, 1, h.fetcher.Calls(), "still fresh just before the window ends")

	h.clock.Advance(2 * time.Millisecond)
	h.svc.GetContent(ctx, "technology", "")
	assert.Equal(t, 2, h.fetcher.Calls(), "stale just after the window ends")
}

func TestFetchRefreshReplacesStale(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	h.svc.GetContent(ctx, "general", "")
	h.clock.Advance(cache.DefaultFreshness)
	h.fetcher.Respond(articles(6), nil)

	res := h.svc.Fetch(ctx, "general", "")
	assert.Equal(t, SourceUpstream, res.Source)
	assert.Len(t, res.Records, 6)
	assert.Equal(t, h.clock.Now(), res.RefreshedAt)
}

func TestClearCacheForcesRefresh(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	h.svc.GetContent(ctx, "sports", "")
	h.svc.ClearCache()
	res := h.svc.Fetch(ctx, "sports", "")

	assert.Equal(t, SourceUpstream, res.Source)
	assert.Equal(t, 2, h.fetcher.Calls())
}

func TestFetchRegionDefaultCountry(t *testing.T) {
	h := newHarness(t, Options{})

	h.svc.GetContent(context.Background(), "region", "")
	params := h.fetcher.Last()
	assert.Equal(t, "in", params.Get("country"))
	assert.False(t, params.Has("category"), "region must not send the top token")
}

func TestFetchRegionPerCountry(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	h.svc.GetContent(ctx, "region", "us")
	assert.Equal(t, "us", h.fetcher.Last().Get("country"))

	h.svc.GetContent(ctx, "region", "gb")
	assert.Equal(t, "gb", h.fetcher.Last().Get("country"))
	assert.Equal(t, 2, h.fetcher.Calls(), "each country has its own cache slot")

	h.svc.GetContent(ctx, "region", "us")
	assert.Equal(t, 2, h.fetcher.Calls())
}

func TestFetchIgnoresCallerCancellation(t *testing.T) {
	h := newHarness(t, Options{})
	h.fetcher.fn = func(ctx context.Context, _ url.Values) ([]models.RawArticle, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return articles(2), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := h.svc.Fetch(ctx, "science", "")
	assert.Equal(t, SourceUpstream, res.Source)
	assert.Len(t, res.Records, 2)
}

func TestFetchWithoutCoalescingFetchesPerCaller(t *testing.T) {
	h := newHarness(t, Options{})
	const callers = 4

	var started sync.WaitGroup
	started.Add(callers)
	h.fetcher.fn = func(context.Context, url.Values) ([]models.RawArticle, error) {
		started.Done()
		started.Wait()
		return articles(1), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.svc.GetContent(context.Background(), "business", "")
		}()
	}
	wg.Wait()

	assert.Equal(t, callers, h.fetcher.Calls())
}

func TestFetchCoalescesConcurrentRefreshes(t *testing.T) {
	h := newHarness(t, Options{Coalesce: true})
	release := make(chan struct{})
	h.fetcher.fn = func(context.Context, url.Values) ([]models.RawArticle, error) {
		<-release
		return articles(2), nil
	}

	const callers = 8
	results := make(chan []models.ContentRecord, callers)
	for i := 0; i < callers; i++ {
		go func() {
			results <- h.svc.GetContent(context.Background(), "technology", "")
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(release)

	for i := 0; i < callers; i++ {
		assert.Len(t, <-results, 2)
	}
	assert.Equal(t, 1, h.fetcher.Calls())
}

func TestFetchAfterCloseIsNotRecorded(t *testing.T) {
	rec := &fakeRecorder{}
	h := newHarness(t, Options{Recorder: rec})
	ctx := context.Background()

	h.svc.GetContent(ctx, "sports", "")
	require.NoError(t, h.svc.Close())

	h.clock.Advance(cache.DefaultFreshness)
	got := h.svc.GetContent(ctx, "sports", "")
	assert.Len(t, got, 3, "service still serves after close")
	assert.Equal(t, 2, h.fetcher.Calls())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.entries, 1)
}

func TestRecorderReceivesAttempts(t *testing.T) {
	rec := &fakeRecorder{}
	h := newHarness(t, Options{Recorder: rec})
	ctx := context.Background()

	h.svc.GetContent(ctx, "region", "us")
	h.clock.Advance(cache.DefaultFreshness)
	h.fetcher.Respond(nil, &upstream.StatusError{StatusCode: 503})
	h.svc.GetContent(ctx, "region", "us")
	require.NoError(t, h.svc.Close())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.entries, 2)

	byOutcome := map[models.FetchOutcome]models.FetchEntry{}
	for _, e := range rec.entries {
		byOutcome[e.Outcome] = e
	}
	ok := byOutcome[models.OutcomeSuccess]
	assert.Equal(t, "region", ok.Category)
	assert.Equal(t, "us", ok.Country)
	assert.Equal(t, 3, ok.Records)
	assert.Equal(t, 200, ok.StatusCode)

	failed := byOutcome[models.OutcomeProtocol]
	assert.Equal(t, 503, failed.StatusCode)
	assert.Zero(t, failed.Records)
	assert.NotEmpty(t, failed.Error)
}

func TestCloseReleasesOnce(t *testing.T) {
	closer := &countingCloser{}
	h := newHarness(t, Options{Closer: closer})

	require.NoError(t, h.svc.Close())
	require.NoError(t, h.svc.Close())
	assert.Equal(t, int32(1), closer.n.Load())
}

func TestCacheStats(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	h.svc.GetContent(ctx, "a", "")
	h.svc.GetContent(ctx, "a", "")

	stats, err := h.svc.CacheStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCategories(t *testing.T) {
	h := newHarness(t, Options{})
	cats := h.svc.Categories()
	require.NotEmpty(t, cats)
	assert.Equal(t, "region", cats[0])
	assert.Contains(t, cats, "technology")
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "fresh", SourceCache.String())
	assert.Equal(t, "refreshed", SourceUpstream.String())
	assert.Equal(t, "fallback", SourceFallback.String())
}
