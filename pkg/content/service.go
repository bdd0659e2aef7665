// Package content serves category-keyed content lists from a cache, refreshing
// from the upstream news API on miss or expiry and falling back to stale data
// when the upstream fails.
package content

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/headline-dev/headline/pkg/cache"
	"github.com/headline-dev/headline/pkg/category"
	"github.com/headline-dev/headline/pkg/models"
	"github.com/headline-dev/headline/pkg/sanitize"
	"github.com/headline-dev/headline/pkg/upstream"
)

// Fetcher performs one upstream request.
type Fetcher interface {
	Fetch(ctx context.Context, params url.Values) ([]models.RawArticle, error)
}

// Recorder receives one entry per upstream attempt.
type Recorder interface {
	Record(ctx context.Context, entry models.FetchEntry) error
}

// Options configures a Service.
type Options struct {
	APIKey   string
	Language string
	// Coalesce shares one upstream call between concurrent refreshes of the
	// same fingerprint. Off by default: every caller fetches on its own.
	Coalesce bool
	// Recorder, when set, is called asynchronously after each upstream attempt.
	Recorder Recorder
	// Closer is released by Close, typically the upstream.Pool behind Fetcher.
	Closer interface{ Close() error }
	Logger *logrus.Entry
	Now    func() time.Time
}

// Service is the fetch orchestrator.
type Service struct {
	store      *cache.Store
	normalizer *category.Normalizer
	fetcher    Fetcher
	opts       Options
	log        *logrus.Entry
	now        func() time.Time

	group     singleflight.Group
	recMu     sync.Mutex
	closed    bool
	recording sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New creates a Service over the given store, normalizer and fetcher.
func New(store *cache.Store, n *category.Normalizer, f Fetcher, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logrus.WithField("component", "content")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:      store,
		normalizer: n,
		fetcher:    f,
		opts:       opts,
		log:        log,
		now:        now,
	}
}

// Fetch returns content for category and country, refreshing from the
// upstream when the cached entry is stale or absent. It never fails: an
// upstream error is reported in Result.Err alongside the fallback records.
//
// The upstream call is detached from ctx cancellation; only the pool's
// request timeout bounds it.
func (s *Service) Fetch(ctx context.Context, categoryName, country string) Result {
	fp := cache.NewFingerprint(categoryName, country)

	entry, status := s.store.Lookup(fp)
	if status == cache.StatusFresh {
		return Result{Records: entry.Records, Source: SourceCache, RefreshedAt: entry.RefreshedAt}
	}

	ctx = context.WithoutCancel(ctx)
	if !s.opts.Coalesce {
		return s.refresh(ctx, fp)
	}

	v, _, _ := s.group.Do(fp.Key(), func() (any, error) {
		return s.refresh(ctx, fp), nil
	})
	res := v.(Result)
	res.Records = cloneRecords(res.Records)
	return res
}

// GetContent returns the records for category and country, or an empty
// slice when nothing could be fetched or cached.
func (s *Service) GetContent(ctx context.Context, categoryName, country string) []models.ContentRecord {
	return s.Fetch(ctx, categoryName, country).Records
}

// Categories lists the category tokens callers may request.
func (s *Service) Categories() []string {
	return s.normalizer.Categories()
}

// ClearCache drops every cached entry; the next call for any fingerprint
// goes to the upstream.
func (s *Service) ClearCache() {
	s.store.Clear()
	s.log.Info("content cache cleared")
}

// CacheStats reports cache metrics.
func (s *Service) CacheStats() (models.CacheStats, error) {
	return s.store.Stats()
}

// Close waits for pending fetch records and releases the upstream client.
// Only the first call has any effect. Fetches after Close are not recorded.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.recMu.Lock()
		s.closed = true
		s.recMu.Unlock()
		s.recording.Wait()
		if s.opts.Closer != nil {
			s.closeErr = s.opts.Closer.Close()
		}
		s.log.Info("content service closed")
	})
	return s.closeErr
}

func (s *Service) refresh(ctx context.Context, fp cache.Fingerprint) Result {
	q := s.normalizer.Normalize(fp.Category, fp.Country)

	start := s.now()
	raw, err := s.fetcher.Fetch(ctx, q.Values(s.opts.APIKey, s.opts.Language))
	latency := s.now().Sub(start)

	var (
		records     []models.ContentRecord
		refreshedAt time.Time
	)
	if err == nil {
		records = sanitize.Sanitize(raw)
		refreshedAt = s.now()
		s.store.Put(fp, records, refreshedAt)
	}
	s.record(ctx, fp, err, len(records), latency)

	if err != nil {
		return s.fallback(fp, err)
	}

	s.log.WithFields(logrus.Fields{
		"fingerprint": fp.String(),
		"records":     len(records),
		"dropped":     len(raw) - len(records),
		"latency":     latency,
	}).Debug("content refreshed")

	return Result{Records: cloneRecords(records), Source: SourceUpstream, RefreshedAt: refreshedAt}
}

// fallback serves whatever the store holds for fp without touching it.
func (s *Service) fallback(fp cache.Fingerprint, err error) Result {
	entry, ok := s.store.Peek(fp)

	s.log.WithFields(logrus.Fields{
		"fingerprint": fp.String(),
		"outcome":     upstream.Classify(err),
		"timeout":     upstream.IsTimeout(err),
		"cached":      ok,
		"records":     len(entry.Records),
	}).WithError(err).Warn("upstream fetch failed, serving cached content")

	records := entry.Records
	if records == nil {
		records = []models.ContentRecord{}
	}
	return Result{Records: records, Source: SourceFallback, Err: err, RefreshedAt: entry.RefreshedAt}
}

func (s *Service) record(ctx context.Context, fp cache.Fingerprint, err error, n int, latency time.Duration) {
	if s.opts.Recorder == nil {
		return
	}
	entry := models.FetchEntry{
		Category:   fp.Category,
		Country:    fp.Country,
		Outcome:    upstream.Classify(err),
		StatusCode: upstream.StatusCode(err),
		Records:    n,
		LatencyMs:  latency.Milliseconds(),
		CreatedAt:  s.now().UTC(),
	}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.StatusCode = 200
	}

	s.recMu.Lock()
	if s.closed {
		s.recMu.Unlock()
		return
	}
	s.recording.Add(1)
	s.recMu.Unlock()

	go func() {
		defer s.recording.Done()
		if err := s.opts.Recorder.Record(ctx, entry); err != nil {
			s.log.WithError(err).Warn("fetch log write failed")
		}
	}()
}

func cloneRecords(in []models.ContentRecord) []models.ContentRecord {
	out := make([]models.ContentRecord, len(in))
	copy(out, in)
	return out
}
