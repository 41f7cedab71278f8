// Package discovery runs catalog searches through the paginated cache,
// falling back to cached and seed results when the catalog cannot answer.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oxide-lab/discover/internal/catalog"
	"github.com/oxide-lab/discover/internal/filter"
	"github.com/oxide-lab/discover/internal/history"
	"github.com/oxide-lab/discover/internal/model"
	"github.com/oxide-lab/discover/internal/searchcache"
	"github.com/oxide-lab/discover/internal/store"
)

const (
	DefaultPageSize   = 20
	DefaultFuzzyLimit = 50
)

// Source tells where the records of a Result came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
	SourceStatic   Source = "static"
)

// Options configures a Service. Zero values use package defaults.
type Options struct {
	Limits     searchcache.Limits
	PageSize   int
	FuzzyLimit int
	HistoryMax int
	CacheKey   string
	HistoryKey string
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.FuzzyLimit <= 0 {
		o.FuzzyLimit = DefaultFuzzyLimit
	}
	if o.HistoryMax <= 0 {
		o.HistoryMax = history.DefaultMax
	}
	if o.CacheKey == "" {
		o.CacheKey = searchcache.DefaultStoreKey
	}
	if o.HistoryKey == "" {
		o.HistoryKey = history.DefaultStoreKey
	}
	return o
}

// Request is one search.
type Request struct {
	Query   string
	Filters filter.Filters
	Offset  int
	Limit   int // 0 uses the configured page size

	// Refresh skips the cached page and asks the catalog again.
	Refresh bool
	// Offline never calls the catalog.
	Offline bool
}

// Result is the outcome of a search. Records are filtered and sorted; Total
// counts the records before filtering.
type Result struct {
	Query   string
	Source  Source
	Records []model.Record
	Total   int
	// Filtered is set when at least one filter predicate was applied.
	Filtered bool
	// LiveErr is the catalog error that caused a fallback, if any.
	LiveErr error
}

// Service owns the session's cache value and search history. Cache values
// are immutable, so Snapshot can be read without holding the lock.
type Service struct {
	searcher catalog.Searcher
	kv       store.KV
	opts     Options
	log      logrus.FieldLogger

	mu      sync.Mutex
	cache   *searchcache.Cache
	history []string
}

// New returns a Service with an empty cache. searcher may be nil, in which
// case every search is served offline. kv may be nil when nothing is
// persisted.
func New(searcher catalog.Searcher, kv store.KV, opts Options, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		searcher: searcher,
		kv:       kv,
		opts:     opts.withDefaults(),
		log:      log,
		cache:    searchcache.New(),
		history:  []string{},
	}
}

// Hydrate replaces the in-memory cache and history with the stored ones.
func (s *Service) Hydrate(ctx context.Context) {
	if s.kv == nil {
		return
	}
	c := searchcache.Load(ctx, s.kv, s.opts.CacheKey, s.opts.Limits, s.log)
	h := history.Load(ctx, s.kv, s.opts.HistoryKey, s.opts.HistoryMax, s.log)

	s.mu.Lock()
	s.cache, s.history = c, h
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{"entries": c.Len(), "history": len(h)}).Debug("hydrated discovery state")
}

// Save writes the cache and history to the store.
func (s *Service) Save(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	c, h := s.Snapshot(), s.History()
	return errors.Join(
		searchcache.Save(ctx, s.kv, s.opts.CacheKey, c),
		history.Save(ctx, s.kv, s.opts.HistoryKey, h),
	)
}

// Snapshot returns the current cache value.
func (s *Service) Snapshot() *searchcache.Cache {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache
}

// History returns a copy of the search history, most recent first.
func (s *Service) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// ClearCache drops every cached entry.
func (s *Service) ClearCache() {
	s.mu.Lock()
	s.cache = s.cache.Clear()
	s.mu.Unlock()
}

// RemoveQuery drops every cached page of query and reports whether any
// were cached.
func (s *Service) RemoveQuery(query string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cache.Remove(query)
	removed := next != s.cache
	s.cache = next
	return removed
}

// ClearHistory empties the search history.
func (s *Service) ClearHistory() {
	s.mu.Lock()
	s.history = []string{}
	s.mu.Unlock()
}

// Search answers req from the cached page, then the catalog, then the
// fallback resolver, then the static first page for query-less requests.
// It returns an error only when the catalog failed and nothing else could
// answer.
func (s *Service) Search(ctx context.Context, req Request) (Result, error) {
	key := searchcache.NormalizeQuery(req.Query)
	offset, limit := max(req.Offset, 0), req.Limit
	if limit <= 0 {
		limit = s.opts.PageSize
	}
	log := s.log.WithFields(logrus.Fields{"query": key, "offset": offset, "limit": limit})

	res := Result{Query: key}
	var records []model.Record

	if !req.Refresh {
		if records = s.Snapshot().Page(key, offset); len(records) > 0 {
			res.Source = SourceCache
		}
	}

	if len(records) == 0 && !req.Offline && s.searcher != nil {
		records, res.LiveErr = s.live(ctx, key, req.Filters, offset, limit, log)
		if len(records) > 0 {
			res.Source = SourceLive
		}
	}

	if len(records) == 0 {
		if records = s.Snapshot().Fallback(key, s.opts.FuzzyLimit); len(records) > 0 {
			res.Source = SourceFallback
		}
	}

	if len(records) == 0 && key == searchcache.TrendingKey {
		records = model.SanitizeAll(catalog.StaticFirstPage())
		res.Source = SourceStatic
	}

	if key != searchcache.TrendingKey {
		s.remember(req.Query)
	}

	if len(records) == 0 && res.LiveErr != nil {
		return res, fmt.Errorf("cannot search catalog: %w", res.LiveErr)
	}

	res.Total = len(records)
	res.Filtered = req.Filters.Active()
	res.Records = filter.Apply(records, req.Filters)
	log.WithFields(logrus.Fields{"source": res.Source, "total": res.Total, "shown": len(res.Records)}).Debug("search done")
	return res, nil
}

func (s *Service) live(ctx context.Context, key string, f filter.Filters, offset, limit int, log logrus.FieldLogger) ([]model.Record, error) {
	reqID := uuid.NewString()
	log = log.WithField("request_id", reqID)

	items, err := s.searcher.Search(catalog.WithRequestID(ctx, reqID), key, f, offset, limit)
	if err != nil {
		log.WithError(err).Warn("catalog search failed, using cached results")
		return nil, err
	}

	records := model.SanitizeAll(items)
	if len(records) == 0 {
		// an earlier page at this offset is stale, not live
		log.WithField("items", len(items)).Debug("catalog returned no usable records")
		return []model.Record{}, nil
	}

	s.mu.Lock()
	s.cache = s.cache.UpsertRecords(key, offset, limit, records, s.opts.Limits)
	c := s.cache
	s.mu.Unlock()

	log.WithField("items", len(records)).Debug("catalog page stored")
	return c.Page(key, offset), nil
}

func (s *Service) remember(query string) {
	s.mu.Lock()
	s.history = history.Update(s.history, query, s.opts.HistoryMax)
	s.mu.Unlock()
}
