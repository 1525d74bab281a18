// Package rag answers natural-language questions over a managed vector
// store, with a cache in front of the live assistant run.
package rag

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nikhilbhutani/docsearch/internal/apperr"
	"github.com/nikhilbhutani/docsearch/internal/cache"
	"github.com/nikhilbhutani/docsearch/internal/models"
)

const (
	defaultCacheTTL    = time.Hour
	defaultLiveTimeout = 3 * time.Minute
)

// Cache is the subset of cache.Cache the searcher needs. Get returns
// cache.ErrMiss for absent keys.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Answerer runs one live search against a vector store.
type Answerer interface {
	Answer(ctx context.Context, query, storeID string) (*models.SearchResult, error)
}

type SearcherConfig struct {
	DefaultStoreID string
	CacheTTL       time.Duration
	// LiveTimeout bounds a shared live search, which outlives any single
	// caller's context.
	LiveTimeout time.Duration
}

type Searcher struct {
	answerer Answerer
	cache    Cache
	cfg      SearcherConfig
	log      *slog.Logger
	group    singleflight.Group
}

func NewSearcher(answerer Answerer, c Cache, cfg SearcherConfig, log *slog.Logger) *Searcher {
	if log == nil {
		log = slog.Default()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.LiveTimeout <= 0 {
		cfg.LiveTimeout = defaultLiveTimeout
	}
	return &Searcher{
		answerer: answerer,
		cache:    c,
		cfg:      cfg,
		log:      log.With("component", "searcher"),
	}
}

// CacheKey is the cache key for a query against a store.
func CacheKey(query, storeID string) string {
	return query + "::" + storeID
}

// Search returns the cached answer for (query, store) or runs the live
// search once and caches it. Cache failures never fail the search.
func (s *Searcher) Search(ctx context.Context, query, storeID string) (*models.SearchResult, error) {
	start := time.Now()
	if storeID == "" {
		storeID = s.cfg.DefaultStoreID
	}
	if storeID == "" {
		return nil, apperr.Validation("no vector store configured", nil)
	}

	key := CacheKey(query, storeID)
	if hit, ok := s.lookup(ctx, key); ok {
		s.log.Info("search.cache.hit", "vector_store_id", storeID, "query", preview(query), "duration_ms", time.Since(start).Milliseconds())
		return hit, nil
	}

	ch := s.group.DoChan(key, func() (any, error) {
		liveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.LiveTimeout)
		defer cancel()
		res, err := s.answerer.Answer(liveCtx, query, storeID)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(liveCtx, key, res, s.cfg.CacheTTL); err != nil {
				s.log.Warn("search.cache.write_failed", "error", err)
			}
		}
		return res, nil
	})

	var r singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-ch:
	}
	if err := r.Err; err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperr.ExternalService("OpenAI", err)
	}

	v, shared := r.Val, r.Shared
	res := v.(*models.SearchResult)
	s.log.Info("search.ok",
		"vector_store_id", storeID,
		"query", preview(query),
		"response_len", len(res.Response),
		"shared", shared,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	out := *res
	return &out, nil
}

func (s *Searcher) lookup(ctx context.Context, key string) (*models.SearchResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	var res models.SearchResult
	err := s.cache.Get(ctx, key, &res)
	if err == nil {
		return &res, true
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("search.cache.read_failed", "error", err)
	}
	return nil, false
}

func preview(q string) string {
	r := []rune(q)
	if len(r) > 100 {
		return string(r[:100])
	}
	return q
}
