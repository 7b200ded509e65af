package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ppiankov/evidex/internal/model"
)

const resultsNamespace = "results"

// ResultCache stores search results keyed by normalized query
type ResultCache struct {
	cache Cache
	ttl   time.Duration
}

// NewResultCache wraps a cache; a nil cache makes every lookup a miss
func NewResultCache(c Cache, ttl time.Duration) *ResultCache {
	return &ResultCache{cache: c, ttl: ttl}
}

// Lookup returns cached results for a query
func (r *ResultCache) Lookup(ctx context.Context, query string) ([]model.URLCandidate, bool) {
	if r == nil || r.cache == nil {
		return nil, false
	}

	data, ok := r.cache.Get(ctx, resultKey(query))
	if !ok {
		return nil, false
	}

	var results []model.URLCandidate
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false
	}
	return results, true
}

// Store caches results for a query
func (r *ResultCache) Store(ctx context.Context, query string, results []model.URLCandidate) error {
	if r == nil || r.cache == nil {
		return nil
	}

	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return r.cache.Set(ctx, resultKey(query), data, r.ttl)
}

// Enabled reports whether lookups can hit
func (r *ResultCache) Enabled() bool {
	return r != nil && r.cache != nil
}

func resultKey(query string) string {
	return Key(resultsNamespace, strings.Join(strings.Fields(strings.ToLower(query)), " "))
}
