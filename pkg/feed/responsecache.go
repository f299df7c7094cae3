package feed

import (
	"context"
	"time"

	"rssextender/pkg/loadcache"
)

// DefaultResponseTTL bounds how long an assembled response is served
// without re-running the pipeline. Even the unchanged-feed fast path costs
// a parse and possibly an upstream fetch, so bursts for one feed id are
// absorbed here.
const DefaultResponseTTL = 5 * time.Minute

// ResponseCache is the cache the request path consults first: fully
// assembled output keyed by public feed id, delegating to the pipeline on a
// miss with the usual per-key deduplication.
type ResponseCache struct {
	cache *loadcache.Cache[string, *Assembled]
}

// NewResponseCache creates a response cache in front of the pipeline.
func NewResponseCache(p *Pipeline, ttl time.Duration, opts ...loadcache.Option) *ResponseCache {
	return &ResponseCache{
		cache: loadcache.New(ttl, func(ctx context.Context, feedID string) (*Assembled, error) {
			return p.Retrieve(ctx, feedID)
		}, opts...),
	}
}

// Get returns the assembled feed for feedID, running the pipeline on a
// miss. Pipeline errors (unknown feed, upstream or parse failure) pass
// through uncached.
func (c *ResponseCache) Get(ctx context.Context, feedID string) (*Assembled, error) {
	return c.cache.Get(ctx, feedID)
}

// Close drains in-flight assemblies.
func (c *ResponseCache) Close() {
	c.cache.Close()
}
