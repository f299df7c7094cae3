package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"rssextender/pkg/httpclient"
	"rssextender/pkg/loadcache"
)

// DefaultRawTTL bounds how stale served feed bytes may be. Feed endpoints
// are cheap to poll; articles are not.
const DefaultRawTTL = 5 * time.Minute

// RawFeed holds one upstream response. Immutable once stored; a cache
// refresh replaces it wholesale.
type RawFeed struct {
	Bytes       []byte
	ContentType string
}

// RawCache caches upstream feed bytes per source URL. A miss triggers
// exactly one fetch shared by all concurrent callers for that URL.
type RawCache struct {
	cache  *loadcache.Cache[string, RawFeed]
	client *httpclient.HTTPClient
	logger *slog.Logger
}

// NewRawCache creates a raw feed cache with the given TTL.
func NewRawCache(client *httpclient.HTTPClient, ttl time.Duration, logger *slog.Logger, opts ...loadcache.Option) *RawCache {
	c := &RawCache{
		client: client,
		logger: logger,
	}
	c.cache = loadcache.New(ttl, c.fetch, opts...)
	return c
}

// Get returns the feed bytes and declared content type for url, fetching on
// a miss. A non-success upstream status yields *UpstreamStatusError; a
// timeout or connection failure yields the wrapped transport error.
func (c *RawCache) Get(ctx context.Context, url string) (RawFeed, error) {
	return c.cache.Get(ctx, url)
}

// Close drains in-flight fetches.
func (c *RawCache) Close() {
	c.cache.Close()
}

func (c *RawCache) fetch(ctx context.Context, url string) (RawFeed, error) {
	resp, err := c.client.Get(ctx, url)
	if err != nil {
		return RawFeed{}, fmt.Errorf("failed to fetch feed %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return RawFeed{}, &UpstreamStatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return RawFeed{}, fmt.Errorf("failed to read feed %s: %w", url, err)
	}

	c.logger.Debug("raw feed fetched", "url", url, "bytes", len(body))
	return RawFeed{
		Bytes:       body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
