// Package article fetches and caches extracted article bodies.
package article

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"rssextender/pkg/config"
	"rssextender/pkg/extract"
	"rssextender/pkg/httpclient"
	"rssextender/pkg/loadcache"
)

// DefaultTTL is how long an extracted article stays cached. Article pages
// rarely change after publication and scraping is the costliest step in the
// pipeline, so the window is long.
const DefaultTTL = 7 * 24 * time.Hour

// Key identifies one cached extraction. The original summary text is part
// of the key on purpose: when the upstream feed edits an entry's summary,
// the key changes and the stale extraction is simply never hit again.
type Key struct {
	Feed            string
	Link            string
	OriginalSummary string
}

// Result is the outcome of one fetch+extract. Failure is a value, not an
// error: a persistently broken article link must not fail the whole feed,
// and caching the failure keeps it from triggering re-fetch storms within
// the TTL window.
type Result struct {
	OK   bool
	Text string
}

// RulesFunc resolves a feed id to its extraction rules. Implemented by
// config.Registry.Lookup.
type RulesFunc func(feedID string) (config.FeedConfig, bool)

// Cache fetches article pages and extracts their bodies, deduplicating
// concurrent identical-key requests and caching results for the TTL.
type Cache struct {
	cache  *loadcache.Cache[Key, Result]
	client *httpclient.HTTPClient
	rules  RulesFunc
	logger *slog.Logger
}

// NewCache creates an article cache. Extraction rules are resolved through
// rules at fetch time so a config reload applies to subsequent extractions.
func NewCache(client *httpclient.HTTPClient, rules RulesFunc, ttl time.Duration, logger *slog.Logger, opts ...loadcache.Option) *Cache {
	c := &Cache{
		client: client,
		rules:  rules,
		logger: logger,
	}
	c.cache = loadcache.New(ttl, c.fetch, opts...)
	return c
}

// Get returns the extracted article for key, fetching on a miss. It never
// fails: every failure path is folded into Result with the sanitized
// original summary as fallback text.
func (c *Cache) Get(ctx context.Context, key Key) Result {
	res, err := c.cache.Get(ctx, key)
	if err != nil {
		// Only cancellation or cache shutdown reach here; the loader
		// itself never errors.
		return fallback(key)
	}
	return res
}

// Close drains in-flight fetches.
func (c *Cache) Close() {
	c.cache.Close()
}

// fetch is the cache loader: one call per missing key, shared by all
// concurrent requesters.
func (c *Cache) fetch(ctx context.Context, key Key) (Result, error) {
	resp, err := c.client.Get(ctx, key.Link)
	if err != nil {
		c.logger.Warn("article fetch failed", "feed", key.Feed, "link", key.Link, "error", err)
		return fallback(key), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("article fetch returned non-success status", "feed", key.Feed, "link", key.Link, "status", resp.StatusCode)
		return fallback(key), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("article body read failed", "feed", key.Feed, "link", key.Link, "error", err)
		return fallback(key), nil
	}

	cfg, ok := c.rules(key.Feed)
	if !ok {
		// The feed was removed from the config between pipeline resolve
		// and this fetch; treat like any other article failure.
		c.logger.Warn("article fetch for unconfigured feed", "feed", key.Feed, "link", key.Link)
		return fallback(key), nil
	}

	var text string
	if cfg.Readability {
		text = extract.ExtractReadability(string(body), key.Link)
	} else {
		text = extract.Extract(string(body), key.Link, cfg.Selectors, cfg.Removes)
	}

	if text == "" {
		// Selectors narrowed to nothing (or extraction found no content).
		// The upstream summary beats an empty entry body.
		c.logger.Warn("article extraction produced no content", "feed", key.Feed, "link", key.Link)
		return fallback(key), nil
	}

	c.logger.Debug("article extracted", "feed", key.Feed, "link", key.Link, "bytes", len(text))
	return Result{OK: true, Text: text}, nil
}

// fallback builds the failure result: an error notice followed by the
// sanitized original summary, so the reader still sees what the feed
// carried.
func fallback(key Key) Result {
	return Result{
		OK:   false,
		Text: fmt.Sprintf("Error while retrieving article:<br>%s", extract.Sanitize(key.OriginalSummary)),
	}
}
