package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

// FeedConfig describes one proxied feed: where to fetch it and how to carve
// the article body out of its entry pages. Records are immutable; a reload
// replaces the whole table, never edits one in place.
type FeedConfig struct {
	URL         string   `yaml:"url"`
	Selectors   []string `yaml:"selectors"`
	Removes     []string `yaml:"removes"`
	Readability bool     `yaml:"readability"`
}

// Config is the full feed table, keyed by the operator-chosen feed id that
// clients pass. The upstream URL is never exposed to clients.
type Config struct {
	Feeds map[string]FeedConfig `yaml:"feeds"`
}

// Parse decodes and validates a YAML feed table.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.Feeds) == 0 {
		return nil, fmt.Errorf("config defines no feeds")
	}
	for id, feed := range cfg.Feeds {
		if feed.URL == "" {
			return nil, fmt.Errorf("feed %q has no url", id)
		}
		// Selector syntax is checked here so a typo fails the load, not an
		// extraction goroutine later.
		for _, sel := range feed.Selectors {
			if _, err := cascadia.Compile(sel); err != nil {
				return nil, fmt.Errorf("feed %q has invalid selector %q: %w", id, sel, err)
			}
		}
		for _, sel := range feed.Removes {
			if _, err := cascadia.Compile(sel); err != nil {
				return nil, fmt.Errorf("feed %q has invalid remove rule %q: %w", id, sel, err)
			}
		}
	}
	return &cfg, nil
}

// Load reads and parses the feed table from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Registry holds the current feed table behind an atomic pointer, so a feed
// id resolves against exactly one table generation per lookup even while a
// reload is in progress.
type Registry struct {
	current atomic.Pointer[Config]
}

// NewRegistry creates a registry serving the given table.
func NewRegistry(cfg *Config) *Registry {
	r := &Registry{}
	r.current.Store(cfg)
	return r
}

// Lookup resolves a feed id to its configuration.
func (r *Registry) Lookup(feedID string) (FeedConfig, bool) {
	cfg, ok := r.current.Load().Feeds[feedID]
	return cfg, ok
}

// Replace swaps in a new feed table.
func (r *Registry) Replace(cfg *Config) {
	r.current.Store(cfg)
}

// FeedIDs returns the ids currently configured.
func (r *Registry) FeedIDs() []string {
	feeds := r.current.Load().Feeds
	ids := make([]string, 0, len(feeds))
	for id := range feeds {
		ids = append(ids, id)
	}
	return ids
}
