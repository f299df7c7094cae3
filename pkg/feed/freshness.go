package feed

import "sync"

// Tracker remembers the last assembled feed per source URL, so the pipeline
// can skip re-scraping articles when the upstream feed has not changed.
//
// Replace is a single swap under the lock: concurrent refreshes of the same
// URL cannot interleave partial updates. Two refreshes racing on one URL may
// each decide "changed" and the later Replace wins wholesale.
type Tracker struct {
	mu        sync.RWMutex
	baselines map[string]*Feed
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{baselines: make(map[string]*Feed)}
}

// Baseline returns the stored feed for url, or nil when none exists.
func (t *Tracker) Baseline(url string) *Feed {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.baselines[url]
}

// Replace stores f as the new baseline for url, replacing any prior one.
func (t *Tracker) Replace(url string, f *Feed) {
	t.mu.Lock()
	t.baselines[url] = f
	t.mu.Unlock()
}

// Changed reports whether candidate should be treated as a new feed
// revision relative to baseline: true when no baseline exists, when either
// feed-level published timestamp is absent, or when the timestamps differ.
func Changed(baseline, candidate *Feed) bool {
	if baseline == nil || baseline.PublishedParsed == nil || candidate.PublishedParsed == nil {
		return true
	}
	return !baseline.PublishedParsed.Equal(*candidate.PublishedParsed)
}
