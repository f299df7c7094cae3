package feed

import (
	"bytes"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
)

// Item is one entry of a parsed feed.
type Item struct {
	Title           string
	Link            string
	GUID            string
	Author          string
	Summary         string // the entry's short description
	Content         string // full content, when the feed carries one
	Published       string
	PublishedParsed *time.Time
}

// Feed is the structured representation of a syndication feed. Two copies
// may exist transiently per source URL: the freshness baseline and a newly
// parsed candidate; exactly one becomes the new baseline per refresh cycle.
type Feed struct {
	Title           string
	Link            string
	Description     string
	FeedType        string // "rss" or "atom", as detected by the parser
	Published       string
	PublishedParsed *time.Time
	Updated         string
	UpdatedParsed   *time.Time
	Items           []*Item
}

// Parse builds a Feed from raw upstream bytes. Failures wrap
// ErrMalformedFeed.
func Parse(raw []byte) (*Feed, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}

	f := &Feed{
		Title:           parsed.Title,
		Link:            parsed.Link,
		Description:     parsed.Description,
		FeedType:        parsed.FeedType,
		Published:       parsed.Published,
		PublishedParsed: parsed.PublishedParsed,
		Updated:         parsed.Updated,
		UpdatedParsed:   parsed.UpdatedParsed,
		Items:           make([]*Item, 0, len(parsed.Items)),
	}

	for _, item := range parsed.Items {
		entry := &Item{
			Title:           item.Title,
			Link:            item.Link,
			GUID:            item.GUID,
			Summary:         item.Description,
			Content:         item.Content,
			Published:       item.Published,
			PublishedParsed: item.PublishedParsed,
		}
		if item.Author != nil {
			entry.Author = item.Author.Name
		}
		f.Items = append(f.Items, entry)
	}

	return f, nil
}

// SummaryText returns the text used as the article key's original summary:
// the entry's full content when the feed carries one, the short description
// otherwise.
func (it *Item) SummaryText() string {
	if it.Content != "" {
		return it.Content
	}
	return it.Summary
}
