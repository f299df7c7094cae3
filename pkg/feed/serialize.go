package feed

import (
	"fmt"

	"github.com/gorilla/feeds"
)

// Content types used when the upstream response did not declare one.
const (
	rssContentType  = "application/rss+xml; charset=utf-8"
	atomContentType = "application/atom+xml; charset=utf-8"
)

// Serialize renders a feed back to XML, as Atom when the source was Atom
// and RSS otherwise. Entry order is preserved.
func Serialize(f *Feed) ([]byte, error) {
	out := &feeds.Feed{
		Title:       f.Title,
		Link:        &feeds.Link{Href: f.Link},
		Description: f.Description,
	}
	if f.PublishedParsed != nil {
		out.Created = *f.PublishedParsed
	}
	if f.UpdatedParsed != nil {
		out.Updated = *f.UpdatedParsed
	}

	for _, it := range f.Items {
		item := &feeds.Item{
			Title:       it.Title,
			Link:        &feeds.Link{Href: it.Link},
			Id:          it.GUID,
			Description: it.Summary,
			Content:     it.Content,
		}
		if it.Author != "" {
			item.Author = &feeds.Author{Name: it.Author}
		}
		if it.PublishedParsed != nil {
			item.Created = *it.PublishedParsed
		}
		out.Items = append(out.Items, item)
	}

	var (
		data string
		err  error
	)
	if f.FeedType == "atom" {
		data, err = out.ToAtom()
	} else {
		data, err = out.ToRss()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to serialize feed: %w", err)
	}
	return []byte(data), nil
}

// defaultContentType picks the served content type when the upstream
// response did not declare one.
func defaultContentType(feedType string) string {
	if feedType == "atom" {
		return atomContentType
	}
	return rssContentType
}
