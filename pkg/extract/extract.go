package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.UGCPolicy()

// Extract narrows an article page down to its body using the feed's rules
// and returns it as sanitized HTML, safe to embed in XML output.
//
// Selectors are applied cumulatively: each rule searches only within the
// working set produced by the previous rule. An empty selector list means
// the whole document. Removes are applied afterwards against the final
// working set, deleting matched subtrees. Degenerate input produces
// degenerate (possibly empty) output; there is no error path.
func Extract(pageHTML, baseURL string, selectors, removes []string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return ""
	}

	working := doc.Selection
	for _, sel := range selectors {
		working = working.Find(sel)
	}

	for _, rem := range removes {
		working.Find(rem).Remove()
	}

	resolveLinks(working, baseURL)

	return Sanitize(render(working))
}

// ExtractReadability extracts the main article content automatically, for
// feeds configured without selector rules. The result goes through the same
// sanitize and XML-legality pass as selector extraction.
func ExtractReadability(pageHTML, baseURL string) string {
	pageURL, _ := url.Parse(baseURL)
	article, err := readability.FromReader(strings.NewReader(pageHTML), pageURL)
	if err != nil {
		return ""
	}
	return Sanitize(article.Content)
}

// Sanitize strips unsafe markup down to an allow-listed subset and removes
// any code point that is not legal in XML. Idempotent for already-safe
// input.
func Sanitize(s string) string {
	return stripXMLIllegal(policy.Sanitize(s))
}

// render serializes every node of the working set, in document order.
func render(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Each(func(_ int, s *goquery.Selection) {
		if h, err := goquery.OuterHtml(s); err == nil {
			b.WriteString(h)
		}
	})
	return b.String()
}

// resolveLinks rewrites relative href/src attributes in the working set to
// absolute URLs so links survive being served from a different origin.
func resolveLinks(sel *goquery.Selection, baseURL string) {
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return
	}
	for _, attr := range []string{"href", "src"} {
		// Find only reaches descendants, so the working set's own nodes
		// must be folded in as well.
		nodes := sel.Filter("[" + attr + "]").AddSelection(sel.Find("[" + attr + "]"))
		nodes.Each(func(_ int, s *goquery.Selection) {
			val, ok := s.Attr(attr)
			if !ok {
				return
			}
			ref, err := url.Parse(val)
			if err != nil || ref.IsAbs() {
				return
			}
			s.SetAttr(attr, base.ResolveReference(ref).String())
		})
	}
}

// stripXMLIllegal removes code points outside the XML character ranges:
// TAB, LF, CR, U+0020..U+D7FF, U+E000..U+FFFD, U+10000..U+10FFFF.
func stripXMLIllegal(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r >= 0x20 && r <= 0xD7FF:
			return r
		case r >= 0xE000 && r <= 0xFFFD:
			return r
		case r >= 0x10000 && r <= 0x10FFFF:
			return r
		}
		return -1
	}, s)
}
