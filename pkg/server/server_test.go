package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"rssextender/pkg/article"
	"rssextender/pkg/config"
	"rssextender/pkg/feed"
	"rssextender/pkg/httpclient"
)

const testAPIKey = "test-key"

type testStack struct {
	handler  *Handler
	feedHits int32
}

// newTestStack wires the whole serving path against fake upstreams.
func newTestStack(t *testing.T, upstreamStatus int) *testStack {
	t.Helper()

	s := &testStack{}

	articleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div class="body">Full article text</div></body></html>`))
	}))
	t.Cleanup(articleSrv.Close)

	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.feedHits, 1)
		if upstreamStatus != http.StatusOK {
			http.Error(w, "upstream broken", upstreamStatus)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>t</title><link>https://e.com</link><description>d</description>
<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
<item><title>i</title><link>%s/article</link><description>summary</description></item>
</channel></rss>`, articleSrv.URL)
	}))
	t.Cleanup(feedSrv.Close)

	cfg := &config.Config{Feeds: map[string]config.FeedConfig{
		"tech": {URL: feedSrv.URL, Selectors: []string{".body"}},
	}}
	registry := config.NewRegistry(cfg)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := httpclient.NewClient(httpclient.BrowserClient)

	raw := feed.NewRawCache(client, feed.DefaultRawTTL, logger)
	t.Cleanup(raw.Close)
	articles := article.NewCache(client, registry.Lookup, article.DefaultTTL, logger)
	t.Cleanup(articles.Close)

	pipeline := feed.NewPipeline(registry.Lookup, raw, articles, feed.NewTracker(), logger)
	responses := feed.NewResponseCache(pipeline, feed.DefaultResponseTTL)
	t.Cleanup(responses.Close)

	s.handler = NewHandler(testAPIKey, responses, logger)
	return s
}

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_WrongAPIKeyIs401RegardlessOfFeed(t *testing.T) {
	s := newTestStack(t, http.StatusOK)

	for _, url := range []string{
		"/?feed=tech&apikey=wrong",
		"/?feed=unknown&apikey=wrong",
		"/?feed=tech",
	} {
		rec := get(t, s.handler, url)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s: expected 401, got %d", url, rec.Code)
		}
	}
	if n := atomic.LoadInt32(&s.feedHits); n != 0 {
		t.Errorf("Expected no upstream calls for unauthorized requests, got %d", n)
	}
}

func TestHandler_MissingFeedIs400(t *testing.T) {
	s := newTestStack(t, http.StatusOK)

	rec := get(t, s.handler, "/?apikey="+testAPIKey)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No feed given") {
		t.Errorf("Unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_UnknownFeedIs400WithIDAndNoUpstreamCall(t *testing.T) {
	s := newTestStack(t, http.StatusOK)

	rec := get(t, s.handler, "/?feed=doesnotexist&apikey="+testAPIKey)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Unknown feed doesnotexist") {
		t.Errorf("Expected the literal feed id in the body, got: %s", rec.Body.String())
	}
	if n := atomic.LoadInt32(&s.feedHits); n != 0 {
		t.Errorf("Expected zero upstream calls for an unknown feed, got %d", n)
	}
}

func TestHandler_SuccessServesAssembledFeed(t *testing.T) {
	s := newTestStack(t, http.StatusOK)

	rec := get(t, s.handler, "/?feed=tech&apikey="+testAPIKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/rss+xml") {
		t.Errorf("Expected upstream content type passthrough, got '%s'", ct)
	}
	if !strings.Contains(rec.Body.String(), "Full article text") {
		t.Errorf("Expected augmented article content in the response, got: %s", rec.Body.String())
	}
}

func TestHandler_UpstreamFailureIs500WithEmptyBody(t *testing.T) {
	s := newTestStack(t, http.StatusBadGateway)

	rec := get(t, s.handler, "/?feed=tech&apikey="+testAPIKey)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("Expected empty body on internal failure, got: %s", rec.Body.String())
	}
}

func TestHandler_UnknownPathIs404(t *testing.T) {
	s := newTestStack(t, http.StatusOK)

	rec := get(t, s.handler, "/metrics?apikey="+testAPIKey)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
}
