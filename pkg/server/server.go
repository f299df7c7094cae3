// Package server exposes the proxy's single HTTP endpoint.
package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"rssextender/pkg/feed"
)

// Handler serves GET /?feed=<id>&apikey=<secret>. It consults the response
// cache only; all fetching and assembly happens behind it.
type Handler struct {
	apiKey    string
	responses *feed.ResponseCache
	logger    *slog.Logger
}

// NewHandler creates the request handler.
func NewHandler(apiKey string, responses *feed.ResponseCache, logger *slog.Logger) *Handler {
	return &Handler{
		apiKey:    apiKey,
		responses: responses,
		logger:    logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	feedID := r.URL.Query().Get("feed")
	apiKey := r.URL.Query().Get("apikey")

	status := h.serve(w, r, feedID, apiKey)
	h.logger.Info("request served",
		"method", r.Method,
		"feed", feedID,
		"status", status,
		"elapsed", time.Since(start),
		"remote", r.RemoteAddr,
	)
}

// serve handles the request and returns the response status for logging.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, feedID, apiKey string) int {
	if subtle.ConstantTimeCompare([]byte(apiKey), []byte(h.apiKey)) != 1 {
		return plainError(w, http.StatusUnauthorized, "Not authorized to use this service")
	}
	if feedID == "" {
		return plainError(w, http.StatusBadRequest, "No feed given")
	}

	assembled, err := h.responses.Get(r.Context(), feedID)
	if err != nil {
		if errors.Is(err, feed.ErrUnknownFeed) {
			return plainError(w, http.StatusBadRequest, fmt.Sprintf("Unknown feed %s", feedID))
		}
		// Upstream, parse, or internal failure: log the detail, return
		// nothing. Failure structures are not safe to serialize to the
		// client.
		h.logger.Error("request failed", "feed", feedID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", assembled.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(assembled.Bytes)
	return http.StatusOK
}

func plainError(w http.ResponseWriter, status int, msg string) int {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintln(w, msg)
	return status
}
