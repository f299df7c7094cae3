package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rssextender/pkg/article"
	"rssextender/pkg/config"
	"rssextender/pkg/feed"
	"rssextender/pkg/httpclient"
	"rssextender/pkg/server"
)

func main() {
	env := config.LoadEnv()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: env.LogLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load(env.ConfigPath)
	if err != nil {
		logger.Error("failed to load config", "path", env.ConfigPath, "error", err)
		os.Exit(1)
	}
	registry := config.NewRegistry(cfg)

	if env.APIKeyIsNew {
		// Deliberate tradeoff: with no key configured, the generated one is
		// only obtainable from process output.
		logger.Info("no API key configured, generated one", "apikey", env.APIKey)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if env.WatchConfig {
		go func() {
			if err := registry.Watch(ctx, env.ConfigPath, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("config watcher stopped", "error", err)
			}
		}()
	}

	feedClient := httpclient.NewClient(httpclient.PlainClient)
	articleClient := httpclient.NewClient(httpclient.BrowserClient)

	rawCache := feed.NewRawCache(feedClient, feed.DefaultRawTTL, logger)
	articleCache := article.NewCache(articleClient, registry.Lookup, article.DefaultTTL, logger)
	pipeline := feed.NewPipeline(registry.Lookup, rawCache, articleCache, feed.NewTracker(), logger)
	responseCache := feed.NewResponseCache(pipeline, feed.DefaultResponseTTL)

	addr := fmt.Sprintf("%s:%d", env.Bind, env.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.NewHandler(env.APIKey, responseCache, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen", "addr", addr, "error", err)
		os.Exit(1)
	}

	logger.Info("rssextender starting", "addr", addr, "feeds", len(cfg.Feeds))
	if err := serve(ctx, srv, ln, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	// No requests are in flight past this point; drain the caches' loaders
	// before exiting.
	responseCache.Close()
	rawCache.Close()
	articleCache.Close()
	logger.Info("rssextender stopped")
}

// serve runs srv on ln until ctx is cancelled, then shuts it down gracefully.
// It returns only after in-flight requests have drained, so callers can tear
// down anything the handlers depend on.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, logger *slog.Logger) error {
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-shutdownDone
	return nil
}
