package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/google/uuid"
)

// Env holds the process-level settings read from the environment.
type Env struct {
	Bind        string
	Port        int
	APIKey      string
	APIKeyIsNew bool // true when no key was configured and one was generated
	ConfigPath  string
	LogLevel    slog.Level
	WatchConfig bool
}

// LoadEnv reads the RSSEXTENDER_* environment variables, applying defaults.
// When no API key is set a random one is generated; the caller is expected
// to log it, since obtaining it from process output is the only way to use
// the service in that case.
func LoadEnv() Env {
	apiKey := os.Getenv("RSSEXTENDER_APIKEY")
	generated := false
	if apiKey == "" {
		apiKey = uuid.NewString()
		generated = true
	}

	return Env{
		Bind:        getenv("RSSEXTENDER_BIND", "0.0.0.0"),
		Port:        parseIntEnv("RSSEXTENDER_PORT", 8080),
		APIKey:      apiKey,
		APIKeyIsNew: generated,
		ConfigPath:  getenv("RSSEXTENDER_CONFIG", "feeds.yml"),
		LogLevel:    parseLevelEnv("RSSEXTENDER_LOG_LEVEL", slog.LevelInfo),
		WatchConfig: parseBoolEnv("RSSEXTENDER_WATCH_CONFIG", false),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func parseBoolEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func parseLevelEnv(key string, def slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err == nil {
			return level
		}
	}
	return def
}
