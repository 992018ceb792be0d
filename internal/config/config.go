package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/seantiz/cadence/internal/filter"
	"github.com/seantiz/cadence/internal/order"
	"github.com/seantiz/cadence/internal/retry"
)

const (
	defaultListenAddr = ":8080"
	defaultDBPath     = ":memory:"

	envListenAddr     = "CADENCE_LISTEN_ADDR"
	envDBPath         = "CADENCE_DB_PATH"
	envLogLevel       = "CADENCE_LOG_LEVEL"
	envRetry          = "CADENCE_RETRY"
	envRetryTagFilter = "CADENCE_RETRY_TAG_FILTER"
	envTags           = "CADENCE_TAGS"
	envNames          = "CADENCE_NAMES"
	envOrder          = "CADENCE_ORDER"
	envHandlerTimeout = "CADENCE_HANDLER_TIMEOUT"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	Retry          int
	RetryTagFilter string
	Tags           string
	Names          []string
	Order          string

	// HandlerTimeout bounds user plugin handlers; zero means unbounded.
	HandlerTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// Retry options are validated here so a malformed retry tag filter fails
// startup even for processes that never run a scenario. Filter and order
// options are validated by their plugins.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr: defaultListenAddr,
		DBPath:     defaultDBPath,
		LogLevel:   slog.LevelInfo,
		Order:      order.Defined,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envRetry); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", envRetry, err)
		}
		cfg.Retry = n
	}
	cfg.RetryTagFilter = os.Getenv(envRetryTagFilter)
	cfg.Tags = os.Getenv(envTags)
	cfg.Names = splitList(os.Getenv(envNames))
	if v := os.Getenv(envOrder); v != "" {
		cfg.Order = v
	}
	if v := os.Getenv(envHandlerTimeout); v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", envHandlerTimeout, err)
		}
		if d < 0 {
			return Config{}, fmt.Errorf("parse %s: negative duration %s", envHandlerTimeout, d)
		}
		cfg.HandlerTimeout = d
	}

	if _, err := retry.NewPolicy(cfg.RetryOptions()); err != nil {
		return Config{}, fmt.Errorf("%s/%s: %w", envRetry, envRetryTagFilter, err)
	}

	return cfg, nil
}

// RetryOptions returns the options for the retry plugin.
func (c Config) RetryOptions() retry.Options {
	return retry.Options{Retry: c.Retry, RetryTagFilter: c.RetryTagFilter}
}

// FilterOptions returns the options for the filter plugin.
func (c Config) FilterOptions() filter.Options {
	return filter.Options{TagExpression: c.Tags, Names: c.Names}
}

// OrderOptions returns the options for the order plugin.
func (c Config) OrderOptions() order.Options {
	return order.Options{Order: c.Order}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
