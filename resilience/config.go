package resilience

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/cache"
	"github.com/karupanerura/taskguard/strategy"
)

const (
	envDedup            = "TASKGUARD_DEDUP"
	envRetryMaxAttempts = "TASKGUARD_RETRY_MAX_ATTEMPTS"
	envRetryDelay       = "TASKGUARD_RETRY_DELAY"
	envTimeout          = "TASKGUARD_TIMEOUT"
	envThrottleRate     = "TASKGUARD_THROTTLE_RATE"
	envThrottleInterval = "TASKGUARD_THROTTLE_INTERVAL"
	envCacheFreshness   = "TASKGUARD_CACHE_FRESHNESS"
	envCacheRetention   = "TASKGUARD_CACHE_RETENTION"
	envCachePersist     = "TASKGUARD_CACHE_PERSIST"
	envLogLevel         = "TASKGUARD_LOG_LEVEL"
)

// Config holds the builder-level defaults applied to requests that do not configure a strategy.
type Config struct {
	Dedup    bool
	Cache    taskguard.CacheOptions
	Retry    taskguard.RetryOptions
	Timeout  time.Duration
	Throttle taskguard.ThrottleOptions

	// FastTier and SlowTier name the stack tiers the cache strategy writes to.
	FastTier string
	SlowTier string

	LogLevel slog.Level
}

// DefaultConfig returns the defaults of every strategy.
func DefaultConfig() Config {
	return Config{
		Dedup: true,
		Cache: taskguard.CacheOptions{
			FreshnessWindow: taskguard.Ptr(cache.DefaultFreshnessWindow),
			RetentionWindow: taskguard.Ptr(cache.DefaultRetentionWindow),
			Serialize:       taskguard.DefaultSerializer,
		},
		Retry:   strategy.DefaultRetryOptions(),
		Timeout: strategy.DefaultTimeout,
		Throttle: taskguard.ThrottleOptions{
			Interval:  taskguard.Ptr(strategy.DefaultThrottleInterval),
			Rate:      taskguard.Ptr(strategy.DefaultThrottleRate),
			Serialize: taskguard.DefaultSerializer,
		},
		FastTier: "l1",
		SlowTier: "l2",
		LogLevel: slog.LevelInfo,
	}
}

// LoadConfig overlays the TASKGUARD_* environment variables on DefaultConfig.
// Durations accept the taskguard.ParseDuration formats. Malformed values are logged and ignored.
func LoadConfig() Config {
	cfg := DefaultConfig()

	if v := os.Getenv(envDedup); v != "" {
		cfg.Dedup = parseBool(envDedup, v, cfg.Dedup)
	}
	if v := os.Getenv(envRetryMaxAttempts); v != "" {
		cfg.Retry.MaxAttempts = taskguard.Ptr(parseInt(envRetryMaxAttempts, v, *cfg.Retry.MaxAttempts))
	}
	if v := os.Getenv(envRetryDelay); v != "" {
		cfg.Retry.Delay = taskguard.Ptr(taskguard.ParseDuration(v))
	}
	if v := os.Getenv(envTimeout); v != "" {
		cfg.Timeout = taskguard.ParseDuration(v)
	}
	if v := os.Getenv(envThrottleRate); v != "" {
		cfg.Throttle.Rate = taskguard.Ptr(parseInt(envThrottleRate, v, *cfg.Throttle.Rate))
	}
	if v := os.Getenv(envThrottleInterval); v != "" {
		cfg.Throttle.Interval = taskguard.Ptr(taskguard.ParseDuration(v))
	}
	if v := os.Getenv(envCacheFreshness); v != "" {
		cfg.Cache.FreshnessWindow = taskguard.Ptr(taskguard.ParseDuration(v))
	}
	if v := os.Getenv(envCacheRetention); v != "" {
		cfg.Cache.RetentionWindow = taskguard.Ptr(taskguard.ParseDuration(v))
	}
	if v := os.Getenv(envCachePersist); v != "" {
		cfg.Cache.Persist = parseBool(envCachePersist, v, cfg.Cache.Persist)
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}

	return cfg
}

func parseInt(name, s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		slog.Warn("ignoring malformed integer", "variable", name, "value", s)
		return fallback
	}
	return n
}

func parseBool(name, s string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		slog.Warn("ignoring malformed boolean", "variable", name, "value", s)
		return fallback
	}
	return b
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a JSON logger writing to w at the given level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
