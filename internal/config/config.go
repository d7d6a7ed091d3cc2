package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vlaradar/vlaradar/internal/models"
)

// ErrInvalid marks configuration-class errors, the only error kind that
// aborts a run.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all application configuration
type Config struct {
	Search  SearchConfig
	Fetch   FetchConfig
	Storage StorageConfig
	Cache   CacheConfig
	Logging LoggingConfig
}

// SearchConfig holds the topic query and its scope
type SearchConfig struct {
	Query               string
	PerSourceLimit      int
	StartDate           string // YYYY-MM-DD, empty means unbounded
	TargetLanguage      string // empty disables translation
	TargetOrganizations []string
	SourcesPath         string
}

// FetchConfig holds adapter HTTP behavior
type FetchConfig struct {
	Timeout     time.Duration
	RateLimit   time.Duration
	MaxAttempts int
	UserAgent   string
}

// StorageConfig holds the snapshot store location
type StorageConfig struct {
	DataDir string
}

// CacheConfig holds seen-index cache configuration
type CacheConfig struct {
	Backend   string // "memory" or "redis"
	TTL       time.Duration
	RedisAddr string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

const defaultQuery = `(VLA OR "vision language action") AND (robot OR robotics OR "autonomous driving")`

// Load parses flags and environment variables to build configuration
func Load() *Config {
	query := flag.String("query", defaultQuery, "Topic search expression sent to every source")
	perSourceLimit := flag.Int("limit", 30, "Maximum results per source")
	startDate := flag.String("start-date", "", "Only fetch content updated on or after this date (YYYY-MM-DD)")
	lang := flag.String("lang", "", "Target language for summary translation (empty disables)")
	orgs := flag.String("orgs", "", "Comma-separated research organizations to track via web search")
	sourcesPath := flag.String("sources", "", "Path to sources.json (defaults to built-in source list)")
	timeout := flag.Duration("timeout", 20*time.Second, "Per-request timeout for source APIs")
	rateLimit := flag.Duration("rate-limit", time.Second, "Minimum delay between requests to the same host")
	maxAttempts := flag.Int("max-attempts", 3, "Attempts per source request before giving up")
	dataDir := flag.String("data-dir", "data", "Snapshot store directory")
	cacheBackend := flag.String("cache-backend", "memory", "Seen-index cache backend: memory or redis")
	cacheTTL := flag.Duration("cache-ttl", 90*24*time.Hour, "Seen-index cache TTL")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis server address")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")

	flag.Parse()

	applyEnvOverrides(query, perSourceLimit, startDate, lang, orgs, sourcesPath, timeout, rateLimit, maxAttempts, dataDir, cacheBackend, cacheTTL, redisAddr, logLevel)

	return &Config{
		Search: SearchConfig{
			Query:               *query,
			PerSourceLimit:      *perSourceLimit,
			StartDate:           *startDate,
			TargetLanguage:      *lang,
			TargetOrganizations: splitList(*orgs),
			SourcesPath:         *sourcesPath,
		},
		Fetch: FetchConfig{
			Timeout:     *timeout,
			RateLimit:   *rateLimit,
			MaxAttempts: *maxAttempts,
			UserAgent:   "vla-radar/1.0",
		},
		Storage: StorageConfig{
			DataDir: *dataDir,
		},
		Cache: CacheConfig{
			Backend:   *cacheBackend,
			TTL:       *cacheTTL,
			RedisAddr: *redisAddr,
		},
		Logging: LoggingConfig{
			Level: *logLevel,
		},
	}
}

// Validate reports configuration-class errors before any work starts.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Search.Query) == "" {
		return fmt.Errorf("%w: query must not be empty", ErrInvalid)
	}
	if c.Search.PerSourceLimit <= 0 {
		return fmt.Errorf("%w: per-source limit must be positive, got %d", ErrInvalid, c.Search.PerSourceLimit)
	}
	if c.Search.StartDate != "" {
		if _, err := time.Parse(models.RunDateLayout, c.Search.StartDate); err != nil {
			return fmt.Errorf("%w: start date %q is not YYYY-MM-DD", ErrInvalid, c.Search.StartDate)
		}
	}
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return fmt.Errorf("%w: data dir must not be empty", ErrInvalid)
	}
	return nil
}

// StartDateTime returns the parsed start date; zero when unset.
func (c *Config) StartDateTime() time.Time {
	t, err := time.Parse(models.RunDateLayout, c.Search.StartDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func applyEnvOverrides(
	query *string,
	perSourceLimit *int,
	startDate *string,
	lang *string,
	orgs *string,
	sourcesPath *string,
	timeout *time.Duration,
	rateLimit *time.Duration,
	maxAttempts *int,
	dataDir *string,
	cacheBackend *string,
	cacheTTL *time.Duration,
	redisAddr *string,
	logLevel *string,
) {
	if v := os.Getenv("SEARCH_QUERY"); v != "" {
		*query = v
	}
	if v := os.Getenv("PER_SOURCE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*perSourceLimit = n
		}
	}
	if v := os.Getenv("START_DATE"); v != "" {
		*startDate = v
	}
	if v := os.Getenv("TARGET_LANG"); v != "" {
		*lang = v
	}
	if v := os.Getenv("TARGET_ORGS"); v != "" {
		*orgs = v
	}
	if v := os.Getenv("SOURCES_CONFIG_PATH"); v != "" {
		*sourcesPath = v
	}
	if v := os.Getenv("FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*timeout = d
		}
	}
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*rateLimit = d
		}
	}
	if v := os.Getenv("MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*maxAttempts = n
		}
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		*dataDir = v
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		*cacheBackend = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*cacheTTL = d
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		*redisAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		*logLevel = v
	}
}
