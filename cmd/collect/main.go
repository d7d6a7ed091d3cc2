package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vlaradar/vlaradar/internal/aggregator"
	"github.com/vlaradar/vlaradar/internal/cache"
	"github.com/vlaradar/vlaradar/internal/config"
	"github.com/vlaradar/vlaradar/internal/logging"
	"github.com/vlaradar/vlaradar/internal/ratelimit"
	"github.com/vlaradar/vlaradar/internal/sources"
	"github.com/vlaradar/vlaradar/internal/storage"
	"github.com/vlaradar/vlaradar/internal/translate"
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.ParseLevel(cfg.Logging.Level))

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", logging.WithField("error", err.Error()))
		os.Exit(1)
	}

	store, err := storage.NewStore(cfg.Storage.DataDir, logger)
	if err != nil {
		logger.Error("Failed to open snapshot store", logging.WithField("error", err.Error()))
		os.Exit(1)
	}

	// Seen-index cache backend
	var seenCache cache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		logger.Info("Using Redis cache backend", logging.WithField("addr", cfg.Cache.RedisAddr))
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Addr:   cfg.Cache.RedisAddr,
			Prefix: "vla-radar:",
		}, cfg.Cache.TTL)
		if err != nil {
			logger.Error("Failed to connect to Redis, falling back to memory cache", logging.WithField("error", err.Error()))
			seenCache = cache.NewMemory(cfg.Cache.TTL)
		} else {
			seenCache = redisCache
		}
	default:
		logger.Info("Using in-memory cache backend")
		seenCache = cache.NewMemory(cfg.Cache.TTL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutting down...")
		cancel()
	}()

	seen := storage.NewSeenIndex(seenCache, logger)
	if seen.Len() == 0 {
		if err := seen.Rebuild(ctx, store); err != nil {
			logger.Warn("Failed to rebuild seen index from stored snapshots", logging.WithField("error", err.Error()))
		}
	}

	agg := buildAggregator(cfg, seen, logger)

	q := sources.Query{
		Text:       cfg.Search.Query,
		MaxResults: cfg.Search.PerSourceLimit,
		After:      cfg.StartDateTime(),
	}

	logger.Info("Starting collection run", logging.WithFields(map[string]interface{}{
		"query":   q.Text,
		"limit":   q.MaxResults,
		"sources": len(agg.Sources()),
	}))

	snap, err := agg.Aggregate(ctx, q)
	if err != nil {
		logger.Error("Collection run cancelled", logging.WithField("error", err.Error()))
		os.Exit(1)
	}

	if err := store.Save(ctx, snap); err != nil {
		logger.Error("Failed to persist snapshot", logging.WithField("error", err.Error()))
		os.Exit(1)
	}

	keys := make([]string, 0, len(snap.Items))
	for _, item := range snap.Items {
		keys = append(keys, item.IdentityKey())
	}
	seen.Add(keys)

	logger.Info("Collection run complete", logging.WithFields(map[string]interface{}{
		"runDate":       snap.RunDate,
		"runId":         snap.RunID,
		"items":         len(snap.Items),
		"newItems":      len(snap.NewItems),
		"failedSources": len(snap.Failures),
	}))
}

// buildAggregator wires fetchers from sources.json (or the built-in
// defaults), appends one web fetcher per tracked organization, and
// attaches translation when a target language is set.
func buildAggregator(cfg *config.Config, seen *storage.SeenIndex, logger *logging.Logger) *aggregator.Aggregator {
	limiter := ratelimit.New(cfg.Fetch.RateLimit)
	creds := sources.CredentialsFromEnv()

	fetcherConfig := sources.FetcherConfig{
		Timeout:     cfg.Fetch.Timeout,
		MaxAttempts: cfg.Fetch.MaxAttempts,
		UserAgent:   cfg.Fetch.UserAgent,
	}

	sourcesPath := cfg.Search.SourcesPath
	if sourcesPath == "" {
		sourcesPath = sources.FindSourcesConfig()
	}

	var sourcesConfig *sources.SourcesConfig
	if sourcesPath != "" {
		loaded, err := sources.LoadSourcesConfig(sourcesPath)
		if err != nil {
			logger.Warn("Failed to load sources config, using defaults", logging.WithFields(map[string]interface{}{
				"path":  sourcesPath,
				"error": err.Error(),
			}))
			sourcesConfig = sources.DefaultSourcesConfig()
		} else {
			logger.Info("Loaded sources config", logging.WithField("path", sourcesPath))
			sourcesConfig = loaded
		}
	} else {
		sourcesConfig = sources.DefaultSourcesConfig()
	}

	fetchers := sources.CreateFetchersFromConfig(sourcesConfig, creds, limiter, fetcherConfig)
	fetchers = append(fetchers, sources.CreateOrganizationFetchers(cfg.Search.TargetOrganizations, creds, limiter, fetcherConfig)...)

	var translator *translate.Translator
	if cfg.Search.TargetLanguage != "" {
		translator = translate.New(cfg.Search.TargetLanguage, logger)
	}

	agg := aggregator.New(fetchers, translator, seen, logger)
	for _, f := range fetchers {
		if lookup, ok := f.(aggregator.PaperLookup); ok {
			agg.UsePaperLookup(lookup)
			break
		}
	}
	return agg
}
