package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vlaradar/vlaradar/internal/aggregator"
	"github.com/vlaradar/vlaradar/internal/config"
	"github.com/vlaradar/vlaradar/internal/feed"
	"github.com/vlaradar/vlaradar/internal/logging"
	"github.com/vlaradar/vlaradar/internal/models"
	"github.com/vlaradar/vlaradar/internal/ratelimit"
	"github.com/vlaradar/vlaradar/internal/sources"
	"github.com/vlaradar/vlaradar/internal/storage"
	"github.com/vlaradar/vlaradar/internal/translate"
)

func main() {
	// Register backfill flags before config.Load parses the command line.
	from := flag.String("from", "", "First week to backfill (YYYY-MM-DD, snapped to Monday)")
	to := flag.String("to", "", "Last week to backfill (YYYY-MM-DD, defaults to the current week)")
	refresh := flag.Bool("refresh", false, "Re-fetch weeks that already have a stored snapshot")

	cfg := config.Load()
	logger := logging.New(logging.ParseLevel(cfg.Logging.Level))

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", logging.WithField("error", err.Error()))
		os.Exit(1)
	}
	if *from == "" {
		logger.Error("Missing required -from flag")
		os.Exit(1)
	}

	fromTime, err := time.Parse(models.RunDateLayout, *from)
	if err != nil {
		logger.Error("Invalid -from date", logging.WithField("error", err.Error()))
		os.Exit(1)
	}
	toTime := time.Now().UTC()
	if *to != "" {
		toTime, err = time.Parse(models.RunDateLayout, *to)
		if err != nil {
			logger.Error("Invalid -to date", logging.WithField("error", err.Error()))
			os.Exit(1)
		}
	}

	store, err := storage.NewStore(cfg.Storage.DataDir, logger)
	if err != nil {
		logger.Error("Failed to open snapshot store", logging.WithField("error", err.Error()))
		os.Exit(1)
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

	agg := buildAggregator(cfg, logger)

	start := feed.WeekStart(fromTime)
	end := feed.WeekStart(toTime)

	for week := start; !week.After(end); week = week.AddDate(0, 0, 7) {
		if err := ctx.Err(); err != nil {
			logger.Info("Backfill interrupted", logging.WithField("lastWeek", week.Format(models.RunDateLayout)))
			os.Exit(1)
		}

		runDate := week.Format(models.RunDateLayout)

		if !*refresh {
			if _, err := store.Load(ctx, runDate); err == nil {
				logger.Info("Week already collected, skipping", logging.WithField("week", runDate))
				continue
			} else if !errors.Is(err, storage.ErrNotFound) {
				logger.Error("Failed to check stored snapshot", logging.WithField("error", err.Error()))
				os.Exit(1)
			}
		}

		q := sources.Query{
			Text:       cfg.Search.Query,
			MaxResults: cfg.Search.PerSourceLimit,
			After:      week,
			Before:     week.AddDate(0, 0, 7),
		}

		logger.Info("Backfilling week", logging.WithField("week", runDate))

		snap, err := agg.Aggregate(ctx, q)
		if err != nil {
			logger.Error("Backfill cancelled", logging.WithField("error", err.Error()))
			os.Exit(1)
		}

		// Key the snapshot by its week, not by today.
		snap.RunDate = runDate

		if err := store.Save(ctx, snap); err != nil {
			logger.Error("Failed to persist snapshot", logging.WithField("error", err.Error()))
			os.Exit(1)
		}

		logger.Info("Week backfilled", logging.WithFields(map[string]interface{}{
			"week":          runDate,
			"items":         len(snap.Items),
			"failedSources": len(snap.Failures),
		}))
	}

	logger.Info("Backfill complete")
}

// buildAggregator wires the same source set as a regular collection run.
// Backfill skips the seen index: historical snapshots should not suppress
// later new-item detection, the rebuild on the next run picks them up.
func buildAggregator(cfg *config.Config, logger *logging.Logger) *aggregator.Aggregator {
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

	sourcesConfig := sources.DefaultSourcesConfig()
	if sourcesPath != "" {
		if loaded, err := sources.LoadSourcesConfig(sourcesPath); err != nil {
			logger.Warn("Failed to load sources config, using defaults", logging.WithFields(map[string]interface{}{
				"path":  sourcesPath,
				"error": err.Error(),
			}))
		} else {
			sourcesConfig = loaded
		}
	}

	fetchers := sources.CreateFetchersFromConfig(sourcesConfig, creds, limiter, fetcherConfig)
	fetchers = append(fetchers, sources.CreateOrganizationFetchers(cfg.Search.TargetOrganizations, creds, limiter, fetcherConfig)...)

	var translator *translate.Translator
	if cfg.Search.TargetLanguage != "" {
		translator = translate.New(cfg.Search.TargetLanguage, logger)
	}

	agg := aggregator.New(fetchers, translator, nil, logger)
	for _, f := range fetchers {
		if lookup, ok := f.(aggregator.PaperLookup); ok {
			agg.UsePaperLookup(lookup)
			break
		}
	}
	return agg
}
