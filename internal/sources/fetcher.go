package sources

import (
	"context"
	"time"

	"github.com/vlaradar/vlaradar/internal/models"
)

// Fetcher is implemented by every source adapter. Fetch returns items in
// source-relevance order, truncated to q.MaxResults; transient remote
// failures surface as an error after the adapter's own retries so the
// aggregator can record them without aborting the run.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]models.Item, error)
	SourceInfo() models.SourceInfo
}

// Query is the search request passed identically to every adapter. After
// is inclusive, Before exclusive, so adjacent windows never overlap; zero
// means unbounded on that side.
type Query struct {
	Text       string
	MaxResults int
	After      time.Time
	Before     time.Time
}

type FetchResult struct {
	Items  []models.Item
	Source models.SourceInfo
	Err    error
}

type FetcherConfig struct {
	Timeout     time.Duration
	MaxAttempts int
	UserAgent   string
	// Sleep is the backoff delay function; tests inject a recorder so the
	// retry policy is checkable without real waits. Nil means a
	// context-aware time.Sleep.
	Sleep func(ctx context.Context, d time.Duration)
}

func DefaultConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:     20 * time.Second,
		MaxAttempts: 3,
		UserAgent:   "vla-radar/1.0",
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
