package models

import (
	"strings"
	"time"
)

// SourceKind identifies which class of external source produced an item.
type SourceKind string

const (
	SourceCodeHost     SourceKind = "code_host"
	SourceModelHub     SourceKind = "model_hub"
	SourcePaperArchive SourceKind = "paper_archive"
	SourceWebSearch    SourceKind = "web_search"
)

// Item is a normalized content reference produced by a source adapter.
type Item struct {
	Source      SourceKind     `json:"source"`
	SourceName  string         `json:"sourceName"`
	ExternalID  string         `json:"externalId,omitempty"`
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	Summary     string         `json:"summary,omitempty"`
	Author      string         `json:"author,omitempty"`
	PublishedAt time.Time      `json:"publishedAt"`
	FetchedAt   time.Time      `json:"fetchedAt"`
	RawMetadata map[string]any `json:"rawMetadata,omitempty"`
}

// IdentityKey returns the dedup key for an item: the external ID when the
// source provides one, otherwise the normalized URL. Identity is always
// scoped to the source kind.
func (i Item) IdentityKey() string {
	if i.ExternalID != "" {
		return string(i.Source) + "|" + i.ExternalID
	}
	return string(i.Source) + "|" + NormalizeURL(i.URL)
}

// BucketTime is the timestamp used for time-period grouping.
func (i Item) BucketTime() time.Time {
	if !i.PublishedAt.IsZero() {
		return i.PublishedAt
	}
	return i.FetchedAt
}

// NormalizeURL lowercases a URL and strips trailing slashes so cosmetic
// variants of the same link collide during dedup.
func NormalizeURL(raw string) string {
	u := strings.ToLower(strings.TrimSpace(raw))
	return strings.TrimRight(u, "/")
}

type SourceInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	Kind        SourceKind `json:"kind"`
	Description string     `json:"description"`
	Enabled     bool       `json:"enabled"`
}

// SourceFailure records a source that returned no usable results for a run.
type SourceFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// RunDateLayout is the canonical key format for snapshots.
const RunDateLayout = "2006-01-02"

// Snapshot is the full aggregated result set for one run, keyed by date.
// A snapshot is immutable once written; re-running the same date replaces
// it wholesale.
type Snapshot struct {
	RunDate     string          `json:"runDate"`
	RunID       string          `json:"runId"`
	Query       string          `json:"query"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Items       []Item          `json:"items"`
	NewItems    []Item          `json:"newItems,omitempty"`
	Failures    []SourceFailure `json:"failures,omitempty"`
}
