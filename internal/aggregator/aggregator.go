package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vlaradar/vlaradar/internal/logging"
	"github.com/vlaradar/vlaradar/internal/models"
	"github.com/vlaradar/vlaradar/internal/sources"
	"github.com/vlaradar/vlaradar/internal/storage"
	"github.com/vlaradar/vlaradar/internal/translate"
)

// PaperLookup resolves archive paper ids to full metadata, used to
// upgrade web-search hits that link to papers from snippet quality to the
// archive's own title and abstract.
type PaperLookup interface {
	LookupPapers(ctx context.Context, ids []string) (map[string]models.Item, error)
}

// Aggregator runs every configured source adapter for one query and merges
// the results into a single snapshot. Source order is significant: items
// keep adapter invocation order, and dedup ties go to the earlier source.
type Aggregator struct {
	fetchers   []sources.Fetcher
	translator *translate.Translator
	seen       *storage.SeenIndex
	papers     PaperLookup
	logger     *logging.Logger
	now        func() time.Time
}

// New creates an aggregator. translator and seen may be nil, which
// disables translation and seen-before suppression respectively.
func New(fetchers []sources.Fetcher, translator *translate.Translator, seen *storage.SeenIndex, logger *logging.Logger) *Aggregator {
	return &Aggregator{
		fetchers:   fetchers,
		translator: translator,
		seen:       seen,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// UsePaperLookup enables paper metadata enrichment of web-search items.
func (a *Aggregator) UsePaperLookup(lookup PaperLookup) {
	a.papers = lookup
}

// Aggregate fans out the query to every adapter concurrently and always
// returns a snapshot: a failing source contributes a failure record, not
// an abort. The only error is context cancellation, in which case no
// snapshot should be persisted.
func (a *Aggregator) Aggregate(ctx context.Context, q sources.Query) (models.Snapshot, error) {
	results := make([]sources.FetchResult, len(a.fetchers))

	var wg sync.WaitGroup
	for i, fetcher := range a.fetchers {
		wg.Add(1)
		go func(i int, f sources.Fetcher) {
			defer wg.Done()

			items, err := f.Fetch(ctx, q)
			results[i] = sources.FetchResult{
				Items:  items,
				Source: f.SourceInfo(),
				Err:    err,
			}
		}(i, fetcher)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return models.Snapshot{}, err
	}

	now := a.now()
	snap := models.Snapshot{
		RunDate:     now.Format(models.RunDateLayout),
		RunID:       uuid.New().String(),
		Query:       q.Text,
		GeneratedAt: now,
		Items:       make([]models.Item, 0),
	}

	// Walk results in configured order so the merged feed preserves
	// adapter order and within-adapter relevance order.
	byKey := make(map[string]int)
	for _, result := range results {
		if result.Err != nil {
			a.logger.Warn("Source failed, continuing with remaining sources", logging.WithFields(map[string]interface{}{
				"source": result.Source.Name,
				"error":  result.Err.Error(),
			}))
			snap.Failures = append(snap.Failures, models.SourceFailure{
				Source: result.Source.Name,
				Error:  result.Err.Error(),
			})
			continue
		}

		a.logger.Info("Fetched items from source", logging.WithFields(map[string]interface{}{
			"source": result.Source.Name,
			"count":  len(result.Items),
		}))

		for _, item := range result.Items {
			item.Title = translate.Normalize(item.Title)
			item.Summary = translate.Normalize(item.Summary)

			key := item.IdentityKey()
			if idx, ok := byKey[key]; ok {
				// Same origin identity: keep the more complete record,
				// first-seen position and first-seen on ties.
				if snap.Items[idx].Summary == "" && item.Summary != "" {
					snap.Items[idx] = item
				}
				continue
			}
			byKey[key] = len(snap.Items)
			snap.Items = append(snap.Items, item)
		}
	}

	if a.papers != nil {
		a.enrichPaperLinks(ctx, snap.Items)
	}

	if a.translator != nil && a.translator.Enabled() {
		for i := range snap.Items {
			snap.Items[i].Summary = a.translator.Translate(snap.Items[i].Summary)
		}
	}

	if a.seen != nil {
		snap.NewItems = make([]models.Item, 0, len(snap.Items))
		for _, item := range snap.Items {
			if !a.seen.Seen(item.IdentityKey()) {
				snap.NewItems = append(snap.NewItems, item)
			}
		}
	}

	a.logger.Info("Aggregation complete", logging.WithFields(map[string]interface{}{
		"total_items":    len(snap.Items),
		"new_items":      len(snap.NewItems),
		"failed_sources": len(snap.Failures),
		"sources":        len(a.fetchers),
	}))

	return snap, nil
}

// enrichPaperLinks replaces the snippet-quality title and summary of
// web-search items that link to archive papers with the archive's own
// metadata. Best effort: a failed lookup leaves the items as fetched.
func (a *Aggregator) enrichPaperLinks(ctx context.Context, items []models.Item) {
	idByIndex := make(map[int]string)
	seen := make(map[string]bool)
	ids := make([]string, 0)
	for i, item := range items {
		if item.Source != models.SourceWebSearch {
			continue
		}
		id := sources.ExtractArxivID(item.URL)
		if id == "" {
			continue
		}
		idByIndex[i] = id
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}

	papers, err := a.papers.LookupPapers(ctx, ids)
	if err != nil {
		a.logger.Warn("Paper metadata lookup failed, keeping search snippets", logging.WithField("error", err.Error()))
		return
	}

	for i, id := range idByIndex {
		paper, ok := papers[id]
		if !ok {
			continue
		}
		items[i].Title = paper.Title
		items[i].Summary = paper.Summary
		if items[i].Author == "" {
			items[i].Author = paper.Author
		}
		if items[i].PublishedAt.IsZero() {
			items[i].PublishedAt = paper.PublishedAt
		}
	}
}

// Sources lists the configured source descriptors in invocation order.
func (a *Aggregator) Sources() []models.SourceInfo {
	infos := make([]models.SourceInfo, 0, len(a.fetchers))
	for _, f := range a.fetchers {
		infos = append(infos, f.SourceInfo())
	}
	return infos
}
