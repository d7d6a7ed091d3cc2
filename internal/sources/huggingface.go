package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vlaradar/vlaradar/internal/models"
	"github.com/vlaradar/vlaradar/internal/ratelimit"
)

const defaultHuggingFaceAPIURL = "https://huggingface.co/api/models"

// HuggingFaceFetcher searches the HuggingFace Hub models API. The API has
// no server-side date filter or boolean query support, so the adapter
// over-fetches and filters client-side.
type HuggingFaceFetcher struct {
	apiURL  string
	limiter *ratelimit.Limiter
	config  FetcherConfig
	client  *http.Client
}

func NewHuggingFaceFetcher(limiter *ratelimit.Limiter, config FetcherConfig) *HuggingFaceFetcher {
	return &HuggingFaceFetcher{
		apiURL:  defaultHuggingFaceAPIURL,
		limiter: limiter,
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

func (f *HuggingFaceFetcher) Name() string {
	return "huggingface.co"
}

func (f *HuggingFaceFetcher) SourceInfo() models.SourceInfo {
	return models.SourceInfo{
		ID:          "huggingface",
		Name:        "huggingface.co",
		URL:         "https://huggingface.co",
		Kind:        models.SourceModelHub,
		Description: "HuggingFace Hub model search",
		Enabled:     true,
	}
}

type hfModel struct {
	ID          string    `json:"id"`
	PipelineTag string    `json:"pipeline_tag"`
	Downloads   int       `json:"downloads"`
	Likes       int       `json:"likes"`
	Summary     string    `json:"summary"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (f *HuggingFaceFetcher) Fetch(ctx context.Context, q Query) ([]models.Item, error) {
	if err := f.limiter.WaitContext(ctx, "huggingface.co"); err != nil {
		return nil, err
	}

	terms := queryTerms(q.Text)
	primary := ""
	if len(terms) > 0 {
		primary = terms[0]
	}

	// Over-fetch so client-side filtering still fills the requested count.
	limit := q.MaxResults * 3
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	params := url.Values{}
	params.Set("search", primary)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("sort", "downloads")
	params.Set("direction", "-1")
	reqURL := f.apiURL + "?" + params.Encode()

	body, err := doWithRetry(ctx, f.client, f.config, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("huggingface search: %w", err)
	}

	var hfModels []hfModel
	if err := json.Unmarshal(body, &hfModels); err != nil {
		return nil, fmt.Errorf("decode huggingface response: %w", err)
	}

	items := make([]models.Item, 0, q.MaxResults)
	for _, m := range hfModels {
		if m.ID == "" {
			continue
		}
		if q.MaxResults > 0 && len(items) >= q.MaxResults {
			break
		}

		updated := m.UpdatedAt
		if updated.IsZero() {
			updated = m.CreatedAt
		}
		// Keep models without a timestamp rather than over-filter.
		if !updated.IsZero() {
			if !q.After.IsZero() && updated.Before(q.After) {
				continue
			}
			if !q.Before.IsZero() && !updated.Before(q.Before) {
				continue
			}
		}

		if !matchesTerms(m.ID+" "+m.Summary, terms) {
			continue
		}

		items = append(items, models.Item{
			Source:      models.SourceModelHub,
			SourceName:  f.Name(),
			ExternalID:  m.ID,
			Title:       m.ID,
			URL:         "https://huggingface.co/" + m.ID,
			Summary:     m.Summary,
			PublishedAt: updated,
			FetchedAt:   time.Now().UTC(),
			RawMetadata: map[string]any{
				"downloads":    m.Downloads,
				"likes":        m.Likes,
				"pipeline_tag": m.PipelineTag,
			},
		})
	}

	return items, nil
}

// queryTerms tokenizes a boolean expression into bare search terms,
// dropping operators, parens and quotes.
func queryTerms(query string) []string {
	cleaned := strings.NewReplacer("(", " ", ")", " ", `"`, " ").Replace(query)

	terms := make([]string, 0)
	seen := make(map[string]bool)
	for _, field := range strings.Fields(cleaned) {
		if field == "OR" || field == "AND" || field == "NOT" {
			continue
		}
		lower := strings.ToLower(field)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		terms = append(terms, lower)
	}
	return terms
}

// matchesTerms requires the primary term plus, when present, at least one
// secondary term to appear in the text.
func matchesTerms(text string, terms []string) bool {
	if len(terms) == 0 {
		return true
	}

	lower := strings.ToLower(text)
	if !strings.Contains(lower, terms[0]) {
		return false
	}
	if len(terms) == 1 {
		return true
	}
	for _, term := range terms[1:] {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
