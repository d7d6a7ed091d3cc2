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

const defaultGitHubAPIURL = "https://api.github.com/search/repositories"

// Repositories that aggregate other people's content (daily-paper lists,
// awesome-lists, blogs) match topic queries but are noise in the feed.
var githubNoiseKeywords = []string{
	"arxiv_daily", "arxiv-daily", "paper-daily",
	"ai-daily", "ai_daily", "awesome", "blog",
}

// GitHubFetcher searches the GitHub repository search API. A token is
// optional; without one the API serves a lower rate-limit tier.
type GitHubFetcher struct {
	token    string
	apiURL   string
	minStars int
	limiter  *ratelimit.Limiter
	config   FetcherConfig
	client   *http.Client
}

func NewGitHubFetcher(token string, limiter *ratelimit.Limiter, config FetcherConfig) *GitHubFetcher {
	return &GitHubFetcher{
		token:    token,
		apiURL:   defaultGitHubAPIURL,
		minStars: 100,
		limiter:  limiter,
		config:   config,
		client:   &http.Client{Timeout: config.Timeout},
	}
}

func (f *GitHubFetcher) Name() string {
	return "github.com"
}

func (f *GitHubFetcher) SourceInfo() models.SourceInfo {
	return models.SourceInfo{
		ID:          "github",
		Name:        "github.com",
		URL:         "https://github.com",
		Kind:        models.SourceCodeHost,
		Description: "GitHub repository search",
		Enabled:     true,
	}
}

type githubSearchResponse struct {
	Items []githubRepo `json:"items"`
}

type githubRepo struct {
	FullName    string    `json:"full_name"`
	Name        string    `json:"name"`
	HTMLURL     string    `json:"html_url"`
	Description string    `json:"description"`
	Stars       int       `json:"stargazers_count"`
	Language    string    `json:"language"`
	UpdatedAt   time.Time `json:"updated_at"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
}

func (f *GitHubFetcher) Fetch(ctx context.Context, q Query) ([]models.Item, error) {
	if err := f.limiter.WaitContext(ctx, "api.github.com"); err != nil {
		return nil, err
	}

	search := simplifyGitHubQuery(q.Text) + " in:name,description,readme"
	search += fmt.Sprintf(" stars:>%d", f.minStars)
	if !q.After.IsZero() {
		search += " updated:>=" + q.After.Format(models.RunDateLayout)
	}
	if !q.Before.IsZero() {
		// The API filter is date-inclusive; step back a day to keep
		// Before exclusive.
		search += " updated:<=" + q.Before.AddDate(0, 0, -1).Format(models.RunDateLayout)
	}

	perPage := q.MaxResults
	if perPage <= 0 || perPage > 100 {
		perPage = 100
	}

	params := url.Values{}
	params.Set("q", search)
	params.Set("sort", "updated")
	params.Set("order", "desc")
	params.Set("per_page", fmt.Sprintf("%d", perPage))
	reqURL := f.apiURL + "?" + params.Encode()

	body, err := doWithRetry(ctx, f.client, f.config, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/vnd.github.v3+json")
		if f.token != "" {
			req.Header.Set("Authorization", "token "+f.token)
		}
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("github search: %w", err)
	}

	var data githubSearchResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode github response: %w", err)
	}

	items := make([]models.Item, 0, len(data.Items))
	for _, repo := range data.Items {
		if repo.FullName == "" || isGitHubNoise(repo) {
			continue
		}
		if q.MaxResults > 0 && len(items) >= q.MaxResults {
			break
		}

		summary := repo.Description
		if summary == "" {
			summary = repo.Name
		}

		items = append(items, models.Item{
			Source:      models.SourceCodeHost,
			SourceName:  f.Name(),
			ExternalID:  repo.FullName,
			Title:       repo.FullName,
			URL:         repo.HTMLURL,
			Summary:     summary,
			Author:      repo.Owner.Login,
			PublishedAt: repo.UpdatedAt,
			FetchedAt:   time.Now().UTC(),
			RawMetadata: map[string]any{
				"stars":    repo.Stars,
				"language": repo.Language,
			},
		})
	}

	return items, nil
}

func isGitHubNoise(repo githubRepo) bool {
	haystack := strings.ToLower(repo.FullName + " " + repo.Name + " " + repo.Description)
	for _, kw := range githubNoiseKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// simplifyGitHubQuery reduces a free-text boolean expression to at most
// five OR-joined terms; the search API rejects queries with more than five
// AND/OR/NOT operators.
func simplifyGitHubQuery(query string) string {
	cleaned := strings.NewReplacer("(", " ", ")", " ", `"`, " ").Replace(query)

	terms := make([]string, 0, 5)
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
		terms = append(terms, field)
		if len(terms) == 5 {
			break
		}
	}

	if len(terms) == 0 {
		return query
	}
	return strings.Join(terms, " OR ")
}
