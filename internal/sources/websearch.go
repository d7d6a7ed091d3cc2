package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/vlaradar/vlaradar/internal/models"
	"github.com/vlaradar/vlaradar/internal/ratelimit"
)

const (
	defaultGoogleSearchURL = "https://www.googleapis.com/customsearch/v1"
	defaultDuckDuckGoURL   = "https://html.duckduckgo.com/html/"

	googleItemsPerPage = 10
	googleMaxResults   = 30
)

// WebSearchFetcher queries a general web search engine, optionally scoped
// to one site or one research organization. With Google CSE credentials it
// uses the Custom Search JSON API; without them it degrades to scraping the
// DuckDuckGo HTML endpoint, a lower rate tier rather than a failure.
type WebSearchFetcher struct {
	apiKey       string
	cseID        string
	site         string
	organization string
	googleURL    string
	ddgURL       string
	limiter      *ratelimit.Limiter
	config       FetcherConfig
	client       *http.Client
}

func NewWebSearchFetcher(apiKey, cseID, site string, limiter *ratelimit.Limiter, config FetcherConfig) *WebSearchFetcher {
	return &WebSearchFetcher{
		apiKey:    apiKey,
		cseID:     cseID,
		site:      site,
		googleURL: defaultGoogleSearchURL,
		ddgURL:    defaultDuckDuckGoURL,
		limiter:   limiter,
		config:    config,
		client:    &http.Client{Timeout: config.Timeout},
	}
}

// NewOrganizationFetcher searches the whole web for one research
// organization's activity on the topic, tagging results with the org name.
func NewOrganizationFetcher(apiKey, cseID, organization string, limiter *ratelimit.Limiter, config FetcherConfig) *WebSearchFetcher {
	f := NewWebSearchFetcher(apiKey, cseID, "", limiter, config)
	f.organization = organization
	return f
}

func (f *WebSearchFetcher) Name() string {
	if f.organization != "" {
		return "org:" + f.organization
	}
	if f.site != "" {
		return f.site
	}
	return "web"
}

func (f *WebSearchFetcher) SourceInfo() models.SourceInfo {
	desc := "Web search"
	switch {
	case f.organization != "":
		desc = "Web search for " + f.organization
	case f.site != "":
		desc = "Web search scoped to " + f.site
	}
	return models.SourceInfo{
		ID:          strings.ToLower(strings.NewReplacer("/", "-", ".", "-", " ", "-", ":", "-").Replace(f.Name())),
		Name:        f.Name(),
		URL:         "https://" + f.site,
		Kind:        models.SourceWebSearch,
		Description: desc,
		Enabled:     true,
	}
}

func (f *WebSearchFetcher) Fetch(ctx context.Context, q Query) ([]models.Item, error) {
	text := q.Text
	if f.organization != "" {
		text = fmt.Sprintf("%q %s", f.organization, text)
	}
	if f.site != "" {
		text += " site:" + f.site
	}
	if !q.After.IsZero() {
		text += " after:" + q.After.Format(models.RunDateLayout)
	}
	if !q.Before.IsZero() {
		text += " before:" + q.Before.Format(models.RunDateLayout)
	}

	if f.apiKey == "" || f.cseID == "" {
		return f.fetchDuckDuckGo(ctx, text, q.MaxResults)
	}
	return f.fetchGoogle(ctx, text, q.MaxResults)
}

type googleSearchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

func (f *WebSearchFetcher) fetchGoogle(ctx context.Context, text string, maxResults int) ([]models.Item, error) {
	if maxResults <= 0 || maxResults > googleMaxResults {
		maxResults = googleMaxResults
	}

	items := make([]models.Item, 0, maxResults)
	for start := 1; len(items) < maxResults; start += googleItemsPerPage {
		if err := f.limiter.WaitContext(ctx, "www.googleapis.com"); err != nil {
			return nil, err
		}

		num := googleItemsPerPage
		if remaining := maxResults - len(items); remaining < num {
			num = remaining
		}

		params := url.Values{}
		params.Set("key", f.apiKey)
		params.Set("cx", f.cseID)
		params.Set("q", text)
		params.Set("num", fmt.Sprintf("%d", num))
		params.Set("start", fmt.Sprintf("%d", start))
		reqURL := f.googleURL + "?" + params.Encode()

		body, err := doWithRetry(ctx, f.client, f.config, func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		})
		if err != nil {
			return nil, fmt.Errorf("google search: %w", err)
		}

		var data googleSearchResponse
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, fmt.Errorf("decode google response: %w", err)
		}
		if len(data.Items) == 0 {
			break
		}

		for _, r := range data.Items {
			if len(items) >= maxResults {
				break
			}
			items = append(items, f.newItem(r.Title, r.Link, r.Snippet))
		}

		// A short page means the result set is exhausted.
		if len(data.Items) < num {
			break
		}
	}

	return items, nil
}

func (f *WebSearchFetcher) fetchDuckDuckGo(ctx context.Context, text string, maxResults int) ([]models.Item, error) {
	if err := f.limiter.WaitContext(ctx, "html.duckduckgo.com"); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", text)
	reqURL := f.ddgURL + "?" + params.Encode()

	body, err := doWithRetry(ctx, f.client, f.config, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("duckduckgo search: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse duckduckgo html: %w", err)
	}

	items := make([]models.Item, 0, maxResults)
	doc.Find(".result").Each(func(i int, s *goquery.Selection) {
		if maxResults > 0 && len(items) >= maxResults {
			return
		}

		anchor := s.Find(".result__a")
		title := strings.TrimSpace(anchor.Text())
		link, _ := anchor.Attr("href")
		if title == "" || link == "" {
			return
		}
		link = unwrapDuckDuckGoRedirect(link)

		snippet := strings.TrimSpace(s.Find(".result__snippet").Text())
		items = append(items, f.newItem(title, link, truncate(snippet, 300)))
	})

	return items, nil
}

func (f *WebSearchFetcher) newItem(title, link, snippet string) models.Item {
	item := models.Item{
		Source:     models.SourceWebSearch,
		SourceName: f.Name(),
		Title:      title,
		URL:        link,
		Summary:    snippet,
		FetchedAt:  time.Now().UTC(),
	}
	if f.organization != "" {
		item.RawMetadata = map[string]any{"organization": f.organization}
	}
	return item
}

// unwrapDuckDuckGoRedirect resolves the uddg indirection links the HTML
// endpoint wraps around result URLs.
func unwrapDuckDuckGoRedirect(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return link
}
