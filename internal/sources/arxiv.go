package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/vlaradar/vlaradar/internal/models"
	"github.com/vlaradar/vlaradar/internal/ratelimit"
)

const defaultArxivAPIURL = "http://export.arxiv.org/api/query"

// Matches abs, pdf and html paper links.
var arxivIDPattern = regexp.MustCompile(`arxiv\.org/(?:abs|pdf|html)/(\d{4}\.\d{4,5})`)

// ArxivFetcher searches the arXiv Atom API. The API needs no credentials
// but asks for at most one request per second, which the shared limiter
// enforces per host.
type ArxivFetcher struct {
	apiURL  string
	parser  *gofeed.Parser
	limiter *ratelimit.Limiter
	config  FetcherConfig
	client  *http.Client
}

func NewArxivFetcher(limiter *ratelimit.Limiter, config FetcherConfig) *ArxivFetcher {
	return &ArxivFetcher{
		apiURL:  defaultArxivAPIURL,
		parser:  gofeed.NewParser(),
		limiter: limiter,
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

func (f *ArxivFetcher) Name() string {
	return "arxiv.org"
}

func (f *ArxivFetcher) SourceInfo() models.SourceInfo {
	return models.SourceInfo{
		ID:          "arxiv",
		Name:        "arxiv.org",
		URL:         "https://arxiv.org",
		Kind:        models.SourcePaperArchive,
		Description: "arXiv paper search",
		Enabled:     true,
	}
}

func (f *ArxivFetcher) Fetch(ctx context.Context, q Query) ([]models.Item, error) {
	if err := f.limiter.WaitContext(ctx, "export.arxiv.org"); err != nil {
		return nil, err
	}

	search := "all:" + q.Text
	if !q.After.IsZero() || !q.Before.IsZero() {
		after := "00000000"
		if !q.After.IsZero() {
			after = q.After.Format("20060102")
		}
		before := "99999999"
		if !q.Before.IsZero() {
			// The date range is inclusive on both ends; step back a day
			// to keep Before exclusive.
			before = q.Before.AddDate(0, 0, -1).Format("20060102")
		}
		search += fmt.Sprintf(" AND submittedDate:[%s TO %s]", after, before)
	}

	maxResults := q.MaxResults
	if maxResults <= 0 || maxResults > 100 {
		maxResults = 100
	}

	params := url.Values{}
	params.Set("search_query", search)
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprintf("%d", maxResults))
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")
	reqURL := f.apiURL + "?" + params.Encode()

	body, err := doWithRetry(ctx, f.client, f.config, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("arxiv search: %w", err)
	}

	feed, err := f.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse arxiv feed: %w", err)
	}

	items := make([]models.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if q.MaxResults > 0 && len(items) >= q.MaxResults {
			break
		}
		item, ok := f.itemFromEntry(entry)
		if !ok {
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

// LookupPapers resolves paper ids to full archive metadata via the
// id_list endpoint, keyed by id. Unknown ids are simply absent from the
// result.
func (f *ArxivFetcher) LookupPapers(ctx context.Context, ids []string) (map[string]models.Item, error) {
	papers := make(map[string]models.Item, len(ids))
	if len(ids) == 0 {
		return papers, nil
	}
	if err := f.limiter.WaitContext(ctx, "export.arxiv.org"); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("id_list", strings.Join(ids, ","))
	params.Set("max_results", fmt.Sprintf("%d", len(ids)))
	reqURL := f.apiURL + "?" + params.Encode()

	body, err := doWithRetry(ctx, f.client, f.config, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("arxiv lookup: %w", err)
	}

	feed, err := f.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse arxiv feed: %w", err)
	}

	for _, entry := range feed.Items {
		item, ok := f.itemFromEntry(entry)
		if !ok || item.ExternalID == "" {
			continue
		}
		papers[item.ExternalID] = item
	}

	return papers, nil
}

func (f *ArxivFetcher) itemFromEntry(entry *gofeed.Item) (models.Item, bool) {
	// The atom entry id doubles as the abs page link.
	link := entry.GUID
	if link == "" && len(entry.Links) > 0 {
		link = entry.Links[0]
	}

	title := collapseWhitespace(entry.Title)
	if title == "" || link == "" {
		return models.Item{}, false
	}

	publishedAt := time.Time{}
	if entry.PublishedParsed != nil {
		publishedAt = *entry.PublishedParsed
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if a != nil && a.Name != "" {
			authors = append(authors, a.Name)
		}
	}

	item := models.Item{
		Source:      models.SourcePaperArchive,
		SourceName:  f.Name(),
		ExternalID:  ExtractArxivID(link),
		Title:       title,
		URL:         link,
		Summary:     collapseWhitespace(entry.Description),
		PublishedAt: publishedAt,
		FetchedAt:   time.Now().UTC(),
	}
	if len(authors) > 0 {
		item.Author = authors[0]
		item.RawMetadata = map[string]any{"authors": authors}
	}
	return item, true
}

// ExtractArxivID pulls the paper id out of an arXiv URL; empty when the
// URL is not a recognized paper link, in which case the URL itself serves
// as identity.
func ExtractArxivID(link string) string {
	matches := arxivIDPattern.FindStringSubmatch(link)
	if len(matches) > 1 {
		return matches[1]
	}
	return ""
}

// collapseWhitespace folds the newlines and runs of spaces that the arXiv
// API embeds in titles and abstracts.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
