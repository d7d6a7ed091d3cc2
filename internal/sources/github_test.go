package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/vlaradar/vlaradar/internal/models"
	"github.com/vlaradar/vlaradar/internal/ratelimit"
)

const githubSearchBody = `{
  "items": [
    {
      "full_name": "openvla/openvla",
      "name": "openvla",
      "html_url": "https://github.com/openvla/openvla",
      "description": "An open-source vision-language-action model",
      "stargazers_count": 3200,
      "language": "Python",
      "updated_at": "2026-08-20T10:00:00Z",
      "owner": {"login": "openvla"}
    },
    {
      "full_name": "someone/arxiv-daily",
      "name": "arxiv-daily",
      "html_url": "https://github.com/someone/arxiv-daily",
      "description": "Daily arXiv paper digest",
      "stargazers_count": 900,
      "language": "Python",
      "updated_at": "2026-08-21T10:00:00Z",
      "owner": {"login": "someone"}
    },
    {
      "full_name": "lab/awesome-vla",
      "name": "awesome-vla",
      "html_url": "https://github.com/lab/awesome-vla",
      "description": "A curated list",
      "stargazers_count": 500,
      "language": "",
      "updated_at": "2026-08-19T10:00:00Z",
      "owner": {"login": "lab"}
    },
    {
      "full_name": "robo/pi-zero",
      "name": "pi-zero",
      "html_url": "https://github.com/robo/pi-zero",
      "description": "",
      "stargazers_count": 150,
      "language": "Python",
      "updated_at": "2026-08-18T10:00:00Z",
      "owner": {"login": "robo"}
    }
  ]
}`

func newGitHubTestFetcher(serverURL string) *GitHubFetcher {
	f := NewGitHubFetcher("", ratelimit.New(time.Millisecond), FetcherConfig{MaxAttempts: 1, Timeout: 5 * time.Second})
	f.apiURL = serverURL
	return f
}

func TestGitHubFetcher_Fetch(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(githubSearchBody))
	}))
	defer server.Close()

	f := newGitHubTestFetcher(server.URL)
	items, err := f.Fetch(context.Background(), Query{Text: "VLA OR robotics", MaxResults: 10})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	// The digest and awesome-list repos are filtered as noise.
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	first := items[0]
	if first.ExternalID != "openvla/openvla" {
		t.Errorf("ExternalID = %q, want openvla/openvla", first.ExternalID)
	}
	if first.Source != models.SourceCodeHost {
		t.Errorf("Source = %q, want %q", first.Source, models.SourceCodeHost)
	}
	if first.Author != "openvla" {
		t.Errorf("Author = %q, want openvla", first.Author)
	}
	if stars, _ := first.RawMetadata["stars"].(int); stars != 3200 {
		t.Errorf("stars = %v, want 3200", first.RawMetadata["stars"])
	}

	// A repo without a description falls back to its name.
	if items[1].Summary != "pi-zero" {
		t.Errorf("Summary = %q, want pi-zero", items[1].Summary)
	}

	q := gotQuery.Get("q")
	for _, want := range []string{"stars:>100", "in:name,description,readme"} {
		if !strings.Contains(q, want) {
			t.Errorf("search query %q missing %q", q, want)
		}
	}
	if gotQuery.Get("sort") != "updated" {
		t.Errorf("sort = %q, want updated", gotQuery.Get("sort"))
	}
}

func TestGitHubFetcher_Fetch_DateWindow(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Write([]byte(`{"items": []}`))
	}))
	defer server.Close()

	f := newGitHubTestFetcher(server.URL)
	_, err := f.Fetch(context.Background(), Query{
		Text:   "VLA",
		After:  time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC),
		Before: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(gotQuery, "updated:>=2026-08-03") {
		t.Errorf("query %q missing updated:>= bound", gotQuery)
	}
	// Before is exclusive, so the inclusive API bound is the prior day.
	if !strings.Contains(gotQuery, "updated:<=2026-08-09") {
		t.Errorf("query %q missing updated:<= bound for the day before the window end", gotQuery)
	}
}

func TestGitHubFetcher_Fetch_CancelledBeforeRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached the server despite cancelled context")
	}))
	defer server.Close()

	limiter := ratelimit.New(time.Hour)
	limiter.Allow("api.github.com")

	f := NewGitHubFetcher("", limiter, FetcherConfig{MaxAttempts: 1, Timeout: 5 * time.Second})
	f.apiURL = server.URL

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, Query{Text: "VLA"})
	if err == nil {
		t.Fatal("Fetch() = nil error, want context error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Fetch() blocked %v on the rate limiter after cancellation", elapsed)
	}
}

func TestGitHubFetcher_Fetch_MaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(githubSearchBody))
	}))
	defer server.Close()

	f := newGitHubTestFetcher(server.URL)
	items, err := f.Fetch(context.Background(), Query{Text: "VLA", MaxResults: 1})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 1 {
		t.Errorf("len(items) = %d, want 1", len(items))
	}
}

func TestGitHubFetcher_Fetch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f := newGitHubTestFetcher(server.URL)
	if _, err := f.Fetch(context.Background(), Query{Text: "VLA"}); err == nil {
		t.Error("Fetch() = nil error, want error on 403")
	}
}

func TestSimplifyGitHubQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "operators stripped",
			query: `(VLA OR "vision language action") AND robot`,
			want:  "VLA OR vision OR language OR action OR robot",
		},
		{
			name:  "capped at five terms",
			query: "one two three four five six seven",
			want:  "one OR two OR three OR four OR five",
		},
		{
			name:  "duplicates removed case-insensitively",
			query: "VLA vla Robot robot",
			want:  "VLA OR Robot",
		},
		{
			name:  "single term unchanged",
			query: "robotics",
			want:  "robotics",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := simplifyGitHubQuery(tt.query); got != tt.want {
				t.Errorf("simplifyGitHubQuery(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestIsGitHubNoise(t *testing.T) {
	noisy := githubRepo{FullName: "x/ai-daily", Name: "ai-daily"}
	if !isGitHubNoise(noisy) {
		t.Errorf("isGitHubNoise(%q) = false, want true", noisy.FullName)
	}

	clean := githubRepo{FullName: "openvla/openvla", Name: "openvla", Description: "VLA model"}
	if isGitHubNoise(clean) {
		t.Errorf("isGitHubNoise(%q) = true, want false", clean.FullName)
	}
}
