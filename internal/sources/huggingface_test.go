package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/vlaradar/vlaradar/internal/models"
	"github.com/vlaradar/vlaradar/internal/ratelimit"
)

const huggingfaceSearchBody = `[
  {
    "id": "openvla/openvla-7b",
    "pipeline_tag": "robotics",
    "downloads": 50000,
    "likes": 400,
    "summary": "A VLA model for robot manipulation",
    "updatedAt": "2026-08-20T00:00:00Z"
  },
  {
    "id": "acme/vla-policy-old",
    "pipeline_tag": "robotics",
    "downloads": 1000,
    "likes": 5,
    "summary": "VLA robot policy",
    "updatedAt": "2025-01-01T00:00:00Z"
  },
  {
    "id": "acme/cat-classifier",
    "pipeline_tag": "image-classification",
    "downloads": 99999,
    "likes": 10,
    "summary": "Classifies cats",
    "updatedAt": "2026-08-21T00:00:00Z"
  },
  {
    "id": "lab/vla-robot-undated",
    "pipeline_tag": "robotics",
    "downloads": 10,
    "likes": 1,
    "summary": "VLA for robot arms"
  }
]`

func newHuggingFaceTestFetcher(serverURL string) *HuggingFaceFetcher {
	f := NewHuggingFaceFetcher(ratelimit.New(time.Millisecond), FetcherConfig{MaxAttempts: 1, Timeout: 5 * time.Second})
	f.apiURL = serverURL
	return f
}

func TestHuggingFaceFetcher_Fetch(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(huggingfaceSearchBody))
	}))
	defer server.Close()

	f := newHuggingFaceTestFetcher(server.URL)
	items, err := f.Fetch(context.Background(), Query{
		Text:       "VLA robot",
		MaxResults: 10,
		After:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	// The stale model falls outside the window, the cat classifier fails
	// the term filter, the undated model is kept.
	wantIDs := []string{"openvla/openvla-7b", "lab/vla-robot-undated"}
	gotIDs := make([]string, 0, len(items))
	for _, item := range items {
		gotIDs = append(gotIDs, item.ExternalID)
	}
	if !reflect.DeepEqual(gotIDs, wantIDs) {
		t.Fatalf("item IDs = %v, want %v", gotIDs, wantIDs)
	}

	first := items[0]
	if first.Source != models.SourceModelHub {
		t.Errorf("Source = %q, want %q", first.Source, models.SourceModelHub)
	}
	if first.URL != "https://huggingface.co/openvla/openvla-7b" {
		t.Errorf("URL = %q", first.URL)
	}
	if downloads, _ := first.RawMetadata["downloads"].(int); downloads != 50000 {
		t.Errorf("downloads = %v, want 50000", first.RawMetadata["downloads"])
	}

	// Only the primary term goes to the API; secondary filtering is local.
	if gotQuery.Get("search") != "vla" {
		t.Errorf("search param = %q, want vla", gotQuery.Get("search"))
	}
	if gotQuery.Get("limit") != "30" {
		t.Errorf("limit param = %q, want 30 (3x over-fetch)", gotQuery.Get("limit"))
	}
	if gotQuery.Get("sort") != "downloads" {
		t.Errorf("sort param = %q, want downloads", gotQuery.Get("sort"))
	}
}

func TestHuggingFaceFetcher_Fetch_MaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(huggingfaceSearchBody))
	}))
	defer server.Close()

	f := newHuggingFaceTestFetcher(server.URL)
	items, err := f.Fetch(context.Background(), Query{Text: "VLA robot", MaxResults: 1})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 1 {
		t.Errorf("len(items) = %d, want 1", len(items))
	}
}

func TestHuggingFaceFetcher_Fetch_BeforeExclusive(t *testing.T) {
	boundary := `[
  {"id": "acme/vla-robot-monday", "summary": "VLA robot", "updatedAt": "2026-08-10T00:00:00Z"},
  {"id": "acme/vla-robot-sunday", "summary": "VLA robot", "updatedAt": "2026-08-09T23:00:00Z"}
]`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(boundary))
	}))
	defer server.Close()

	f := newHuggingFaceTestFetcher(server.URL)
	items, err := f.Fetch(context.Background(), Query{
		Text:       "VLA robot",
		MaxResults: 10,
		Before:     time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	// An item timestamped exactly at the window end belongs to the next
	// window, not this one.
	if len(items) != 1 || items[0].ExternalID != "acme/vla-robot-sunday" {
		t.Errorf("items = %v, want only the pre-boundary model", items)
	}
}

func TestQueryTerms(t *testing.T) {
	got := queryTerms(`(VLA OR "vision language action") AND robot`)
	want := []string{"vla", "vision", "language", "action", "robot"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("queryTerms() = %v, want %v", got, want)
	}
}

func TestMatchesTerms(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		terms []string
		want  bool
	}{
		{"no terms matches everything", "anything", nil, true},
		{"primary missing", "robot arm controller", []string{"vla", "robot"}, false},
		{"primary plus secondary", "OpenVLA robot policy", []string{"vla", "robot", "driving"}, true},
		{"primary without any secondary", "VLA benchmark suite", []string{"vla", "robot", "driving"}, false},
		{"single term", "a VLA model", []string{"vla"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesTerms(tt.text, tt.terms); got != tt.want {
				t.Errorf("matchesTerms(%q, %v) = %v, want %v", tt.text, tt.terms, got, tt.want)
			}
		})
	}
}
