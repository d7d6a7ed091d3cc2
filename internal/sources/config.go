package sources

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vlaradar/vlaradar/internal/ratelimit"
)

// SourceConfig represents a single source entry from sources.json.
type SourceConfig struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"` // "github", "huggingface", "arxiv", "websearch"
	Site    string `json:"site,omitempty"`
	Enabled bool   `json:"enabled"`
}

// SourcesConfig holds the configured source list. Order matters: the
// aggregator resolves dedup ties in favor of earlier sources.
type SourcesConfig struct {
	Sources []SourceConfig `json:"sources"`
}

// Credentials carries the optional per-source tokens. Absence of a token
// degrades the affected adapter to a lower rate tier instead of failing.
type Credentials struct {
	GitHubToken  string
	GoogleAPIKey string
	GoogleCSEID  string
}

// CredentialsFromEnv reads source credentials from the environment.
func CredentialsFromEnv() Credentials {
	return Credentials{
		GitHubToken:  os.Getenv("GITHUB_TOKEN"),
		GoogleAPIKey: os.Getenv("GOOGLE_API_KEY"),
		GoogleCSEID:  os.Getenv("GOOGLE_CSE_ID"),
	}
}

// LoadSourcesConfig loads the source list from a JSON config file.
func LoadSourcesConfig(configPath string) (*SourcesConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources config: %w", err)
	}

	var config SourcesConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse sources config: %w", err)
	}

	return &config, nil
}

// FindSourcesConfig searches for sources.json in common locations.
func FindSourcesConfig() string {
	locations := []string{
		"sources.json",
		"config/sources.json",
		"/app/sources.json",
	}

	if envPath := os.Getenv("SOURCES_CONFIG_PATH"); envPath != "" {
		locations = append([]string{envPath}, locations...)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			absPath, _ := filepath.Abs(loc)
			return absPath
		}
	}

	return ""
}

// CreateFetchersFromConfig builds fetchers in configured order. Unknown
// kinds are skipped.
func CreateFetchersFromConfig(config *SourcesConfig, creds Credentials, limiter *ratelimit.Limiter, fetcherConfig FetcherConfig) []Fetcher {
	fetchers := make([]Fetcher, 0, len(config.Sources))

	for _, source := range config.Sources {
		if !source.Enabled {
			continue
		}

		var fetcher Fetcher
		switch source.Kind {
		case "github":
			fetcher = NewGitHubFetcher(creds.GitHubToken, limiter, fetcherConfig)
		case "huggingface":
			fetcher = NewHuggingFaceFetcher(limiter, fetcherConfig)
		case "arxiv":
			fetcher = NewArxivFetcher(limiter, fetcherConfig)
		case "websearch":
			fetcher = NewWebSearchFetcher(creds.GoogleAPIKey, creds.GoogleCSEID, source.Site, limiter, fetcherConfig)
		default:
			continue
		}

		fetchers = append(fetchers, fetcher)
	}

	return fetchers
}

// CreateOrganizationFetchers builds one whole-web fetcher per tracked
// research organization, appended after the regular sources.
func CreateOrganizationFetchers(organizations []string, creds Credentials, limiter *ratelimit.Limiter, fetcherConfig FetcherConfig) []Fetcher {
	fetchers := make([]Fetcher, 0, len(organizations))
	for _, org := range organizations {
		if org == "" {
			continue
		}
		fetchers = append(fetchers, NewOrganizationFetcher(creds.GoogleAPIKey, creds.GoogleCSEID, org, limiter, fetcherConfig))
	}
	return fetchers
}

// DefaultSourcesConfig returns the source list used when no config file is
// found: the code host first, then the model hub, the paper archive, and a
// couple of site-scoped web searches.
func DefaultSourcesConfig() *SourcesConfig {
	return &SourcesConfig{
		Sources: []SourceConfig{
			{Name: "github.com", Kind: "github", Enabled: true},
			{Name: "huggingface.co", Kind: "huggingface", Enabled: true},
			{Name: "arxiv.org", Kind: "arxiv", Enabled: true},
			{Name: "zhihu.com", Kind: "websearch", Site: "zhihu.com", Enabled: true},
		},
	}
}
