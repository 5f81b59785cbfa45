// Package search provides the web search fallback used when the local
// document store cannot answer a question.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// Result is one web search hit.
type Result struct {
	Title   string
	URL     string
	Content string
}

// Searcher runs a web search for a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// TavilySearch queries the Tavily search API.
type TavilySearch struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	Client     *http.Client
}

var _ Searcher = (*TavilySearch)(nil)

// TavilyOption configures a TavilySearch.
type TavilyOption func(*TavilySearch)

// WithTavilyBaseURL sets the API endpoint, mainly for tests.
func WithTavilyBaseURL(baseURL string) TavilyOption {
	return func(t *TavilySearch) {
		t.BaseURL = baseURL
	}
}

// WithTavilyMaxResults sets the number of results to request (1-10).
func WithTavilyMaxResults(n int) TavilyOption {
	return func(t *TavilySearch) {
		if n < 1 {
			n = 1
		}
		if n > 10 {
			n = 10
		}
		t.MaxResults = n
	}
}

// WithTavilyClient sets a custom HTTP client.
func WithTavilyClient(client *http.Client) TavilyOption {
	return func(t *TavilySearch) {
		t.Client = client
	}
}

// NewTavilySearch creates a Tavily search client. If apiKey is empty the
// TAVILY_API_KEY environment variable is used.
func NewTavilySearch(apiKey string, opts ...TavilyOption) (*TavilySearch, error) {
	if apiKey == "" {
		apiKey = os.Getenv("TAVILY_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("search: TAVILY_API_KEY not set")
	}

	t := &TavilySearch{
		APIKey:     apiKey,
		BaseURL:    "https://api.tavily.com/search",
		MaxResults: 3,
		Client:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search posts the query and returns up to MaxResults hits.
func (t *TavilySearch) Search(ctx context.Context, query string) ([]Result, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:     t.APIKey,
		Query:      query,
		MaxResults: t.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("search: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("search: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: tavily api returned status %d", resp.StatusCode)
	}

	var out tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}

	results := make([]Result, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Content: r.Content})
	}
	return results, nil
}

// FormatResults renders search hits as source-attributed context blocks.
func FormatResults(results []Result) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Source: ")
		sb.WriteString(r.URL)
		sb.WriteString("\n")
		sb.WriteString(r.Content)
	}
	return sb.String()
}
