package search

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/smhanov/sift"
)

// TavilyEndpoint is the Tavily search endpoint.
const TavilyEndpoint = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	APIKey   string
	Endpoint string
	// Depth controls Tavily's search_depth parameter (basic or advanced).
	Depth  string
	client *http.Client
}

// NewTavily constructs a Tavily search provider.
func NewTavily(apiKey string, depth string) *Tavily {
	return NewTavilyWithClient(apiKey, depth, &http.Client{Timeout: defaultTimeout})
}

// NewTavilyWithClient constructs a Tavily search provider using the supplied HTTP client.
// This is useful for overriding the default timeout.
func NewTavilyWithClient(apiKey string, depth string, client *http.Client) *Tavily {
	if depth == "" {
		depth = "basic"
	}
	return &Tavily{APIKey: apiKey, Endpoint: TavilyEndpoint, Depth: depth, client: clientOrDefault(client)}
}

// Search posts a query to Tavily. Rate limited requests are retried with a
// doubling delay a bounded number of times.
func (t *Tavily) Search(ctx context.Context, query string, maxResults int) ([]sift.SearchResult, error) {
	if err := requireKey("tavily", t.APIKey); err != nil {
		return nil, err
	}
	n := limit(maxResults)

	payload, err := json.Marshal(map[string]any{
		"query":        query,
		"api_key":      t.APIKey,
		"search_depth": t.Depth,
		"max_results":  n,
	})
	if err != nil {
		return nil, errors.Wrap(err, "tavily: encode request")
	}

	resp, err := doWithBackoff(ctx, t.client, "tavily", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, errors.Wrap(err, "tavily: build request")
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("tavily", resp)
	}

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, unavailable("tavily", resp.StatusCode, errors.Wrap(err, "decode response"))
	}

	results := make([]sift.SearchResult, 0, len(response.Results))
	for _, r := range response.Results {
		results = append(results, sift.SearchResult{Title: r.Title, Link: r.URL, Snippet: r.Content})
		if len(results) >= n {
			break
		}
	}
	return results, nil
}
