package search

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/smhanov/sift"
)

// SerperEndpoint is the Google search endpoint of serper.dev.
const SerperEndpoint = "https://google.serper.dev/search"

// Serper queries Google through the serper.dev API. The key is sent in the
// X-API-KEY header.
type Serper struct {
	APIKey string
	// Endpoint overrides SerperEndpoint, e.g. for a proxy.
	Endpoint string
	client   *http.Client
}

// NewSerper constructs a Serper search provider with a 10 second timeout.
func NewSerper(apiKey string) *Serper {
	return NewSerperWithClient(apiKey, &http.Client{Timeout: defaultTimeout})
}

// NewSerperWithClient constructs a Serper search provider using the supplied HTTP client.
func NewSerperWithClient(apiKey string, client *http.Client) *Serper {
	return &Serper{APIKey: apiKey, Endpoint: SerperEndpoint, client: clientOrDefault(client)}
}

// Search returns the organic results for query.
func (s *Serper) Search(ctx context.Context, query string, maxResults int) ([]sift.SearchResult, error) {
	if err := requireKey("serper", s.APIKey); err != nil {
		return nil, err
	}
	n := limit(maxResults)
	payload, err := json.Marshal(map[string]any{"q": query, "num": n})
	if err != nil {
		return nil, errors.Wrap(err, "serper: encode request")
	}

	resp, err := doWithBackoff(ctx, s.client, "serper", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, errors.Wrap(err, "serper: build request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-KEY", s.APIKey)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError("serper", resp)
	}

	var body struct {
		Organic []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			Link    string `json:"link"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, unavailable("serper", resp.StatusCode, errors.Wrap(err, "decode response"))
	}

	results := make([]sift.SearchResult, 0, len(body.Organic))
	for _, r := range body.Organic {
		results = append(results, sift.SearchResult{Title: r.Title, Snippet: r.Snippet, Link: r.Link})
		if len(results) >= n {
			break
		}
	}
	return results, nil
}
