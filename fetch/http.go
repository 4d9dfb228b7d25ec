package fetch

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/smhanov/sift"
)

const (
	// DefaultMaxChars is used when a caller passes a non-positive limit.
	DefaultMaxChars = 4000

	// maxFetchBytes caps how much of a page is downloaded.
	maxFetchBytes = 2 << 20

	// DefaultTimeout bounds a whole fetch, including redirects.
	DefaultTimeout = 15 * time.Second

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// HTTPFetcher retrieves a page over HTTP and reduces it to plain text.
type HTTPFetcher struct {
	client    *http.Client
	extractor TextExtractor
}

// NewHTTP creates a HTTP fetcher with a 15 second timeout and the DOM
// extractor.
func NewHTTP() *HTTPFetcher {
	return NewHTTPWithClient(nil, nil)
}

// NewHTTPWithClient creates a fetcher using the supplied client and
// extractor. A nil client gets the default timeout and a nil extractor
// selects DOMExtractor.
func NewHTTPWithClient(client *http.Client, extractor TextExtractor) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if extractor == nil {
		extractor = DOMExtractor{}
	}
	return &HTTPFetcher{client: client, extractor: extractor}
}

// Fetch downloads url, extracts its text, and truncates it to maxChars
// characters. The cut is not word-aware.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, maxChars int) (string, error) {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return "", errors.New("fetch url is empty")
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trimmed, nil)
	if err != nil {
		return "", errors.Wrapf(err, "fetch %s", trimmed)
	}
	req.Header.Set("User-Agent", userAgent)

	client, extractor := f.client, f.extractor
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if extractor == nil {
		extractor = DOMExtractor{}
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &sift.ProviderError{Provider: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &sift.ProviderError{Provider: "fetch", StatusCode: resp.StatusCode, Err: errors.Errorf("GET %s", trimmed)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", &sift.ProviderError{Provider: "fetch", StatusCode: resp.StatusCode, Err: errors.Wrap(err, "read body")}
	}

	text, err := extractor.ExtractText(body)
	if err != nil {
		return "", errors.Wrapf(err, "extract text from %s", trimmed)
	}
	return Truncate(text, maxChars), nil
}

// Truncate keeps the first n characters (runes) of s.
func Truncate(s string, n int) string {
	if n < 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Placeholder is the text recorded in place of a page that could not be
// fetched. It matches what the agent records itself.
func Placeholder(url string, err error) string {
	return sift.FetchPlaceholder(url, err)
}
