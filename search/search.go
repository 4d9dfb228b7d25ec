package search

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
	// DefaultMaxResults is used when a caller passes a non-positive limit.
	DefaultMaxResults = 5

	defaultTimeout = 10 * time.Second

	// maxRateLimitRetries bounds how many 429 responses one Search call
	// will wait out before giving up.
	maxRateLimitRetries = 4
	maxBackoff          = 30 * time.Second
)

// firstBackoff is the wait after the first 429.
var firstBackoff = time.Second

func limit(n int) int {
	if n <= 0 {
		return DefaultMaxResults
	}
	return n
}

func requireKey(provider, key string) error {
	if strings.TrimSpace(key) == "" {
		return &sift.ConfigError{Field: provider + " api key", Reason: "missing"}
	}
	return nil
}

func unavailable(provider string, status int, err error) error {
	return &sift.ProviderError{Provider: provider, StatusCode: status, Err: err}
}

// statusError reads a short excerpt of a non-2xx body for the error.
func statusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return unavailable(provider, resp.StatusCode, errors.New(msg))
}

// clientOrDefault returns c, or a client with the package timeout when c is
// nil.
func clientOrDefault(c *http.Client) *http.Client {
	if c == nil {
		return &http.Client{Timeout: defaultTimeout}
	}
	return c
}

// doWithBackoff sends the request built by newReq, waiting and retrying on
// 429 with a doubling delay. It gives up after maxRateLimitRetries waits and
// returns the last response. The caller closes the body.
func doWithBackoff(ctx context.Context, client *http.Client, provider string, newReq func() (*http.Request, error)) (*http.Response, error) {
	client = clientOrDefault(client)
	delay := firstBackoff
	for attempt := 0; ; attempt++ {
		req, err := newReq()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, unavailable(provider, 0, err)
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRateLimitRetries {
			return resp, nil
		}
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < maxBackoff {
			delay *= 2
		}
	}
}
