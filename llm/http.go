package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/smhanov/sift"
)

const (
	// DefaultTimeout bounds a single HTTP round trip. Large models can take
	// a while to produce 2k tokens.
	DefaultTimeout = 2 * time.Minute

	// DefaultMaxRetries is how many times a 429 or 504 is retried.
	DefaultMaxRetries = 3
)

// retryBaseDelay is the first backoff; it doubles on each retry.
var retryBaseDelay = time.Second

// transport posts JSON and retries throttled or timed out gateways with
// exponential backoff.
type transport struct {
	label      string
	client     *http.Client
	maxRetries int
	logger     logrus.FieldLogger
}

func newTransport(label string, timeout time.Duration, maxRetries int, logger logrus.FieldLogger) transport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return transport{
		label:      label,
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		logger:     logger.WithField("provider", label),
	}
}

// orDefault returns t, or the default transport for label when t was never
// initialised, as happens with struct-literal clients.
func (t transport) orDefault(label string) transport {
	if t.client == nil {
		return newTransport(label, DefaultTimeout, DefaultMaxRetries, nil)
	}
	return t
}

func (t transport) post(ctx context.Context, url, apiKey string, reqBody any) ([]byte, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	for i := 0; ; i++ {
		log := t.logger.WithField("attempt", i+1)
		log.Debugf("POST %s", url)
		start := time.Now()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create request")
		}
		req.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &sift.ProviderError{
				Provider: t.label,
				Err:      errors.Wrapf(err, "failed to send request after %v", time.Since(start).Truncate(time.Millisecond)),
			}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			if err != nil {
				return nil, &sift.ProviderError{Provider: t.label, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "failed to read response")}
			}
			log.WithField("dur_ms", time.Since(start).Milliseconds()).Debug("response received")
			return body, nil
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusGatewayTimeout
		if !retryable || i >= t.maxRetries {
			return nil, &sift.ProviderError{
				Provider:   t.label,
				StatusCode: resp.StatusCode,
				Err:        errors.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body))),
			}
		}

		delay := retryBaseDelay * time.Duration(1<<i)
		log.WithField("status", resp.StatusCode).Warnf("retrying in %v", delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// normalizeEndpoint adds a scheme to bare host:port endpoints.
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return "http://" + endpoint
	}
	return endpoint
}

// costOf prices a call from token counts and per-million-token prices.
func costOf(in, out int, pricePerMTokIn, pricePerMTokOut float64) float64 {
	return float64(in)*pricePerMTokIn/1e6 + float64(out)*pricePerMTokOut/1e6
}
