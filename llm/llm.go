// Package llm provides sift.LLMProvider implementations for
// OpenAI-compatible chat completion servers and for Ollama.
//
// Both clients send the temperature and token limit from each
// sift.CompletionRequest, use an explicit HTTP timeout, and retry 429 and
// 504 responses a bounded number of times with exponential backoff. Any
// other failure is returned as a *sift.ProviderError.
package llm

import (
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smhanov/sift"
)

// Backend names accepted by New.
const (
	BackendOpenAI = "openai"
	BackendGroq   = "groq"
	BackendOllama = "ollama"
)

// Config selects and configures a backend.
type Config struct {
	Backend  string
	Endpoint string // empty selects the backend default
	APIKey   string
	Model    string

	Timeout    time.Duration // zero selects DefaultTimeout
	MaxRetries *int          // nil selects DefaultMaxRetries

	PricePerMTokIn  float64
	PricePerMTokOut float64

	Logger logrus.FieldLogger
}

// New builds the provider named by cfg.Backend. Unknown backends, a
// missing model, or a missing key for a hosted backend produce an error
// matching sift.ErrConfiguration.
func New(cfg Config) (sift.LLMProvider, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, &sift.ConfigError{Field: "llm model", Reason: "missing"}
	}
	retries := DefaultMaxRetries
	if cfg.MaxRetries != nil {
		retries = *cfg.MaxRetries
	}
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))

	switch backend {
	case BackendOpenAI, BackendGroq:
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = OpenAIEndpoint
			if backend == BackendGroq {
				endpoint = GroqEndpoint
			}
		}
		hosted := endpoint == OpenAIEndpoint || endpoint == GroqEndpoint
		if hosted && strings.TrimSpace(cfg.APIKey) == "" {
			return nil, &sift.ConfigError{Field: backend + " api key", Reason: "missing"}
		}
		o := NewOpenAI(endpoint, cfg.APIKey, cfg.Model)
		o.PricePerMTokIn = cfg.PricePerMTokIn
		o.PricePerMTokOut = cfg.PricePerMTokOut
		o.t = newTransport(backend, cfg.Timeout, retries, cfg.Logger)
		return o, nil
	case BackendOllama:
		o := NewOllama(cfg.Endpoint, cfg.Model)
		o.PricePerMTokIn = cfg.PricePerMTokIn
		o.PricePerMTokOut = cfg.PricePerMTokOut
		o.t = newTransport(backend, cfg.Timeout, retries, cfg.Logger)
		return o, nil
	default:
		return nil, &sift.ConfigError{Field: "llm backend", Reason: "unknown backend " + strconv.Quote(cfg.Backend)}
	}
}
