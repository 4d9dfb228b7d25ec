package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/smhanov/sift"
)

// OllamaEndpoint is where a local Ollama server listens by default.
const OllamaEndpoint = "http://localhost:11434"

// Ollama implements sift.LLMProvider using the native /api/generate endpoint.
type Ollama struct {
	Endpoint string
	Model    string

	PricePerMTokIn  float64
	PricePerMTokOut float64

	t transport
}

// NewOllama constructs a client with the default timeout and retry policy.
func NewOllama(endpoint, model string) *Ollama {
	if endpoint == "" {
		endpoint = OllamaEndpoint
	}
	return &Ollama{
		Endpoint: endpoint,
		Model:    model,
		t:        newTransport("ollama", DefaultTimeout, DefaultMaxRetries, nil),
	}
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	Thinking        string `json:"thinking"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Complete runs a single non-streaming generation.
func (o *Ollama) Complete(ctx context.Context, req sift.CompletionRequest) (sift.LLMResponse, error) {
	endpoint := o.Endpoint
	if strings.TrimSpace(endpoint) == "" {
		endpoint = OllamaEndpoint
	}
	url := normalizeEndpoint(endpoint) + "/api/generate"
	t := o.t.orDefault("ollama")
	body, err := t.post(ctx, url, "", ollamaRequest{
		Model:  o.Model,
		Prompt: req.User,
		System: req.System,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return sift.LLMResponse{}, err
	}

	var resp ollamaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return sift.LLMResponse{}, &sift.ProviderError{Provider: t.label, StatusCode: 200, Err: errors.Wrap(err, "failed to parse response")}
	}
	return sift.LLMResponse{
		Text:      strings.TrimSpace(resp.Response),
		Reasoning: strings.TrimSpace(resp.Thinking),
		Cost:      costOf(resp.PromptEvalCount, resp.EvalCount, o.PricePerMTokIn, o.PricePerMTokOut),
	}, nil
}
