package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/smhanov/sift"
)

// Well known OpenAI-compatible endpoints.
const (
	OpenAIEndpoint = "https://api.openai.com/v1"
	GroqEndpoint   = "https://api.groq.com/openai/v1"
)

// OpenAI implements sift.LLMProvider using the chat completions API.
// Works with any server that exposes /v1/chat/completions (OpenAI, Groq,
// Ollama /v1, vLLM, LiteLLM, etc.).
type OpenAI struct {
	Endpoint string // base URL, e.g. https://api.openai.com/v1
	Model    string
	APIKey   string // optional for keyless servers

	// Prices in dollars per million tokens, used to fill LLMResponse.Cost.
	PricePerMTokIn  float64
	PricePerMTokOut float64

	t transport
}

// NewOpenAI constructs a client with the default timeout and retry policy.
func NewOpenAI(endpoint, apiKey, model string) *OpenAI {
	return &OpenAI{
		Endpoint: endpoint,
		Model:    model,
		APIKey:   apiKey,
		t:        newTransport("openai", DefaultTimeout, DefaultMaxRetries, nil),
	}
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			Reasoning        string `json:"reasoning"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (o *OpenAI) url() string {
	endpoint := o.Endpoint
	if strings.TrimSpace(endpoint) == "" {
		endpoint = OpenAIEndpoint
	}
	url := normalizeEndpoint(endpoint)
	if !strings.HasSuffix(url, "/chat/completions") {
		if !strings.HasSuffix(url, "/v1") {
			url += "/v1"
		}
		url += "/chat/completions"
	}
	return url
}

// Complete sends the system and user prompts as two messages.
func (o *OpenAI) Complete(ctx context.Context, req sift.CompletionRequest) (sift.LLMResponse, error) {
	t := o.t.orDefault("openai")
	body, err := t.post(ctx, o.url(), o.APIKey, openaiRequest{
		Model: o.Model,
		Messages: []openaiMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return sift.LLMResponse{}, err
	}

	var resp openaiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return sift.LLMResponse{}, &sift.ProviderError{Provider: t.label, StatusCode: 200, Err: errors.Wrap(err, "failed to parse response")}
	}
	if len(resp.Choices) == 0 {
		return sift.LLMResponse{}, &sift.ProviderError{Provider: t.label, StatusCode: 200, Err: errors.New("response contained no choices")}
	}

	msg := resp.Choices[0].Message
	reasoning := msg.Reasoning
	if reasoning == "" {
		reasoning = msg.ReasoningContent
	}
	return sift.LLMResponse{
		Text:      strings.TrimSpace(msg.Content),
		Reasoning: strings.TrimSpace(reasoning),
		Cost:      costOf(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, o.PricePerMTokIn, o.PricePerMTokOut),
	}, nil
}
