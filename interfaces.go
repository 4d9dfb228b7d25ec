package sift

import "context"

// SearchResult is a single item returned by a SearchProvider.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// SearchProvider executes a query and returns at most maxResults results
// in provider order. An empty slice is a valid answer.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// FetchProvider retrieves a URL as plain text of at most maxChars
// characters, with markup and page chrome removed.
type FetchProvider interface {
	Fetch(ctx context.Context, url string, maxChars int) (string, error)
}

// CompletionRequest is one round trip to a language model.
type CompletionRequest struct {
	System string
	User   string
	// Schema is the description of the expected reply, if any. Providers
	// may ignore it; the instruction is already part of System.
	Schema      []byte
	Temperature float64
	MaxTokens   int
}

// LLMResponse is returned by LLMProvider.Complete and carries both the
// generated text and the cost (in dollars) of the call.
type LLMResponse struct {
	Text string
	// Reasoning holds separate thinking output for models that report it.
	Reasoning string
	Cost      float64
}

// LLMProvider is implemented by language model clients. Complete blocks
// until the whole reply is available.
type LLMProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (LLMResponse, error)
}

// Result is returned by Agent.Answer.
type Result struct {
	RunID   string
	Answer  Answer
	Plan    Plan
	Facts   []Fact
	Sources []string // every link returned by the execute step
	Cost    float64
}
