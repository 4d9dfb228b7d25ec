package sift

import (
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultMaxResults        = 5
	defaultFetchMaxChars     = 4000
	defaultSearchConcurrency = 3
)

// Option configures an Agent.
type Option func(*Agent)

// WithSearchProvider sets the search implementation.
func WithSearchProvider(searcher SearchProvider) Option {
	return func(a *Agent) { a.searcher = searcher }
}

// WithFetchProvider sets the optional fetch implementation.
func WithFetchProvider(fetcher FetchProvider) Option {
	return func(a *Agent) { a.fetcher = fetcher }
}

// WithCompletionModel uses m for every step that calls a model.
func WithCompletionModel(m LLMProvider) Option {
	return func(a *Agent) {
		a.planner = m
		a.extractor = m
		a.synthesizer = m
	}
}

// WithPlannerModel sets the model used by the plan step.
func WithPlannerModel(m LLMProvider) Option {
	return func(a *Agent) { a.planner = m }
}

// WithExtractorModel sets the model used by the extract step.
func WithExtractorModel(m LLMProvider) Option {
	return func(a *Agent) { a.extractor = m }
}

// WithSynthesizerModel sets the model used to write the final answer.
func WithSynthesizerModel(m LLMProvider) Option {
	return func(a *Agent) { a.synthesizer = m }
}

// WithTemperature sets the sampling temperature for structured calls.
// Negative values are ignored.
func WithTemperature(t float64) Option {
	return func(a *Agent) {
		if t >= 0 {
			a.temperature = t
		}
	}
}

// WithMaxTokens caps the output size of each completion.
func WithMaxTokens(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithMaxResults sets how many results each search may return.
func WithMaxResults(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxResults = n
		}
	}
}

// WithFetchMaxChars sets the character limit for fetched pages.
func WithFetchMaxChars(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.fetchMaxChars = n
		}
	}
}

// WithSearchConcurrency limits how many planned searches run at once.
func WithSearchConcurrency(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.searchConcurrency = n
		}
	}
}

// WithStepTimeout bounds the duration of each pipeline step.
func WithStepTimeout(d time.Duration) Option {
	return func(a *Agent) { a.stepTimeout = d }
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l logrus.FieldLogger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithDebug enables debug logging of all LLM prompts and responses.
func WithDebug(enabled bool) Option {
	return func(a *Agent) { a.debug = enabled }
}
