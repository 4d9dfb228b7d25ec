package sift

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Step names, in execution order.
const (
	StepPlan       = "plan"
	StepExecute    = "execute"
	StepExtract    = "extract"
	StepSynthesize = "synthesize"
)

// Agent coordinates the planner, searcher, extractor, and synthesizer.
// Providers are supplied once at construction and shared by every call to
// Answer; each call owns its own Run.
type Agent struct {
	searcher          SearchProvider
	fetcher           FetchProvider
	planner           LLMProvider
	extractor         LLMProvider
	synthesizer       LLMProvider
	temperature       float64
	maxTokens         int
	maxResults        int
	fetchMaxChars     int
	searchConcurrency int
	stepTimeout       time.Duration
	logger            logrus.FieldLogger
	debug             bool

	planCompleter    *StructuredCompleter
	extractCompleter *StructuredCompleter
	synthCompleter   *StructuredCompleter
	pipeline         *Pipeline
}

// New constructs an Agent. It fails with an error matching
// ErrConfiguration when no search provider or no completion model is set.
// The extractor and synthesizer default to the planner model.
func New(opts ...Option) (*Agent, error) {
	a := &Agent{
		temperature:       defaultTemperature,
		maxTokens:         defaultMaxTokens,
		maxResults:        defaultMaxResults,
		fetchMaxChars:     defaultFetchMaxChars,
		searchConcurrency: defaultSearchConcurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = discardLogger()
	}
	if a.searcher == nil {
		return nil, &ConfigError{Field: "search provider", Reason: "not configured"}
	}
	if a.planner == nil {
		return nil, &ConfigError{Field: "planner model", Reason: "not configured"}
	}
	if a.extractor == nil {
		a.extractor = a.planner
	}
	if a.synthesizer == nil {
		a.synthesizer = a.planner
	}

	a.planCompleter = a.newCompleter(a.planner, StepPlan)
	a.extractCompleter = a.newCompleter(a.extractor, StepExtract)
	a.synthCompleter = a.newCompleter(a.synthesizer, StepSynthesize)

	p, err := NewPipeline(PipelineConfig{Logger: a.logger, StepTimeout: a.stepTimeout},
		Step{Name: StepPlan, Output: PlanSchema, Run: a.plan},
		Step{Name: StepExecute, Run: a.execute},
		Step{Name: StepExtract, Output: FactListSchema, Run: a.extract},
		Step{Name: StepSynthesize, Output: AnswerSchema, Run: a.synthesize},
	)
	if err != nil {
		return nil, errors.Wrap(err, "unable to build pipeline")
	}
	a.pipeline = p
	return a, nil
}

func (a *Agent) newCompleter(m LLMProvider, step string) *StructuredCompleter {
	return NewStructuredCompleter(m, StructuredConfig{
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
		Logger:      a.logger.WithField("step", step),
		Debug:       a.debug,
	})
}

// Pipeline exposes the step sequence, e.g. for drawing.
func (a *Agent) Pipeline() *Pipeline {
	return a.pipeline
}

// Answer runs plan, execute, extract, and synthesize for query. It returns
// either a fully populated Result or a single error; a failing step is
// reported as a *StepError.
func (a *Agent) Answer(ctx context.Context, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, errors.New("query is empty")
	}

	run, err := a.pipeline.Execute(ctx, query)
	if err != nil {
		return Result{}, err
	}

	plan, err := Output[Plan](run, StepPlan)
	if err != nil {
		return Result{}, err
	}
	collected, err := Output[Collected](run, StepExecute)
	if err != nil {
		return Result{}, err
	}
	facts, err := Output[[]Fact](run, StepExtract)
	if err != nil {
		return Result{}, err
	}
	answer, err := Output[Answer](run, StepSynthesize)
	if err != nil {
		return Result{}, err
	}
	return Result{
		RunID:   run.ID,
		Answer:  answer,
		Plan:    plan,
		Facts:   facts,
		Sources: collected.Links(plan),
		Cost:    run.Cost(),
	}, nil
}
