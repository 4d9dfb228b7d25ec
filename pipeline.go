package sift

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/smhanov/sift/schema"
)

// StepFunc runs one pipeline step. It reads earlier outputs from run and
// must record its own output with run.Set under the step name.
type StepFunc func(ctx context.Context, run *Run) error

// Step describes one stage of a pipeline.
type Step struct {
	Name string
	// Output is the schema the step's structured completion must satisfy,
	// nil for steps that make no LLM call.
	Output *schema.Schema
	Run    StepFunc
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	Logger logrus.FieldLogger
	// StepTimeout bounds each step when positive.
	StepTimeout time.Duration
}

// Pipeline runs a fixed sequence of steps. Each step depends on the one
// before it; the order is resolved once, at construction, and never
// changes.
type Pipeline struct {
	steps       []Step
	graph       graph.Graph[string, string]
	logger      logrus.FieldLogger
	stepTimeout time.Duration
}

// NewPipeline builds a pipeline that runs steps in the given order. Step
// names must be non-empty and unique.
func NewPipeline(cfg PipelineConfig, steps ...Step) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, errors.New("pipeline has no steps")
	}
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	byName := make(map[string]Step, len(steps))
	for i, st := range steps {
		if strings.TrimSpace(st.Name) == "" {
			return nil, errors.Errorf("step %d has no name", i)
		}
		if st.Run == nil {
			return nil, errors.Errorf("step %s has no run function", st.Name)
		}
		output := "none"
		if st.Output != nil {
			output = st.Output.Name
		}
		if err := g.AddVertex(st.Name, graph.VertexAttribute("xlabel", output)); err != nil {
			return nil, errors.Wrapf(err, "unable to add step %s", st.Name)
		}
		if i > 0 {
			if err := g.AddEdge(steps[i-1].Name, st.Name); err != nil {
				return nil, errors.Wrapf(err, "unable to link %s to %s", steps[i-1].Name, st.Name)
			}
		}
		byName[st.Name] = st
	}
	order, err := graph.TopologicalSort(g)
	if err != nil {
		return nil, errors.Wrap(err, "unable to order steps")
	}
	p := &Pipeline{
		steps:       make([]Step, 0, len(order)),
		graph:       g,
		logger:      cfg.Logger,
		stepTimeout: cfg.StepTimeout,
	}
	for _, name := range order {
		p.steps = append(p.steps, byName[name])
	}
	if p.logger == nil {
		p.logger = discardLogger()
	}
	return p, nil
}

// Order lists step names in execution order.
func (p *Pipeline) Order() []string {
	names := make([]string, len(p.steps))
	for i, st := range p.steps {
		names[i] = st.Name
	}
	return names
}

// WriteDOT writes the step graph in Graphviz DOT format.
func (p *Pipeline) WriteDOT(w io.Writer) error {
	return errors.Wrap(draw.DOT(p.graph, w), "unable to draw pipeline")
}

// Execute runs every step in order for query. The first failing step stops
// the run and is reported as a *StepError. A cancelled context returns the
// context error and no run.
func (p *Pipeline) Execute(ctx context.Context, query string) (*Run, error) {
	run := newRun(query)
	log := p.logger.WithField("run_id", run.ID)
	log.WithField("query", query).Info("pipeline started")

	for _, st := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		slog := log.WithField("step", st.Name)
		slog.Debug("step started")

		err := p.runStep(ctx, st, run)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err == nil {
			if _, ok := run.Get(st.Name); !ok {
				err = errors.New("step recorded no output")
			}
		}
		if err != nil {
			slog.WithError(err).WithField("dur_ms", time.Since(start).Milliseconds()).Error("step failed")
			return nil, &StepError{Step: st.Name, Err: err}
		}
		slog.WithField("dur_ms", time.Since(start).Milliseconds()).Info("step finished")
	}

	log.WithFields(logrus.Fields{
		"dur_ms": time.Since(run.Started).Milliseconds(),
		"cost":   run.Cost(),
	}).Info("pipeline finished")
	return run, nil
}

func (p *Pipeline) runStep(ctx context.Context, st Step, run *Run) error {
	if p.stepTimeout <= 0 {
		return st.Run(ctx, run)
	}
	sctx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()
	err := st.Run(sctx, run)
	if err == nil && sctx.Err() != nil {
		return errors.Wrapf(sctx.Err(), "step exceeded %s", p.stepTimeout)
	}
	return err
}

// Run holds the state of one pipeline invocation: the query and the output
// of each completed step, in completion order. A Run is created by
// Pipeline.Execute and belongs to that invocation alone.
type Run struct {
	ID      string
	Query   string
	Started time.Time

	mu      sync.Mutex
	outputs map[string]any
	order   []string
	cost    float64
}

func newRun(query string) *Run {
	return &Run{
		ID:      uuid.NewString(),
		Query:   query,
		Started: time.Now(),
		outputs: make(map[string]any),
	}
}

// Set records the output of step, replacing any earlier value.
func (r *Run) Set(step string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.outputs[step]; !exists {
		r.order = append(r.order, step)
	}
	r.outputs[step] = v
}

// Get returns the output of step.
func (r *Run) Get(step string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.outputs[step]
	return v, ok
}

// Steps lists the steps that have recorded output, in order.
func (r *Run) Steps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// AddCost accumulates provider cost for the run.
func (r *Run) AddCost(c float64) {
	r.mu.Lock()
	r.cost += c
	r.mu.Unlock()
}

// Cost is the total cost recorded so far.
func (r *Run) Cost() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cost
}

// Output returns the output of step as a T.
func Output[T any](r *Run, step string) (T, error) {
	var zero T
	v, ok := r.Get(step)
	if !ok {
		return zero, errors.Errorf("no output from step %s", step)
	}
	out, ok := v.(T)
	if !ok {
		return zero, errors.Errorf("output of step %s is %T, not %T", step, v, zero)
	}
	return out, nil
}
