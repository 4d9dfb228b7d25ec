package sift

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var errNoFetcher = errors.New("no fetch provider configured")

// Collected is the output of the execute step: search results keyed by the
// query that produced them, plus the fetched page when the plan asked for
// one. A failed search maps to an empty slice; a failed fetch leaves a
// placeholder in Page.
type Collected struct {
	Searches map[string][]SearchResult
	FetchURL string
	Page     string
}

// Links returns every result link in plan order, without duplicates.
func (c Collected) Links(plan Plan) []string {
	var links []string
	for _, q := range plan.Queries() {
		for _, r := range c.Searches[q] {
			links = append(links, r.Link)
		}
	}
	if c.FetchURL != "" {
		links = append(links, c.FetchURL)
	}
	return uniqueStrings(links)
}

// FetchPlaceholder is the page text recorded when a fetch fails.
func FetchPlaceholder(url string, err error) string {
	return fmt.Sprintf("[ERROR fetching %s: %v]", url, err)
}

func (a *Agent) plan(ctx context.Context, run *Run) error {
	plan, cost, err := CompleteAs[Plan](ctx, a.planCompleter, plannerSystemPrompt, buildPlannerUserPrompt(run.Query), PlanSchema)
	run.AddCost(cost)
	if err != nil {
		return err
	}
	a.logger.WithFields(logrus.Fields{
		"run_id":   run.ID,
		"goal":     plan.Goal,
		"searches": len(plan.SearchQueries),
	}).Info("plan ready")
	run.Set(StepPlan, plan)
	return nil
}

// execute runs the planned searches and the optional fetch. Provider
// failures degrade to empty results or a placeholder; only cancellation
// stops the step.
func (a *Agent) execute(ctx context.Context, run *Run) error {
	plan, err := Output[Plan](run, StepPlan)
	if err != nil {
		return err
	}
	collected := a.collect(ctx, run, plan)
	if err := ctx.Err(); err != nil {
		return err
	}
	run.Set(StepExecute, collected)
	return nil
}

func (a *Agent) collect(ctx context.Context, run *Run, plan Plan) Collected {
	queries := plan.Queries()
	out := Collected{Searches: make(map[string][]SearchResult, len(queries))}
	var mu sync.Mutex

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(a.searchConcurrency)
	for _, q := range queries {
		q := q
		grp.Go(func() error {
			results := a.search(gctx, run, q)
			mu.Lock()
			out.Searches[q] = results
			mu.Unlock()
			return nil
		})
	}
	if url := plan.FetchURL(); url != "" {
		out.FetchURL = url
		grp.Go(func() error {
			page := a.fetch(gctx, run, url)
			mu.Lock()
			out.Page = page
			mu.Unlock()
			return nil
		})
	}
	_ = grp.Wait()
	return out
}

// search never fails: errors and panics from the provider yield no results.
func (a *Agent) search(ctx context.Context, run *Run, query string) (results []SearchResult) {
	log := a.logger.WithField("run_id", run.ID).WithField("query", query)
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("search provider panicked")
			results = []SearchResult{}
		}
	}()
	res, err := a.searcher.Search(ctx, query, a.maxResults)
	if err != nil {
		log.WithError(err).Warn("search failed")
		return []SearchResult{}
	}
	if len(res) > a.maxResults {
		res = res[:a.maxResults]
	}
	log.WithField("results", len(res)).Debug("search finished")
	if res == nil {
		return []SearchResult{}
	}
	return res
}

func (a *Agent) fetch(ctx context.Context, run *Run, url string) (page string) {
	log := a.logger.WithField("run_id", run.ID).WithField("url", url)
	if a.fetcher == nil {
		log.Warn("fetch requested but no fetch provider configured")
		return FetchPlaceholder(url, errNoFetcher)
	}
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("fetch provider panicked")
			page = FetchPlaceholder(url, errors.Errorf("panic: %v", r))
		}
	}()
	text, err := a.fetcher.Fetch(ctx, url, a.fetchMaxChars)
	if err != nil {
		log.WithError(err).Warn("fetch failed")
		return FetchPlaceholder(url, err)
	}
	if r := []rune(text); len(r) > a.fetchMaxChars {
		text = string(r[:a.fetchMaxChars])
	}
	return text
}

func (a *Agent) extract(ctx context.Context, run *Run) error {
	plan, err := Output[Plan](run, StepPlan)
	if err != nil {
		return err
	}
	collected, err := Output[Collected](run, StepExecute)
	if err != nil {
		return err
	}
	user := buildExtractorUserPrompt(run.Query, buildExtractContext(plan, collected))
	list, cost, err := CompleteAs[FactList](ctx, a.extractCompleter, extractorSystemPrompt, user, FactListSchema)
	run.AddCost(cost)
	if err != nil {
		return err
	}
	facts := list.Facts
	if facts == nil {
		facts = []Fact{}
	}
	a.logger.WithField("run_id", run.ID).WithField("facts", len(facts)).Info("facts extracted")
	run.Set(StepExtract, facts)
	return nil
}

func (a *Agent) synthesize(ctx context.Context, run *Run) error {
	facts, err := Output[[]Fact](run, StepExtract)
	if err != nil {
		return err
	}
	sources := make([]string, 0, len(facts))
	for _, f := range facts {
		sources = append(sources, f.Source)
	}
	user, err := buildSynthesizerUserPrompt(run.Query, facts, uniqueStrings(sources))
	if err != nil {
		return err
	}
	answer, cost, err := CompleteAs[Answer](ctx, a.synthCompleter, synthesizerSystemPrompt, user, AnswerSchema)
	run.AddCost(cost)
	if err != nil {
		return err
	}
	answer.normalize(run.Query)
	run.Set(StepSynthesize, answer)
	return nil
}
