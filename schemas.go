package sift

import (
	"strings"

	"github.com/smhanov/sift/schema"
)

// SearchTask is a single search the planner wants to run.
type SearchTask struct {
	Query  string `json:"query"`
	Reason string `json:"reason"`
}

// Plan is the output of the plan step.
type Plan struct {
	Goal          string       `json:"goal"`
	SearchQueries []SearchTask `json:"search_queries"`
	NeedsURLFetch bool         `json:"needs_url_fetch"`
	TargetURL     string       `json:"target_url,omitempty"`
}

// Queries returns the distinct non-empty search queries in plan order.
func (p Plan) Queries() []string {
	seen := make(map[string]bool, len(p.SearchQueries))
	out := make([]string, 0, len(p.SearchQueries))
	for _, task := range p.SearchQueries {
		q := strings.TrimSpace(task.Query)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}

// FetchURL returns the page the plan asked for, or "".
func (p Plan) FetchURL() string {
	if !p.NeedsURLFetch {
		return ""
	}
	return strings.TrimSpace(p.TargetURL)
}

// Fact is a single piece of information extracted from a source.
type Fact struct {
	Fact       string  `json:"fact"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// FactList wraps the extract step output.
type FactList struct {
	Facts []Fact `json:"facts"`
}

// Answer is the final structured answer returned to the caller.
type Answer struct {
	Query             string   `json:"query"`
	Summary           string   `json:"summary"`
	KeyFacts          []Fact   `json:"key_facts"`
	Sources           []string `json:"sources"`
	Confidence        float64  `json:"confidence"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}

func (a *Answer) normalize(query string) {
	if strings.TrimSpace(a.Query) == "" {
		a.Query = query
	}
	a.Sources = uniqueStrings(a.Sources)
	a.FollowUpQuestions = uniqueStrings(a.FollowUpQuestions)
	if a.KeyFacts == nil {
		a.KeyFacts = []Fact{}
	}
}

var (
	SearchTaskSchema = schema.New("SearchQuery", "A single search the agent wants to run.",
		schema.StringField("query", "The search query string"),
		schema.StringField("reason", "Why this search is needed"),
	)

	PlanSchema = schema.New("AgentPlan", "Planner output.",
		schema.StringField("goal", "Restatement of the research goal"),
		schema.ListField("search_queries", "List of searches to run", schema.ObjectField("", "", SearchTaskSchema)),
		schema.BoolField("needs_url_fetch", "Whether to fetch a specific URL").Optional(),
		schema.StringField("target_url", "URL to fetch if needed").Optional(),
	)

	FactSchema = schema.New("ExtractedFact", "A single fact extracted from a source.",
		schema.StringField("fact", "The extracted piece of information"),
		schema.StringField("source", "URL or source name"),
		schema.NumberField("confidence", "Confidence score 0-1").Unit(),
	)

	FactListSchema = schema.New("FactList", "Facts extracted from search results.",
		schema.ListField("facts", "Extracted facts, most relevant first", schema.ObjectField("", "", FactSchema)),
	)

	AnswerSchema = schema.New("AgentAnswer", "Final structured answer returned to the caller.",
		schema.StringField("query", "Original user query"),
		schema.StringField("summary", "Concise answer paragraph"),
		schema.ListField("key_facts", "Bullet facts with sources", schema.ObjectField("", "", FactSchema)),
		schema.ListField("sources", "All URLs consulted", schema.StringField("", "")),
		schema.NumberField("confidence", "Overall confidence 0-1").Unit(),
		schema.ListField("follow_up_questions", "Questions the user might explore next", schema.StringField("", "")).Optional(),
	)

	// Schemas holds every structured output shape the agent produces.
	Schemas = mustRegistry(SearchTaskSchema, PlanSchema, FactSchema, FactListSchema, AnswerSchema)
)

func mustRegistry(schemas ...*schema.Schema) *schema.Registry {
	r, err := schema.NewRegistry(schemas...)
	if err != nil {
		panic(err)
	}
	return r
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
