package sift

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/smhanov/sift/schema"
)

const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 2048

	// maxStructuredAttempts bounds provider calls per structured completion:
	// the first attempt plus one corrective retry.
	maxStructuredAttempts = 2
)

// StructuredConfig configures a StructuredCompleter.
type StructuredConfig struct {
	Temperature float64
	MaxTokens   int
	Logger      logrus.FieldLogger
	Debug       bool
}

// StructuredCompleter turns free-text completions into schema-validated
// objects.
type StructuredCompleter struct {
	llm         LLMProvider
	temperature float64
	maxTokens   int
	logger      logrus.FieldLogger
	debug       bool
}

// NewStructuredCompleter wraps llm. A non-positive MaxTokens selects the
// default of 2048.
func NewStructuredCompleter(llm LLMProvider, cfg StructuredConfig) *StructuredCompleter {
	c := &StructuredCompleter{
		llm:         llm,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      cfg.Logger,
		debug:       cfg.Debug,
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.logger == nil {
		c.logger = discardLogger()
	}
	return c
}

// StructuredResult is a validated object produced by Complete.
type StructuredResult struct {
	Value    map[string]any
	Text     string // the validated JSON text
	Attempts int
	Cost     float64
}

// Complete asks the model for an object matching s. The system prompt is
// extended with the schema description and a JSON-only directive. If the
// reply fails validation the request is repeated once with the invalid
// output and the validation error attached; a second failure returns a
// *SchemaMismatchError. Provider errors are returned as-is and are never
// retried here.
func (c *StructuredCompleter) Complete(ctx context.Context, system, user string, s *schema.Schema) (StructuredResult, error) {
	desc := s.Describe()
	req := CompletionRequest{
		System:      buildStructuredSystemPrompt(system, desc),
		User:        user,
		Schema:      desc,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	log := c.logger.WithField("schema", s.Name)

	var res StructuredResult
	var lastText string
	var lastErr error
	for attempt := 1; attempt <= maxStructuredAttempts; attempt++ {
		if attempt > 1 {
			req.User = buildCorrectionUserPrompt(user, lastText, lastErr)
		}
		if c.debug {
			log.WithField("attempt", attempt).Debugf("system prompt:\n%s\nuser prompt:\n%s", req.System, req.User)
		}
		start := time.Now()
		resp, err := c.llm.Complete(ctx, req)
		res.Attempts = attempt
		if err != nil {
			return res, errors.Wrapf(err, "%s completion", s.Name)
		}
		res.Cost += resp.Cost
		text := getContent(resp)
		if c.debug {
			log.WithField("attempt", attempt).Debugf("response:\n%s", resp.Text)
		}

		value, err := schema.Validate(s, text)
		if err == nil {
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"dur_ms":  time.Since(start).Milliseconds(),
			}).Debug("structured completion validated")
			res.Value = value
			res.Text = text
			return res, nil
		}
		log.WithError(err).WithField("attempt", attempt).Warn("structured completion failed validation")
		lastText, lastErr = text, err
	}
	return res, &SchemaMismatchError{
		Schema:     s.Name,
		Attempts:   maxStructuredAttempts,
		LastOutput: lastText,
		Err:        lastErr,
	}
}

// CompleteAs runs c.Complete and decodes the validated object into a T.
// The returned cost covers every attempt, including failed ones.
func CompleteAs[T any](ctx context.Context, c *StructuredCompleter, system, user string, s *schema.Schema) (T, float64, error) {
	var out T
	res, err := c.Complete(ctx, system, user, s)
	if err != nil {
		return out, res.Cost, err
	}
	if err := json.Unmarshal([]byte(res.Text), &out); err != nil {
		return out, res.Cost, &SchemaMismatchError{
			Schema:     s.Name,
			Attempts:   res.Attempts,
			LastOutput: res.Text,
			Err:        errors.Wrapf(err, "decode into %T", out),
		}
	}
	return out, res.Cost, nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
