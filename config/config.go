// Package config loads sift settings from an optional YAML file overlaid
// with SIFT_* environment variables, and builds the providers they name.
package config

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/smhanov/sift"
	"github.com/smhanov/sift/fetch"
	"github.com/smhanov/sift/llm"
	"github.com/smhanov/sift/search"
)

const (
	envVarPrefix = "SIFT"
	appName      = "sift"
)

// Config holds every setting the CLI needs. Environment variables win over
// the file.
type Config struct {
	LLMBackend     string        `envconfig:"SIFT_LLM_BACKEND"       yaml:"llmBackend"`
	LLMEndpoint    string        `envconfig:"SIFT_LLM_ENDPOINT"      yaml:"llmEndpoint"`
	LLMAPIKey      string        `envconfig:"SIFT_LLM_API_KEY"       yaml:"llmAPIKey"`
	LLMModel       string        `envconfig:"SIFT_LLM_MODEL"         yaml:"llmModel"`
	LLMTemperature float64       `envconfig:"SIFT_LLM_TEMPERATURE"   yaml:"llmTemperature"`
	LLMMaxTokens   int           `envconfig:"SIFT_LLM_MAX_TOKENS"    yaml:"llmMaxTokens"`
	LLMTimeout     time.Duration `envconfig:"SIFT_LLM_TIMEOUT"       yaml:"llmTimeout"`
	LLMMaxRetries  int           `envconfig:"SIFT_LLM_MAX_RETRIES"   yaml:"llmMaxRetries"`
	LLMPriceIn     float64       `envconfig:"SIFT_LLM_PRICE_IN"      yaml:"llmPricePerMTokIn"`
	LLMPriceOut    float64       `envconfig:"SIFT_LLM_PRICE_OUT"     yaml:"llmPricePerMTokOut"`

	SearchProvider    string        `envconfig:"SIFT_SEARCH_PROVIDER"    yaml:"searchProvider"`
	SearchAPIKey      string        `envconfig:"SIFT_SEARCH_API_KEY"     yaml:"searchAPIKey"`
	SearchMaxResults  int           `envconfig:"SIFT_SEARCH_MAX_RESULTS" yaml:"searchMaxResults"`
	SearchConcurrency int           `envconfig:"SIFT_SEARCH_CONCURRENCY" yaml:"searchConcurrency"`
	SearchTimeout     time.Duration `envconfig:"SIFT_SEARCH_TIMEOUT"     yaml:"searchTimeout"`
	TavilyDepth       string        `envconfig:"SIFT_TAVILY_DEPTH"       yaml:"tavilyDepth"`

	FetchEnabled   bool          `envconfig:"SIFT_FETCH_ENABLED"   yaml:"fetchEnabled"`
	FetchMaxChars  int           `envconfig:"SIFT_FETCH_MAX_CHARS" yaml:"fetchMaxChars"`
	FetchTimeout   time.Duration `envconfig:"SIFT_FETCH_TIMEOUT"   yaml:"fetchTimeout"`
	FetchExtractor string        `envconfig:"SIFT_FETCH_EXTRACTOR" yaml:"fetchExtractor"`

	StepTimeout time.Duration `envconfig:"SIFT_STEP_TIMEOUT" yaml:"stepTimeout"`
	LogLevel    string        `envconfig:"SIFT_LOG_LEVEL"    yaml:"logLevel"`
	LogFormat   string        `envconfig:"SIFT_LOG_FORMAT"   yaml:"logFormat"`
	Debug       bool          `envconfig:"SIFT_DEBUG"        yaml:"debug"`
}

// Default returns the settings used when nothing overrides them: Groq for
// completions and Serper for search.
func Default() Config {
	return Config{
		LLMBackend:        llm.BackendGroq,
		LLMModel:          "llama-3.3-70b-versatile",
		LLMTemperature:    0.2,
		LLMMaxTokens:      2048,
		LLMTimeout:        llm.DefaultTimeout,
		LLMMaxRetries:     llm.DefaultMaxRetries,
		SearchProvider:    "serper",
		SearchMaxResults:  search.DefaultMaxResults,
		SearchConcurrency: 3,
		SearchTimeout:     10 * time.Second,
		TavilyDepth:       "basic",
		FetchEnabled:      true,
		FetchMaxChars:     fetch.DefaultMaxChars,
		FetchTimeout:      fetch.DefaultTimeout,
		FetchExtractor:    "dom",
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load reads path (or $SIFT_CONFIG_FILE, or <user config dir>/sift.yaml)
// if it exists, then applies the environment. Unknown keys in the file are
// an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = os.Getenv(envVarPrefix + "_CONFIG_FILE")
		explicit = path != ""
	}
	if path == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			path = filepath.Join(dir, appName+".yaml")
		}
	}

	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.UnmarshalStrict(data, &c); err != nil {
				return nil, errors.Wrapf(err, "unmarshaling config file %s", path)
			}
		case !os.IsNotExist(err) || explicit:
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, errors.Wrap(err, "parsing environment variables")
	}
	c.applyKeyFallbacks()
	return &c, nil
}

// applyKeyFallbacks picks up the provider's conventional key variable when
// no SIFT_ key was given.
func (c *Config) applyKeyFallbacks() {
	if c.LLMAPIKey == "" {
		switch strings.ToLower(c.LLMBackend) {
		case llm.BackendGroq:
			c.LLMAPIKey = os.Getenv("GROQ_API_KEY")
		case llm.BackendOpenAI:
			c.LLMAPIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if c.SearchAPIKey == "" {
		switch strings.ToLower(c.SearchProvider) {
		case "serper":
			c.SearchAPIKey = os.Getenv("SERPER_API_KEY")
		case "brave":
			c.SearchAPIKey = os.Getenv("BRAVE_API_KEY")
		case "tavily":
			c.SearchAPIKey = os.Getenv("TAVILY_API_KEY")
		}
	}
}

// Validate reports the first missing or invalid setting as a
// *sift.ConfigError.
func (c *Config) Validate() error {
	if y, reason := func() (string, string) {
		switch strings.ToLower(c.LLMBackend) {
		case llm.BackendGroq, llm.BackendOpenAI, llm.BackendOllama:
		default:
			return "llmBackend", "unknown backend " + c.LLMBackend
		}
		if strings.TrimSpace(c.LLMModel) == "" {
			return "llmModel", "missing"
		}
		hosted := c.LLMEndpoint == "" && !strings.EqualFold(c.LLMBackend, llm.BackendOllama)
		if hosted && c.LLMAPIKey == "" {
			return "llmAPIKey", "missing"
		}
		if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
			return "llmTemperature", "must be between 0 and 2"
		}
		if c.LLMMaxTokens <= 0 {
			return "llmMaxTokens", "must be positive"
		}
		if c.LLMTimeout <= 0 {
			return "llmTimeout", "must be positive"
		}
		if c.LLMMaxRetries < 0 {
			return "llmMaxRetries", "must not be negative"
		}
		switch strings.ToLower(c.SearchProvider) {
		case "serper", "brave", "tavily":
			if c.SearchAPIKey == "" {
				return "searchAPIKey", "missing"
			}
		case "duckduckgo":
		default:
			return "searchProvider", "unknown provider " + c.SearchProvider
		}
		if c.SearchMaxResults <= 0 {
			return "searchMaxResults", "must be positive"
		}
		if c.SearchConcurrency <= 0 {
			return "searchConcurrency", "must be positive"
		}
		if c.SearchTimeout <= 0 {
			return "searchTimeout", "must be positive"
		}
		if c.FetchTimeout <= 0 {
			return "fetchTimeout", "must be positive"
		}
		if c.FetchMaxChars <= 0 {
			return "fetchMaxChars", "must be positive"
		}
		switch strings.ToLower(c.FetchExtractor) {
		case "dom", "regex":
		default:
			return "fetchExtractor", "must be dom or regex"
		}
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return "logLevel", err.Error()
		}
		switch strings.ToLower(c.LogFormat) {
		case "text", "json":
		default:
			return "logFormat", "must be text or json"
		}
		return "", ""
	}(); y != "" {
		return &sift.ConfigError{Field: y, Reason: reason}
	}
	return nil
}

// Logger builds a logrus logger writing to w with the configured level and
// formatter.
func (c *Config) Logger(w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, &sift.ConfigError{Field: "logLevel", Reason: err.Error()}
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	if strings.EqualFold(c.LogFormat, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}

// LLM builds the completion provider.
func (c *Config) LLM(logger logrus.FieldLogger) (sift.LLMProvider, error) {
	retries := c.LLMMaxRetries
	return llm.New(llm.Config{
		Backend:         c.LLMBackend,
		Endpoint:        c.LLMEndpoint,
		APIKey:          c.LLMAPIKey,
		Model:           c.LLMModel,
		Timeout:         c.LLMTimeout,
		MaxRetries:      &retries,
		PricePerMTokIn:  c.LLMPriceIn,
		PricePerMTokOut: c.LLMPriceOut,
		Logger:          logger,
	})
}

// Searcher builds the search provider.
func (c *Config) Searcher() (sift.SearchProvider, error) {
	client := &http.Client{Timeout: positive(c.SearchTimeout, Default().SearchTimeout)}
	switch strings.ToLower(c.SearchProvider) {
	case "serper":
		return search.NewSerperWithClient(c.SearchAPIKey, client), nil
	case "brave":
		return search.NewBraveWithClient(c.SearchAPIKey, client), nil
	case "tavily":
		return search.NewTavilyWithClient(c.SearchAPIKey, c.TavilyDepth, client), nil
	case "duckduckgo":
		return search.NewDuckDuckGoWithClient(client), nil
	default:
		return nil, &sift.ConfigError{Field: "searchProvider", Reason: "unknown provider " + c.SearchProvider}
	}
}

// Fetcher builds the page fetcher, or returns nil when fetching is off.
func (c *Config) Fetcher() sift.FetchProvider {
	if !c.FetchEnabled {
		return nil
	}
	var extractor fetch.TextExtractor = fetch.DOMExtractor{}
	if strings.EqualFold(c.FetchExtractor, "regex") {
		extractor = fetch.RegexExtractor{}
	}
	return fetch.NewHTTPWithClient(&http.Client{Timeout: positive(c.FetchTimeout, fetch.DefaultTimeout)}, extractor)
}

// positive returns d, or def when d would disable the client timeout.
func positive(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Agent validates c and assembles a research agent from it.
func (c *Config) Agent(logger logrus.FieldLogger) (*sift.Agent, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	model, err := c.LLM(logger)
	if err != nil {
		return nil, err
	}
	searcher, err := c.Searcher()
	if err != nil {
		return nil, err
	}
	opts := []sift.Option{
		sift.WithCompletionModel(model),
		sift.WithSearchProvider(searcher),
		sift.WithTemperature(c.LLMTemperature),
		sift.WithMaxTokens(c.LLMMaxTokens),
		sift.WithMaxResults(c.SearchMaxResults),
		sift.WithSearchConcurrency(c.SearchConcurrency),
		sift.WithFetchMaxChars(c.FetchMaxChars),
		sift.WithStepTimeout(c.StepTimeout),
		sift.WithLogger(logger),
		sift.WithDebug(c.Debug),
	}
	if f := c.Fetcher(); f != nil {
		opts = append(opts, sift.WithFetchProvider(f))
	}
	return sift.New(opts...)
}
