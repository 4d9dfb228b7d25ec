package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/smhanov/sift"
	"github.com/smhanov/sift/config"
	"github.com/smhanov/sift/fetch"
	"github.com/smhanov/sift/llm"
	"github.com/smhanov/sift/search"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "sift: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "sift",
		Usage:     "answer research questions with web search and structured LLM calls",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config `FILE` (default $SIFT_CONFIG_FILE or <config dir>/sift.yaml)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log every prompt and model response",
			},
		},
		Commands: []*cli.Command{{
			Name:      "research",
			Aliases:   []string{"ask"},
			Usage:     "plan, search, extract, and synthesize an answer",
			ArgsUsage: "<query>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "json", Usage: "print the answer as JSON"},
			},
			Action: withConfig(func(c *config.Config, log *logrus.Logger, ctx *cli.Context) error {
				query := strings.Join(ctx.Args().Slice(), " ")
				if strings.TrimSpace(query) == "" {
					return errors.New("research: a query is required")
				}
				agent, err := c.Agent(log)
				if err != nil {
					return err
				}
				res, err := agent.Answer(ctx.Context, query)
				if err != nil {
					return err
				}
				if ctx.Bool("json") {
					return writeJSON(ctx.App.Writer, res.Answer)
				}
				return writeAnswer(ctx.App.Writer, res)
			}),
		}, {
			Name:      "search",
			Usage:     "run one query against the configured search provider",
			ArgsUsage: "<query>",
			Action: withConfig(func(c *config.Config, _ *logrus.Logger, ctx *cli.Context) error {
				query := strings.Join(ctx.Args().Slice(), " ")
				if strings.TrimSpace(query) == "" {
					return errors.New("search: a query is required")
				}
				searcher, err := c.Searcher()
				if err != nil {
					return err
				}
				results, err := searcher.Search(ctx.Context, query, c.SearchMaxResults)
				if err != nil {
					return err
				}
				return writeJSON(ctx.App.Writer, results)
			}),
		}, {
			Name:      "fetch",
			Usage:     "print the readable text of a page",
			ArgsUsage: "<url>",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "max-chars", Usage: "truncate the text to `N` characters (default from config)"},
			},
			Action: withConfig(func(c *config.Config, _ *logrus.Logger, ctx *cli.Context) error {
				if ctx.NArg() != 1 {
					return errors.New("fetch: exactly one url is required")
				}
				fetcher := c.Fetcher()
				if fetcher == nil {
					fetcher = fetch.NewHTTP()
				}
				maxChars := c.FetchMaxChars
				if n := ctx.Int("max-chars"); n > 0 {
					maxChars = n
				}
				text, err := fetcher.Fetch(ctx.Context, ctx.Args().First(), maxChars)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(ctx.App.Writer, text)
				return err
			}),
		}, {
			Name:      "schemas",
			Usage:     "list the structured output schemas, or print one",
			ArgsUsage: "[name]",
			Action: func(ctx *cli.Context) error {
				if ctx.NArg() == 0 {
					for _, name := range sift.Schemas.Names() {
						if _, err := fmt.Fprintln(ctx.App.Writer, name); err != nil {
							return err
						}
					}
					return nil
				}
				desc, err := sift.Schemas.Describe(ctx.Args().First())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(ctx.App.Writer, "%s\n", desc)
				return err
			},
		}, {
			Name:  "steps",
			Usage: "print the research pipeline as a Graphviz DOT graph",
			Action: func(ctx *cli.Context) error {
				// The providers are never called; they only satisfy New.
				agent, err := sift.New(
					sift.WithCompletionModel(llm.NewOllama("", "none")),
					sift.WithSearchProvider(search.NewDuckDuckGo()),
				)
				if err != nil {
					return err
				}
				return agent.Pipeline().WriteDOT(ctx.App.Writer)
			},
		}},
	}
}

// withConfig loads and checks the configuration before running action.
func withConfig(action func(*config.Config, *logrus.Logger, *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		c, err := config.Load(ctx.String("config"))
		if err != nil {
			return err
		}
		if lvl := ctx.String("log-level"); lvl != "" {
			c.LogLevel = lvl
		}
		if ctx.Bool("debug") {
			c.Debug = true
			c.LogLevel = logrus.DebugLevel.String()
		}
		log, err := c.Logger(ctx.App.ErrWriter)
		if err != nil {
			return err
		}
		return action(c, log, ctx)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling output to JSON")
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return errors.Wrap(err, "writing JSON to stdout")
}

func writeAnswer(w io.Writer, res sift.Result) error {
	var b strings.Builder
	a := res.Answer
	fmt.Fprintf(&b, "%s\n", a.Summary)
	if len(a.KeyFacts) > 0 {
		b.WriteString("\nKey facts:\n")
		for _, f := range a.KeyFacts {
			fmt.Fprintf(&b, "  - %s (%s, %.2f)\n", f.Fact, f.Source, f.Confidence)
		}
	}
	if len(a.Sources) > 0 {
		b.WriteString("\nSources:\n")
		for _, s := range a.Sources {
			fmt.Fprintf(&b, "  %s\n", s)
		}
	}
	if len(a.FollowUpQuestions) > 0 {
		b.WriteString("\nFollow-up questions:\n")
		for _, q := range a.FollowUpQuestions {
			fmt.Fprintf(&b, "  - %s\n", q)
		}
	}
	fmt.Fprintf(&b, "\nConfidence: %.2f  Cost: $%.4f  Run: %s\n", a.Confidence, res.Cost, res.RunID)
	_, err := io.WriteString(w, b.String())
	return err
}
