// Package sift answers research questions with a fixed chain of
// structured-output LLM calls around a web search.
//
// Every model reply that the program must read is requested as JSON
// matching a declared schema, validated, and retried once with the
// validation error when it does not conform. The reply is never patched up
// beyond that: a second invalid reply fails the call.
//
// # Architecture
//
// An Answer call runs four steps, each consuming the output of the one
// before it:
//
//  1. plan: the planner restates the goal and lists searches to run, plus
//     an optional page to fetch.
//  2. execute: the SearchProvider runs each planned search (a few at a
//     time) and the FetchProvider reads the page. Failures here degrade to
//     empty results and never stop the run.
//  3. extract: the extractor turns all collected text into facts with a
//     source and a confidence in [0, 1].
//  4. synthesize: the synthesizer writes the final Answer from the facts.
//
// If the plan, extract, or synthesize call cannot produce a valid object,
// Answer returns a *StepError naming the step; there is no partial answer.
//
// # Basic Usage
//
//	agent, err := sift.New(
//	    sift.WithCompletionModel(llm.NewOpenAI(llm.GroqEndpoint, key, "llama-3.3-70b-versatile")),
//	    sift.WithSearchProvider(search.NewSerper(serperKey)),
//	    sift.WithFetchProvider(fetch.NewHTTP()),
//	)
//	if err != nil {
//	    log.Fatal(err) // matches sift.ErrConfiguration
//	}
//
//	result, err := agent.Answer(ctx, "What is the capital of France?")
//	fmt.Println(result.Answer.Summary)
//	fmt.Printf("Cost: $%.4f\n", result.Cost)
//
// # Interfaces
//
// Implement LLMProvider to connect any language model:
//
//	type LLMProvider interface {
//	    Complete(ctx context.Context, req CompletionRequest) (LLMResponse, error)
//	}
//
// Implement SearchProvider to use any search backend:
//
//	type SearchProvider interface {
//	    Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
//	}
//
// The structured completion machinery is usable on its own through
// StructuredCompleter and CompleteAs with any schema.Schema.
package sift
