package sift

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const plannerSystemPrompt = "You are a research planning agent. Given a user query, decide what web searches to run to answer it thoroughly. Prefer a few precise searches over many vague ones. Only ask for a URL fetch when a single specific page is clearly the best source."

const extractorSystemPrompt = "You are a fact extraction agent. Extract the most relevant, verifiable facts from the provided search results. Only use information that appears in the results. Always include the source URL for each fact."

const synthesizerSystemPrompt = "You are a research synthesis agent. Given extracted facts, produce a clear, accurate, well-sourced answer. Only cite sources that appear in the facts. Include follow-up questions the user might want to explore."

// structuredDirective is appended to every system prompt whose reply must
// be machine parsed.
const structuredDirective = "You MUST respond with ONLY a valid JSON object: no markdown, no explanation, no backticks.\nThe JSON must exactly match this schema:\n"

const webpageMarker = "[WEBPAGE CONTENT]"

func buildStructuredSystemPrompt(system string, description []byte) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(system))
	b.WriteString("\n\n")
	b.WriteString(structuredDirective)
	b.Write(description)
	return b.String()
}

func buildCorrectionUserPrompt(user, previous string, validation error) string {
	var b strings.Builder
	b.WriteString(user)
	b.WriteString("\n\nYour previous response could not be used:\n")
	if strings.TrimSpace(previous) == "" {
		b.WriteString("(empty response)")
	} else {
		b.WriteString(previous)
	}
	b.WriteString("\n\nValidation error: ")
	b.WriteString(validation.Error())
	b.WriteString("\n\nRespond again with ONLY the corrected JSON object.")
	return b.String()
}

func buildPlannerUserPrompt(query string) string {
	return "User query: " + query
}

// buildExtractContext flattens the execute step output into one text
// block. Searches are listed in plan order so the prompt is stable.
func buildExtractContext(plan Plan, collected Collected) string {
	var entries []string
	for _, q := range plan.Queries() {
		for _, r := range collected.Searches[q] {
			entries = append(entries, fmt.Sprintf("Source: %s\nTitle: %s\n%s\n",
				strings.TrimSpace(r.Link), strings.TrimSpace(r.Title), strings.TrimSpace(r.Snippet)))
		}
	}
	if collected.FetchURL != "" {
		entries = append(entries, fmt.Sprintf("%s\nSource: %s\n%s\n", webpageMarker, collected.FetchURL, collected.Page))
	}
	if len(entries) == 0 {
		return "(no results returned)"
	}
	return strings.Join(entries, "\n---\n")
}

func buildExtractorUserPrompt(query, context string) string {
	var b strings.Builder
	b.WriteString("Original question: ")
	b.WriteString(query)
	b.WriteString("\n\nSearch results:\n")
	b.WriteString(context)
	return b.String()
}

func buildSynthesizerUserPrompt(query string, facts []Fact, sources []string) (string, error) {
	if facts == nil {
		facts = []Fact{}
	}
	if sources == nil {
		sources = []string{}
	}
	factsJSON, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return "", err
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("Original question: ")
	b.WriteString(query)
	b.WriteString("\n\nExtracted facts:\n")
	b.Write(factsJSON)
	b.WriteString("\n\nKnown sources: ")
	b.Write(sourcesJSON)
	return b.String(), nil
}

var thinkRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)                //nolint:gochecknoglobals
var fenceRegex = regexp.MustCompile("(?s)^```[A-Za-z0-9_-]*[ \t]*\n?(.*?)\n?```$") //nolint:gochecknoglobals

// StripThinkBlocks removes <think>...</think> blocks from LLM responses.
// Some models (like qwen3) output reasoning in these blocks.
func StripThinkBlocks(s string) string {
	return strings.TrimSpace(thinkRegex.ReplaceAllString(s, ""))
}

// StripCodeFence removes one enclosing markdown code fence, with or
// without a language tag. Text without a fence is returned trimmed.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRegex.FindStringSubmatch(s); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// getContent extracts usable text from an LLM response. It strips <think>
// blocks from Text first. If Text is empty (e.g. thinking models that put
// everything in reasoning tokens), falls back to the Reasoning field.
func getContent(resp LLMResponse) string {
	text := StripThinkBlocks(resp.Text)
	if text == "" {
		text = StripThinkBlocks(resp.Reasoning)
	}
	return StripCodeFence(text)
}
