package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/giantswarm/magictunnel/internal/llm"
)

const systemPrompt = `You are a tool-selection assistant for an MCP aggregating proxy. Given a user request and a list of candidate tools, choose the single best tool and extract its call arguments.

Respond with exactly one JSON object and nothing else. Either:
  {"tool": "<name>", "arguments": {...}, "confidence": <0..1>, "reasoning": "<short>"}
or, if no candidate tool fits the request:
  {"tool": null, "reason": "<short>"}`

// selectAndExtract asks the configured LLM to choose among candidates and
// extract arguments, then parses the response defensively (spec.md §4.6
// "(b) LLM selection & argument extraction": "malformed or out-of-range
// confidence is treated as failure").
func (e *Engine) selectAndExtract(ctx context.Context, req Request, candidates []scoredTool) (selection, error) {
	prompt := buildUserPrompt(req, candidates)

	resp, err := e.llmClient.Complete(ctx, llm.ChatRequest{
		SystemPrompt: systemPrompt,
		UserMessage:  prompt,
	})
	if err != nil {
		return selection{}, &LLMServiceError{Cause: err}
	}

	sel, err := parseSelection(resp.Text)
	if err != nil {
		return selection{}, &LLMServiceError{Cause: err}
	}
	return sel, nil
}

func buildUserPrompt(req Request, candidates []scoredTool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User request: %s\n", req.Request)
	if req.Context != "" {
		fmt.Fprintf(&b, "Additional context: %s\n", req.Context)
	}
	b.WriteString("Candidate tools:\n")
	for _, c := range candidates {
		schema, _ := json.Marshal(c.def.InputSchema)
		fmt.Fprintf(&b, "- name: %s\n  description: %s\n  input_schema: %s\n", c.def.Name, c.def.Description, string(schema))
	}
	return b.String()
}

// parseSelection decodes raw as a selection JSON object, rejecting anything
// that isn't a single well-formed object with an in-range confidence.
func parseSelection(raw string) (selection, error) {
	raw = extractJSONObject(raw)

	var sel selection
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sel); err != nil {
		return selection{}, fmt.Errorf("could not parse llm response as json: %w", err)
	}

	if sel.Tool != nil {
		if sel.Confidence < 0 || sel.Confidence > 1 {
			return selection{}, fmt.Errorf("llm returned out-of-range confidence %v", sel.Confidence)
		}
		if strings.TrimSpace(*sel.Tool) == "" {
			return selection{}, fmt.Errorf("llm returned an empty tool name")
		}
	}
	return sel, nil
}

// extractJSONObject trims any leading/trailing prose a chat model may wrap
// its JSON answer in, returning the substring from the first '{' to the
// matching last '}'.
func extractJSONObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}
