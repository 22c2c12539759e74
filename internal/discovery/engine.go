package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/giantswarm/magictunnel/internal/capabilities"
	"github.com/giantswarm/magictunnel/internal/embedding"
	"github.com/giantswarm/magictunnel/internal/llm"
	"github.com/giantswarm/magictunnel/internal/metrics"
	"github.com/giantswarm/magictunnel/internal/router"
	"github.com/giantswarm/magictunnel/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
)

// BuiltinID is the internal{builtin_id} value capability files use to route
// a tool to this engine (spec.md §4.1 "internal{builtin_id} — handled by
// code (e.g. smart_tool_discovery)").
const BuiltinID = "smart_tool_discovery"

const defaultTopN = 5
const defaultConfidenceThreshold = 0.5

// Config holds the ranker weights and gating thresholds (spec.md §4.6);
// DefaultConfig returns their default values.
type Config struct {
	Weights             Weights
	TopN                int
	ConfidenceThreshold float64
	AmbiguityEpsilon    float64
	NoCandidateCutoff   float64
	FallbackToLexical   bool
}

// DefaultConfig returns the weights and thresholds spec.md §4.6 names as
// defaults (0.2 lexical / 0.6 semantic / 0.2 keyword, N=5, threshold 0.5).
func DefaultConfig() Config {
	return Config{
		Weights:             Weights{Lexical: 0.2, Semantic: 0.6, Keyword: 0.2},
		TopN:                defaultTopN,
		ConfidenceThreshold: defaultConfidenceThreshold,
		AmbiguityEpsilon:    0.02,
		NoCandidateCutoff:   0.1,
		FallbackToLexical:   true,
	}
}

// Engine implements the smart_tool_discovery pipeline (spec.md §4.6).
type Engine struct {
	registry       *capabilities.Registry
	embeddingIndex *embedding.Index
	embedProvider  embedding.Provider
	llmClient      llm.Client
	router         *router.Router
	config         Config
	metrics        *metrics.DiscoveryMetrics
}

// SetMetrics attaches a DiscoveryMetrics sink; a nil sink (the default) is
// a no-op, so wiring it is optional.
func (e *Engine) SetMetrics(dm *metrics.DiscoveryMetrics) {
	e.metrics = dm
}

func New(registry *capabilities.Registry, embeddingIndex *embedding.Index, embedProvider embedding.Provider, llmClient llm.Client, r *router.Router, config Config) *Engine {
	return &Engine{
		registry:       registry,
		embeddingIndex: embeddingIndex,
		embedProvider:  embedProvider,
		llmClient:      llmClient,
		router:         r,
		config:         config,
	}
}

// RegisterWith wires the engine into router as the smart_tool_discovery
// builtin (spec.md §4.4 "internal -> builtin_id lookup table").
func (e *Engine) RegisterWith(r *router.Router) {
	r.RegisterInternal(BuiltinID, e.Handle)
}

// Handle adapts Discover to router.InternalHandler. A match and a "no
// suitable tool" outcome both come back as a successful MCP result whose
// JSON body carries either the matched tool's output or the structured
// suggestions payload (spec.md §4.6). A missing "request" argument, or an
// error returned by Discover (ranking, LLM selection without fallback, or
// the chosen tool's invocation), is returned as an error instead.
func (e *Engine) Handle(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	req, err := decodeRequest(args)
	if err != nil {
		return nil, err
	}

	result, err := e.Discover(ctx, req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshaling discovery result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

func decodeRequest(args map[string]interface{}) (Request, error) {
	req := Request{ConfidenceThreshold: defaultConfidenceThreshold}

	text, _ := args["request"].(string)
	if strings.TrimSpace(text) == "" {
		return Request{}, fmt.Errorf("smart_tool_discovery: \"request\" argument is required")
	}
	req.Request = text

	if ctxStr, ok := args["context"].(string); ok {
		req.Context = ctxStr
	}
	if raw, ok := args["preferred_tools"].([]interface{}); ok {
		for _, item := range raw {
			if name, ok := item.(string); ok {
				req.PreferredTools = append(req.PreferredTools, name)
			}
		}
	}
	if threshold, ok := args["confidence_threshold"].(float64); ok {
		req.ConfidenceThreshold = threshold
	}
	return req, nil
}

// Discover runs the full candidate-retrieval, LLM-selection, and gating
// pipeline (spec.md §4.6 (a)-(c)).
func (e *Engine) Discover(ctx context.Context, req Request) (Result, error) {
	e.metrics.RecordRequest()

	config := e.config
	if req.ConfidenceThreshold > 0 {
		config.ConfidenceThreshold = req.ConfidenceThreshold
	}

	visible := e.registry.Current().Visible()

	scored, err := rankCandidates(ctx, visible, req.Request+" "+req.Context, e.embeddingIndex, e.embedProvider, config.Weights)
	if err != nil {
		e.metrics.RecordEmbeddingError()
		if !config.FallbackToLexical {
			return Result{}, err
		}
		logging.Warn("Discovery", "semantic ranker failed (%v); falling back to lexical-only", err)
		scored, err = rankCandidates(ctx, visible, req.Request+" "+req.Context, nil, nil, Weights{Lexical: 1})
		if err != nil {
			return Result{}, err
		}
	}

	scored = restrictToPreferred(scored, req.PreferredTools)

	topN := config.TopN
	if topN <= 0 {
		topN = defaultTopN
	}
	if topN > len(scored) {
		topN = len(scored)
	}
	candidates := scored[:topN]

	if len(candidates) == 0 {
		e.metrics.RecordNoCandidate()
		return noCandidateResult("registry has no visible tools", nil), nil
	}

	top := combinedScore(candidates[0], config.Weights)
	if top < config.NoCandidateCutoff {
		e.metrics.RecordNoCandidate()
		return noCandidateResult("no candidate scored above the cutoff", toSuggestions(candidates, config.Weights)), nil
	}
	if len(candidates) > 1 {
		second := combinedScore(candidates[1], config.Weights)
		if math.Abs(top-second) < config.AmbiguityEpsilon {
			e.metrics.RecordAmbiguous()
			return noCandidateResult("top two candidates are too close to disambiguate", toSuggestions(candidates, config.Weights)), nil
		}
	}

	started := time.Now()
	sel, err := e.selectAndExtract(ctx, req, candidates)
	if err != nil {
		e.metrics.RecordLLMError()
		if _, ok := err.(*LLMServiceError); ok && config.FallbackToLexical {
			logging.Warn("Discovery", "llm selection failed (%v); falling back to lexical top candidate", err)
			return lexicalFallback(candidates, config.Weights), nil
		}
		return Result{}, err
	}

	if sel.Tool == nil || sel.Confidence < config.ConfidenceThreshold {
		e.metrics.RecordLowConfidence()
		reason := sel.Reason
		if reason == "" {
			reason = "llm confidence below threshold"
		}
		return noCandidateResult(reason, toSuggestions(candidates, config.Weights)), nil
	}

	def, found := findCandidate(candidates, *sel.Tool)
	if !found {
		e.metrics.RecordNoCandidate()
		return noCandidateResult(fmt.Sprintf("llm selected %q, which is not in the candidate set", *sel.Tool), toSuggestions(candidates, config.Weights)), nil
	}

	if err := router.ValidateArguments(def, sel.Arguments); err != nil {
		e.metrics.RecordSchemaInvalid()
		return noCandidateResult(fmt.Sprintf("extracted arguments failed validation: %v", err), toSuggestions(candidates, config.Weights)), nil
	}

	callResult, err := e.router.Invoke(ctx, def.Name, sel.Arguments)
	if err != nil {
		return Result{}, err
	}

	e.metrics.RecordMatched()
	return Result{
		Matched:       true,
		ToolName:      def.Name,
		Arguments:     sel.Arguments,
		Confidence:    sel.Confidence,
		Reasoning:     sel.Reasoning,
		Output:        textContent(callResult),
		ExecutionTime: time.Since(started).String(),
	}, nil
}

// lexicalFallback suggests the candidate with the highest lexical score.
func lexicalFallback(candidates []scoredTool, weights Weights) Result {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.lexical > best.lexical {
			best = c
		}
	}
	return Result{
		Matched:     false,
		Reason:      "llm selection unavailable; returning top lexical candidate as a suggestion",
		Suggestions: toSuggestions([]scoredTool{best}, weights),
	}
}

func noCandidateResult(reason string, suggestions []Candidate) Result {
	return Result{Matched: false, Reason: reason, Suggestions: suggestions}
}

func toSuggestions(candidates []scoredTool, weights Weights) []Candidate {
	out := make([]Candidate, len(candidates))
	for i, c := range candidates {
		out[i] = Candidate{ToolName: c.def.Name, Description: c.def.Description, Score: combinedScore(c, weights)}
	}
	return out
}

func findCandidate(candidates []scoredTool, name string) (capabilities.ToolDefinition, bool) {
	for _, c := range candidates {
		if c.def.Name == name {
			return c.def, true
		}
	}
	return capabilities.ToolDefinition{}, false
}

func restrictToPreferred(scored []scoredTool, preferred []string) []scoredTool {
	if len(preferred) == 0 {
		return scored
	}
	allowed := make(map[string]bool, len(preferred))
	for _, name := range preferred {
		allowed[name] = true
	}
	var filtered []scoredTool
	for _, s := range scored {
		if allowed[s.def.Name] {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return scored
	}
	return filtered
}

func textContent(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	if text, ok := mcp.AsTextContent(result.Content[0]); ok {
		return text.Text
	}
	return ""
}
