package discovery

// Request is the decoded argument set of one smart_tool_discovery call
// (spec.md §4.6 "smart_tool_discovery(request, context?, preferred_tools?,
// confidence_threshold?)").
type Request struct {
	Request             string
	Context             string
	PreferredTools      []string
	ConfidenceThreshold float64
}

// Candidate is one registry tool surviving ranker fusion, carrying its
// combined score for transparency in the "no suitable tool" payload.
type Candidate struct {
	ToolName    string  `json:"tool_name"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// Result is what Engine.Discover returns. Exactly one of the matched or
// unmatched field groups is meaningful, discriminated by Matched (spec.md
// §4.6 "(c) Gating": matched results are "enriched with {original_tool,
// confidence, reasoning, execution_time}"; unmatched ones carry
// suggestions).
type Result struct {
	Matched bool `json:"matched"`

	// Populated when Matched is true.
	ToolName      string                 `json:"original_tool,omitempty"`
	Arguments     map[string]interface{} `json:"arguments,omitempty"`
	Confidence    float64                `json:"confidence,omitempty"`
	Reasoning     string                 `json:"reasoning,omitempty"`
	Output        string                 `json:"output,omitempty"`
	ExecutionTime string                 `json:"execution_time,omitempty"`

	// Populated when Matched is false.
	Reason      string      `json:"reason,omitempty"`
	Suggestions []Candidate `json:"suggestions,omitempty"`
}

// selection is the defensively-parsed shape of the LLM's JSON response
// (spec.md §4.6 "(b) LLM selection & argument extraction").
type selection struct {
	Tool       *string                `json:"tool"`
	Arguments  map[string]interface{} `json:"arguments"`
	Confidence float64                `json:"confidence"`
	Reasoning  string                 `json:"reasoning"`
	Reason     string                 `json:"reason"`
}
