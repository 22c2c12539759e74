package discovery

import "github.com/giantswarm/magictunnel/internal/capabilities"

// BuiltinToolDefinition returns the capabilities.ToolDefinition for
// smart_tool_discovery itself. RegisterWith only wires the router's
// internal{builtin_id} dispatch target; without this definition also being
// folded into every registry.Reload call, the tool never appears in
// tools/list and a tools/call against it resolves to ToolNotFound before
// the router ever reaches the registered handler (spec.md §4.6, §4.7).
func BuiltinToolDefinition() capabilities.ToolDefinition {
	return capabilities.ToolDefinition{
		Name:        BuiltinID,
		Description: "Finds and invokes the single best-matching tool for a natural-language request, across every tool currently visible in the registry.",
		Enabled:     true,
		ProviderID:  "builtin",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"request": map[string]interface{}{
					"type":        "string",
					"description": "The natural-language request to satisfy.",
				},
				"context": map[string]interface{}{
					"type":        "string",
					"description": "Additional context to fold into candidate ranking.",
				},
				"preferred_tools": map[string]interface{}{
					"type":        "array",
					"description": "Restrict candidate selection to these tool names, if any match.",
					"items":       map[string]interface{}{"type": "string"},
				},
				"confidence_threshold": map[string]interface{}{
					"type":        "number",
					"description": "Overrides the configured minimum LLM confidence required to invoke a match.",
				},
			},
			"required": []interface{}{"request"},
		},
		Routing: capabilities.RoutingSpec{
			Type:     capabilities.RoutingInternal,
			Internal: &capabilities.InternalRouting{BuiltinID: BuiltinID},
		},
	}
}
