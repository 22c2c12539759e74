package capabilities

// RoutingType enumerates the recognised routing variants (spec.md §3).
type RoutingType string

const (
	RoutingSubprocess  RoutingType = "subprocess"
	RoutingHTTP        RoutingType = "http"
	RoutingExternalMCP RoutingType = "external_mcp"
	RoutingInternal    RoutingType = "internal"
	RoutingGRPC        RoutingType = "grpc"
	RoutingGraphQL     RoutingType = "graphql"
)

var recognisedRoutingTypes = map[RoutingType]bool{
	RoutingSubprocess:  true,
	RoutingHTTP:        true,
	RoutingExternalMCP: true,
	RoutingInternal:    true,
	RoutingGRPC:        true,
	RoutingGraphQL:     true,
}

// SubprocessRouting renders argument values into args/stdin via the safe
// template language in internal/template, then spawns command directly
// (argv, no shell) — spec.md §3 "subprocess".
type SubprocessRouting struct {
	Command       string            `yaml:"command"`
	Args          []string          `yaml:"args,omitempty"`
	Env           map[string]string `yaml:"env,omitempty"`
	Cwd           string            `yaml:"cwd,omitempty"`
	TimeoutSec    int               `yaml:"timeout,omitempty"`
	StdinTemplate string            `yaml:"stdin_template,omitempty"`
}

// AuthSpec describes an http routing credential (spec.md §4.4 "apply auth
// (bearer/apikey/basic per descriptor)").
type AuthSpec struct {
	Type       string `yaml:"type"` // bearer | apikey | basic
	Token      string `yaml:"token,omitempty"`
	HeaderName string `yaml:"header_name,omitempty"`
	Username   string `yaml:"username,omitempty"`
	Password   string `yaml:"password,omitempty"`
}

// HTTPRouting maps a tool call onto an outbound HTTP request.
type HTTPRouting struct {
	Method          string            `yaml:"method"`
	URLTemplate     string            `yaml:"url_template"`
	Headers         map[string]string `yaml:"headers,omitempty"`
	BodyTemplate    string            `yaml:"body_template,omitempty"`
	Auth            *AuthSpec         `yaml:"auth,omitempty"`
	ResponseMapping string            `yaml:"response_mapping,omitempty"`
	TimeoutSec      int               `yaml:"timeout,omitempty"`
}

// ExternalMCPRouting indirects a call to a server_id managed by
// internal/external, calling remote_tool_name on it.
type ExternalMCPRouting struct {
	ServerID       string `yaml:"server_id"`
	RemoteToolName string `yaml:"remote_tool_name"`
}

// InternalRouting dispatches to a builtin implemented in process, e.g.
// smart_tool_discovery.
type InternalRouting struct {
	BuiltinID string `yaml:"builtin_id"`
}

// GRPCRouting is typed but its executor is deferred (see DESIGN.md); the
// loader accepts and validates it so capability files that declare it are
// not rejected outright.
type GRPCRouting struct {
	Target string `yaml:"target"`
	Service string `yaml:"service"`
	Method  string `yaml:"method"`
}

// GraphQLRouting is typed but its executor is deferred (see DESIGN.md).
type GraphQLRouting struct {
	Endpoint string `yaml:"endpoint"`
	Query    string `yaml:"query"`
}

// RoutingSpec is the tagged-variant routing description of a Tool
// Definition (spec.md §3 "Routing Spec"). Exactly one of the typed fields
// is populated, selected by Type.
type RoutingSpec struct {
	Type RoutingType `yaml:"type"`

	Subprocess  *SubprocessRouting  `yaml:"-"`
	HTTP        *HTTPRouting        `yaml:"-"`
	ExternalMCP *ExternalMCPRouting `yaml:"-"`
	Internal    *InternalRouting    `yaml:"-"`
	GRPC        *GRPCRouting        `yaml:"-"`
	GraphQL     *GraphQLRouting     `yaml:"-"`
}

// ToolDefinition is the atomic registry entry (spec.md §3 "Tool
// Definition").
type ToolDefinition struct {
	Name        string
	Description string
	Hidden      bool
	Enabled     bool
	InputSchema map[string]interface{}
	Routing     RoutingSpec
	Annotations map[string]interface{}

	// SourceFile and ProviderID record provenance: SourceFile is the YAML
	// file path; ProviderID is that file's declared "name" (file provider)
	// or the external server id (server provider).
	SourceFile string
	ProviderID string
}

// InputSchemaProperties returns the declared properties object of
// InputSchema, or an empty map when absent.
func (t ToolDefinition) InputSchemaProperties() map[string]interface{} {
	props, _ := t.InputSchema["properties"].(map[string]interface{})
	if props == nil {
		return map[string]interface{}{}
	}
	return props
}
