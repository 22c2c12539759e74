package config

import "time"

// TunnelConfig is the top-level configuration for magictunneld, loaded from a
// single YAML file whose path is given on the command line (spec.md §6).
type TunnelConfig struct {
	// ConfigDir is the root directory that holds the "capabilities"
	// subdirectory walked by the capability loader and the "mcpservers.yaml"
	// external-server descriptor file.
	ConfigDir string `yaml:"configDir"`

	Frontend  FrontendConfig  `yaml:"frontend"`
	Registry  RegistryConfig  `yaml:"registry"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	LogLevel  string          `yaml:"logLevel,omitempty"`

	// embeddingAPIKey and llmAPIKey are resolved from Embedding.APIKeyFile
	// and Discovery.APIKeyFile by LoadConfig and deliberately left
	// unexported so they never round-trip through YAML.
	embeddingAPIKey string
	llmAPIKey       string
}

// FrontendConfig configures the MCP front-end adapter transports.
type FrontendConfig struct {
	// Transport selects "stdio" or "streamable-http".
	Transport string `yaml:"transport"`
	Host      string `yaml:"host,omitempty"`
	Port      int    `yaml:"port,omitempty"`
}

// ConflictPolicy names the registry's naming-conflict resolution strategy
// (spec.md §4.3).
type ConflictPolicy string

const (
	ConflictKeepFirst          ConflictPolicy = "keep_first"
	ConflictKeepLast           ConflictPolicy = "keep_last"
	ConflictPrefixWithProvider ConflictPolicy = "prefix_with_provider"
	ConflictError              ConflictPolicy = "error"
)

// RegistryConfig configures the Tool Registry's conflict policy.
type RegistryConfig struct {
	ConflictPolicy ConflictPolicy `yaml:"conflictPolicy,omitempty"`
}

// EmbeddingConfig configures the embedding index and its provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider,omitempty"` // "openai" | "mock"
	Model      string `yaml:"model,omitempty"`
	Dimension  int    `yaml:"dimension,omitempty"`
	CachePath  string `yaml:"cachePath,omitempty"`
	APIKeyFile string `yaml:"apiKeyFile,omitempty"`
}

// DiscoveryConfig configures the smart-discovery engine's ranker weights,
// LLM provider, and gating threshold (spec.md §4.6, §9 open questions).
type DiscoveryConfig struct {
	LLMProvider string `yaml:"llmProvider,omitempty"` // "openai" | "anthropic" | "mock"
	LLMModel    string `yaml:"llmModel,omitempty"`
	APIKeyFile  string `yaml:"apiKeyFile,omitempty"`

	LexicalWeight  float64 `yaml:"lexicalWeight,omitempty"`
	SemanticWeight float64 `yaml:"semanticWeight,omitempty"`
	KeywordWeight  float64 `yaml:"keywordWeight,omitempty"`

	TopN                int     `yaml:"topN,omitempty"`
	ConfidenceThreshold float64 `yaml:"confidenceThreshold,omitempty"`
	AmbiguityEpsilon    float64 `yaml:"ambiguityEpsilon,omitempty"`
	NoCandidateCutoff   float64 `yaml:"noCandidateCutoff,omitempty"`

	// FallbackToLexical controls whether embedding/LLM outages fall back to
	// a deterministic lexical-only pick (spec.md §4.6 "Failure taxonomy").
	FallbackToLexical bool `yaml:"fallbackToLexical,omitempty"`

	RequestTimeout time.Duration `yaml:"requestTimeout,omitempty"`
}

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

// TransportType enumerates external-server transport variants (spec.md §3).
type TransportType string

const (
	TransportStdio      TransportType = "stdio"
	TransportSSE        TransportType = "sse"
	TransportHTTPStream TransportType = "http_stream"
	TransportWebsocket  TransportType = "websocket"
)
