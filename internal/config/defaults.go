package config

import "time"

// DefaultConfig returns the configuration used when no config.yaml field is
// set, mirroring the defaults named throughout spec.md §4.6 and §6.
func DefaultConfig() TunnelConfig {
	return TunnelConfig{
		ConfigDir: ".",
		Frontend: FrontendConfig{
			Transport: "stdio",
			Host:      "localhost",
			Port:      8090,
		},
		Registry: RegistryConfig{
			ConflictPolicy: ConflictPrefixWithProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:  "mock",
			Dimension: 256,
			CachePath: "embedding_cache.bin",
		},
		Discovery: DiscoveryConfig{
			LLMProvider:         "mock",
			LexicalWeight:       0.2,
			SemanticWeight:      0.6,
			KeywordWeight:       0.2,
			TopN:                5,
			ConfidenceThreshold: 0.5,
			AmbiguityEpsilon:    0.02,
			NoCandidateCutoff:   0.1,
			FallbackToLexical:   true,
			RequestTimeout:      20 * time.Second,
		},
		LogLevel: "info",
	}
}
