// Command magictunneld is the single-binary entrypoint: it loads a config
// file, starts the external-server manager and embedding index, wires the
// smart-discovery engine into the tool router, and serves the MCP
// front-end adapter until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/giantswarm/magictunnel/internal/capabilities"
	"github.com/giantswarm/magictunnel/internal/config"
	"github.com/giantswarm/magictunnel/internal/discovery"
	"github.com/giantswarm/magictunnel/internal/embedding"
	"github.com/giantswarm/magictunnel/internal/external"
	"github.com/giantswarm/magictunnel/internal/llm"
	"github.com/giantswarm/magictunnel/internal/mcpfrontend"
	"github.com/giantswarm/magictunnel/internal/metrics"
	"github.com/giantswarm/magictunnel/internal/router"
	"github.com/giantswarm/magictunnel/internal/template"
	"github.com/giantswarm/magictunnel/pkg/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the magictunneld config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logging.Error("Main", err, "magictunneld exited with an error")
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logging.Init(parseLogLevel(cfg.LogLevel), os.Stderr)

	registry := capabilities.New(cfg.Registry.ConflictPolicy)
	if err := loadAndApplyCapabilities(registry, cfg.ConfigDir); err != nil {
		return fmt.Errorf("loading capability definitions: %w", err)
	}

	descriptors, err := external.LoadDescriptors(filepath.Join(cfg.ConfigDir, "mcpservers.yaml"))
	if err != nil {
		return fmt.Errorf("loading external-server descriptors: %w", err)
	}

	connMetrics := metrics.NewConnectionMetrics()
	manager := external.NewManager()
	manager.SetMetrics(connMetrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager.Start(ctx, descriptors)
	defer manager.StopAll()

	embedProvider, err := buildEmbeddingProvider(cfg.Embedding, cfg.EmbeddingAPIKey())
	if err != nil {
		return fmt.Errorf("building embedding provider: %w", err)
	}
	embeddingIndex := embedding.New(embedProvider)
	if cfg.Embedding.CachePath != "" {
		if err := embeddingIndex.LoadInto(cfg.Embedding.CachePath); err != nil {
			logging.Warn("Main", "failed to load embedding cache from %s: %v", cfg.Embedding.CachePath, err)
		}
	}
	if err := reloadEmbeddingIndex(ctx, embeddingIndex, registry); err != nil {
		logging.Warn("Main", "initial embedding index build failed: %v", err)
	}
	if cfg.Embedding.CachePath != "" {
		if err := embeddingIndex.Save(cfg.Embedding.CachePath); err != nil {
			logging.Warn("Main", "failed to persist embedding cache to %s: %v", cfg.Embedding.CachePath, err)
		}
	}

	llmClient, err := buildLLMClient(cfg.Discovery, cfg.LLMAPIKey())
	if err != nil {
		return fmt.Errorf("building llm client: %w", err)
	}

	templateEngine := template.New()
	r := router.New(registry, manager, templateEngine)

	discoveryMetrics := metrics.NewDiscoveryMetrics()
	engine := discovery.New(registry, embeddingIndex, embedProvider, llmClient, r, discoveryConfig(cfg.Discovery))
	engine.SetMetrics(discoveryMetrics)
	engine.RegisterWith(r)

	frontend := mcpfrontend.New(registry, r, manager)
	if err := frontend.Start(ctx, cfg.Frontend); err != nil {
		return fmt.Errorf("starting mcp front-end: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := frontend.Stop(shutdownCtx); err != nil {
			logging.Error("Main", err, "error stopping mcp front-end")
		}
	}()

	watcher := capabilities.NewWatcher(cfg.ConfigDir, func() {
		if err := loadAndApplyCapabilities(registry, cfg.ConfigDir); err != nil {
			logging.Error("Main", err, "capability reload failed; keeping the previous snapshot")
			return
		}
		frontend.RefreshTools()
		if err := reloadEmbeddingIndex(ctx, embeddingIndex, registry); err != nil {
			logging.Warn("Main", "embedding index reload failed: %v", err)
		}
	})
	if err := watcher.Start(ctx); err != nil {
		logging.Warn("Main", "capability directory watch disabled: %v", err)
	}
	defer watcher.Stop()

	logging.Info("Main", "magictunneld is running (transport=%s); press Ctrl+C to stop", cfg.Frontend.Transport)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logging.Info("Main", "shutting down")
	return nil
}

// loadAndApplyCapabilities reads every capability YAML file under
// configDir/capabilities, appends the built-in smart_tool_discovery
// definition, and replaces registry's snapshot in one shot. It is called
// both at start-up and from the capability-directory watcher's reload
// callback, since Registry.Reload always replaces the whole snapshot
// rather than merging in new definitions.
func loadAndApplyCapabilities(registry *capabilities.Registry, configDir string) error {
	loadResult, err := capabilities.Load(configDir)
	if err != nil {
		return err
	}
	if loadResult.Errors.Count() > 0 {
		logging.Warn("Main", "%d capability file(s) failed to load; continuing with %d valid definitions",
			loadResult.Errors.Count(), len(loadResult.Definitions))
	}

	definitions := append(loadResult.Definitions, discovery.BuiltinToolDefinition())
	return registry.Reload(definitions)
}

func reloadEmbeddingIndex(ctx context.Context, idx *embedding.Index, registry *capabilities.Registry) error {
	visible := registry.Current().Visible()
	sources := make([]embedding.ToolSource, 0, len(visible))
	for _, def := range visible {
		sources = append(sources, embedding.ToolSource{
			Name:        def.Name,
			Description: def.Description,
		})
	}
	return idx.Reload(ctx, sources)
}

func buildEmbeddingProvider(cfg config.EmbeddingConfig, apiKey string) (embedding.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return embedding.NewOpenAIProvider(apiKey, cfg.Model, cfg.Dimension)
	case "mock", "":
		return embedding.NewMockProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unrecognised embedding provider %q", cfg.Provider)
	}
}

func buildLLMClient(cfg config.DiscoveryConfig, apiKey string) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		return llm.NewOpenAIClient(apiKey, cfg.LLMModel)
	case "anthropic":
		return llm.NewAnthropicClient(apiKey, cfg.LLMModel)
	case "mock", "":
		return llm.NewMockClient(`{"tool":null,"reason":"mock llm provider configured"}`), nil
	default:
		return nil, fmt.Errorf("unrecognised llm provider %q", cfg.LLMProvider)
	}
}

func discoveryConfig(cfg config.DiscoveryConfig) discovery.Config {
	out := discovery.DefaultConfig()
	if cfg.LexicalWeight > 0 || cfg.SemanticWeight > 0 || cfg.KeywordWeight > 0 {
		out.Weights = discovery.Weights{Lexical: cfg.LexicalWeight, Semantic: cfg.SemanticWeight, Keyword: cfg.KeywordWeight}
	}
	if cfg.TopN > 0 {
		out.TopN = cfg.TopN
	}
	if cfg.ConfidenceThreshold > 0 {
		out.ConfidenceThreshold = cfg.ConfidenceThreshold
	}
	if cfg.AmbiguityEpsilon > 0 {
		out.AmbiguityEpsilon = cfg.AmbiguityEpsilon
	}
	if cfg.NoCandidateCutoff > 0 {
		out.NoCandidateCutoff = cfg.NoCandidateCutoff
	}
	out.FallbackToLexical = cfg.FallbackToLexical
	return out
}

func parseLogLevel(level string) logging.LogLevel {
	switch level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
