package mcpfrontend

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/giantswarm/magictunnel/internal/capabilities"
	"github.com/giantswarm/magictunnel/internal/config"
	"github.com/giantswarm/magictunnel/internal/external"
	"github.com/giantswarm/magictunnel/internal/router"
	"github.com/giantswarm/magictunnel/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Server wires the capability registry, router, and external-server manager
// into a mark3labs/mcp-go server.MCPServer (spec.md §4.7), the way
// muster's aggregator.AggregatorServer wires its providers into the same
// library.
type Server struct {
	registry *capabilities.Registry
	router   *router.Router
	manager  *external.Manager

	mcpServer *mcpserver.MCPServer

	mu              sync.Mutex
	publishedTool   map[string]bool
	publishedPrompt map[string]bool

	cancelFunc context.CancelFunc
	stdioDone  chan error
	httpServer *http.Server
}

func New(registry *capabilities.Registry, r *router.Router, manager *external.Manager) *Server {
	s := &Server{registry: registry, router: r, manager: manager, publishedTool: map[string]bool{}, publishedPrompt: map[string]bool{}}

	s.mcpServer = mcpserver.NewMCPServer(
		"magictunnel",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithPromptCapabilities(true),
	)
	s.registerTools()
	s.registerResourceAndPromptHandlers()
	return s
}

// Start launches the configured transport (spec.md §4.7: stdio or
// streamable HTTP) in the background and returns once it has been
// scheduled. Call Stop to shut it down.
func (s *Server) Start(ctx context.Context, cfg config.FrontendConfig) error {
	s.mu.Lock()
	if s.cancelFunc != nil {
		s.mu.Unlock()
		return fmt.Errorf("mcpfrontend server already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel
	s.mu.Unlock()

	switch cfg.Transport {
	case "stdio":
		stdioServer := mcpserver.NewStdioServer(s.mcpServer)
		done := make(chan error, 1)
		s.stdioDone = done
		go func() {
			err := stdioServer.Listen(runCtx, os.Stdin, os.Stdout)
			if err != nil {
				logging.Error("MCPFrontend", err, "stdio transport error")
			}
			done <- err
		}()
		logging.Info("MCPFrontend", "started stdio transport")

	case "streamable-http", "":
		addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		httpSrv := mcpserver.NewStreamableHTTPServer(s.mcpServer)
		server := &http.Server{Addr: addr, Handler: withHealthEndpoint(httpSrv)}
		s.mu.Lock()
		s.httpServer = server
		s.mu.Unlock()
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("MCPFrontend", err, "streamable HTTP transport error")
			}
		}()
		logging.Info("MCPFrontend", "started streamable-http transport on %s", addr)

	default:
		cancel()
		return fmt.Errorf("unrecognised frontend transport %q", cfg.Transport)
	}
	return nil
}

// withHealthEndpoint wraps the mcp-go streamable-HTTP handler with a
// liveness endpoint, mirroring the /health route muster's aggregator mounts
// alongside its own MCP transport handler.
func withHealthEndpoint(mcpHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/", mcpHandler)
	return mux
}

// Stop gracefully shuts down whichever transport Start launched.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancelFunc := s.cancelFunc
	httpServer := s.httpServer
	s.mu.Unlock()

	if cancelFunc != nil {
		cancelFunc()
	}
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down streamable HTTP transport: %w", err)
		}
	}
	return nil
}

// RefreshTools re-derives the tool list from the registry's current
// snapshot and republishes it to the mcp-go server, so a capability
// reload's listChanged notification carries the new set (spec.md §4.3
// "Reload publishes the new snapshot, then emits listChanged").
func (s *Server) RefreshTools() {
	s.registerTools()
}

func (s *Server) registerTools() {
	visible := s.registry.Current().Visible()
	tools := make([]mcpserver.ServerTool, 0, len(visible))
	nextNames := make(map[string]bool, len(visible))

	for _, def := range visible {
		nextNames[def.Name] = true
		tools = append(tools, mcpserver.ServerTool{
			Tool: mcp.Tool{
				Name:        def.Name,
				Description: def.Description,
				InputSchema: convertInputSchema(def.InputSchema),
			},
			Handler: s.toolHandler(def.Name),
		})
	}

	s.mu.Lock()
	var stale []string
	for name := range s.publishedTool {
		if !nextNames[name] {
			stale = append(stale, name)
		}
	}
	s.publishedTool = nextNames
	s.mu.Unlock()

	if len(stale) > 0 {
		s.mcpServer.DeleteTools(stale...)
	}
	if len(tools) > 0 {
		s.mcpServer.AddTools(tools...)
	}
	logging.Info("MCPFrontend", "published %d tool(s), removed %d stale tool(s)", len(tools), len(stale))
}

func (s *Server) toolHandler(toolName string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]interface{}{}
		if m, ok := req.Params.Arguments.(map[string]interface{}); ok {
			args = m
		}

		result, err := s.router.Invoke(ctx, toolName, args)
		if err != nil {
			logging.Error("MCPFrontend", err, "tool %s failed", toolName)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return result, nil
	}
}

func convertInputSchema(schema map[string]interface{}) mcp.ToolInputSchema {
	out := mcp.ToolInputSchema{Type: "object"}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		out.Properties = props
	}
	if required, ok := schema["required"].([]interface{}); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	} else if required, ok := schema["required"].([]string); ok {
		out.Required = required
	}
	return out
}

// registerResourceAndPromptHandlers registers one static resource,
// magictunnel://backends, whose read handler asks each Running
// external-server connection's client for the requested URI (spec.md
// §4.7). Backend resources are not registered one by one, so resources/list
// shows only that entry, and no prompts are registered here (see
// RefreshPrompts).
func (s *Server) registerResourceAndPromptHandlers() {
	s.mcpServer.AddResources(mcpserver.ServerResource{
		Resource: mcp.Resource{
			URI:         "magictunnel://backends",
			Name:        "backend-resources",
			Description: "dispatches resources/read to whichever connected backend declares the requested URI",
		},
		Handler: s.readResourceHandler,
	})
}

func (s *Server) readResourceHandler(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	for _, snap := range s.manager.Snapshots() {
		client, ok := s.manager.Client(snap.Name)
		if !ok {
			continue
		}
		result, err := client.ReadResource(ctx, req.Params.URI)
		if err == nil {
			return result.Contents, nil
		}
	}
	return nil, fmt.Errorf("resource %q not found on any connected backend", req.Params.URI)
}

// ListBackendResources aggregates the cached resource lists of every
// Running connection, for a tools/list-style enumeration endpoint.
func (s *Server) ListBackendResources() []mcp.Resource {
	var all []mcp.Resource
	for _, snap := range s.manager.Snapshots() {
		if snap.Phase != external.PhaseRunning {
			continue
		}
		all = append(all, snap.Capabilities.Resources...)
	}
	return all
}

// ListBackendPrompts aggregates the cached prompt lists of every Running
// connection.
func (s *Server) ListBackendPrompts() []mcp.Prompt {
	var all []mcp.Prompt
	for _, snap := range s.manager.Snapshots() {
		if snap.Phase != external.PhaseRunning {
			continue
		}
		all = append(all, snap.Capabilities.Prompts...)
	}
	return all
}

// RefreshPrompts re-derives the prompt list from every connected backend's
// cached capability set and republishes it, mirroring RefreshTools'
// relationship to registry reloads. It is not called automatically: the
// external manager's capability refresh does not trigger it, so backend
// prompts appear in prompts/list only after a call to RefreshPrompts.
func (s *Server) RefreshPrompts() {
	all := s.ListBackendPrompts()
	prompts := make([]mcpserver.ServerPrompt, 0, len(all))
	nextNames := make(map[string]bool, len(all))

	for _, p := range all {
		name := p.Name
		nextNames[name] = true
		prompts = append(prompts, mcpserver.ServerPrompt{
			Prompt: p,
			Handler: func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
				args := make(map[string]interface{}, len(req.Params.Arguments))
				for k, v := range req.Params.Arguments {
					args[k] = v
				}
				return s.GetPrompt(ctx, name, args)
			},
		})
	}

	s.mu.Lock()
	var stale []string
	for name := range s.publishedPrompt {
		if !nextNames[name] {
			stale = append(stale, name)
		}
	}
	s.publishedPrompt = nextNames
	s.mu.Unlock()

	if len(stale) > 0 {
		s.mcpServer.DeletePrompts(stale...)
	}
	if len(prompts) > 0 {
		s.mcpServer.AddPrompts(prompts...)
	}
}

// GetPrompt proxies a prompts/get call to whichever connected backend's
// cached prompt list names it.
func (s *Server) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	for _, snap := range s.manager.Snapshots() {
		found := false
		for _, p := range snap.Capabilities.Prompts {
			if p.Name == name {
				found = true
				break
			}
		}
		if !found {
			continue
		}
		client, ok := s.manager.Client(snap.Name)
		if !ok {
			continue
		}
		return client.GetPrompt(ctx, name, args)
	}
	return nil, fmt.Errorf("prompt %q not found on any connected backend", name)
}

// MCPServer exposes the underlying mcp-go server for transport wiring in
// cmd/magictunneld.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}
