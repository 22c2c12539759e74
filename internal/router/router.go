package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/giantswarm/magictunnel/internal/capabilities"
	"github.com/giantswarm/magictunnel/internal/external"
	"github.com/giantswarm/magictunnel/internal/template"
	"github.com/giantswarm/magictunnel/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
)

// InternalHandler implements one `internal{builtin_id}` routing target
// (spec.md §3 "internal{builtin_id} — handled by code"). The only builtin
// shipped today is smart_tool_discovery, registered by internal/discovery.
type InternalHandler func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error)

// Router is the entry point spec.md §4.4 describes as
// `invoke(tool_name, arguments) → Result`: resolve the tool in the current
// registry snapshot, validate arguments, dispatch on the routing variant,
// and wrap the result as an MCP content array.
type Router struct {
	registry *capabilities.Registry
	manager  *external.Manager
	engine   *template.Engine

	mu       sync.RWMutex
	builtins map[string]InternalHandler
}

func New(registry *capabilities.Registry, manager *external.Manager, engine *template.Engine) *Router {
	return &Router{
		registry: registry,
		manager:  manager,
		engine:   engine,
		builtins: make(map[string]InternalHandler),
	}
}

// RegisterInternal wires a builtin_id to its handler. Called once at
// start-up for every internal routing target the process ships.
func (r *Router) RegisterInternal(builtinID string, handler InternalHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtins[builtinID] = handler
}

// Invoke dispatches toolName with args to its configured executor
// (spec.md §4.4).
func (r *Router) Invoke(ctx context.Context, toolName string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	snapshot := r.registry.Current()
	entry, found := snapshot.Lookup(toolName)
	if !found {
		return nil, &ToolNotFoundError{ToolName: toolName}
	}
	def := entry.Definition

	if !def.Enabled {
		return nil, &ToolNotFoundError{ToolName: toolName}
	}

	if err := validateArguments(def, args); err != nil {
		return nil, err
	}

	switch def.Routing.Type {
	case capabilities.RoutingSubprocess:
		return r.invokeSubprocess(ctx, def, args)
	case capabilities.RoutingHTTP:
		return r.invokeHTTP(ctx, def, args)
	case capabilities.RoutingExternalMCP:
		return r.invokeExternalMCP(ctx, def, args)
	case capabilities.RoutingInternal:
		return r.invokeInternal(ctx, def, args)
	default:
		return nil, &ToolExecutionFailedError{
			ToolName: toolName,
			Detail:   fmt.Sprintf("routing type %q has no executor", def.Routing.Type),
		}
	}
}

func (r *Router) invokeSubprocess(ctx context.Context, def capabilities.ToolDefinition, args map[string]interface{}) (*mcp.CallToolResult, error) {
	output, err := invokeSubprocess(ctx, def, def.Routing.Subprocess, args, r.engine)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(output), nil
}

func (r *Router) invokeHTTP(ctx context.Context, def capabilities.ToolDefinition, args map[string]interface{}) (*mcp.CallToolResult, error) {
	output, err := invokeHTTP(ctx, def, def.Routing.HTTP, args, r.engine)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(output), nil
}

func (r *Router) invokeExternalMCP(ctx context.Context, def capabilities.ToolDefinition, args map[string]interface{}) (*mcp.CallToolResult, error) {
	routing := def.Routing.ExternalMCP

	result, err := r.manager.CallTool(ctx, routing.ServerID, routing.RemoteToolName, args)
	if err != nil {
		if errors.Is(err, external.ErrBackendUnavailable) {
			return nil, &BackendUnavailableError{ServerID: routing.ServerID, Reason: "connection is not in the Running phase"}
		}
		if ctx.Err() != nil {
			return nil, &TimeoutError{ToolName: def.Name, Step: "external_mcp tools/call"}
		}
		return nil, &ToolExecutionFailedError{ToolName: def.Name, Detail: err.Error()}
	}
	return result, nil
}

func (r *Router) invokeInternal(ctx context.Context, def capabilities.ToolDefinition, args map[string]interface{}) (*mcp.CallToolResult, error) {
	builtinID := def.Routing.Internal.BuiltinID

	r.mu.RLock()
	handler, found := r.builtins[builtinID]
	r.mu.RUnlock()

	if !found {
		return nil, &ToolExecutionFailedError{ToolName: def.Name, Detail: fmt.Sprintf("builtin %q is not registered", builtinID)}
	}

	result, err := handler(ctx, args)
	if err != nil {
		logging.Error("Router", err, "builtin %q failed for tool %s", builtinID, def.Name)
		return nil, &ToolExecutionFailedError{ToolName: def.Name, Detail: err.Error()}
	}
	return result, nil
}
