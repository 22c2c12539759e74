package router

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/giantswarm/magictunnel/internal/capabilities"
	"github.com/giantswarm/magictunnel/internal/config"
	"github.com/giantswarm/magictunnel/internal/external"
	"github.com/giantswarm/magictunnel/internal/template"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, defs []capabilities.ToolDefinition) *Router {
	t.Helper()
	registry := capabilities.New(config.ConflictError)
	require.NoError(t, registry.Reload(defs))
	return New(registry, external.NewManager(), template.New())
}

// TestRouter_S1_SubprocessEchoFile implements spec.md §8 scenario S1.
func TestRouter_S1_SubprocessEchoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))

	def := capabilities.ToolDefinition{
		Name:        "echo_file",
		Description: "Echoes a file's contents",
		Enabled:     true,
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"path"},
		},
		Routing: capabilities.RoutingSpec{
			Type: capabilities.RoutingSubprocess,
			Subprocess: &capabilities.SubprocessRouting{
				Command: "cat",
				Args:    []string{"{{path}}"},
			},
		},
	}

	r := newTestRouter(t, []capabilities.ToolDefinition{def})

	result, err := r.Invoke(context.Background(), "echo_file", map[string]interface{}{"path": path})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.Equal(t, "hello\n", textContent.Text)
}

func TestRouter_ToolNotFound(t *testing.T) {
	r := newTestRouter(t, nil)
	_, err := r.Invoke(context.Background(), "missing", nil)
	require.Error(t, err)
	var notFound *ToolNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRouter_DisabledToolIsNotFound(t *testing.T) {
	def := capabilities.ToolDefinition{
		Name:    "disabled_tool",
		Enabled: false,
		InputSchema: map[string]interface{}{"type": "object"},
		Routing: capabilities.RoutingSpec{Type: capabilities.RoutingInternal,
			Internal: &capabilities.InternalRouting{BuiltinID: "noop"}},
	}
	r := newTestRouter(t, []capabilities.ToolDefinition{def})
	_, err := r.Invoke(context.Background(), "disabled_tool", nil)
	var notFound *ToolNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRouter_InvalidArgumentsRejected(t *testing.T) {
	def := capabilities.ToolDefinition{
		Name:    "needs_path",
		Enabled: true,
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"path": map[string]interface{}{"type": "string"}},
			"required":   []interface{}{"path"},
		},
		Routing: capabilities.RoutingSpec{Type: capabilities.RoutingSubprocess,
			Subprocess: &capabilities.SubprocessRouting{Command: "cat", Args: []string{"{{path}}"}}},
	}
	r := newTestRouter(t, []capabilities.ToolDefinition{def})

	_, err := r.Invoke(context.Background(), "needs_path", map[string]interface{}{})
	require.Error(t, err)
	var invalid *InvalidArgumentsError
	assert.ErrorAs(t, err, &invalid)
}

func TestRouter_InternalBuiltinDispatch(t *testing.T) {
	def := capabilities.ToolDefinition{
		Name:        "smart_tool_discovery",
		Enabled:     true,
		InputSchema: map[string]interface{}{"type": "object"},
		Routing: capabilities.RoutingSpec{Type: capabilities.RoutingInternal,
			Internal: &capabilities.InternalRouting{BuiltinID: "smart_tool_discovery"}},
	}
	r := newTestRouter(t, []capabilities.ToolDefinition{def})

	called := false
	r.RegisterInternal("smart_tool_discovery", func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
		called = true
		return mcp.NewToolResultText("ok"), nil
	})

	result, err := r.Invoke(context.Background(), "smart_tool_discovery", map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, called)
	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.Equal(t, "ok", textContent.Text)
}

func TestRouter_UnregisteredBuiltinFails(t *testing.T) {
	def := capabilities.ToolDefinition{
		Name:        "unregistered",
		Enabled:     true,
		InputSchema: map[string]interface{}{"type": "object"},
		Routing: capabilities.RoutingSpec{Type: capabilities.RoutingInternal,
			Internal: &capabilities.InternalRouting{BuiltinID: "does_not_exist"}},
	}
	r := newTestRouter(t, []capabilities.ToolDefinition{def})
	_, err := r.Invoke(context.Background(), "unregistered", map[string]interface{}{})
	require.Error(t, err)
	var execErr *ToolExecutionFailedError
	assert.ErrorAs(t, err, &execErr)
}

func TestRouter_ExternalMCPBackendUnavailable(t *testing.T) {
	def := capabilities.ToolDefinition{
		Name:        "remote_tool",
		Enabled:     true,
		InputSchema: map[string]interface{}{"type": "object"},
		Routing: capabilities.RoutingSpec{Type: capabilities.RoutingExternalMCP,
			ExternalMCP: &capabilities.ExternalMCPRouting{ServerID: "not-connected", RemoteToolName: "ping_host"}},
	}
	r := newTestRouter(t, []capabilities.ToolDefinition{def})
	_, err := r.Invoke(context.Background(), "remote_tool", map[string]interface{}{})
	require.Error(t, err)
	var unavailable *BackendUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}
