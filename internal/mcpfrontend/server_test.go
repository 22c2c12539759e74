package mcpfrontend

import (
	"context"
	"testing"

	"github.com/giantswarm/magictunnel/internal/capabilities"
	"github.com/giantswarm/magictunnel/internal/config"
	"github.com/giantswarm/magictunnel/internal/external"
	"github.com/giantswarm/magictunnel/internal/router"
	"github.com/giantswarm/magictunnel/internal/template"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *capabilities.Registry) {
	t.Helper()

	registry := capabilities.New(config.ConflictError)
	require.NoError(t, registry.Reload([]capabilities.ToolDefinition{
		{
			Name:        "ping_host",
			Description: "ping a remote host",
			Enabled:     true,
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"host": map[string]interface{}{"type": "string"}},
				"required":   []interface{}{"host"},
			},
			Routing: capabilities.RoutingSpec{
				Type:       capabilities.RoutingSubprocess,
				Subprocess: &capabilities.SubprocessRouting{Command: "echo", Args: []string{"-n", "pong {{host}}"}},
			},
		},
	}))

	manager := external.NewManager()
	r := router.New(registry, manager, template.New())
	return New(registry, r, manager), registry
}

func TestRegisterTools_PublishesVisibleRegistryTools(t *testing.T) {
	s, _ := newTestServer(t)
	assert.True(t, s.publishedTool["ping_host"])
}

func TestRefreshTools_RemovesStaleEntriesAfterReload(t *testing.T) {
	s, registry := newTestServer(t)
	require.NoError(t, registry.Reload(nil))

	s.RefreshTools()

	assert.False(t, s.publishedTool["ping_host"])
	assert.Empty(t, s.publishedTool)
}

func TestToolHandler_InvokesRouterAndReturnsOutput(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.toolHandler("ping_host")

	result, err := handler(context.Background(), mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Name:      "ping_host",
			Arguments: map[string]interface{}{"host": "example.com"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.Contains(t, text.Text, "pong example.com")
}

func TestToolHandler_UnknownToolReturnsErrorResult(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.toolHandler("does_not_exist")

	result, err := handler(context.Background(), mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{Name: "does_not_exist", Arguments: map[string]interface{}{}},
	})
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestListBackendResourcesAndPrompts_EmptyWithNoConnections(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Empty(t, s.ListBackendResources())
	assert.Empty(t, s.ListBackendPrompts())
}

func TestReadResourceHandler_NotFoundWithNoBackends(t *testing.T) {
	s, _ := newTestServer(t)
	_, err := s.readResourceHandler(context.Background(), mcp.ReadResourceRequest{
		Params: struct {
			URI       string         `json:"uri"`
			Arguments map[string]any `json:"arguments,omitempty"`
		}{URI: "magictunnel://missing"},
	})
	require.Error(t, err)
}

func TestGetPrompt_NotFoundWithNoBackends(t *testing.T) {
	s, _ := newTestServer(t)
	_, err := s.GetPrompt(context.Background(), "missing", nil)
	require.Error(t, err)
}

func TestConvertInputSchema_MapsPropertiesAndRequired(t *testing.T) {
	schema := convertInputSchema(map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"host": map[string]interface{}{"type": "string"}},
		"required":   []interface{}{"host"},
	})
	assert.Equal(t, "object", schema.Type)
	assert.Contains(t, schema.Properties, "host")
	assert.Equal(t, []string{"host"}, schema.Required)
}
