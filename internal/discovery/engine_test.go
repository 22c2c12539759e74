package discovery

import (
	"context"
	"testing"

	"github.com/giantswarm/magictunnel/internal/capabilities"
	"github.com/giantswarm/magictunnel/internal/config"
	"github.com/giantswarm/magictunnel/internal/embedding"
	"github.com/giantswarm/magictunnel/internal/external"
	"github.com/giantswarm/magictunnel/internal/llm"
	"github.com/giantswarm/magictunnel/internal/router"
	"github.com/giantswarm/magictunnel/internal/template"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, mock *llm.MockClient) (*Engine, *capabilities.Registry) {
	t.Helper()

	registry := capabilities.New(config.ConflictError)
	require.NoError(t, registry.Reload([]capabilities.ToolDefinition{
		{
			Name:        "ping_host",
			Description: "ping a remote host to check reachability",
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
		{
			Name:        "create_file",
			Description: "create a new empty file at a path",
			Enabled:     true,
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"path": map[string]interface{}{"type": "string"}},
				"required":   []interface{}{"path"},
			},
			Routing: capabilities.RoutingSpec{
				Type:       capabilities.RoutingSubprocess,
				Subprocess: &capabilities.SubprocessRouting{Command: "echo", Args: []string{"-n", "created {{path}}"}},
			},
		},
	}))

	r := router.New(registry, external.NewManager(), template.New())
	idx := embedding.New(embedding.NewMockProvider(8))
	require.NoError(t, idx.Reload(context.Background(), []embedding.ToolSource{
		{Name: "ping_host", Description: "ping a remote host to check reachability"},
		{Name: "create_file", Description: "create a new empty file at a path"},
	}))

	var llmClient llm.Client = mock
	engine := New(registry, idx, embedding.NewMockProvider(8), llmClient, r, DefaultConfig())
	engine.RegisterWith(r)
	return engine, registry
}

// TestDiscover_S3_HappyPath implements spec.md §8 S3.
func TestDiscover_S3_HappyPath(t *testing.T) {
	mock := llm.NewMockClient(`{"tool":"ping_host","arguments":{"host":"google.com"},"confidence":0.9,"reasoning":"request asks to ping a host"}`)
	engine, _ := newTestEngine(t, mock)

	result, err := engine.Discover(context.Background(), Request{Request: "ping google.com", ConfidenceThreshold: 0.5})
	require.NoError(t, err)
	require.True(t, result.Matched)
	assert.Equal(t, "ping_host", result.ToolName)
	assert.Equal(t, "google.com", result.Arguments["host"])
	assert.GreaterOrEqual(t, result.Confidence, 0.5)
	assert.Contains(t, result.Output, "pong google.com")
}

// TestDiscover_S4_NoMatch implements spec.md §8 S4.
func TestDiscover_S4_NoMatch(t *testing.T) {
	mock := llm.NewMockClient(`{"tool":null,"reason":"no candidate tool can render video"}`)
	engine, _ := newTestEngine(t, mock)

	result, err := engine.Discover(context.Background(), Request{Request: "render a video"})
	require.NoError(t, err)
	require.False(t, result.Matched)
	assert.NotEmpty(t, result.Suggestions)
	assert.Len(t, mock.Requests, 1, "the llm should still be consulted once before returning no-match")
}

func TestDiscover_LowConfidenceYieldsNoMatch(t *testing.T) {
	mock := llm.NewMockClient(`{"tool":"ping_host","arguments":{"host":"google.com"},"confidence":0.1,"reasoning":"uncertain"}`)
	engine, _ := newTestEngine(t, mock)

	result, err := engine.Discover(context.Background(), Request{Request: "ping google.com", ConfidenceThreshold: 0.5})
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestDiscover_LLMFailureFallsBackToLexical(t *testing.T) {
	mock := llm.NewMockClient("")
	mock.Err = assertError("llm unavailable")
	engine, _ := newTestEngine(t, mock)

	result, err := engine.Discover(context.Background(), Request{Request: "ping google.com"})
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.NotEmpty(t, result.Suggestions)
}

func TestDiscover_PreferredToolsRestrictCandidates(t *testing.T) {
	mock := llm.NewMockClient(`{"tool":"create_file","arguments":{"path":"/tmp/out"},"confidence":0.9,"reasoning":"forced by preferred_tools"}`)
	engine, _ := newTestEngine(t, mock)

	result, err := engine.Discover(context.Background(), Request{
		Request:        "ping google.com",
		PreferredTools: []string{"create_file"},
	})
	require.NoError(t, err)
	require.Len(t, mock.Requests, 1)
	assert.Contains(t, mock.Requests[0].UserMessage, "create_file")
	assert.NotContains(t, mock.Requests[0].UserMessage, "ping_host")
	require.True(t, result.Matched)
	assert.Equal(t, "create_file", result.ToolName)
}

func TestHandle_AlwaysReturnsSuccessfulMCPResultOnNoMatch(t *testing.T) {
	mock := llm.NewMockClient(`{"tool":null,"reason":"nothing fits"}`)
	engine, _ := newTestEngine(t, mock)

	result, err := engine.Handle(context.Background(), map[string]interface{}{"request": "render a video"})
	require.NoError(t, err)
	require.NotNil(t, result)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.Contains(t, text.Text, "suggestions")
}

func TestHandle_RequiresRequestArgument(t *testing.T) {
	mock := llm.NewMockClient("")
	engine, _ := newTestEngine(t, mock)

	_, err := engine.Handle(context.Background(), map[string]interface{}{})
	require.Error(t, err)
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

func assertError(msg string) error { return simpleError(msg) }
