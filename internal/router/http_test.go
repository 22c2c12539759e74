package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/giantswarm/magictunnel/internal/capabilities"
	"github.com/giantswarm/magictunnel/internal/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeHTTP_RendersURLAndReturnsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/widgets/42", r.URL.Path)
		w.Write([]byte("widget-42-payload"))
	}))
	defer server.Close()

	def := capabilities.ToolDefinition{Name: "get_widget"}
	routing := &capabilities.HTTPRouting{
		Method:      http.MethodGet,
		URLTemplate: server.URL + "/widgets/{{.id}}",
	}

	output, err := invokeHTTP(context.Background(), def, routing, map[string]interface{}{"id": "42"}, template.New())
	require.NoError(t, err)
	assert.Equal(t, "widget-42-payload", output)
}

func TestInvokeHTTP_AppliesBearerAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	def := capabilities.ToolDefinition{Name: "authed_tool"}
	routing := &capabilities.HTTPRouting{
		Method:      http.MethodGet,
		URLTemplate: server.URL,
		Auth:        &capabilities.AuthSpec{Type: "bearer", Token: "secret-token"},
	}

	_, err := invokeHTTP(context.Background(), def, routing, map[string]interface{}{}, template.New())
	require.NoError(t, err)
}

func TestInvokeHTTP_ErrorStatusReturnsExecutionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	def := capabilities.ToolDefinition{Name: "failing_tool"}
	routing := &capabilities.HTTPRouting{Method: http.MethodGet, URLTemplate: server.URL}

	_, err := invokeHTTP(context.Background(), def, routing, map[string]interface{}{}, template.New())
	require.Error(t, err)
	var execErr *ToolExecutionFailedError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Stderr, "boom")
}
