package external

import (
	"context"
	"fmt"

	"github.com/giantswarm/magictunnel/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// HTTPStreamClient speaks MCP over chunked HTTP streaming
// (transport variant "http_stream", spec.md §3, §4.2).
type HTTPStreamClient struct {
	baseMCPClient
	baseURL string
	auth    *HTTPAuth
}

func NewHTTPStreamClient(baseURL string, auth *HTTPAuth) *HTTPStreamClient {
	return &HTTPStreamClient{baseURL: baseURL, auth: auth}
}

func (c *HTTPStreamClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	var opts []transport.StreamableHTTPCOption
	if headers := authHeaders(c.auth); len(headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(headers))
	}

	mcpClient, err := client.NewStreamableHttpClient(c.baseURL, opts...)
	if err != nil {
		return fmt.Errorf("failed to create streamable-http client: %w", err)
	}

	if _, err := mcpClient.Initialize(ctx, initializeRequest()); err != nil {
		logging.Error("HTTPStreamClient", err, "failed to initialize MCP protocol for %s", c.baseURL)
		_ = mcpClient.Close()
		return fmt.Errorf("failed to initialize MCP protocol: %w", err)
	}

	c.client = mcpClient
	c.connected = true
	return nil
}

func (c *HTTPStreamClient) Close() error { return c.closeClient() }

func (c *HTTPStreamClient) ListTools(ctx context.Context) ([]mcp.Tool, error) { return c.listTools(ctx) }

func (c *HTTPStreamClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}

func (c *HTTPStreamClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return c.listResources(ctx)
}

func (c *HTTPStreamClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return c.readResource(ctx, uri)
}

func (c *HTTPStreamClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	return c.listPrompts(ctx)
}

func (c *HTTPStreamClient) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	return c.getPrompt(ctx, name, args)
}

func (c *HTTPStreamClient) Ping(ctx context.Context) error { return c.ping(ctx) }
