package external

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/giantswarm/magictunnel/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// SSEClient speaks MCP over server-sent events (spec.md §4.2 "SSE workers
// post JSON-RPC requests to POST {base}/messages and consume responses from
// an event stream at GET {base}/sse").
type SSEClient struct {
	baseMCPClient
	baseURL string
	auth    *HTTPAuth
}

func NewSSEClient(baseURL string, auth *HTTPAuth) *SSEClient {
	return &SSEClient{baseURL: baseURL, auth: auth}
}

func (c *SSEClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	var opts []transport.ClientOption
	if headers := authHeaders(c.auth); len(headers) > 0 {
		opts = append(opts, transport.WithHeaders(headers))
	}

	mcpClient, err := client.NewSSEMCPClient(c.baseURL, opts...)
	if err != nil {
		return fmt.Errorf("failed to create SSE client: %w", err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start SSE transport: %w", err)
	}

	if _, err := mcpClient.Initialize(ctx, initializeRequest()); err != nil {
		logging.Error("SSEClient", err, "failed to initialize MCP protocol for %s", c.baseURL)
		_ = mcpClient.Close()
		return fmt.Errorf("failed to initialize MCP protocol: %w", err)
	}

	c.client = mcpClient
	c.connected = true
	return nil
}

func (c *SSEClient) Close() error { return c.closeClient() }

func (c *SSEClient) ListTools(ctx context.Context) ([]mcp.Tool, error) { return c.listTools(ctx) }

func (c *SSEClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}

func (c *SSEClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return c.listResources(ctx)
}

func (c *SSEClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return c.readResource(ctx, uri)
}

func (c *SSEClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	return c.listPrompts(ctx)
}

func (c *SSEClient) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	return c.getPrompt(ctx, name, args)
}

func (c *SSEClient) Ping(ctx context.Context) error { return c.ping(ctx) }

func authHeaders(auth *HTTPAuth) map[string]string {
	if auth == nil {
		return nil
	}
	headers := make(map[string]string, 1)
	switch auth.Type {
	case "bearer":
		headers["Authorization"] = "Bearer " + auth.Token
	case "apikey":
		name := auth.Header
		if name == "" {
			name = "X-API-Key"
		}
		headers[name] = auth.Token
	case "basic":
		credentials := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password))
		headers["Authorization"] = "Basic " + credentials
	}
	return headers
}
