package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/giantswarm/magictunnel/pkg/logging"

	"github.com/gorilla/websocket"
	"github.com/mark3labs/mcp-go/mcp"
)

// WebsocketClient speaks MCP's JSON-RPC 2.0 dialect over a persistent
// bidirectional websocket connection (transport variant "websocket",
// spec.md §3). mark3labs/mcp-go ships no websocket transport, so this
// client frames and correlates JSON-RPC messages directly over
// gorilla/websocket — one writer, one reader goroutine, exactly the
// per-connection serialisation spec.md §5 requires of every transport.
type WebsocketClient struct {
	url  string
	auth *HTTPAuth

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	nextID    int64

	pendingMu sync.Mutex
	pending   map[int64]chan rpcResponse

	writeMu sync.Mutex
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

func NewWebsocketClient(url string, auth *HTTPAuth) *WebsocketClient {
	return &WebsocketClient{url: url, auth: auth, pending: make(map[int64]chan rpcResponse)}
}

// httpHeaderFromAuth builds the dial-time header set for a websocket
// upgrade request from the same auth headers SSEClient and HTTPStreamClient
// send; the websocket dialer takes a plain http.Header rather than an
// mcp-go transport option.
func httpHeaderFromAuth(headers map[string]string) http.Header {
	h := make(http.Header, len(headers)+1)
	for k, v := range headers {
		h.Set(k, v)
	}
	return h
}

func (c *WebsocketClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	headers := httpHeaderFromAuth(authHeaders(c.auth))
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, headers)
	if err != nil {
		return fmt.Errorf("failed to dial websocket %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop()

	params := struct {
		ProtocolVersion string                 `json:"protocolVersion"`
		Capabilities    mcp.ClientCapabilities `json:"capabilities"`
		ClientInfo      mcp.Implementation     `json:"clientInfo"`
	}{ProtocolVersion: "2024-11-05", ClientInfo: clientInfo, Capabilities: mcp.ClientCapabilities{}}

	if _, err := c.call(ctx, "initialize", params); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to initialize MCP protocol over websocket: %w", err)
	}
	return nil
}

func (c *WebsocketClient) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		var resp rpcResponse
		if err := conn.ReadJSON(&resp); err != nil {
			logging.Debug("WebsocketClient", "read loop ending for %s: %v", c.url, err)
			c.failAllPending(err)
			return
		}
		if resp.ID == 0 {
			continue // notification; no waiter to dispatch to
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.pendingMu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

func (c *WebsocketClient) failAllPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		ch <- rpcResponse{ID: id, Error: &rpcError{Code: -32000, Message: err.Error()}}
		delete(c.pending, id)
	}
}

func (c *WebsocketClient) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("client not connected")
	}

	id := atomic.AddInt64(&c.nextID, 1)
	respCh := make(chan rpcResponse, 1)
	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}

	c.writeMu.Lock()
	err := conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.sendCancel(id)
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, ctx.Err()
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

// sendCancel emits a $/cancelRequest notification for id (spec.md §4.2
// "Cancellation").
func (c *WebsocketClient) sendCancel(id int64) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return
	}
	notif := rpcRequest{JSONRPC: "2.0", Method: "$/cancelRequest", Params: map[string]interface{}{"id": id}}
	_ = c.conn.WriteJSON(notif)
}

func (c *WebsocketClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.connected = false
	c.conn = nil
	return err
}

func (c *WebsocketClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	raw, err := c.call(ctx, "tools/list", map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	var result mcp.ListToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode tools/list result: %w", err)
	}
	return result.Tools, nil
}

func (c *WebsocketClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	raw, err := c.call(ctx, "tools/call", mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("failed to call tool %s: %w", name, err)
	}
	var result mcp.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode tools/call result: %w", err)
	}
	return &result, nil
}

func (c *WebsocketClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	raw, err := c.call(ctx, "resources/list", map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	var result mcp.ListResourcesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode resources/list result: %w", err)
	}
	return result.Resources, nil
}

func (c *WebsocketClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	raw, err := c.call(ctx, "resources/read", map[string]interface{}{"uri": uri})
	if err != nil {
		return nil, fmt.Errorf("failed to read resource %s: %w", uri, err)
	}
	var result mcp.ReadResourceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode resources/read result: %w", err)
	}
	return &result, nil
}

func (c *WebsocketClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	raw, err := c.call(ctx, "prompts/list", map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	var result mcp.ListPromptsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode prompts/list result: %w", err)
	}
	return result.Prompts, nil
}

func (c *WebsocketClient) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	stringArgs := make(map[string]string, len(args))
	for k, v := range args {
		if str, ok := v.(string); ok {
			stringArgs[k] = str
		} else {
			stringArgs[k] = fmt.Sprintf("%v", v)
		}
	}
	raw, err := c.call(ctx, "prompts/get", map[string]interface{}{"name": name, "arguments": stringArgs})
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt %s: %w", name, err)
	}
	var result mcp.GetPromptResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode prompts/get result: %w", err)
	}
	return &result, nil
}

func (c *WebsocketClient) Ping(ctx context.Context) error {
	_, err := c.call(ctx, "ping", map[string]interface{}{})
	return err
}
