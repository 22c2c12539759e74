// Package mcpfrontend is the MCP front-end adapter (spec.md §4.7): it
// speaks JSON-RPC 2.0 over stdio or streamable HTTP via
// github.com/mark3labs/mcp-go/server, translating tools/list and
// tools/call onto the capability registry and router. Resources and prompts
// come from the external-server manager: a single magictunnel://backends
// resource forwards reads to the connected backends, and backend prompts
// are published only when RefreshPrompts is called. Transport framing,
// ping, and cancellation are handled by the mcp-go server itself; this
// package only supplies the handlers.
package mcpfrontend
