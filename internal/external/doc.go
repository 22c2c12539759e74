// Package external owns every external MCP server connection: dialing its
// configured transport (stdio, sse, http_stream, websocket), running the
// Initializing → Running → Reconnecting → Failed/Stopped state machine, and
// publishing read-only ConnectionSnapshots for the MCP front-end to consult.
// The router reaches a back-end through Manager.CallTool.
package external
