// Package router resolves a tool name against the capability registry,
// validates arguments, and dispatches to the matching executor: subprocess,
// http, external_mcp, or an in-process internal builtin.
package router
