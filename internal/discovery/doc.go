// Package discovery implements the smart-discovery engine (spec.md §4.6):
// the built-in `smart_tool_discovery` tool that fuses lexical, semantic, and
// keyword-boost rankers over the visible registry, asks an LLM to pick a
// candidate and extract its arguments, and on a high-enough confidence
// invokes the chosen tool through the router.
package discovery
