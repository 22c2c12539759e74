// Package capabilities implements the capability loader and the tool
// registry described in spec.md §4.1 and §4.3: parsing declarative YAML
// tool definitions into ToolDefinition values tagged with a RoutingSpec,
// and merging every provider's contribution into a single name-conflict-
// resolved, atomically-published Snapshot.
package capabilities
