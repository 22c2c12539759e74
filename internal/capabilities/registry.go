package capabilities

import (
	"fmt"
	"sync/atomic"

	"github.com/giantswarm/magictunnel/internal/config"
	"github.com/giantswarm/magictunnel/pkg/logging"
)

// Entry pairs a surviving Tool Definition with the set of definitions it
// shadowed under the configured conflict policy (spec.md §4.3 "The registry
// records both the surviving mapping and the shadowed entries").
type Entry struct {
	Definition ToolDefinition
	Shadowed   []ToolDefinition
}

// Snapshot is an immutable view of the registry handed to one call
// (spec.md §4.3, §5 "Shared snapshots instead of locked maps").
type Snapshot struct {
	byName map[string]Entry
}

// Lookup returns the surviving entry for name, if any.
func (s *Snapshot) Lookup(name string) (Entry, bool) {
	e, ok := s.byName[name]
	return e, ok
}

// Visible returns every non-hidden definition, suitable for tools/list.
func (s *Snapshot) Visible() []ToolDefinition {
	result := make([]ToolDefinition, 0, len(s.byName))
	for _, e := range s.byName {
		if !e.Definition.Hidden {
			result = append(result, e.Definition)
		}
	}
	return result
}

// All returns every surviving definition, hidden or not. Discovery and
// tools/list use Visible instead.
func (s *Snapshot) All() []ToolDefinition {
	result := make([]ToolDefinition, 0, len(s.byName))
	for _, e := range s.byName {
		result = append(result, e.Definition)
	}
	return result
}

// Shadowed returns every definition that lost a naming conflict, across all
// entries, so operators can inspect losers (spec.md §4.3).
func (s *Snapshot) Shadowed() []ToolDefinition {
	var result []ToolDefinition
	for _, e := range s.byName {
		result = append(result, e.Shadowed...)
	}
	return result
}

// Registry holds the current published Snapshot and publishes a new one on
// each reload via atomic pointer swap. Registry mutations happen only
// during full reloads: there is no incremental-update API (spec.md §4.3
// "Registry mutations happen only during full reloads").
type Registry struct {
	policy   config.ConflictPolicy
	snapshot atomic.Pointer[Snapshot]
}

// New creates a Registry with an empty initial snapshot.
func New(policy config.ConflictPolicy) *Registry {
	r := &Registry{policy: policy}
	r.snapshot.Store(&Snapshot{byName: map[string]Entry{}})
	return r
}

// Current returns the currently published snapshot. Safe for concurrent
// use; the returned pointer's contents never change underneath the caller.
func (r *Registry) Current() *Snapshot {
	return r.snapshot.Load()
}

// Reload builds a new snapshot from definitions off to the side and
// publishes it atomically. Readers holding the previous snapshot keep
// seeing a fully consistent view until they fetch Current again.
func (r *Registry) Reload(definitions []ToolDefinition) error {
	byName := make(map[string]Entry, len(definitions))

	for _, def := range definitions {
		existing, conflict := byName[def.Name]
		if !conflict {
			byName[def.Name] = Entry{Definition: def}
			continue
		}

		switch r.policy {
		case config.ConflictKeepFirst:
			existing.Shadowed = append(existing.Shadowed, def)
			byName[def.Name] = existing

		case config.ConflictKeepLast:
			newEntry := Entry{Definition: def, Shadowed: append(existing.Shadowed, existing.Definition)}
			byName[def.Name] = newEntry

		case config.ConflictPrefixWithProvider:
			prefixed := def
			prefixed.Name = def.ProviderID + "_" + def.Name
			if _, stillConflicts := byName[prefixed.Name]; stillConflicts {
				return fmt.Errorf("conflict policy prefix_with_provider could not disambiguate %q from provider %q: prefixed name %q also collides",
					def.Name, def.ProviderID, prefixed.Name)
			}
			byName[prefixed.Name] = Entry{Definition: prefixed}

		case config.ConflictError:
			return fmt.Errorf("tool name conflict: %q declared by both %q and %q",
				def.Name, existing.Definition.ProviderID, def.ProviderID)

		default:
			return fmt.Errorf("unrecognised conflict policy %q", r.policy)
		}
	}

	logging.Info("ToolRegistry", "Reloaded registry with %d tools (policy=%s)", len(byName), r.policy)
	r.snapshot.Store(&Snapshot{byName: byName})
	return nil
}
