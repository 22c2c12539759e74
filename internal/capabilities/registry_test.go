package capabilities

import (
	"testing"

	"github.com/giantswarm/magictunnel/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tool(name, providerID string) ToolDefinition {
	return ToolDefinition{
		Name:        name,
		ProviderID:  providerID,
		InputSchema: map[string]interface{}{"type": "object"},
		Routing:     RoutingSpec{Type: RoutingInternal, Internal: &InternalRouting{BuiltinID: name}},
	}
}

func TestRegistry_NoConflict(t *testing.T) {
	r := New(config.ConflictError)
	require.NoError(t, r.Reload([]ToolDefinition{tool("a", "p1"), tool("b", "p2")}))

	snap := r.Current()
	_, ok := snap.Lookup("a")
	assert.True(t, ok)
	_, ok = snap.Lookup("b")
	assert.True(t, ok)
	assert.Empty(t, snap.Shadowed())
}

func TestRegistry_KeepFirst(t *testing.T) {
	r := New(config.ConflictKeepFirst)
	require.NoError(t, r.Reload([]ToolDefinition{tool("a", "p1"), tool("a", "p2")}))

	entry, ok := r.Current().Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "p1", entry.Definition.ProviderID)
	require.Len(t, entry.Shadowed, 1)
	assert.Equal(t, "p2", entry.Shadowed[0].ProviderID)
}

func TestRegistry_KeepLast(t *testing.T) {
	r := New(config.ConflictKeepLast)
	require.NoError(t, r.Reload([]ToolDefinition{tool("a", "p1"), tool("a", "p2")}))

	entry, ok := r.Current().Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "p2", entry.Definition.ProviderID)
	require.Len(t, entry.Shadowed, 1)
	assert.Equal(t, "p1", entry.Shadowed[0].ProviderID)
}

func TestRegistry_PrefixWithProvider(t *testing.T) {
	r := New(config.ConflictPrefixWithProvider)
	require.NoError(t, r.Reload([]ToolDefinition{tool("a", "p1"), tool("a", "p2")}))

	snap := r.Current()
	_, ok := snap.Lookup("a")
	assert.True(t, ok, "first definition keeps the bare name")
	_, ok = snap.Lookup("p2_a")
	assert.True(t, ok, "second definition is exposed under its provider-prefixed name")
}

func TestRegistry_ErrorPolicyFailsReload(t *testing.T) {
	r := New(config.ConflictError)
	err := r.Reload([]ToolDefinition{tool("a", "p1"), tool("a", "p2")})
	assert.Error(t, err)
}

func TestRegistry_HiddenExcludedFromVisible(t *testing.T) {
	r := New(config.ConflictError)
	hidden := tool("secret", "p1")
	hidden.Hidden = true
	require.NoError(t, r.Reload([]ToolDefinition{tool("a", "p1"), hidden}))

	snap := r.Current()
	assert.Len(t, snap.Visible(), 1)
	assert.Len(t, snap.All(), 2)

	_, ok := snap.Lookup("secret")
	assert.True(t, ok, "hidden tools are still routable")
}

func TestRegistry_ReloadSwapIsAtomic(t *testing.T) {
	r := New(config.ConflictError)
	require.NoError(t, r.Reload([]ToolDefinition{tool("a", "p1")}))
	oldSnap := r.Current()

	require.NoError(t, r.Reload([]ToolDefinition{tool("b", "p1")}))
	newSnap := r.Current()

	_, ok := oldSnap.Lookup("a")
	assert.True(t, ok, "a caller holding the old snapshot keeps seeing it")
	_, ok = oldSnap.Lookup("b")
	assert.False(t, ok)

	_, ok = newSnap.Lookup("b")
	assert.True(t, ok)
}
