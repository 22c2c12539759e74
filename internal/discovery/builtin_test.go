package discovery

import (
	"testing"

	"github.com/giantswarm/magictunnel/internal/capabilities"
	"github.com/giantswarm/magictunnel/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinToolDefinition_RoutesInternalToItself(t *testing.T) {
	def := BuiltinToolDefinition()

	assert.Equal(t, BuiltinID, def.Name)
	assert.True(t, def.Enabled)
	require.Equal(t, capabilities.RoutingInternal, def.Routing.Type)
	require.NotNil(t, def.Routing.Internal)
	assert.Equal(t, BuiltinID, def.Routing.Internal.BuiltinID)
}

func TestBuiltinToolDefinition_SchemaRequiresRequest(t *testing.T) {
	def := BuiltinToolDefinition()

	required, ok := def.InputSchema["required"].([]interface{})
	require.True(t, ok)
	assert.Contains(t, required, "request")

	props := def.InputSchemaProperties()
	assert.Contains(t, props, "request")
	assert.Contains(t, props, "preferred_tools")
	assert.Contains(t, props, "confidence_threshold")
}

func TestBuiltinToolDefinition_RegistersIntoASnapshot(t *testing.T) {
	registry := capabilities.New(config.ConflictError)
	require.NoError(t, registry.Reload([]capabilities.ToolDefinition{BuiltinToolDefinition()}))

	entry, ok := registry.Current().Lookup(BuiltinID)
	require.True(t, ok)
	assert.Equal(t, BuiltinID, entry.Definition.Name)
}
