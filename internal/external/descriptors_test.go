package external

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDescriptors_ParsesStdioAndRemoteEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mcpServers:
  local_tools:
    command: /usr/bin/some-mcp-server
    args: ["--flag"]
  remote_tools:
    url: https://example.com/mcp
    transport: sse
    auth:
      type: bearer
      token: abc123
`), 0o600))

	descriptors, err := LoadDescriptors(path)
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	assert.Equal(t, "local_tools", descriptors[0].Name)
	assert.Equal(t, TransportStdio, descriptors[0].Transport)
	assert.Equal(t, "/usr/bin/some-mcp-server", descriptors[0].Command)

	assert.Equal(t, "remote_tools", descriptors[1].Name)
	assert.Equal(t, TransportSSE, descriptors[1].Transport)
	require.NotNil(t, descriptors[1].Auth)
	assert.Equal(t, "bearer", descriptors[1].Auth.Type)
}

func TestLoadDescriptors_MissingFileReturnsEmpty(t *testing.T) {
	descriptors, err := LoadDescriptors(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, descriptors)
}

func TestLoadDescriptors_RemoteWithoutTransportErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mcpServers:
  bad:
    url: https://example.com/mcp
`), 0o600))

	_, err := LoadDescriptors(path)
	require.Error(t, err)
}
