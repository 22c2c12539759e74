package embedding

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReload_EmbedsEachDistinctTool(t *testing.T) {
	provider := NewMockProvider(8)
	idx := New(provider)

	err := idx.Reload(context.Background(), []ToolSource{
		{Name: "echo_file", Description: "reads a file", SchemaSummary: "path:string"},
		{Name: "list_dir", Description: "lists a directory", SchemaSummary: "path:string"},
	})
	require.NoError(t, err)

	snap := idx.Current()
	_, ok := snap.Lookup("echo_file")
	assert.True(t, ok)
	_, ok = snap.Lookup("list_dir")
	assert.True(t, ok)
	_, ok = snap.Lookup("nonexistent")
	assert.False(t, ok)
}

// TestReload_CacheHitOnUnchangedContent covers spec.md §8 property 6: the
// embedding provider is not called again for a tool whose name, description,
// and schema summary are unchanged between reloads.
func TestReload_CacheHitOnUnchangedContent(t *testing.T) {
	counting := &countingProvider{Provider: NewMockProvider(8)}
	idx := New(counting)

	tools := []ToolSource{{Name: "echo_file", Description: "reads a file", SchemaSummary: "path:string"}}
	require.NoError(t, idx.Reload(context.Background(), tools))
	assert.Equal(t, 1, counting.calls)

	require.NoError(t, idx.Reload(context.Background(), tools))
	assert.Equal(t, 1, counting.calls, "unchanged tool must not be re-embedded")
}

func TestReload_ChangedDescriptionInvalidatesCache(t *testing.T) {
	counting := &countingProvider{Provider: NewMockProvider(8)}
	idx := New(counting)

	require.NoError(t, idx.Reload(context.Background(), []ToolSource{
		{Name: "echo_file", Description: "v1", SchemaSummary: "path:string"},
	}))
	require.NoError(t, idx.Reload(context.Background(), []ToolSource{
		{Name: "echo_file", Description: "v2", SchemaSummary: "path:string"},
	}))
	assert.Equal(t, 2, counting.calls)
}

func TestReload_RemovedToolIsPruned(t *testing.T) {
	idx := New(NewMockProvider(8))
	require.NoError(t, idx.Reload(context.Background(), []ToolSource{
		{Name: "a", Description: "d"},
		{Name: "b", Description: "d"},
	}))
	require.NoError(t, idx.Reload(context.Background(), []ToolSource{
		{Name: "a", Description: "d"},
	}))

	_, ok := idx.Current().Lookup("b")
	assert.False(t, ok)
}

func TestNearest_RanksIdenticalTextHighest(t *testing.T) {
	idx := New(NewMockProvider(8))
	require.NoError(t, idx.Reload(context.Background(), []ToolSource{
		{Name: "echo_file", Description: "reads the contents of a file from disk"},
		{Name: "unrelated", Description: "completely different concern entirely"},
	}))

	query := deterministicVector("echo_file reads the contents of a file from disk ", 8)
	matches := idx.Current().Nearest(query, 1)
	require.Len(t, matches, 1)
	assert.Equal(t, "echo_file", matches[0].ToolName)
}

func TestContentHash_ChangesWithAnyField(t *testing.T) {
	base := ToolSource{Name: "t", Description: "d", SchemaSummary: "s"}
	h1 := ContentHash(base)

	changed := base
	changed.Description = "d2"
	h2 := ContentHash(changed)

	assert.NotEqual(t, h1, h2)
	assert.Equal(t, h1, ContentHash(base))
}

func TestSaveAndLoadCache_RoundTrips(t *testing.T) {
	idx := New(NewMockProvider(4))
	require.NoError(t, idx.Reload(context.Background(), []ToolSource{
		{Name: "echo_file", Description: "reads a file", SchemaSummary: "path:string"},
	}))

	path := filepath.Join(t.TempDir(), "embeddings.bin")
	require.NoError(t, idx.Save(path))

	loaded := New(NewMockProvider(4))
	require.NoError(t, loaded.LoadInto(path))

	entry, ok := loaded.cache["echo_file"]
	require.True(t, ok)
	original, _ := idx.Current().Lookup("echo_file")
	assert.Equal(t, original.ContentHash, entry.ContentHash)
	assert.Equal(t, original.Vector, entry.Vector)
}

func TestLoadCache_MissingFileReturnsEmpty(t *testing.T) {
	entries, dim, err := LoadCache(filepath.Join(t.TempDir(), "missing.bin"))
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 0, dim)
}

type countingProvider struct {
	Provider
	calls int
}

func (p *countingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p.calls++
	return p.Provider.Embed(ctx, texts)
}
