package capabilities

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_TriggersOnChangeAfterYAMLWrite(t *testing.T) {
	dir := t.TempDir()

	triggered := make(chan struct{}, 1)
	w := NewWatcher(dir, func() {
		select {
		case triggered <- struct{}{}:
		default:
		}
	})
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	capsDir := filepath.Join(dir, "capabilities")
	require.NoError(t, os.WriteFile(filepath.Join(capsDir, "tools.yaml"), []byte("name: test\n"), 0644))

	select {
	case <-triggered:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not called after a capability file write")
	}
}

func TestWatcher_IgnoresNonYAMLFiles(t *testing.T) {
	dir := t.TempDir()

	triggered := make(chan struct{}, 1)
	w := NewWatcher(dir, func() {
		select {
		case triggered <- struct{}{}:
		default:
		}
	})
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	capsDir := filepath.Join(dir, "capabilities")
	require.NoError(t, os.WriteFile(filepath.Join(capsDir, "README.md"), []byte("notes"), 0644))

	select {
	case <-triggered:
		t.Fatal("onChange fired for a non-YAML file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestIsYAMLFile(t *testing.T) {
	assert.True(t, isYAMLFile("tools.yaml"))
	assert.True(t, isYAMLFile("tools.yml"))
	assert.False(t, isYAMLFile("tools.json"))
}
