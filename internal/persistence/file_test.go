package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/living-world/internal/engine"
)

func TestSnapshotFile(t *testing.T) {
	w := newWorld(t, 21)
	path := filepath.Join(t.TempDir(), "saves", "vale.snap.zst")
	require.NoError(t, WriteFile(path, w))

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, engine.StateVersion, h.Version)
	assert.Equal(t, w.Name(), h.Name)
	assert.Equal(t, w.Clock().Total, h.Clock)
	assert.Equal(t, w.AgentCount(), h.Agents)
	assert.Equal(t, w.PlaceCount(), h.Places)

	restored, err := ReadFile(path, engine.DefaultOptions(), factory(t))
	require.NoError(t, err)
	want, _ := Save(w)
	got, _ := Save(restored)
	assert.JSONEq(t, string(want), string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSnapshotFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap.zst")
	require.NoError(t, os.WriteFile(path, []byte("definitely not zstd"), 0o644))

	_, err := ReadHeader(path)
	assert.ErrorIs(t, err, ErrBadSnapshot)
	_, err = ReadFile(path, engine.DefaultOptions(), factory(t))
	assert.ErrorIs(t, err, ErrBadSnapshot)
}
