package persistence

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/living-world/internal/engine"
	"github.com/talgya/living-world/internal/events"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "world.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreLogsThroughItsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s, err := Open(filepath.Join(t.TempDir(), "world.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	w := newWorld(t, 8)
	id, err := s.SaveSnapshot(w)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "world state saved")
	assert.Contains(t, buf.String(), "size=")
	assert.Positive(t, id)
}

func TestStoreSnapshots(t *testing.T) {
	s := openStore(t)
	w := newWorld(t, 8)

	_, err := s.LoadLatest(w.Name(), engine.DefaultOptions(), factory(t))
	assert.ErrorIs(t, err, ErrNoSnapshot)

	first, err := s.SaveSnapshot(w)
	require.NoError(t, err)
	require.NoError(t, w.Step(120))
	_, err = s.SaveSnapshot(w)
	require.NoError(t, err)

	infos, err := s.Snapshots(w.Name())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, w.Clock().Total, infos[0].Clock)
	assert.Equal(t, w.AgentCount(), infos[0].Agents)

	latest, err := s.LoadLatest(w.Name(), engine.DefaultOptions(), factory(t))
	require.NoError(t, err)
	assert.Equal(t, w.Clock().Total, latest.Clock().Total)

	older, err := s.LoadSnapshot(first, engine.DefaultOptions(), factory(t))
	require.NoError(t, err)
	assert.Equal(t, w.Clock().Total-120, older.Clock().Total)

	n, err := s.PruneSnapshots(w.Name(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = s.LoadSnapshot(first, engine.DefaultOptions(), factory(t))
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestArchiver(t *testing.T) {
	s := openStore(t)
	w := newWorld(t, 12)
	arc, unsub := NewArchiver(s, w)
	defer unsub()

	for range 24 {
		require.NoError(t, w.Step(60))
	}
	pending := arc.Pending()
	require.Positive(t, pending)
	require.NoError(t, arc.Flush())
	assert.Zero(t, arc.Pending())
	require.NoError(t, arc.Flush(), "empty flush is a no-op")

	n, err := s.CountEvents(w.Name())
	require.NoError(t, err)
	assert.Equal(t, pending, n)

	got, err := s.RecentEvents(w.Name(), "", 10)
	require.NoError(t, err)
	assert.Equal(t, w.RecentEvents(10), got)

	hours, err := s.RecentEvents(w.Name(), events.KindHourChanged, 1000)
	require.NoError(t, err)
	assert.Len(t, hours, 24)
	for _, e := range hours {
		assert.Equal(t, events.KindHourChanged, e.Kind)
	}

	// Re-archiving the same events is ignored.
	require.NoError(t, s.SaveEvents(w.Name(), got))
	again, err := s.CountEvents(w.Name())
	require.NoError(t, err)
	assert.Equal(t, n, again)
}

func TestArchiverStopsAfterUnsubscribe(t *testing.T) {
	s := openStore(t)
	w := newWorld(t, 12)
	arc, unsub := NewArchiver(s, w)

	require.NoError(t, w.Step(60))
	before := arc.Pending()
	require.Positive(t, before)

	unsub()
	for range 5 {
		require.NoError(t, w.Step(60))
	}
	assert.Equal(t, before, arc.Pending())
}

func TestStoreMeta(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.SaveMeta("seed", "42"))
	require.NoError(t, s.SaveMeta("seed", "43"))
	v, err := s.GetMeta("seed")
	require.NoError(t, err)
	assert.Equal(t, "43", v)

	_, err = s.GetMeta("missing")
	assert.Error(t, err)
}
