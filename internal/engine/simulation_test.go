package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/living-world/internal/world"
)

func TestSimulateForFinishesWithShortStep(t *testing.T) {
	w, _, _, _ := twoPlaces(t, quiet())
	sim := NewSimulator(w, 1, time.Millisecond)
	var sizes []uint64
	last := uint64(0)
	sim.OnStep(func(s *Snapshot) {
		sizes = append(sizes, s.Clock.Total-last)
		last = s.Clock.Total
	})

	r, err := sim.SimulateFor(context.Background(), 10, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 3, 3, 1}, sizes)
	assert.Equal(t, uint64(4), r.Steps)
	assert.Equal(t, uint64(10), r.Minutes)
	assert.False(t, r.Cancelled)
	assert.Equal(t, uint64(10), sim.Latest().Clock.Total)
}

func TestSimulateForCancelsBetweenSteps(t *testing.T) {
	w, _, _, _ := twoPlaces(t, quiet())
	sim := NewSimulator(w, 1, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sim.OnStep(func(s *Snapshot) {
		if s.Clock.Steps == 2 {
			cancel()
		}
	})

	r, err := sim.SimulateFor(ctx, 100, 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, r.Cancelled)
	assert.Equal(t, uint64(2), r.Steps)
	require.NoError(t, sim.Do(func(w *World) error { return w.CheckInvariants() }))
	_, err = w.Export()
	assert.NoError(t, err, "a cancelled world is savable")
}

func TestSimulateForRejectsZeroStep(t *testing.T) {
	w, _, _, _ := twoPlaces(t, quiet())
	_, err := NewSimulator(w, 1, 0).SimulateFor(context.Background(), 10, 0)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSnapshotIsDetached(t *testing.T) {
	w, a, _, ag := twoPlaces(t, quiet())
	sim := NewSimulator(w, 1, time.Millisecond)
	before := sim.Latest()

	require.NoError(t, sim.Do(func(w *World) error { return w.RemoveAgent(ag) }))
	_, ok := before.Agent(ag)
	assert.True(t, ok, "old snapshot still holds the agent")
	assert.Len(t, before.AgentsAt(a), 1)

	_, ok = sim.Latest().Agent(ag)
	assert.False(t, ok)
	assert.Empty(t, sim.Latest().AgentsAt(a))
	_, ok = sim.Latest().Place(world.PlaceID(99))
	assert.False(t, ok)
}

func TestRunStopsOnCancel(t *testing.T) {
	w, _, _, _ := twoPlaces(t, quiet())
	sim := NewSimulator(w, 5, time.Millisecond)
	sim.SetSpeed(10)
	ctx, cancel := context.WithCancel(context.Background())
	steps := make(chan struct{}, 64)
	sim.OnStep(func(*Snapshot) {
		select {
		case steps <- struct{}{}:
		default:
		}
	})

	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()
	for range 3 {
		select {
		case <-steps:
		case <-time.After(2 * time.Second):
			t.Fatal("run loop did not step")
		}
	}
	cancel()
	require.NoError(t, <-done)
	assert.GreaterOrEqual(t, sim.Latest().Clock.Total, uint64(15))
	assert.Zero(t, sim.Latest().Clock.Total%5)
}

func TestLatestFollowsConcurrentDo(t *testing.T) {
	w, a, _, _ := twoPlaces(t, quiet())
	sim := NewSimulator(w, 1, time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := sim.SimulateFor(context.Background(), 500, 1)
		done <- err
	}()
	for range 50 {
		require.NoError(t, sim.Do(func(w *World) error {
			_, err := w.SpawnAgent([]string{"courier"}, a)
			return err
		}))
	}
	require.NoError(t, <-done)

	latest := sim.Latest()
	assert.Len(t, latest.Agents, w.AgentCount())
	assert.Equal(t, 51, w.AgentCount())
	assert.Equal(t, w.Steps(), latest.Clock.Steps)
}
