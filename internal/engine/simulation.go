package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/living-world/internal/clock"
)

// Simulator drives a World. It is the only code that calls World.Step, and
// it publishes a fresh Snapshot after each step for readers on other
// goroutines.
type Simulator struct {
	mu        sync.Mutex
	world     *World
	callbacks []func(*Snapshot)
	latest    atomic.Pointer[Snapshot]

	speed    atomic.Uint64 // math.Float64bits of the speed multiplier
	stepSize atomic.Uint64
	interval time.Duration
}

// NewSimulator wraps w. stepMinutes is the step size Run uses; interval is
// the wall time per step at speed 1.
func NewSimulator(w *World, stepMinutes uint64, interval time.Duration) *Simulator {
	s := &Simulator{world: w, interval: interval}
	if stepMinutes == 0 {
		stepMinutes = 1
	}
	if s.interval <= 0 {
		s.interval = time.Second
	}
	s.stepSize.Store(stepMinutes)
	s.SetSpeed(1)
	s.latest.Store(w.Snapshot())
	return s
}

// OnStep registers a callback invoked after every step with the new
// snapshot. Callbacks run on the stepping goroutine and must not block.
func (s *Simulator) OnStep(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// Latest returns the snapshot taken after the most recent step.
func (s *Simulator) Latest() *Snapshot { return s.latest.Load() }

// Do runs fn with exclusive access to the world between steps and then
// refreshes the snapshot.
func (s *Simulator) Do(fn func(*World) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := fn(s.world)
	s.latest.Store(s.world.Snapshot())
	return err
}

// Report summarizes a SimulateFor call.
type Report struct {
	Steps     uint64     `json:"steps"`
	Minutes   uint64     `json:"minutes"`
	Events    uint64     `json:"events"`
	Start     clock.Time `json:"start"`
	End       clock.Time `json:"end"`
	Cancelled bool       `json:"cancelled"`
}

// SimulateFor steps the world by stepMinutes until duration minutes have
// passed, finishing with one shorter step when duration is not a multiple.
// Cancellation is honoured between steps only.
func (s *Simulator) SimulateFor(ctx context.Context, duration, stepMinutes uint64) (Report, error) {
	if stepMinutes == 0 {
		return Report{}, fmt.Errorf("simulate: %w: zero step size", ErrInvalid)
	}
	s.mu.Lock()
	r := Report{Start: s.world.Now()}
	seq := s.world.bus.NextSeq()
	s.mu.Unlock()

	for remaining := duration; remaining > 0; {
		if err := ctx.Err(); err != nil {
			r.Cancelled = true
			return s.finish(r, seq), err
		}
		dt := min(stepMinutes, remaining)
		if err := s.step(dt); err != nil {
			return s.finish(r, seq), err
		}
		remaining -= dt
		r.Steps++
		r.Minutes += dt
	}
	return s.finish(r, seq), nil
}

func (s *Simulator) finish(r Report, seq uint64) Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.End = s.world.Now()
	r.Events = s.world.bus.NextSeq() - seq
	return r
}

func (s *Simulator) step(dt uint64) error {
	s.mu.Lock()
	err := s.world.Step(dt)
	snap := s.world.Snapshot()
	s.latest.Store(snap)
	callbacks := s.callbacks
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(snap)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStepFailed, err)
	}
	return nil
}

// ErrStepFailed marks an error raised by the step itself rather than by a
// collaborator.
var ErrStepFailed = errors.New("engine: step failed")
