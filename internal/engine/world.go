// Package engine owns the world state and drives it forward one step at a
// time. The World is the single writer; everything outside a step sees
// either a Snapshot or goes through the Simulator.
package engine

import (
	"errors"
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"

	"github.com/talgya/living-world/internal/agents"
	"github.com/talgya/living-world/internal/clock"
	"github.com/talgya/living-world/internal/content"
	"github.com/talgya/living-world/internal/events"
	"github.com/talgya/living-world/internal/world"
)

var (
	ErrUnknownAgent = errors.New("engine: unknown agent")
	ErrUnknownPlace = errors.New("engine: unknown place")
	ErrInvariant    = errors.New("engine: invariant violated")
	ErrInvalid      = errors.New("engine: invalid request")
)

// Options configures a World.
type Options struct {
	Name       string
	Seed       uint64
	Clock      clock.Config
	HistoryCap int
	FailureCap int
	Agents     agents.Tuning
	Places     world.Tuning
	// CheckInvariants verifies the presence relation after every step.
	CheckInvariants bool
	Logger          *slog.Logger
}

// DefaultOptions returns options for a small world named "Vale".
func DefaultOptions() Options {
	return Options{
		Name:            "Vale",
		Seed:            1,
		Clock:           clock.DefaultConfig(),
		HistoryCap:      events.DefaultHistoryCap,
		FailureCap:      events.DefaultFailureCap,
		Agents:          agents.DefaultTuning(),
		Places:          world.DefaultTuning(),
		CheckInvariants: true,
	}
}

// World holds the clock, the event bus, the content factory, and every agent
// and place.
type World struct {
	name string
	seed uint64
	opts Options

	clock   *clock.Clock
	bus     *events.Bus
	factory content.Factory
	logger  *slog.Logger

	agents map[world.AgentID]*agents.Agent
	places map[world.PlaceID]*world.Place

	elapsed   uint64
	steps     uint64
	nextAgent world.AgentID
	nextPlace world.PlaceID

	pcg *rand.PCG
	rng *rand.Rand

	day dayStats
}

// New creates an empty world at minute zero.
func New(opts Options, factory content.Factory) (*World, error) {
	return newWorld(opts, factory, 0)
}

func newWorld(opts Options, factory content.Factory, total uint64) (*World, error) {
	if factory == nil {
		return nil, errors.New("engine: nil content factory")
	}
	if err := opts.Clock.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Agents.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := clock.New(total, opts.Clock)
	pcg := rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)
	return &World{
		name:      opts.Name,
		seed:      opts.Seed,
		opts:      opts,
		clock:     clk,
		bus:       events.NewBus(clk, opts.HistoryCap, opts.FailureCap, logger),
		factory:   content.Guard(factory),
		logger:    logger,
		agents:    make(map[world.AgentID]*agents.Agent),
		places:    make(map[world.PlaceID]*world.Place),
		nextAgent: 1,
		nextPlace: 1,
		pcg:       pcg,
		rng:       rand.New(pcg),
		day:       newDayStats(),
	}, nil
}

func (w *World) Name() string         { return w.name }
func (w *World) Seed() uint64         { return w.seed }
func (w *World) Options() Options     { return w.opts }
func (w *World) Elapsed() uint64      { return w.elapsed }
func (w *World) Steps() uint64        { return w.steps }
func (w *World) Bus() *events.Bus     { return w.bus }
func (w *World) Now() clock.Time      { return w.clock.Now() }
func (w *World) AgentCount() int      { return len(w.agents) }
func (w *World) PlaceCount() int      { return len(w.places) }
func (w *World) Logger() *slog.Logger { return w.logger }

// Subscribe registers an event handler on the world's bus.
func (w *World) Subscribe(kind events.Kind, h events.Handler) func() {
	return w.bus.Subscribe(kind, h)
}

// AgentIDs returns every agent id in ascending order.
func (w *World) AgentIDs() []world.AgentID { return slices.Sorted(maps.Keys(w.agents)) }

// PlaceIDs returns every place id in ascending order.
func (w *World) PlaceIDs() []world.PlaceID { return slices.Sorted(maps.Keys(w.places)) }

// emit publishes outside a step and dispatches at once, so the queue is
// empty whenever no step is running.
func (w *World) emit(kind events.Kind, source, location uint64, payload map[string]string) {
	w.bus.Publish(kind, source, location, payload)
	w.day.observe(w.bus.Drain())
}

// env is the view of the world handed to places and agents during a step.
type env struct{ w *World }

var _ agents.Env = env{}

func (e env) Clock() *clock.Clock                 { return e.w.clock }
func (e env) Float64() float64                    { return e.w.rng.Float64() }
func (e env) IntN(n int) int                      { return e.w.rng.IntN(n) }
func (e env) Factory() content.Factory            { return e.w.factory }
func (e env) Logger() *slog.Logger                { return e.w.logger }
func (e env) Place(id world.PlaceID) *world.Place { return e.w.places[id] }
func (e env) Publish(kind events.Kind, source, location uint64, payload map[string]string) {
	e.w.bus.Publish(kind, source, location, payload)
}
