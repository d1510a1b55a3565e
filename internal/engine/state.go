package engine

import (
	"encoding"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/talgya/living-world/internal/agents"
	"github.com/talgya/living-world/internal/content"
	"github.com/talgya/living-world/internal/events"
	"github.com/talgya/living-world/internal/world"
)

// StateVersion is the persisted document version this build reads and writes.
const StateVersion = 1

// State is the complete persisted form of a world taken between steps.
type State struct {
	Version     int                          `json:"version"`
	Name        string                       `json:"name"`
	Seed        uint64                       `json:"seed"`
	Clock       uint64                       `json:"clock"`
	Elapsed     uint64                       `json:"elapsed"`
	Steps       uint64                       `json:"steps"`
	NextAgentID world.AgentID                `json:"next_agent_id"`
	NextPlaceID world.PlaceID                `json:"next_place_id"`
	RNG         []byte                       `json:"rng"`
	Factory     []byte                       `json:"factory,omitempty"`
	Events      EventState                   `json:"events"`
	Places      map[world.PlaceID]PlaceState `json:"places"`
	Agents      map[world.AgentID]AgentState `json:"agents"`
}

// EventState is the retained event history.
type EventState struct {
	NextSeq  uint64         `json:"next_seq"`
	Capacity int            `json:"capacity"`
	History  []events.Event `json:"history"`
}

// PlaceState is a persisted place.
type PlaceState struct {
	Record      content.LocationRecord `json:"record"`
	AgentIDs    []world.AgentID        `json:"agent_ids"`
	MarketOpen  bool                   `json:"market_open"`
	Weather     content.WeatherRecord  `json:"weather"`
	Connections []world.Connection     `json:"connections"`
	Quests      []content.QuestRecord  `json:"quests,omitempty"`
}

// AgentState is a persisted agent. Target is the travel destination.
type AgentState struct {
	Record     content.NPCRecord    `json:"record"`
	Inventory  []content.ItemRecord `json:"inventory,omitempty"`
	LocationID world.PlaceID        `json:"location_id"`
	Needs      agents.Needs         `json:"needs"`
	Activity   agents.Activity      `json:"activity"`
	Target     world.PlaceID        `json:"target,omitempty"`
	Travel     *agents.Travel       `json:"travel,omitempty"`
	Pending    *agents.Override     `json:"pending,omitempty"`
}

// Export captures the world. It must be called between steps. When the
// factory can marshal its own state, that state is included so that
// restored worlds draw the same content.
func (w *World) Export() (*State, error) {
	if n := w.bus.Pending(); n > 0 {
		return nil, fmt.Errorf("export: %d events still queued", n)
	}
	rng, err := w.pcg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("export rng: %w", err)
	}
	st := &State{
		Version:     StateVersion,
		Name:        w.name,
		Seed:        w.seed,
		Clock:       w.clock.Total(),
		Elapsed:     w.elapsed,
		Steps:       w.steps,
		NextAgentID: w.nextAgent,
		NextPlaceID: w.nextPlace,
		RNG:         rng,
		Events: EventState{
			NextSeq:  w.bus.NextSeq(),
			Capacity: w.bus.HistoryCap(),
			History:  w.bus.History(),
		},
		Places: make(map[world.PlaceID]PlaceState, len(w.places)),
		Agents: make(map[world.AgentID]AgentState, len(w.agents)),
	}
	if m, ok := content.Unguard(w.factory).(encoding.BinaryMarshaler); ok {
		if st.Factory, err = m.MarshalBinary(); err != nil {
			return nil, fmt.Errorf("export factory: %w", err)
		}
	}
	for id, p := range w.places {
		st.Places[id] = PlaceState{
			Record:      p.Record,
			AgentIDs:    p.Agents(),
			MarketOpen:  p.MarketOpen,
			Weather:     p.Weather,
			Connections: slices.Clone(p.Connections),
			Quests:      slices.Clone(p.Quests),
		}
	}
	for id, a := range w.agents {
		as := AgentState{
			Record:     a.Record,
			Inventory:  slices.Clone(a.Inventory),
			LocationID: a.LocationID,
			Needs:      a.Needs,
			Activity:   a.Activity,
		}
		if a.Travel != nil {
			t := *a.Travel
			as.Travel, as.Target = &t, t.To
		}
		if a.Pending != nil {
			o := *a.Pending
			as.Pending = &o
		}
		st.Agents[id] = as
	}
	return st, nil
}

// Restore rebuilds a world from st. The presence relation is rebuilt from
// agent locations and must agree with every place's stored agent set; any
// inconsistency rejects the whole state. opts supplies behaviour and clock
// configuration; name and seed come from the state.
func Restore(st *State, opts Options, factory content.Factory) (*World, error) {
	if err := validateState(st); err != nil {
		return nil, err
	}
	opts.Name, opts.Seed = st.Name, st.Seed
	if st.Events.Capacity > 0 {
		opts.HistoryCap = st.Events.Capacity
	}
	w, err := newWorld(opts, factory, st.Clock)
	if err != nil {
		return nil, err
	}
	if err := w.pcg.UnmarshalBinary(st.RNG); err != nil {
		return nil, fmt.Errorf("%w: rng state: %w", ErrInvariant, err)
	}
	if err := w.bus.Restore(st.Events.History, st.Events.NextSeq); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvariant, err)
	}
	w.elapsed, w.steps = st.Elapsed, st.Steps
	w.nextAgent, w.nextPlace = st.NextAgentID, st.NextPlaceID

	for _, id := range slices.Sorted(maps.Keys(st.Places)) {
		ps := st.Places[id]
		p := world.NewPlace(id, ps.Record, ps.Connections)
		p.MarketOpen = ps.MarketOpen
		p.Weather = ps.Weather
		p.Quests = slices.Clone(ps.Quests)
		w.places[id] = p
	}
	for _, id := range slices.Sorted(maps.Keys(st.Agents)) {
		as := st.Agents[id]
		a := &agents.Agent{
			ID:        id,
			Record:    as.Record,
			Inventory: slices.Clone(as.Inventory),
			Needs:     as.Needs,
			Activity:  as.Activity,
		}
		if as.Travel != nil {
			t := *as.Travel
			a.Travel = &t
		}
		if as.Pending != nil {
			o := *as.Pending
			a.Pending = &o
		}
		if as.LocationID != 0 {
			if err := world.Attach(a, nil, w.places[as.LocationID]); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvariant, err)
			}
		}
		w.agents[id] = a
	}
	if err := w.CheckInvariants(); err != nil {
		return nil, err
	}

	// Factory state goes last so a rejected state leaves the factory alone.
	if len(st.Factory) > 0 {
		if u, ok := content.Unguard(w.factory).(encoding.BinaryUnmarshaler); ok {
			if err := u.UnmarshalBinary(st.Factory); err != nil {
				return nil, fmt.Errorf("%w: factory state: %w", ErrInvariant, err)
			}
		}
	}
	w.logger.Info("world restored", "name", w.name, "time", w.clock.Now().String(),
		"agents", len(w.agents), "places", len(w.places), "events", len(st.Events.History))
	return w, nil
}

func validateState(st *State) error {
	if st == nil {
		return fmt.Errorf("%w: nil state", ErrInvariant)
	}
	var errs []error
	if st.Version != StateVersion {
		errs = append(errs, fmt.Errorf("unsupported version %d", st.Version))
	}
	if len(st.RNG) == 0 {
		errs = append(errs, errors.New("missing rng state"))
	}
	for _, id := range slices.Sorted(maps.Keys(st.Agents)) {
		as := st.Agents[id]
		if id == 0 || id >= st.NextAgentID {
			errs = append(errs, fmt.Errorf("agent id %d outside issued range", id))
		}
		if !as.Needs.Valid() {
			errs = append(errs, fmt.Errorf("agent %d needs out of bounds", id))
		}
		if as.Activity > agents.Socializing {
			errs = append(errs, fmt.Errorf("agent %d has unknown activity %d", id, as.Activity))
		}
		if as.Activity == agents.Traveling && (as.Travel == nil || as.LocationID != 0) {
			errs = append(errs, fmt.Errorf("agent %d has inconsistent travel state", id))
		}
		if as.Travel != nil {
			if as.Activity != agents.Traveling {
				errs = append(errs, fmt.Errorf("agent %d has a route but is %s", id, as.Activity))
			}
			for _, pid := range []world.PlaceID{as.Travel.From, as.Travel.To} {
				if pid == 0 || pid >= st.NextPlaceID {
					errs = append(errs, fmt.Errorf("agent %d route references unissued place %d", id, pid))
				}
			}
		}
		if p := as.Pending; p != nil && p.Activity == agents.Traveling && (p.Target == 0 || p.Target >= st.NextPlaceID) {
			errs = append(errs, fmt.Errorf("agent %d pending trip to unissued place %d", id, p.Target))
		}
		if as.Travel != nil && as.Target != 0 && as.Target != as.Travel.To {
			errs = append(errs, fmt.Errorf("agent %d target %d disagrees with route to %d", id, as.Target, as.Travel.To))
		}
		if as.LocationID == 0 {
			continue
		}
		ps, ok := st.Places[as.LocationID]
		if !ok {
			errs = append(errs, fmt.Errorf("agent %d references missing place %d", id, as.LocationID))
			continue
		}
		if !slices.Contains(ps.AgentIDs, id) {
			errs = append(errs, fmt.Errorf("agent %d missing from place %d's set", id, as.LocationID))
		}
	}
	for _, id := range slices.Sorted(maps.Keys(st.Places)) {
		ps := st.Places[id]
		if id == 0 || id >= st.NextPlaceID {
			errs = append(errs, fmt.Errorf("place id %d outside issued range", id))
		}
		seen := make(map[world.AgentID]bool, len(ps.AgentIDs))
		for _, aid := range ps.AgentIDs {
			as, ok := st.Agents[aid]
			switch {
			case !ok:
				errs = append(errs, fmt.Errorf("place %d references missing agent %d", id, aid))
			case as.LocationID != id:
				errs = append(errs, fmt.Errorf("place %d lists agent %d located at %d", id, aid, as.LocationID))
			case seen[aid]:
				errs = append(errs, fmt.Errorf("place %d lists agent %d twice", id, aid))
			}
			seen[aid] = true
		}
		for _, c := range ps.Connections {
			if _, ok := st.Places[c.To]; !ok {
				errs = append(errs, fmt.Errorf("place %d connects to missing place %d", id, c.To))
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvariant, errors.Join(errs...))
}
