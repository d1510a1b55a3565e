package engine

import (
	"fmt"
	"slices"

	"github.com/talgya/living-world/internal/agents"
	"github.com/talgya/living-world/internal/clock"
	"github.com/talgya/living-world/internal/content"
	"github.com/talgya/living-world/internal/events"
	"github.com/talgya/living-world/internal/world"
)

// AgentView is a detached copy of an agent.
type AgentView struct {
	ID          world.AgentID        `json:"id"`
	Name        string               `json:"name"`
	Professions []string             `json:"professions"`
	Location    world.PlaceID        `json:"location_id"`
	Needs       agents.Needs         `json:"needs"`
	Activity    agents.Activity      `json:"activity"`
	Travel      *agents.Travel       `json:"travel,omitempty"`
	Inventory   []content.ItemRecord `json:"inventory,omitempty"`
	Record      content.NPCRecord    `json:"record"`
}

// PlaceView is a detached copy of a place.
type PlaceView struct {
	ID          world.PlaceID          `json:"id"`
	Name        string                 `json:"name"`
	Record      content.LocationRecord `json:"record"`
	MarketOpen  bool                   `json:"market_open"`
	Weather     content.WeatherRecord  `json:"weather"`
	Connections []world.Connection     `json:"connections"`
	Quests      []content.QuestRecord  `json:"quests,omitempty"`
	Agents      []world.AgentID        `json:"agent_ids"`
}

func viewAgent(a *agents.Agent) AgentView {
	v := AgentView{
		ID:          a.ID,
		Name:        a.Record.Name,
		Professions: slices.Clone(a.Record.Professions),
		Location:    a.LocationID,
		Needs:       a.Needs,
		Activity:    a.Activity,
		Inventory:   slices.Clone(a.Inventory),
		Record:      a.Record,
	}
	v.Record.Professions = v.Professions
	v.Record.Recipes = slices.Clone(a.Record.Recipes)
	if a.Travel != nil {
		t := *a.Travel
		v.Travel = &t
	}
	return v
}

func viewPlace(p *world.Place) PlaceView {
	return PlaceView{
		ID:          p.ID,
		Name:        p.Record.Name,
		Record:      p.Record,
		MarketOpen:  p.MarketOpen,
		Weather:     p.Weather,
		Connections: slices.Clone(p.Connections),
		Quests:      slices.Clone(p.Quests),
		Agents:      p.Agents(),
	}
}

// Agent returns a copy of the agent.
func (w *World) Agent(id world.AgentID) (AgentView, error) {
	a, ok := w.agents[id]
	if !ok {
		return AgentView{}, fmt.Errorf("agent %d: %w", id, ErrUnknownAgent)
	}
	return viewAgent(a), nil
}

// Place returns a copy of the place.
func (w *World) Place(id world.PlaceID) (PlaceView, error) {
	p, ok := w.places[id]
	if !ok {
		return PlaceView{}, fmt.Errorf("place %d: %w", id, ErrUnknownPlace)
	}
	return viewPlace(p), nil
}

// AgentsAt returns copies of the agents present at a place, by id.
func (w *World) AgentsAt(id world.PlaceID) ([]AgentView, error) {
	p, ok := w.places[id]
	if !ok {
		return nil, fmt.Errorf("place %d: %w", id, ErrUnknownPlace)
	}
	ids := p.Agents()
	out := make([]AgentView, 0, len(ids))
	for _, aid := range ids {
		out = append(out, viewAgent(w.agents[aid]))
	}
	return out, nil
}

// RecentEvents returns up to n of the most recent dispatched events, oldest
// first.
func (w *World) RecentEvents(n int) []events.Event { return w.bus.Recent(n) }

// ClockSummary describes the current simulated time.
type ClockSummary struct {
	clock.Time
	Night   bool   `json:"night"`
	Elapsed uint64 `json:"elapsed"`
	Steps   uint64 `json:"steps"`
	Label   string `json:"label"`
}

// Clock returns the current clock summary.
func (w *World) Clock() ClockSummary {
	return ClockSummary{
		Time:    w.clock.Now(),
		Night:   w.clock.IsNight(),
		Elapsed: w.elapsed,
		Steps:   w.steps,
		Label:   w.clock.Now().String(),
	}
}

// Snapshot is an immutable copy of the world taken between steps.
type Snapshot struct {
	Name     string         `json:"name"`
	Clock    ClockSummary   `json:"clock"`
	Agents   []AgentView    `json:"agents"`
	Places   []PlaceView    `json:"places"`
	Recent   []events.Event `json:"recent_events"`
	Failures uint64         `json:"subscriber_failures"`

	agentIdx map[world.AgentID]int
	placeIdx map[world.PlaceID]int
}

// SnapshotEvents is how many recent events a snapshot carries.
const SnapshotEvents = 50

// Snapshot copies the world.
func (w *World) Snapshot() *Snapshot {
	s := &Snapshot{
		Name:     w.name,
		Clock:    w.Clock(),
		Agents:   make([]AgentView, 0, len(w.agents)),
		Places:   make([]PlaceView, 0, len(w.places)),
		Recent:   w.bus.Recent(SnapshotEvents),
		Failures: w.bus.FailureCount(),
		agentIdx: make(map[world.AgentID]int, len(w.agents)),
		placeIdx: make(map[world.PlaceID]int, len(w.places)),
	}
	for _, id := range w.AgentIDs() {
		s.agentIdx[id] = len(s.Agents)
		s.Agents = append(s.Agents, viewAgent(w.agents[id]))
	}
	for _, id := range w.PlaceIDs() {
		s.placeIdx[id] = len(s.Places)
		s.Places = append(s.Places, viewPlace(w.places[id]))
	}
	return s
}

// Agent looks up an agent in the snapshot.
func (s *Snapshot) Agent(id world.AgentID) (AgentView, bool) {
	i, ok := s.agentIdx[id]
	if !ok {
		return AgentView{}, false
	}
	return s.Agents[i], true
}

// Place looks up a place in the snapshot.
func (s *Snapshot) Place(id world.PlaceID) (PlaceView, bool) {
	i, ok := s.placeIdx[id]
	if !ok {
		return PlaceView{}, false
	}
	return s.Places[i], true
}

// AgentsAt lists the agents present at a place in the snapshot.
func (s *Snapshot) AgentsAt(id world.PlaceID) []AgentView {
	p, ok := s.Place(id)
	if !ok {
		return nil
	}
	out := make([]AgentView, 0, len(p.Agents))
	for _, aid := range p.Agents {
		if a, ok := s.Agent(aid); ok {
			out = append(out, a)
		}
	}
	return out
}
