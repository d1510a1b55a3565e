package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/talgya/living-world/internal/agents"
	"github.com/talgya/living-world/internal/content"
	"github.com/talgya/living-world/internal/events"
	"github.com/talgya/living-world/internal/world"
)

// Administrative mutations. Each validates before touching state, so a
// rejected request leaves the world exactly as it was.

// SpawnPlace asks the factory for a location and adds it with no
// connections. The place starts with a fresh forecast when one is available.
func (w *World) SpawnPlace(template, biome string) (world.PlaceID, error) {
	rec, err := w.factory.SpawnLocation(template, biome)
	if err != nil {
		return 0, fmt.Errorf("spawn place %q: %w", template, err)
	}
	id := w.nextPlace
	p := world.NewPlace(id, *rec, nil)
	p.Weather = content.WeatherRecord{Kind: content.WeatherClear}
	if wr, err := w.factory.SpawnWeather(w.clock.Now().Season); err == nil {
		p.Weather = *wr
	} else {
		content.LogAbsence(w.logger, "no initial weather", err, "place", id)
	}
	p.MarketOpen = p.Record.HasHours && w.clock.IsBusinessHours()
	w.places[id] = p
	w.nextPlace++

	w.emit(events.KindPlaceSpawned, 0, uint64(id), map[string]string{
		"name":     p.Record.Name,
		"template": p.Record.Template,
	})
	w.logger.Info("place spawned", "place", id, "name", p.Record.Name, "template", p.Record.Template)
	return id, nil
}

// SpawnAgent asks the factory for an NPC and places it at the given place.
func (w *World) SpawnAgent(professions []string, at world.PlaceID) (world.AgentID, error) {
	p, ok := w.places[at]
	if !ok {
		return 0, fmt.Errorf("spawn agent at %d: %w", at, ErrUnknownPlace)
	}
	rec, err := w.factory.SpawnNPC(professions, p.Record.Name)
	if err != nil {
		return 0, fmt.Errorf("spawn agent: %w", err)
	}
	id := w.nextAgent
	a := agents.New(id, *rec)
	if err := world.Attach(a, nil, p); err != nil {
		return 0, err
	}
	w.agents[id] = a
	w.nextAgent++

	w.emit(events.KindAgentSpawned, uint64(id), uint64(at), map[string]string{
		"name":        a.Record.Name,
		"professions": strings.Join(a.Record.Professions, ","),
	})
	w.logger.Debug("agent spawned", "agent", id, "name", a.Record.Name, "place", at)
	return id, nil
}

// Connect links two places in both directions.
func (w *World) Connect(a, b world.PlaceID, distance uint64) error {
	pa, ok := w.places[a]
	if !ok {
		return fmt.Errorf("connect %d: %w", a, ErrUnknownPlace)
	}
	pb, ok := w.places[b]
	if !ok {
		return fmt.Errorf("connect %d: %w", b, ErrUnknownPlace)
	}
	if a == b {
		return fmt.Errorf("connect %d to itself: %w", a, ErrInvalid)
	}
	if distance == 0 {
		return fmt.Errorf("connect %d-%d: zero distance: %w", a, b, ErrInvalid)
	}
	pa.Connect(b, distance)
	pb.Connect(a, distance)
	return nil
}

// RemoveAgent deletes an agent, detaching it from its place.
func (w *World) RemoveAgent(id world.AgentID) error {
	a, ok := w.agents[id]
	if !ok {
		return fmt.Errorf("remove agent %d: %w", id, ErrUnknownAgent)
	}
	loc := a.LocationID
	if p := w.places[loc]; p != nil {
		if err := world.Detach(a, p); err != nil {
			return err
		}
	}
	delete(w.agents, id)
	w.emit(events.KindAgentRemoved, uint64(id), uint64(loc), map[string]string{"name": a.Record.Name})
	w.logger.Info("agent removed", "agent", id, "name", a.Record.Name)
	return nil
}

// RemovePlace deletes a place. Agents present move to the connected place
// with the lowest id, or are left without a location when none remains.
// Connections into the place are pruned everywhere.
func (w *World) RemovePlace(id world.PlaceID) error {
	p, ok := w.places[id]
	if !ok {
		return fmt.Errorf("remove place %d: %w", id, ErrUnknownPlace)
	}
	var refuge *world.Place
	for _, c := range p.Connections {
		if c.To == id {
			continue
		}
		if q, ok := w.places[c.To]; ok && (refuge == nil || q.ID < refuge.ID) {
			refuge = q
		}
	}

	present := p.Agents()
	for _, aid := range present {
		a := w.agents[aid]
		var err error
		if refuge != nil {
			err = world.Attach(a, p, refuge)
		} else {
			err = world.Detach(a, p)
		}
		if err != nil {
			return err
		}
	}
	for _, q := range w.places {
		q.Disconnect(id)
	}
	delete(w.places, id)

	payload := map[string]string{"name": p.Record.Name}
	if refuge != nil {
		payload["refuge"] = strconv.FormatUint(uint64(refuge.ID), 10)
	}
	w.emit(events.KindPlaceRemoved, 0, uint64(id), payload)
	w.logger.Info("place removed", "place", id, "name", p.Record.Name, "relocated", len(present))
	return nil
}

// Force is an administrative override. Non-nil needs replace the agent's
// gauges at once; a non-nil activity replaces the next step's evaluation.
// Target names the destination when the activity is Traveling.
type Force struct {
	Energy   *float64         `json:"energy,omitempty"`
	Hunger   *float64         `json:"hunger,omitempty"`
	Mood     *float64         `json:"mood,omitempty"`
	Activity *agents.Activity `json:"activity,omitempty"`
	Target   world.PlaceID    `json:"target,omitempty"`
}

// ForceAgent applies an override to an agent.
func (w *World) ForceAgent(id world.AgentID, f Force) error {
	a, ok := w.agents[id]
	if !ok {
		return fmt.Errorf("force agent %d: %w", id, ErrUnknownAgent)
	}
	if f.Activity != nil {
		if err := w.checkForce(a, *f.Activity, f.Target); err != nil {
			return fmt.Errorf("force agent %d: %w", id, err)
		}
	}

	payload := map[string]string{}
	n := a.Needs
	if f.Energy != nil {
		n.Energy = *f.Energy
		payload["energy"] = strconv.FormatFloat(*f.Energy, 'f', -1, 64)
	}
	if f.Hunger != nil {
		n.Hunger = *f.Hunger
		payload["hunger"] = strconv.FormatFloat(*f.Hunger, 'f', -1, 64)
	}
	if f.Mood != nil {
		n.Mood = *f.Mood
		payload["mood"] = strconv.FormatFloat(*f.Mood, 'f', -1, 64)
	}
	n.Clamp()
	a.Needs = n
	if f.Activity != nil {
		a.Pending = &agents.Override{Activity: *f.Activity, Target: f.Target}
		payload["activity"] = f.Activity.String()
		if f.Target != 0 {
			payload["target"] = strconv.FormatUint(uint64(f.Target), 10)
		}
	}

	w.emit(events.KindAgentOverridden, uint64(id), uint64(a.LocationID), payload)
	w.logger.Info("agent overridden", "agent", id, "payload", payload)
	return nil
}

func (w *World) checkForce(a *agents.Agent, act agents.Activity, target world.PlaceID) error {
	if act > agents.Socializing {
		return fmt.Errorf("%w: unknown activity %d", ErrInvalid, act)
	}
	if a.IsTraveling() {
		return fmt.Errorf("%w: agent is traveling", ErrInvalid)
	}
	if act != agents.Traveling {
		return nil
	}
	here, ok := w.places[a.LocationID]
	if !ok {
		return fmt.Errorf("%w: agent has no location to leave from", ErrInvalid)
	}
	if _, ok := here.ConnectionTo(target); !ok {
		return fmt.Errorf("%w: place %d is not connected to %d", ErrInvalid, target, here.ID)
	}
	if _, ok := w.places[target]; !ok {
		return fmt.Errorf("travel target %d: %w", target, ErrUnknownPlace)
	}
	return nil
}

