// Package events provides the in-process publish/subscribe bus that carries
// everything notable that happens in the world. Published events queue until
// the end of the step, are dispatched in publish order, and then move into a
// bounded history.
package events

import (
	"maps"

	"github.com/talgya/living-world/internal/clock"
)

// Kind tags an event.
type Kind string

const (
	KindMoved            Kind = "moved"
	KindItemCrafted      Kind = "item_crafted"
	KindSocialized       Kind = "socialized"
	KindWeatherChanged   Kind = "weather_changed"
	KindQuestPosted      Kind = "quest_posted"
	KindHourChanged      Kind = "hour_changed"
	KindDayChanged       Kind = "day_changed"
	KindSeasonChanged    Kind = "season_changed"
	KindYearChanged      Kind = "year_changed"
	KindAgentSpawned     Kind = "agent_spawned"
	KindAgentRemoved     Kind = "agent_removed"
	KindPlaceSpawned     Kind = "place_spawned"
	KindPlaceRemoved     Kind = "place_removed"
	KindAgentOverridden  Kind = "agent_overridden"
	KindTravelStarted    Kind = "travel_started"
	KindTravelRedirected Kind = "travel_redirected"

	// KindAny subscribes to every kind.
	KindAny Kind = "*"
)

// Event is a notable occurrence. Source and Location are entity ids, 0 when
// absent.
type Event struct {
	Seq      uint64            `json:"seq"`
	Kind     Kind              `json:"kind"`
	Source   uint64            `json:"source,omitempty"`
	Location uint64            `json:"location,omitempty"`
	Payload  map[string]string `json:"payload,omitempty"`
	Time     clock.Time        `json:"time"`
}

// clone copies e with its own payload map.
func (e Event) clone() Event {
	if e.Payload != nil {
		e.Payload = maps.Clone(e.Payload)
	}
	return e
}

func cloneAll(evs []Event) []Event {
	for i := range evs {
		evs[i] = evs[i].clone()
	}
	return evs
}

// Handler receives dispatched events. A returned error is recorded as a
// dispatch failure.
type Handler func(Event) error

// Failure records a handler that errored or panicked during dispatch.
type Failure struct {
	Seq        uint64 `json:"seq"`
	Kind       Kind   `json:"kind"`
	Subscriber int    `json:"subscriber"`
	Err        string `json:"error"`
}
