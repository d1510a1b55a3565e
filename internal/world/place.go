// Package world provides identifiers, places, and the presence bookkeeping
// that ties agents to the place they are standing in.
package world

import (
	"fmt"
	"slices"

	"github.com/talgya/living-world/internal/content"
)

// AgentID identifies an agent. Zero means none.
type AgentID uint64

// PlaceID identifies a place. Zero means none.
type PlaceID uint64

// Connection links a place to a neighbour. Distance is the journey length in
// simulated minutes.
type Connection struct {
	To       PlaceID `json:"to"`
	Distance uint64  `json:"distance"`
}

// Place is a location with presence tracking and periodic environmental
// state. Its agent set must only change through Attach and Detach.
type Place struct {
	ID          PlaceID                `json:"id"`
	Record      content.LocationRecord `json:"record"`
	MarketOpen  bool                   `json:"market_open"`
	Weather     content.WeatherRecord  `json:"weather"`
	Connections []Connection           `json:"connections"`
	Quests      []content.QuestRecord  `json:"quests,omitempty"`

	present map[AgentID]struct{}
}

// NewPlace creates an empty place.
func NewPlace(id PlaceID, rec content.LocationRecord, conns []Connection) *Place {
	return &Place{
		ID:          id,
		Record:      rec,
		Connections: slices.Clone(conns),
		present:     make(map[AgentID]struct{}),
	}
}

// Has reports whether the agent is present.
func (p *Place) Has(id AgentID) bool {
	_, ok := p.present[id]
	return ok
}

// Population returns the number of agents present.
func (p *Place) Population() int { return len(p.present) }

// Agents returns the ids of present agents in ascending order.
func (p *Place) Agents() []AgentID {
	out := make([]AgentID, 0, len(p.present))
	for id := range p.present {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// ConnectionTo returns the connection to the given place.
func (p *Place) ConnectionTo(to PlaceID) (Connection, bool) {
	for _, c := range p.Connections {
		if c.To == to {
			return c, true
		}
	}
	return Connection{}, false
}

// Connect adds or updates a connection.
func (p *Place) Connect(to PlaceID, distance uint64) {
	for i := range p.Connections {
		if p.Connections[i].To == to {
			p.Connections[i].Distance = distance
			return
		}
	}
	p.Connections = append(p.Connections, Connection{To: to, Distance: distance})
}

// Disconnect removes any connection to the given place.
func (p *Place) Disconnect(to PlaceID) {
	p.Connections = slices.DeleteFunc(p.Connections, func(c Connection) bool { return c.To == to })
}

// Occupant is anything that can stand in a place.
type Occupant interface {
	OccupantID() AgentID
	Location() PlaceID
	SetLocation(PlaceID)
}

// Attach moves o into p, leaving from (which may be nil) first. Both sides
// of the presence relation change together.
func Attach(o Occupant, from, p *Place) error {
	if p == nil {
		return fmt.Errorf("attach agent %d: nil place", o.OccupantID())
	}
	if from != nil {
		if from.ID != o.Location() {
			return fmt.Errorf("attach agent %d: not at place %d", o.OccupantID(), from.ID)
		}
		delete(from.present, o.OccupantID())
	} else if o.Location() != 0 {
		return fmt.Errorf("attach agent %d: still at place %d", o.OccupantID(), o.Location())
	}
	p.present[o.OccupantID()] = struct{}{}
	o.SetLocation(p.ID)
	return nil
}

// Detach removes o from p and clears its location.
func Detach(o Occupant, p *Place) error {
	if p == nil || o.Location() != p.ID {
		return fmt.Errorf("detach agent %d: not at that place", o.OccupantID())
	}
	delete(p.present, o.OccupantID())
	o.SetLocation(0)
	return nil
}
