// Package agents provides the agent data model and its needs-driven
// behaviour state machine.
package agents

import (
	"fmt"

	"github.com/talgya/living-world/internal/content"
	"github.com/talgya/living-world/internal/world"
)

// Activity is what an agent is doing.
type Activity uint8

const (
	Idle Activity = iota
	Working
	Eating
	Sleeping
	Traveling
	Socializing
)

var activityNames = [...]string{"idle", "working", "eating", "sleeping", "traveling", "socializing"}

func (a Activity) String() string {
	if int(a) < len(activityNames) {
		return activityNames[a]
	}
	return fmt.Sprintf("activity(%d)", uint8(a))
}

// ParseActivity maps a name back to its Activity.
func ParseActivity(s string) (Activity, error) {
	for i, n := range activityNames {
		if n == s {
			return Activity(i), nil
		}
	}
	return Idle, fmt.Errorf("unknown activity %q", s)
}

func (a Activity) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Activity) UnmarshalText(b []byte) error {
	v, err := ParseActivity(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Travel is an in-progress journey. Remaining counts simulated minutes left.
type Travel struct {
	From      world.PlaceID `json:"from"`
	To        world.PlaceID `json:"to"`
	Remaining uint64        `json:"remaining"`
}

// Override is an administrator-queued activity that replaces the priority
// evaluation for one step. Target is only used with Traveling.
type Override struct {
	Activity Activity      `json:"activity"`
	Target   world.PlaceID `json:"target,omitempty"`
}

// Agent is a simulated person. LocationID is zero while traveling or when
// the agent has nowhere to stand.
type Agent struct {
	ID         world.AgentID        `json:"id"`
	Record     content.NPCRecord    `json:"record"`
	Inventory  []content.ItemRecord `json:"inventory,omitempty"`
	LocationID world.PlaceID        `json:"location_id"`
	Needs      Needs                `json:"needs"`
	Activity   Activity             `json:"activity"`
	Travel     *Travel              `json:"travel,omitempty"`
	Pending    *Override            `json:"pending,omitempty"`
}

// New creates an idle, rested agent from an NPC record. The record's
// starting inventory moves onto the agent.
func New(id world.AgentID, rec content.NPCRecord) *Agent {
	inv := rec.Inventory
	rec.Inventory = nil
	return &Agent{
		ID:        id,
		Record:    rec,
		Inventory: inv,
		Needs:     Needs{Energy: MaxNeed, Hunger: 0, Mood: rec.MoodBaseline},
	}
}

func (a *Agent) OccupantID() world.AgentID    { return a.ID }
func (a *Agent) Location() world.PlaceID      { return a.LocationID }
func (a *Agent) SetLocation(id world.PlaceID) { a.LocationID = id }
func (a *Agent) Name() string                 { return a.Record.Name }
func (a *Agent) IsTraveling() bool            { return a.Activity == Traveling }

var _ world.Occupant = (*Agent)(nil)
