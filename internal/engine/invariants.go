package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/living-world/internal/agents"
)

// CheckInvariants verifies the agent-place presence relation, travel state,
// needs bounds, and connection targets. Every violation is reported.
func (w *World) CheckInvariants() error {
	var errs []error
	for _, id := range w.AgentIDs() {
		a := w.agents[id]
		if !a.Needs.Valid() {
			errs = append(errs, fmt.Errorf("agent %d needs out of bounds: %+v", id, a.Needs))
		}
		if a.Activity == agents.Traveling {
			if a.Travel == nil {
				errs = append(errs, fmt.Errorf("agent %d traveling without a route", id))
			}
			if a.LocationID != 0 {
				errs = append(errs, fmt.Errorf("agent %d traveling while at place %d", id, a.LocationID))
			}
		}
		if a.Travel != nil && a.Activity != agents.Traveling {
			errs = append(errs, fmt.Errorf("agent %d has a route while %s", id, a.Activity))
		}
		if a.LocationID == 0 {
			continue
		}
		p, ok := w.places[a.LocationID]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("agent %d at missing place %d", id, a.LocationID))
		case !p.Has(id):
			errs = append(errs, fmt.Errorf("agent %d not in place %d's set", id, a.LocationID))
		}
	}
	for _, pid := range w.PlaceIDs() {
		p := w.places[pid]
		for _, aid := range p.Agents() {
			a, ok := w.agents[aid]
			switch {
			case !ok:
				errs = append(errs, fmt.Errorf("place %d holds missing agent %d", pid, aid))
			case a.LocationID != pid:
				errs = append(errs, fmt.Errorf("place %d holds agent %d located at %d", pid, aid, a.LocationID))
			}
		}
		for _, c := range p.Connections {
			if _, ok := w.places[c.To]; !ok {
				errs = append(errs, fmt.Errorf("place %d connects to missing place %d", pid, c.To))
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvariant, errors.Join(errs...))
}
