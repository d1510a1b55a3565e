package agents

import (
	"math"
	"strconv"

	"github.com/talgya/living-world/internal/content"
	"github.com/talgya/living-world/internal/events"
	"github.com/talgya/living-world/internal/world"
)

// Env is what an agent needs from the world during its update.
type Env interface {
	world.Env
	IntN(n int) int
	Place(id world.PlaceID) *world.Place
}

// Step advances the agent by dt simulated minutes.
//
// Needs decay first. A queued override then replaces the evaluation for this
// step. Otherwise a traveller keeps travelling, and a settled agent picks its
// activity by priority: sleep when exhausted, else eat when starving, else
// finish an ongoing meal or sleep, else work during its hours, else idle.
func (a *Agent) Step(dt uint64, env Env, t Tuning) {
	minutes := float64(dt)
	a.Needs.decay(minutes, a.moodTarget(env, t), t)

	if o := a.Pending; o != nil {
		a.Pending = nil
		a.apply(*o, env, t)
		return
	}

	if a.Activity == Traveling {
		a.travel(dt, env)
		return
	}

	a.recover(minutes, t)

	switch {
	case a.Needs.Energy < t.LowEnergy:
		a.Activity = Sleeping
		return
	case a.Needs.Hunger > t.HighHunger:
		a.Activity = Eating
		return
	case a.Activity == Sleeping, a.Activity == Eating:
		return
	}

	clk := env.Clock()
	if clk.IsBusinessHours() && a.Record.WorksAt(clk.Hour()) {
		a.work(env, t)
		return
	}
	a.idle(env, t)
}

func (a *Agent) moodTarget(env Env, t Tuning) float64 {
	target := a.Record.MoodBaseline
	if target == 0 {
		target = t.DefaultMood
	}
	if p := env.Place(a.LocationID); p != nil {
		target += p.Record.MoodModifier
	}
	return clamp(target)
}

// recover applies the restorative effect of sleeping or eating and ends the
// activity once the need is met.
func (a *Agent) recover(minutes float64, t Tuning) {
	switch a.Activity {
	case Sleeping:
		a.Needs.Energy = clamp(a.Needs.Energy + t.SleepRecovery*minutes)
		if a.Needs.Energy >= t.WakeEnergy {
			a.Activity = Idle
		}
	case Eating:
		a.Needs.Hunger = clamp(a.Needs.Hunger - t.EatRate*minutes)
		if a.Needs.Hunger <= t.SatedHunger {
			a.Activity = Idle
		}
	}
}

func (a *Agent) apply(o Override, env Env, t Tuning) {
	switch o.Activity {
	case Traveling:
		from := env.Place(a.LocationID)
		if from == nil {
			a.Activity = Idle
			return
		}
		c, ok := from.ConnectionTo(o.Target)
		if !ok || env.Place(c.To) == nil {
			env.Logger().Warn("override travel target unreachable", "agent", a.ID, "target", o.Target)
			a.Activity = Idle
			return
		}
		a.depart(from, c, env)
	case Working:
		a.work(env, t)
	case Socializing:
		if p := env.Place(a.LocationID); p != nil {
			a.socialize(p, env, t)
			return
		}
		a.Activity = Socializing
	default:
		a.Activity = o.Activity
	}
}

func (a *Agent) work(env Env, t Tuning) {
	a.Activity = Working
	if len(a.Record.Recipes) == 0 || env.Float64() >= t.CraftChance {
		return
	}
	if t.MaxInventory > 0 && len(a.Inventory) >= t.MaxInventory {
		return
	}
	template := a.Record.Recipes[env.IntN(len(a.Record.Recipes))]
	constraints := map[string]string{"maker": a.Record.Name}
	if p := env.Place(a.LocationID); p != nil {
		constraints["location"] = p.Record.Name
	}
	item, err := env.Factory().SpawnItem(template, constraints)
	if err != nil {
		content.LogAbsence(env.Logger(), "nothing crafted", err, "agent", a.ID, "template", template)
		return
	}
	a.Inventory = append(a.Inventory, *item)
	env.Publish(events.KindItemCrafted, uint64(a.ID), uint64(a.LocationID), map[string]string{
		"item":     item.ID,
		"template": item.Template,
		"name":     item.Name,
	})
}

func (a *Agent) idle(env Env, t Tuning) {
	a.Activity = Idle
	here := env.Place(a.LocationID)
	if here == nil {
		return
	}
	roll := env.Float64()
	switch {
	case roll < t.TravelChance:
		if c, ok := a.pickRoute(here, env); ok {
			a.depart(here, c, env)
		}
	case roll < t.TravelChance+t.SocializeChance:
		a.socialize(here, env, t)
	}
}

func (a *Agent) pickRoute(here *world.Place, env Env) (world.Connection, bool) {
	var open []world.Connection
	for _, c := range here.Connections {
		if env.Place(c.To) != nil {
			open = append(open, c)
		}
	}
	if len(open) == 0 {
		return world.Connection{}, false
	}
	return open[env.IntN(len(open))], true
}

func (a *Agent) socialize(here *world.Place, env Env, t Tuning) {
	a.Activity = Socializing
	a.Needs.Mood = clamp(a.Needs.Mood + t.SocializeMood)
	payload := map[string]string{}
	var others []world.AgentID
	for _, id := range here.Agents() {
		if id != a.ID {
			others = append(others, id)
		}
	}
	if len(others) > 0 {
		payload["with"] = strconv.FormatUint(uint64(others[env.IntN(len(others))]), 10)
	}
	env.Publish(events.KindSocialized, uint64(a.ID), uint64(here.ID), payload)
}

// depart leaves here along c. Journey time is fixed at departure from the
// distance and the local weather.
func (a *Agent) depart(here *world.Place, c world.Connection, env Env) {
	if err := world.Detach(a, here); err != nil {
		env.Logger().Warn("cannot depart", "agent", a.ID, "error", err)
		return
	}
	minutes := uint64(math.Ceil(float64(c.Distance) * here.Weather.TravelPenalty()))
	if minutes == 0 {
		minutes = 1
	}
	a.Activity = Traveling
	a.Travel = &Travel{From: here.ID, To: c.To, Remaining: minutes}
	env.Publish(events.KindTravelStarted, uint64(a.ID), uint64(here.ID), map[string]string{
		"from":    formatPlace(here.ID),
		"to":      formatPlace(c.To),
		"minutes": strconv.FormatUint(minutes, 10),
	})
}

func (a *Agent) travel(dt uint64, env Env) {
	tr := a.Travel
	if tr == nil {
		a.Activity = Idle
		return
	}
	if dt < tr.Remaining {
		tr.Remaining -= dt
		return
	}
	dest := env.Place(tr.To)
	if dest == nil {
		a.redirect(env)
		return
	}
	a.arrive(dest, tr.From, env)
}

func (a *Agent) arrive(dest *world.Place, from world.PlaceID, env Env) {
	if err := world.Attach(a, nil, dest); err != nil {
		env.Logger().Warn("cannot arrive", "agent", a.ID, "error", err)
		return
	}
	a.Travel = nil
	a.Activity = Idle
	env.Publish(events.KindMoved, uint64(a.ID), uint64(dest.ID), map[string]string{
		"from": formatPlace(from),
		"to":   formatPlace(dest.ID),
	})
}

// redirect handles a destination that vanished mid-journey: the agent heads
// for another place connected to its origin, or falls back to the origin.
func (a *Agent) redirect(env Env) {
	tr := a.Travel
	origin := env.Place(tr.From)
	if origin != nil {
		for _, c := range origin.Connections {
			if c.To == tr.To || env.Place(c.To) == nil {
				continue
			}
			lost := tr.To
			tr.To, tr.Remaining = c.To, max(c.Distance, 1)
			env.Publish(events.KindTravelRedirected, uint64(a.ID), 0, map[string]string{
				"lost": formatPlace(lost),
				"to":   formatPlace(c.To),
			})
			return
		}
		a.arrive(origin, tr.From, env)
		return
	}
	env.Logger().Warn("traveller stranded", "agent", a.ID, "from", tr.From, "to", tr.To)
	a.Travel = nil
	a.Activity = Idle
}

func formatPlace(id world.PlaceID) string { return strconv.FormatUint(uint64(id), 10) }
