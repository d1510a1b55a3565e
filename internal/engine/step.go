package engine

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/talgya/living-world/internal/agents"
	"github.com/talgya/living-world/internal/clock"
	"github.com/talgya/living-world/internal/events"
)

// Step advances the world by minutes. The clock moves first, then every
// place updates, then every agent, each in ascending id order. Events
// published along the way are dispatched once at the end.
func (w *World) Step(minutes uint64) error {
	crossed := w.clock.Advance(minutes)
	w.publishCalendar(crossed)

	e := env{w}
	for _, id := range w.PlaceIDs() {
		w.places[id].Step(crossed, e, w.opts.Places)
	}
	for _, id := range w.AgentIDs() {
		w.agents[id].Step(minutes, e, w.opts.Agents)
	}

	drained := w.bus.Drain()
	w.elapsed += minutes
	w.steps++
	w.day.observe(drained)

	if crossed.Has(clock.DayChanged) {
		w.reportDay()
	}
	if w.opts.CheckInvariants {
		if err := w.CheckInvariants(); err != nil {
			return fmt.Errorf("step %d: %w", w.steps, err)
		}
	}
	return nil
}

func (w *World) publishCalendar(crossed clock.Crossing) {
	if !crossed.Any() {
		return
	}
	now := w.clock.Now()
	if crossed.Has(clock.HourChanged) {
		w.bus.Publish(events.KindHourChanged, 0, 0, map[string]string{"hour": strconv.Itoa(now.Hour)})
	}
	if crossed.Has(clock.DayChanged) {
		w.bus.Publish(events.KindDayChanged, 0, 0, map[string]string{
			"day":   strconv.Itoa(now.DayOfYear),
			"month": strconv.Itoa(now.Month),
		})
	}
	if crossed.Has(clock.SeasonChanged) {
		w.bus.Publish(events.KindSeasonChanged, 0, 0, map[string]string{"season": now.Season.String()})
	}
	if crossed.Has(clock.YearChanged) {
		w.bus.Publish(events.KindYearChanged, 0, 0, map[string]string{"year": strconv.Itoa(now.Year)})
	}
}

// dayStats counts drained events between daily reports.
type dayStats struct {
	events map[events.Kind]int
	total  int
}

func newDayStats() dayStats { return dayStats{events: make(map[events.Kind]int)} }

func (d *dayStats) observe(drained []events.Event) {
	for _, e := range drained {
		d.events[e.Kind]++
	}
	d.total += len(drained)
}

func (w *World) reportDay() {
	activity := make(map[agents.Activity]int)
	var energy, hunger, mood float64
	for _, a := range w.agents {
		activity[a.Activity]++
		energy += a.Needs.Energy
		hunger += a.Needs.Hunger
		mood += a.Needs.Mood
	}
	n := float64(max(len(w.agents), 1))

	args := []any{
		"time", w.clock.Now().String(),
		"agents", humanize.Comma(int64(len(w.agents))),
		"places", humanize.Comma(int64(len(w.places))),
		"avg_energy", fmt.Sprintf("%.1f", energy/n),
		"avg_hunger", fmt.Sprintf("%.1f", hunger/n),
		"avg_mood", fmt.Sprintf("%.1f", mood/n),
		"events", humanize.Comma(int64(w.day.total)),
	}
	for _, act := range slices.Sorted(maps.Keys(activity)) {
		args = append(args, "activity_"+act.String(), activity[act])
	}
	for _, k := range []events.Kind{events.KindMoved, events.KindItemCrafted, events.KindSocialized, events.KindWeatherChanged, events.KindQuestPosted} {
		args = append(args, "events_"+string(k), w.day.events[k])
	}
	if f := w.bus.FailureCount(); f > 0 {
		args = append(args, "subscriber_failures", humanize.Comma(int64(f)))
	}
	w.logger.Info("daily report", args...)
	w.day = newDayStats()
}
