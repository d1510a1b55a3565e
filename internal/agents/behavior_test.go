package agents

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/living-world/internal/clock"
	"github.com/talgya/living-world/internal/content"
	"github.com/talgya/living-world/internal/content/contenttest"
	"github.com/talgya/living-world/internal/events"
	"github.com/talgya/living-world/internal/world"
)

type testEnv struct {
	clk     *clock.Clock
	bus     *events.Bus
	factory *contenttest.Factory
	guarded content.Factory
	places  map[world.PlaceID]*world.Place
	roll    float64
}

func newEnv(hour int) *testEnv {
	clk := clock.New(uint64(hour*clock.MinutesPerHour), clock.DefaultConfig())
	f := &contenttest.Factory{}
	return &testEnv{
		clk:     clk,
		bus:     events.NewBus(clk, 100, 0, nil),
		factory: f,
		guarded: content.Guard(f),
		places:  make(map[world.PlaceID]*world.Place),
		roll:    0.99,
	}
}

func (e *testEnv) Clock() *clock.Clock                 { return e.clk }
func (e *testEnv) Float64() float64                    { return e.roll }
func (e *testEnv) IntN(n int) int                      { return 0 }
func (e *testEnv) Factory() content.Factory            { return e.guarded }
func (e *testEnv) Logger() *slog.Logger                { return slog.Default() }
func (e *testEnv) Place(id world.PlaceID) *world.Place { return e.places[id] }
func (e *testEnv) Publish(kind events.Kind, source, location uint64, payload map[string]string) {
	e.bus.Publish(kind, source, location, payload)
}

func (e *testEnv) addPlace(id world.PlaceID, name string, conns ...world.Connection) *world.Place {
	p := world.NewPlace(id, content.LocationRecord{Name: name}, conns)
	e.places[id] = p
	return p
}

func smith() content.NPCRecord {
	return content.NPCRecord{
		Name:         "Edwin",
		Professions:  []string{"blacksmith"},
		WorkStart:    9,
		WorkEnd:      17,
		Recipes:      []string{"dagger"},
		MoodBaseline: 60,
	}
}

func placed(t *testing.T, env *testEnv, rec content.NPCRecord, at world.PlaceID) *Agent {
	t.Helper()
	a := New(1, rec)
	require.NoError(t, world.Attach(a, nil, env.places[at]))
	return a
}

func TestPriorityOrder(t *testing.T) {
	tests := []struct {
		name   string
		hour   int
		needs  Needs
		before Activity
		want   Activity
	}{
		{"exhaustion beats hunger and work", 10, Needs{Energy: 5, Hunger: 95, Mood: 50}, Working, Sleeping},
		{"hunger beats work", 10, Needs{Energy: 60, Hunger: 95, Mood: 50}, Working, Eating},
		{"works in hours", 10, Needs{Energy: 60, Hunger: 10, Mood: 50}, Idle, Working},
		{"idle out of hours", 20, Needs{Energy: 60, Hunger: 10, Mood: 50}, Working, Idle},
		{"keeps sleeping until rested", 10, Needs{Energy: 50, Hunger: 10, Mood: 50}, Sleeping, Sleeping},
		{"keeps eating until sated", 10, Needs{Energy: 60, Hunger: 50, Mood: 50}, Eating, Eating},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(tt.hour)
			env.addPlace(1, "Smithy")
			a := placed(t, env, smith(), 1)
			a.Needs, a.Activity = tt.needs, tt.before
			a.Step(1, env, DefaultTuning())
			assert.Equal(t, tt.want, a.Activity)
		})
	}
}

func TestSleepAndMealEnd(t *testing.T) {
	env := newEnv(20)
	env.addPlace(1, "Home")
	tun := DefaultTuning()
	a := placed(t, env, smith(), 1)

	a.Needs = Needs{Energy: 85, Hunger: 10, Mood: 50}
	a.Activity = Sleeping
	a.Step(60, env, tun)
	assert.Equal(t, Idle, a.Activity)
	assert.GreaterOrEqual(t, a.Needs.Energy, tun.WakeEnergy)

	a.Needs = Needs{Energy: 80, Hunger: 40, Mood: 50}
	a.Activity = Eating
	a.Step(30, env, tun)
	assert.Equal(t, Idle, a.Activity)
	assert.LessOrEqual(t, a.Needs.Hunger, tun.SatedHunger)
}

func TestNeedsStayBoundedUnderHugeSteps(t *testing.T) {
	env := newEnv(10)
	env.addPlace(1, "Smithy")
	a := placed(t, env, smith(), 1)
	for _, dt := range []uint64{1 << 20, 1 << 40, 1, 1 << 62} {
		a.Step(dt, env, DefaultTuning())
		assert.True(t, a.Needs.Valid(), "needs out of bounds after dt=%d: %+v", dt, a.Needs)
	}
}

func TestMoodDriftsTowardBaseline(t *testing.T) {
	env := newEnv(20)
	env.addPlace(1, "Home").Record.MoodModifier = 10
	a := placed(t, env, smith(), 1)
	a.Needs.Mood = 0
	a.Step(10000, env, DefaultTuning())
	assert.InDelta(t, 70, a.Needs.Mood, 0.001)
}

func TestCrafting(t *testing.T) {
	env := newEnv(10)
	env.addPlace(1, "Smithy")
	env.roll = 0
	tun := DefaultTuning()
	a := placed(t, env, smith(), 1)

	a.Step(1, env, tun)
	require.Len(t, a.Inventory, 1)
	assert.Equal(t, "dagger", a.Inventory[0].Template)

	drained := env.bus.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, events.KindItemCrafted, drained[0].Kind)
	assert.Equal(t, uint64(1), drained[0].Source)
	assert.Equal(t, uint64(1), drained[0].Location)

	tun.MaxInventory = 1
	a.Step(1, env, tun)
	assert.Len(t, a.Inventory, 1, "full inventory skips crafting")
}

func TestCraftingSkippedWithoutRecipesOrResult(t *testing.T) {
	env := newEnv(10)
	env.addPlace(1, "Post")
	env.roll = 0
	rec := smith()
	rec.Recipes = nil
	a := placed(t, env, rec, 1)
	a.Step(1, env, DefaultTuning())
	assert.Equal(t, Working, a.Activity)
	assert.Empty(t, a.Inventory)
	assert.Equal(t, 0, env.factory.Calls["item"])

	env.factory.FailItems = true
	b := New(2, smith())
	require.NoError(t, world.Attach(b, nil, env.places[1]))
	b.Step(1, env, DefaultTuning())
	assert.Equal(t, Working, b.Activity)
	assert.Empty(t, b.Inventory)
	assert.Zero(t, env.bus.Pending())
}

func TestTravelThroughOverride(t *testing.T) {
	env := newEnv(20)
	a := env.addPlace(1, "A", world.Connection{To: 2, Distance: 30})
	b := env.addPlace(2, "B", world.Connection{To: 1, Distance: 30})
	a.Weather = content.WeatherRecord{Kind: content.WeatherRain}
	ag := placed(t, env, smith(), 1)

	ag.Pending = &Override{Activity: Traveling, Target: 2}
	ag.Step(1, env, DefaultTuning())
	require.Equal(t, Traveling, ag.Activity)
	assert.Equal(t, world.PlaceID(0), ag.LocationID)
	assert.False(t, a.Has(ag.ID))
	assert.Equal(t, uint64(36), ag.Travel.Remaining, "rain stretches 30 minutes to 36")

	ag.Step(35, env, DefaultTuning())
	assert.Equal(t, Traveling, ag.Activity)
	ag.Step(1, env, DefaultTuning())
	assert.Equal(t, Idle, ag.Activity)
	assert.Equal(t, world.PlaceID(2), ag.LocationID)
	assert.True(t, b.Has(ag.ID))
	assert.Nil(t, ag.Travel)

	var moved []events.Event
	for _, e := range env.bus.Drain() {
		if e.Kind == events.KindMoved {
			moved = append(moved, e)
		}
	}
	require.Len(t, moved, 1)
	assert.Equal(t, uint64(ag.ID), moved[0].Source)
	assert.Equal(t, uint64(2), moved[0].Location)
	assert.Equal(t, "1", moved[0].Payload["from"])
}

func TestTravellerIgnoresUrgentNeeds(t *testing.T) {
	env := newEnv(20)
	env.addPlace(1, "A")
	env.addPlace(2, "B")
	ag := New(1, smith())
	ag.Activity = Traveling
	ag.Travel = &Travel{From: 1, To: 2, Remaining: 100}
	ag.Needs = Needs{Energy: 1, Hunger: 99}
	ag.Step(10, env, DefaultTuning())
	assert.Equal(t, Traveling, ag.Activity)
	assert.Equal(t, uint64(90), ag.Travel.Remaining)
}

func TestRedirectWhenDestinationRemoved(t *testing.T) {
	env := newEnv(20)
	env.addPlace(1, "A", world.Connection{To: 2, Distance: 10}, world.Connection{To: 3, Distance: 25})
	env.addPlace(3, "C")
	ag := New(1, smith())
	ag.Activity = Traveling
	ag.Travel = &Travel{From: 1, To: 2, Remaining: 5}

	ag.Step(5, env, DefaultTuning())
	require.Equal(t, Traveling, ag.Activity)
	assert.Equal(t, world.PlaceID(3), ag.Travel.To)
	assert.Equal(t, uint64(25), ag.Travel.Remaining)

	kinds := []events.Kind{}
	for _, e := range env.bus.Drain() {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []events.Kind{events.KindTravelRedirected}, kinds)

	delete(env.places, 3)
	ag.Step(25, env, DefaultTuning())
	assert.Equal(t, Idle, ag.Activity)
	assert.Equal(t, world.PlaceID(1), ag.LocationID, "falls back to its origin")
}

func TestOverrideLastsOneStep(t *testing.T) {
	env := newEnv(10)
	env.addPlace(1, "Smithy")
	a := placed(t, env, smith(), 1)
	a.Needs = Needs{Energy: 60, Hunger: 10, Mood: 50}
	a.Pending = &Override{Activity: Socializing}
	a.Step(1, env, DefaultTuning())
	assert.Equal(t, Socializing, a.Activity)
	assert.Nil(t, a.Pending)
	a.Step(1, env, DefaultTuning())
	assert.Equal(t, Working, a.Activity)
}

func TestIdleSocializes(t *testing.T) {
	env := newEnv(20)
	p := env.addPlace(1, "Tavern")
	a := placed(t, env, smith(), 1)
	other := New(2, smith())
	require.NoError(t, world.Attach(other, nil, p))
	tun := DefaultTuning()
	env.roll = tun.TravelChance + tun.SocializeChance/2

	a.Step(1, env, tun)
	assert.Equal(t, Socializing, a.Activity)
	drained := env.bus.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, events.KindSocialized, drained[0].Kind)
	assert.Equal(t, "2", drained[0].Payload["with"])
}

func TestActivityText(t *testing.T) {
	for _, act := range []Activity{Idle, Working, Eating, Sleeping, Traveling, Socializing} {
		b, err := act.MarshalText()
		require.NoError(t, err)
		var back Activity
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, act, back)
	}
	_, err := ParseActivity("flying")
	assert.Error(t, err)
}

func TestTuningValidate(t *testing.T) {
	require.NoError(t, DefaultTuning().Validate())
	bad := DefaultTuning()
	bad.LowEnergy = 120
	bad.CraftChance = 2
	assert.Error(t, bad.Validate())
}
