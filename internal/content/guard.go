package content

import (
	"fmt"

	"github.com/talgya/living-world/internal/clock"
)

// Guard wraps f so that a panic surfaces as ErrFactoryFailed and a nil record
// as ErrNoResult. The simulation only talks to a guarded factory.
func Guard(f Factory) Factory {
	if g, ok := f.(guarded); ok {
		return g
	}
	return guarded{f: f}
}

// Unguard returns the factory wrapped by Guard, or f itself.
func Unguard(f Factory) Factory {
	if g, ok := f.(guarded); ok {
		return g.f
	}
	return f
}

type guarded struct{ f Factory }

func call[T any](name string, fn func() (*T, error)) (rec *T, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("%w: %s panicked: %v", ErrFactoryFailed, name, r)
		}
	}()
	rec, err = fn()
	if err == nil && rec == nil {
		err = fmt.Errorf("%w: %s returned nothing", ErrNoResult, name)
	}
	return rec, err
}

func (g guarded) SpawnItem(template string, constraints map[string]string) (*ItemRecord, error) {
	return call("spawn_item", func() (*ItemRecord, error) { return g.f.SpawnItem(template, constraints) })
}

func (g guarded) SpawnNPC(professions []string, location string) (*NPCRecord, error) {
	return call("spawn_npc", func() (*NPCRecord, error) { return g.f.SpawnNPC(professions, location) })
}

func (g guarded) SpawnLocation(template, biome string) (*LocationRecord, error) {
	return call("spawn_location", func() (*LocationRecord, error) { return g.f.SpawnLocation(template, biome) })
}

func (g guarded) SpawnQuest(giver, location string) (*QuestRecord, error) {
	return call("spawn_quest", func() (*QuestRecord, error) { return g.f.SpawnQuest(giver, location) })
}

func (g guarded) SpawnWeather(season clock.Season) (*WeatherRecord, error) {
	return call("spawn_weather", func() (*WeatherRecord, error) { return g.f.SpawnWeather(season) })
}
