package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/living-world/internal/content"
	"github.com/talgya/living-world/internal/world"
)

// GenesisConfig sizes a freshly generated world.
type GenesisConfig struct {
	Places int `yaml:"places" env:"PLACES"`
	Agents int `yaml:"agents" env:"AGENTS"`
	// Templates are cycled through when spawning places. Empty uses
	// DefaultTemplates.
	Templates []string `yaml:"templates" env:"TEMPLATES"`
	// MinDistance and MaxDistance bound connection lengths in minutes.
	MinDistance uint64 `yaml:"min_distance" env:"MIN_DISTANCE"`
	MaxDistance uint64 `yaml:"max_distance" env:"MAX_DISTANCE"`
}

// DefaultTemplates is the place mix used when none is configured.
var DefaultTemplates = []string{"market", "tavern", "smithy", "farm", "temple", "crossroads", "wilds"}

// DefaultGenesis returns a village-sized world.
func DefaultGenesis() GenesisConfig {
	return GenesisConfig{Places: 8, Agents: 40, MinDistance: 20, MaxDistance: 120}
}

// Genesis builds a new world: places joined in a ring with a few seeded
// shortcuts, and agents spread across them. Factory absence skips the
// affected place or agent; a world with no places at all is an error.
func Genesis(opts Options, gc GenesisConfig, factory content.Factory) (*World, error) {
	if gc.Places <= 0 {
		return nil, errors.New("genesis: need at least one place")
	}
	if gc.MinDistance == 0 {
		gc.MinDistance = 1
	}
	if gc.MaxDistance < gc.MinDistance {
		gc.MaxDistance = gc.MinDistance
	}
	templates := gc.Templates
	if len(templates) == 0 {
		templates = DefaultTemplates
	}

	w, err := New(opts, factory)
	if err != nil {
		return nil, err
	}

	var ids []world.PlaceID
	for i := range gc.Places {
		id, err := w.SpawnPlace(templates[i%len(templates)], "")
		if err != nil {
			content.LogAbsence(w.logger, "genesis skipped place", err, "template", templates[i%len(templates)])
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("genesis: factory produced no places")
	}

	distance := func() uint64 {
		return gc.MinDistance + w.rng.Uint64N(gc.MaxDistance-gc.MinDistance+1)
	}
	if len(ids) > 1 {
		for i, id := range ids {
			next := ids[(i+1)%len(ids)]
			if next == id || (len(ids) == 2 && i == 1) {
				continue
			}
			if err := w.Connect(id, next, distance()); err != nil {
				return nil, err
			}
		}
	}
	for range len(ids) / 3 {
		a, b := ids[w.rng.IntN(len(ids))], ids[w.rng.IntN(len(ids))]
		pa := w.places[a]
		if a == b {
			continue
		}
		if _, ok := pa.ConnectionTo(b); ok {
			continue
		}
		if err := w.Connect(a, b, distance()); err != nil {
			return nil, err
		}
	}

	spawned := 0
	for i := range gc.Agents {
		if _, err := w.SpawnAgent(nil, ids[i%len(ids)]); err != nil {
			content.LogAbsence(w.logger, "genesis skipped agent", err)
			continue
		}
		spawned++
	}

	w.logger.Info("world generated", "name", w.name, "seed", w.seed, "places", len(ids), "agents", spawned)
	return w, nil
}
