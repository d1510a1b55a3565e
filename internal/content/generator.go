package content

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/google/uuid"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/living-world/internal/clock"
)

// Generator is a seeded Factory backed by a template catalog. Given the same
// seed and call sequence it produces the same records, and its state can be
// saved with MarshalBinary.
type Generator struct {
	seed  uint64
	cat   *Catalog
	src   *rand.ChaCha8
	rng   *rand.Rand
	noise opensimplex.Noise

	// weatherStep walks the noise field so successive forecasts drift.
	weatherStep uint64
}

var _ Factory = (*Generator)(nil)

// NewGenerator creates a generator over cat (nil means the embedded
// catalog).
func NewGenerator(seed uint64, cat *Catalog) (*Generator, error) {
	if cat == nil {
		var err error
		if cat, err = DefaultCatalog(); err != nil {
			return nil, err
		}
	}
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], seed)
	binary.LittleEndian.PutUint64(key[8:16], seed^0x5eed5eed5eed5eed)
	src := rand.NewChaCha8(key)
	return &Generator{
		seed:  seed,
		cat:   cat,
		src:   src,
		rng:   rand.New(src),
		noise: opensimplex.NewNormalized(int64(seed)),
	}, nil
}

// Catalog returns the generator's catalog.
func (g *Generator) Catalog() *Catalog { return g.cat }

// Professions lists the catalog's profession names.
func (g *Generator) Professions() []string {
	out := make([]string, len(g.cat.Professions))
	for i, p := range g.cat.Professions {
		out[i] = p.Name
	}
	return out
}

func (g *Generator) newID() string {
	id, err := uuid.NewRandomFromReader(g.src)
	if err != nil {
		// ChaCha8 reads never fail.
		panic(err)
	}
	return id.String()
}

func (g *Generator) pick(xs []string) string {
	return xs[g.rng.IntN(len(xs))]
}

// SpawnItem creates an item from a catalog template. The "maker" and
// "location" constraints are recorded on the item.
func (g *Generator) SpawnItem(template string, constraints map[string]string) (*ItemRecord, error) {
	t, ok := g.cat.item(template)
	if !ok {
		return nil, fmt.Errorf("%w: unknown item template %q", ErrNoResult, template)
	}
	value := t.Value.Min
	if span := t.Value.Max - t.Value.Min; span > 0 {
		value += g.rng.IntN(span + 1)
	}
	item := &ItemRecord{
		ID:       g.newID(),
		Template: t.Template,
		Name:     g.pick(t.Names),
		Value:    value,
		Tags:     slices.Clone(t.Tags),
	}
	for _, k := range []string{"maker", "location"} {
		if v, ok := constraints[k]; ok {
			if item.Extra == nil {
				item.Extra = make(map[string]string)
			}
			item.Extra[k] = v
		}
	}
	return item, nil
}

// SpawnNPC creates a person with the given professions, or one random
// profession when none are given. Unknown professions produce no result.
func (g *Generator) SpawnNPC(professions []string, location string) (*NPCRecord, error) {
	if len(professions) == 0 {
		professions = []string{g.cat.Professions[g.rng.IntN(len(g.cat.Professions))].Name}
	}
	rec := &NPCRecord{
		ID:          g.newID(),
		Name:        g.pick(g.cat.Names.First) + " " + g.pick(g.cat.Names.Last),
		Professions: slices.Clone(professions),
		Skills:      make(map[string]int),
	}
	var mood float64
	for i, name := range professions {
		p, ok := g.cat.profession(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown profession %q", ErrNoResult, name)
		}
		if i == 0 {
			rec.WorkStart, rec.WorkEnd = p.Work.Start, p.Work.End
		}
		for _, r := range p.Recipes {
			if !slices.Contains(rec.Recipes, r) {
				rec.Recipes = append(rec.Recipes, r)
			}
		}
		for _, s := range p.Skills {
			rec.Skills[s] = 3 + g.rng.IntN(6)
		}
		mood += p.Mood
	}
	rec.MoodBaseline = mood / float64(len(professions))

	if len(rec.Recipes) > 0 && g.rng.Float64() < 0.5 {
		item, err := g.SpawnItem(rec.Recipes[0], map[string]string{"maker": rec.Name, "location": location})
		if err == nil {
			rec.Inventory = append(rec.Inventory, *item)
		}
	}
	return rec, nil
}

// SpawnLocation creates a place. An empty template or biome is chosen at
// random from the catalog.
func (g *Generator) SpawnLocation(template, biome string) (*LocationRecord, error) {
	var t *LocationTemplate
	if template == "" {
		t = &g.cat.Locations[g.rng.IntN(len(g.cat.Locations))]
	} else {
		var ok bool
		if t, ok = g.cat.location(template); !ok {
			return nil, fmt.Errorf("%w: unknown location template %q", ErrNoResult, template)
		}
	}
	if biome == "" {
		biome = g.pick(t.Biomes)
	}
	return &LocationRecord{
		ID:           g.newID(),
		Name:         g.pick(t.Names),
		Template:     t.Template,
		Biome:        biome,
		Tags:         slices.Clone(t.Tags),
		HasHours:     t.HasHours,
		NoticeBoard:  t.NoticeBoard,
		MoodModifier: t.Mood,
	}, nil
}

// SpawnQuest creates a quest offered by giver at location.
func (g *Generator) SpawnQuest(giver, location string) (*QuestRecord, error) {
	if len(g.cat.Quests) == 0 {
		return nil, ErrNoResult
	}
	title := strings.NewReplacer("{giver}", giver, "{location}", location).Replace(g.pick(g.cat.Quests))
	reward := g.cat.Items[g.rng.IntN(len(g.cat.Items))].Template
	return &QuestRecord{
		ID:          g.newID(),
		Title:       title,
		Giver:       giver,
		Location:    location,
		RewardItem:  reward,
		RewardCoins: 5 + g.rng.IntN(46),
	}, nil
}

var seasonTemps = [4]float64{12, 24, 11, -2}

// SpawnWeather samples the noise field for the season. Each call advances
// along the field so consecutive forecasts are correlated, not identical.
func (g *Generator) SpawnWeather(season clock.Season) (*WeatherRecord, error) {
	t := float64(g.weatherStep) * 0.37
	g.weatherStep++
	s := float64(season) * 10

	warmth := g.noise.Eval2(t, s)
	wet := g.noise.Eval2(t+500, s)
	wind := g.noise.Eval2(t+1000, s) * 20

	w := &WeatherRecord{
		TempC:     seasonTemps[season%4] + (warmth-0.5)*16,
		WindSpeed: wind,
	}
	switch {
	case wet > 0.7 && wind > 14:
		w.Kind = WeatherStorm
	case wet > 0.6 && w.TempC < 1:
		w.Kind = WeatherSnow
	case wet > 0.6:
		w.Kind = WeatherRain
	case wet > 0.5:
		w.Kind = WeatherCloud
	case wet < 0.25 && w.TempC < 8:
		w.Kind = WeatherFog
	default:
		w.Kind = WeatherClear
	}
	w.Description = fmt.Sprintf("%s, %.0f°C", w.Kind, w.TempC)
	return w, nil
}

type generatorState struct {
	Seed        uint64 `json:"seed"`
	Source      []byte `json:"source"`
	WeatherStep uint64 `json:"weather_step"`
}

// MarshalBinary captures the generator's random state.
func (g *Generator) MarshalBinary() ([]byte, error) {
	src, err := g.src.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal generator source: %w", err)
	}
	return json.Marshal(generatorState{Seed: g.seed, Source: src, WeatherStep: g.weatherStep})
}

// UnmarshalBinary restores state captured by MarshalBinary.
func (g *Generator) UnmarshalBinary(data []byte) error {
	var st generatorState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode generator state: %w", err)
	}
	if err := g.src.UnmarshalBinary(st.Source); err != nil {
		return fmt.Errorf("restore generator source: %w", err)
	}
	if st.Seed != g.seed {
		g.seed = st.Seed
		g.noise = opensimplex.NewNormalized(int64(st.Seed))
	}
	g.weatherStep = st.WeatherStep
	return nil
}
