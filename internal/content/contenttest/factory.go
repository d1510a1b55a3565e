// Package contenttest provides a scriptable content factory for tests.
package contenttest

import (
	"fmt"
	"slices"

	"github.com/talgya/living-world/internal/clock"
	"github.com/talgya/living-world/internal/content"
)

// Factory returns fixed records and counts calls. Unset fields fall back to
// simple defaults; Fail* flags make the matching call return ErrNoResult and
// Panic makes every call panic.
type Factory struct {
	NPC      content.NPCRecord
	Location content.LocationRecord
	Weather  []content.WeatherRecord

	FailItems   bool
	FailWeather bool
	Panic       bool

	Calls map[string]int
	seq   int
}

var _ content.Factory = (*Factory)(nil)

func (f *Factory) count(name string) {
	if f.Panic {
		panic("contenttest: factory panic")
	}
	if f.Calls == nil {
		f.Calls = make(map[string]int)
	}
	f.Calls[name]++
	f.seq++
}

func (f *Factory) SpawnItem(template string, constraints map[string]string) (*content.ItemRecord, error) {
	f.count("item")
	if f.FailItems {
		return nil, content.ErrNoResult
	}
	return &content.ItemRecord{
		ID:       fmt.Sprintf("item-%d", f.seq),
		Template: template,
		Name:     template,
		Value:    1,
	}, nil
}

func (f *Factory) SpawnNPC(professions []string, location string) (*content.NPCRecord, error) {
	f.count("npc")
	rec := f.NPC
	rec.ID = fmt.Sprintf("npc-%d", f.seq)
	if rec.Name == "" {
		rec.Name = rec.ID
	}
	if len(professions) > 0 {
		rec.Professions = slices.Clone(professions)
	}
	rec.Recipes = slices.Clone(rec.Recipes)
	return &rec, nil
}

func (f *Factory) SpawnLocation(template, biome string) (*content.LocationRecord, error) {
	f.count("location")
	rec := f.Location
	rec.ID = fmt.Sprintf("loc-%d", f.seq)
	if template != "" {
		rec.Template = template
	}
	if rec.Name == "" {
		rec.Name = rec.ID
	}
	return &rec, nil
}

func (f *Factory) SpawnQuest(giver, location string) (*content.QuestRecord, error) {
	f.count("quest")
	return &content.QuestRecord{
		ID:       fmt.Sprintf("quest-%d", f.seq),
		Title:    "A task for " + giver,
		Giver:    giver,
		Location: location,
	}, nil
}

// SpawnWeather cycles through Weather, or returns clear skies.
func (f *Factory) SpawnWeather(season clock.Season) (*content.WeatherRecord, error) {
	f.count("weather")
	if f.FailWeather {
		return nil, content.ErrNoResult
	}
	if len(f.Weather) == 0 {
		return &content.WeatherRecord{Kind: content.WeatherClear}, nil
	}
	w := f.Weather[(f.Calls["weather"]-1)%len(f.Weather)]
	return &w, nil
}
