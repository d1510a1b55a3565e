// Package content defines the records produced by the content factory and
// the narrow interface the simulation uses to request them. The simulation
// treats records as immutable payloads and reads only the declared fields.
package content

import (
	"errors"

	"github.com/talgya/living-world/internal/clock"
)

var (
	// ErrNoResult reports that the factory had nothing to produce.
	ErrNoResult = errors.New("content: no result")
	// ErrFactoryFailed reports that the factory broke while producing.
	ErrFactoryFailed = errors.New("content: factory failed")
)

// Factory produces content records on demand. Calls are synchronous and must
// not touch simulation state. Any error, including ErrNoResult, means
// "nothing produced".
type Factory interface {
	SpawnItem(template string, constraints map[string]string) (*ItemRecord, error)
	SpawnNPC(professions []string, location string) (*NPCRecord, error)
	SpawnLocation(template, biome string) (*LocationRecord, error)
	SpawnQuest(giver, location string) (*QuestRecord, error)
	SpawnWeather(season clock.Season) (*WeatherRecord, error)
}

// ItemRecord is a generated item.
type ItemRecord struct {
	ID       string            `json:"id"`
	Template string            `json:"template"`
	Name     string            `json:"name"`
	Value    int               `json:"value"`
	Tags     []string          `json:"tags,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// NPCRecord is a generated person. WorkStart/WorkEnd bound the hours their
// professions work; Recipes lists item templates they can craft.
type NPCRecord struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Professions  []string       `json:"professions"`
	Skills       map[string]int `json:"skills,omitempty"`
	WorkStart    int            `json:"work_start"`
	WorkEnd      int            `json:"work_end"`
	Recipes      []string       `json:"recipes,omitempty"`
	MoodBaseline float64        `json:"mood_baseline"`
	Inventory    []ItemRecord   `json:"inventory,omitempty"`
}

// WorkWindow returns the NPC's working hours.
func (r *NPCRecord) WorkWindow() clock.Window {
	return clock.Window{Start: r.WorkStart, End: r.WorkEnd}
}

// WorksAt reports whether any profession of the NPC works during hour.
func (r *NPCRecord) WorksAt(hour int) bool {
	return len(r.Professions) > 0 && r.WorkWindow().Contains(hour)
}

// LocationRecord is a generated place. HasHours marks templates that keep
// market hours; NoticeBoard marks templates that post quests.
type LocationRecord struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Template     string   `json:"template"`
	Biome        string   `json:"biome"`
	Tags         []string `json:"tags,omitempty"`
	HasHours     bool     `json:"has_hours"`
	NoticeBoard  bool     `json:"notice_board"`
	MoodModifier float64  `json:"mood_modifier"`
}

// QuestRecord is a generated quest.
type QuestRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Giver       string `json:"giver"`
	Location    string `json:"location"`
	RewardItem  string `json:"reward_item,omitempty"`
	RewardCoins int    `json:"reward_coins"`
}

// Weather kinds.
const (
	WeatherClear = "clear"
	WeatherCloud = "cloudy"
	WeatherFog   = "fog"
	WeatherRain  = "rain"
	WeatherSnow  = "snow"
	WeatherStorm = "storm"
)

// WeatherRecord is a generated weather state.
type WeatherRecord struct {
	Kind        string  `json:"kind"`
	TempC       float64 `json:"temp_c"`
	WindSpeed   float64 `json:"wind_speed"`
	Description string  `json:"description"`
}

// TravelPenalty returns the multiplier applied to journeys that depart in
// this weather.
func (w WeatherRecord) TravelPenalty() float64 {
	switch w.Kind {
	case WeatherStorm:
		return 2.0
	case WeatherSnow:
		return 1.5
	case WeatherRain:
		return 1.2
	default:
		return 1.0
	}
}
