package world

import (
	"log/slog"
	"strconv"

	"github.com/talgya/living-world/internal/clock"
	"github.com/talgya/living-world/internal/content"
	"github.com/talgya/living-world/internal/events"
)

// Tuning holds the place-update constants.
type Tuning struct {
	// WeatherChance is the probability, per hour boundary, of a new forecast.
	WeatherChance float64 `yaml:"weather_chance" json:"weather_chance" env:"WEATHER_CHANCE"`
	// QuestChance is the probability, per day boundary, that a notice board
	// posts a quest.
	QuestChance float64 `yaml:"quest_chance" json:"quest_chance" env:"QUEST_CHANCE"`
	// MaxQuests bounds the quests a place keeps; the oldest is dropped.
	MaxQuests int `yaml:"max_quests" json:"max_quests" env:"MAX_QUESTS"`
}

// DefaultTuning returns the standard place constants.
func DefaultTuning() Tuning {
	return Tuning{WeatherChance: 0.25, QuestChance: 0.3, MaxQuests: 3}
}

// Env is what a place needs from the world during its update.
type Env interface {
	Clock() *clock.Clock
	Float64() float64
	Factory() content.Factory
	Publish(kind events.Kind, source, location uint64, payload map[string]string)
	Logger() *slog.Logger
}

// Step refreshes the place for one world step. crossed is the set of
// calendar boundaries the clock just crossed.
func (p *Place) Step(crossed clock.Crossing, env Env, t Tuning) {
	clk := env.Clock()
	p.MarketOpen = p.Record.HasHours && clk.IsBusinessHours()

	if crossed.Has(clock.HourChanged) && env.Float64() < t.WeatherChance {
		p.refreshWeather(clk.Now().Season, env)
	}
	if crossed.Has(clock.DayChanged) && p.Record.NoticeBoard && env.Float64() < t.QuestChance {
		p.postQuest(env, t)
	}
}

func (p *Place) refreshWeather(season clock.Season, env Env) {
	w, err := env.Factory().SpawnWeather(season)
	if err != nil {
		content.LogAbsence(env.Logger(), "no weather produced", err, "place", p.ID)
		return
	}
	prev := p.Weather
	p.Weather = *w
	if prev.Kind == w.Kind {
		return
	}
	env.Publish(events.KindWeatherChanged, 0, uint64(p.ID), map[string]string{
		"from":        prev.Kind,
		"to":          w.Kind,
		"temp_c":      strconv.FormatFloat(w.TempC, 'f', 1, 64),
		"description": w.Description,
	})
}

func (p *Place) postQuest(env Env, t Tuning) {
	q, err := env.Factory().SpawnQuest("the folk of "+p.Record.Name, p.Record.Name)
	if err != nil {
		content.LogAbsence(env.Logger(), "no quest produced", err, "place", p.ID)
		return
	}
	p.Quests = append(p.Quests, *q)
	if t.MaxQuests > 0 && len(p.Quests) > t.MaxQuests {
		p.Quests = p.Quests[len(p.Quests)-t.MaxQuests:]
	}
	env.Publish(events.KindQuestPosted, 0, uint64(p.ID), map[string]string{
		"quest": q.ID,
		"title": q.Title,
	})
}
