package agents

import (
	"errors"
	"fmt"
)

// Tuning holds the behaviour constants. Rates are per simulated minute;
// chances are per step.
type Tuning struct {
	EnergyDecay   float64 `yaml:"energy_decay" json:"energy_decay" env:"ENERGY_DECAY"`
	HungerGrowth  float64 `yaml:"hunger_growth" json:"hunger_growth" env:"HUNGER_GROWTH"`
	MoodDrift     float64 `yaml:"mood_drift" json:"mood_drift" env:"MOOD_DRIFT"`
	SleepRecovery float64 `yaml:"sleep_recovery" json:"sleep_recovery" env:"SLEEP_RECOVERY"`
	EatRate       float64 `yaml:"eat_rate" json:"eat_rate" env:"EAT_RATE"`

	LowEnergy   float64 `yaml:"low_energy" json:"low_energy" env:"LOW_ENERGY"`
	HighHunger  float64 `yaml:"high_hunger" json:"high_hunger" env:"HIGH_HUNGER"`
	WakeEnergy  float64 `yaml:"wake_energy" json:"wake_energy" env:"WAKE_ENERGY"`
	SatedHunger float64 `yaml:"sated_hunger" json:"sated_hunger" env:"SATED_HUNGER"`
	DefaultMood float64 `yaml:"default_mood" json:"default_mood" env:"DEFAULT_MOOD"`

	CraftChance     float64 `yaml:"craft_chance" json:"craft_chance" env:"CRAFT_CHANCE"`
	TravelChance    float64 `yaml:"travel_chance" json:"travel_chance" env:"TRAVEL_CHANCE"`
	SocializeChance float64 `yaml:"socialize_chance" json:"socialize_chance" env:"SOCIALIZE_CHANCE"`
	SocializeMood   float64 `yaml:"socialize_mood" json:"socialize_mood" env:"SOCIALIZE_MOOD"`
	MaxInventory    int     `yaml:"max_inventory" json:"max_inventory" env:"MAX_INVENTORY"`
}

// DefaultTuning returns constants that give a rested agent roughly sixteen
// waking hours and a meal every eight.
func DefaultTuning() Tuning {
	return Tuning{
		EnergyDecay:   0.085,
		HungerGrowth:  0.17,
		MoodDrift:     0.05,
		SleepRecovery: 0.25,
		EatRate:       2.5,

		LowEnergy:   20,
		HighHunger:  80,
		WakeEnergy:  90,
		SatedHunger: 15,
		DefaultMood: 50,

		CraftChance:     0.05,
		TravelChance:    0.02,
		SocializeChance: 0.05,
		SocializeMood:   3,
		MaxInventory:    20,
	}
}

// Validate rejects thresholds outside the need bounds and negative rates.
func (t Tuning) Validate() error {
	var errs []error
	type field struct {
		name string
		v    float64
	}
	for _, f := range []field{
		{"energy_decay", t.EnergyDecay}, {"hunger_growth", t.HungerGrowth}, {"mood_drift", t.MoodDrift},
		{"sleep_recovery", t.SleepRecovery}, {"eat_rate", t.EatRate}, {"socialize_mood", t.SocializeMood},
	} {
		if f.v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", f.name))
		}
	}
	for _, f := range []field{
		{"low_energy", t.LowEnergy}, {"high_hunger", t.HighHunger}, {"wake_energy", t.WakeEnergy},
		{"sated_hunger", t.SatedHunger}, {"default_mood", t.DefaultMood},
	} {
		if !inBounds(f.v) {
			errs = append(errs, fmt.Errorf("%s must be within [0,100]", f.name))
		}
	}
	for _, f := range []field{
		{"craft_chance", t.CraftChance}, {"travel_chance", t.TravelChance}, {"socialize_chance", t.SocializeChance},
	} {
		if f.v < 0 || f.v > 1 {
			errs = append(errs, fmt.Errorf("%s must be a probability", f.name))
		}
	}
	if t.WakeEnergy < t.LowEnergy {
		errs = append(errs, errors.New("wake_energy must not be below low_energy"))
	}
	if t.SatedHunger > t.HighHunger {
		errs = append(errs, errors.New("sated_hunger must not exceed high_hunger"))
	}
	if t.MaxInventory < 0 {
		errs = append(errs, errors.New("max_inventory must not be negative"))
	}
	return errors.Join(errs...)
}
