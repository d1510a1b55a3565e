package agents

// Need bounds. Every need stays within [MinNeed, MaxNeed].
const (
	MinNeed = 0.0
	MaxNeed = 100.0
)

// Needs holds the agent's physiological and emotional state. High energy is
// rested, high hunger is starving, high mood is content.
type Needs struct {
	Energy float64 `json:"energy"`
	Hunger float64 `json:"hunger"`
	Mood   float64 `json:"mood"`
}

// Clamp pulls every need back into bounds.
func (n *Needs) Clamp() {
	n.Energy = clamp(n.Energy)
	n.Hunger = clamp(n.Hunger)
	n.Mood = clamp(n.Mood)
}

// Valid reports whether every need is within bounds.
func (n Needs) Valid() bool {
	return inBounds(n.Energy) && inBounds(n.Hunger) && inBounds(n.Mood)
}

// decay applies dt minutes of passive change: energy falls, hunger rises,
// and mood drifts toward target.
func (n *Needs) decay(dt float64, target float64, t Tuning) {
	n.Energy -= t.EnergyDecay * dt
	n.Hunger += t.HungerGrowth * dt
	step := t.MoodDrift * dt
	switch diff := target - n.Mood; {
	case diff > step:
		n.Mood += step
	case diff < -step:
		n.Mood -= step
	default:
		n.Mood = target
	}
	n.Clamp()
}

func clamp(v float64) float64 {
	if v != v { // NaN
		return MinNeed
	}
	if v < MinNeed {
		return MinNeed
	}
	if v > MaxNeed {
		return MaxNeed
	}
	return v
}

func inBounds(v float64) bool { return v >= MinNeed && v <= MaxNeed }
