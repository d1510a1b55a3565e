package engine

import (
	"context"
	"math"
	"time"
)

// SetSpeed sets the Run multiplier: 1 is one step per interval, 0 pauses.
func (s *Simulator) SetSpeed(speed float64) {
	if speed < 0 || math.IsNaN(speed) {
		speed = 0
	}
	s.speed.Store(math.Float64bits(speed))
}

// Speed returns the Run multiplier.
func (s *Simulator) Speed() float64 { return math.Float64frombits(s.speed.Load()) }

// SetStepSize changes the minutes Run advances per step.
func (s *Simulator) SetStepSize(minutes uint64) {
	if minutes > 0 {
		s.stepSize.Store(minutes)
	}
}

// StepSize returns the minutes Run advances per step.
func (s *Simulator) StepSize() uint64 { return s.stepSize.Load() }

// Run steps the world in real time until ctx is cancelled or a step fails.
// Each step is followed by a sleep that makes up the interval, scaled by
// speed. A paused simulator polls for a speed change.
func (s *Simulator) Run(ctx context.Context) error {
	logger := s.world.logger
	logger.Info("simulation started", "time", s.world.Now().String(), "speed", s.Speed(), "step_minutes", s.StepSize())
	defer func() {
		logger.Info("simulation stopped", "time", s.Latest().Clock.Label, "steps", s.Latest().Clock.Steps)
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		speed := s.Speed()
		if speed <= 0 {
			timer.Reset(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		if err := s.step(s.StepSize()); err != nil {
			logger.Error("step failed", "error", err)
			return err
		}
		wait := time.Duration(float64(s.interval)/speed) - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		if wait == 0 {
			logger.Debug("step overran interval", "elapsed", time.Since(start))
		}
		timer.Reset(wait)
	}
}
