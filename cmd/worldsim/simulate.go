package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/living-world/internal/clock"
	"github.com/talgya/living-world/internal/engine"
)

func newSimulateCmd(a *app) *cobra.Command {
	var (
		minutes uint64
		days    uint64
		step    uint64
		fresh   bool
		noSave  bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Advance the world as fast as possible",
		Long:  "Restores the newest saved world (or generates one), advances it by the given simulated time, and saves the result.",
		RunE: func(cmd *cobra.Command, args []string) error {
			total := minutes + days*clock.MinutesPerDay
			if total == 0 {
				return errors.New("nothing to simulate: set --minutes or --days")
			}
			if step == 0 {
				step = a.cfg.Sim.StepMinutes
			}

			db, err := a.openStore()
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}
			w, source, err := a.openWorld(db, fresh)
			if err != nil {
				return err
			}

			sim := engine.NewSimulator(w, step, a.cfg.Sim.Interval)
			wall := time.Now()
			report, runErr := sim.SimulateFor(cmd.Context(), total, step)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (from %s)\n", w.Name(), source)
			fmt.Fprintf(out, "  %s -> %s\n", report.Start, report.End)
			fmt.Fprintf(out, "  %s steps, %s minutes, %s events in %s\n",
				humanize.Comma(int64(report.Steps)), humanize.Comma(int64(report.Minutes)),
				humanize.Comma(int64(report.Events)), time.Since(wall).Round(time.Millisecond))
			if report.Cancelled {
				fmt.Fprintln(out, "  cancelled before the end")
			}

			if noSave {
				return runErr
			}
			saveErr := sim.Do(func(w *engine.World) error { return a.save(db, w) })
			return errors.Join(runErr, saveErr)
		},
	}

	cmd.Flags().Uint64VarP(&minutes, "minutes", "m", 0, "Simulated minutes to advance")
	cmd.Flags().Uint64VarP(&days, "days", "d", 0, "Simulated days to advance")
	cmd.Flags().Uint64VarP(&step, "step", "s", 0, "Minutes per step (default from config)")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Ignore saved state and generate a new world")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not save the result")
	return cmd
}
