package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/living-world/internal/api"
	"github.com/talgya/living-world/internal/engine"
	"github.com/talgya/living-world/internal/persistence"
)

const archiveFlushInterval = 2 * time.Second

func newRunCmd(a *app) *cobra.Command {
	var (
		fresh bool
		noAPI bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the world in real time",
		Long: "Restores the newest saved world (or generates one) and steps it in real time, " +
			"serving the HTTP API and saving periodically until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorld(cmd.Context(), a, fresh, noAPI)
		},
	}

	cmd.Flags().BoolVar(&fresh, "fresh", false, "Ignore saved state and generate a new world")
	cmd.Flags().BoolVar(&noAPI, "no-api", false, "Do not serve the HTTP API")
	return cmd
}

func runWorld(ctx context.Context, a *app, fresh, noAPI bool) error {
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
	a.logger.Info("world ready", "source", source, "name", w.Name(), "time", w.Now().String(),
		"agents", w.AgentCount(), "places", w.PlaceCount())

	sim := engine.NewSimulator(w, a.cfg.Sim.StepMinutes, a.cfg.Sim.Interval)
	sim.SetSpeed(a.cfg.Sim.Speed)

	var arc *persistence.Archiver
	if db != nil && a.cfg.Storage.ArchiveEvents {
		var stopArchive func()
		_ = sim.Do(func(w *engine.World) error {
			arc, stopArchive = persistence.NewArchiver(db, w)
			return nil
		})
		defer func() { _ = sim.Do(func(*engine.World) error { stopArchive(); return nil }) }()
	}
	if source == "genesis" {
		if err := sim.Do(func(w *engine.World) error { return a.save(db, w) }); err != nil {
			a.logger.Error("initial save failed", "error", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !noAPI && a.cfg.API.Addr != "" {
		srv := &api.Server{
			Sim:        sim,
			DB:         db,
			Addr:       a.cfg.API.Addr,
			AdminKey:   a.cfg.API.AdminKey,
			Logger:     a.logger,
			WriteLimit: 120,
		}
		if srv.AdminKey == "" {
			a.logger.Warn("no admin key set, admin endpoints will be disabled")
		}
		go func() {
			if err := srv.ListenAndServe(ctx); err != nil {
				a.logger.Error("HTTP server error", "error", err)
			}
		}()
		fmt.Printf("API: http://localhost%s/api/v1/status\n", a.cfg.API.Addr)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		housekeeping(ctx, a, sim, db, arc)
	}()

	fmt.Printf("%s is alive at %s. Ctrl+C to stop.\n", w.Name(), w.Now())
	runErr := sim.Run(ctx)
	cancel()
	<-done

	a.logger.Info("final save...")
	if arc != nil {
		if err := arc.Flush(); err != nil {
			a.logger.Error("final archive flush failed", "error", err)
		}
	}
	saveErr := sim.Do(func(w *engine.World) error { return a.save(db, w) })
	if saveErr != nil {
		a.logger.Error("final save failed", "error", saveErr)
	} else {
		fmt.Println("Simulation stopped. World state saved.")
	}
	return errors.Join(runErr, saveErr)
}

// housekeeping flushes the event archive and saves the world on the
// configured cadence until ctx is done.
func housekeeping(ctx context.Context, a *app, sim *engine.Simulator, db *persistence.Store, arc *persistence.Archiver) {
	flush := time.NewTicker(archiveFlushInterval)
	defer flush.Stop()

	var save <-chan time.Time
	if every := a.cfg.Storage.SaveEvery; every > 0 {
		t := time.NewTicker(every)
		defer t.Stop()
		save = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-flush.C:
			if arc == nil {
				continue
			}
			if err := arc.Flush(); err != nil {
				a.logger.Error("archive flush failed", "error", err)
			}
		case <-save:
			if err := sim.Do(func(w *engine.World) error { return a.save(db, w) }); err != nil {
				a.logger.Error("periodic save failed", "error", err)
			}
		}
	}
}
