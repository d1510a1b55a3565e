package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/talgya/living-world/internal/config"
	"github.com/talgya/living-world/internal/content"
	"github.com/talgya/living-world/internal/engine"
	"github.com/talgya/living-world/internal/persistence"
)

// app carries what every command needs once the config is loaded.
type app struct {
	cfgPath string
	verbose bool

	cfg    *config.Config
	logger *slog.Logger
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	a.cfg = cfg
	a.logger = cfg.Log.NewLogger(cmd.ErrOrStderr())
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) options() engine.Options { return a.cfg.EngineOptions(a.logger) }

// factory builds the content generator for the configured seed and catalog.
func (a *app) factory() (*content.Generator, error) {
	var cat *content.Catalog
	if path := a.cfg.World.Catalog; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading catalog: %w", err)
		}
		if cat, err = content.ParseCatalog(data); err != nil {
			return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
		}
	}
	return content.NewGenerator(a.cfg.World.Seed, cat)
}

// openStore opens the configured database, or returns nil when none is
// configured.
func (a *app) openStore() (*persistence.Store, error) {
	path := a.cfg.Storage.DB
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := persistence.Open(path, a.logger)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("database opened", "path", path)
	return db, nil
}

func (a *app) genesis() (*engine.World, error) {
	gen, err := a.factory()
	if err != nil {
		return nil, err
	}
	a.logger.Info("generating world", "name", a.cfg.World.Name, "seed", a.cfg.World.Seed,
		"places", a.cfg.World.Places, "agents", a.cfg.World.Agents)
	return engine.Genesis(a.options(), a.cfg.World.GenesisConfig, gen)
}

// openWorld restores the newest saved state: the database first, then the
// snapshot file. With neither, or when fresh is set, it generates a new
// world. The returned string names the source.
func (a *app) openWorld(db *persistence.Store, fresh bool) (*engine.World, string, error) {
	if fresh {
		w, err := a.genesis()
		return w, "genesis", err
	}
	gen, err := a.factory()
	if err != nil {
		return nil, "", err
	}

	if db != nil {
		w, err := db.LoadLatest(a.cfg.World.Name, a.options(), gen)
		switch {
		case err == nil:
			return w, "database", nil
		case !errors.Is(err, persistence.ErrNoSnapshot):
			return nil, "", fmt.Errorf("loading from database: %w", err)
		}
	}

	if path := a.cfg.Storage.Snapshot; path != "" {
		w, err := persistence.ReadFile(path, a.options(), gen)
		switch {
		case err == nil:
			return w, path, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, "", fmt.Errorf("loading %s: %w", path, err)
		}
	}

	a.logger.Info("no saved state found, generating new world")
	w, err := a.genesis()
	return w, "genesis", err
}

// save writes w to every configured destination. Call it between steps.
func (a *app) save(db *persistence.Store, w *engine.World) error {
	var errs []error
	if db != nil {
		if _, err := db.SaveSnapshot(w); err != nil {
			errs = append(errs, err)
		} else if keep := a.cfg.Storage.KeepSnapshots; keep > 0 {
			if n, err := db.PruneSnapshots(w.Name(), keep); err != nil {
				errs = append(errs, err)
			} else if n > 0 {
				a.logger.Debug("old snapshots pruned", "count", n)
			}
		}
	}
	if path := a.cfg.Storage.Snapshot; path != "" {
		if err := persistence.WriteFile(path, w); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
