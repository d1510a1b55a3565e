package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newNewCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a new world and save it",
		Long:  "Generates a world from the configured seed and sizes, and saves it to the configured database and snapshot file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path := a.cfg.Storage.Snapshot; path != "" && !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to replace it)", path)
				}
			}

			w, err := a.genesis()
			if err != nil {
				return err
			}
			db, err := a.openStore()
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
				if err := db.SaveMeta("seed", fmt.Sprint(a.cfg.World.Seed)); err != nil {
					return err
				}
			}
			if err := a.save(db, w); err != nil {
				return fmt.Errorf("saving new world: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s is alive: %s souls across %s places.\n",
				w.Name(), humanize.Comma(int64(w.AgentCount())), humanize.Comma(int64(w.PlaceCount())))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Replace an existing snapshot file")
	return cmd
}
