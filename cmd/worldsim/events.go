package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/living-world/internal/events"
)

func newEventsCmd(a *app) *cobra.Command {
	var (
		limit int
		kind  string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show archived events",
		Long:  "Lists the newest events archived in the database, oldest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			if db == nil {
				return errors.New("no database configured (storage.db)")
			}
			defer db.Close()

			world := a.cfg.World.Name
			evs, err := db.RecentEvents(world, events.Kind(kind), limit)
			if err != nil {
				return fmt.Errorf("listing events: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(evs) == 0 {
				fmt.Fprintln(out, "No events found.")
				return nil
			}
			total, _ := db.CountEvents(world)
			fmt.Fprintf(out, "Showing %d of %s events:\n\n", len(evs), humanize.Comma(int64(total)))
			for _, e := range evs {
				fmt.Fprintln(out, formatEvent(e))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of events to display")
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Filter by event kind")
	return cmd
}

func formatEvent(e events.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%-6d %-28s %-18s", e.Seq, e.Time, e.Kind)
	if e.Source != 0 {
		fmt.Fprintf(&b, " agent=%d", e.Source)
	}
	if e.Location != 0 {
		fmt.Fprintf(&b, " place=%d", e.Location)
	}
	for _, k := range slices.Sorted(maps.Keys(e.Payload)) {
		fmt.Fprintf(&b, " %s=%q", k, e.Payload[k])
	}
	return b.String()
}
