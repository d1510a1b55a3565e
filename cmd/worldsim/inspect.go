package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/living-world/internal/engine"
	"github.com/talgya/living-world/internal/persistence"
)

func newInspectCmd(a *app) *cobra.Command {
	var (
		file       string
		headerOnly bool
		showAgents bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Describe a saved world",
		Long:  "Prints the header of a snapshot file and, unless --header is given, its places and population.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = a.cfg.Storage.Snapshot
			}
			out := cmd.OutOrStdout()

			h, err := persistence.ReadHeader(file)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %s at %s (clock %s)\n", file, h.Name, h.Time, humanize.Comma(int64(h.Clock)))
			fmt.Fprintf(out, "  %s agents, %s places, format v%d\n",
				humanize.Comma(int64(h.Agents)), humanize.Comma(int64(h.Places)), h.Version)
			if headerOnly {
				return nil
			}

			gen, err := a.factory()
			if err != nil {
				return err
			}
			w, err := persistence.ReadFile(file, a.options(), gen)
			if err != nil {
				return err
			}
			printWorld(out, w.Snapshot(), showAgents)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Snapshot file (default from config)")
	cmd.Flags().BoolVar(&headerOnly, "header", false, "Only read the header line")
	cmd.Flags().BoolVarP(&showAgents, "agents", "a", false, "List every agent")
	return cmd
}

func printWorld(out io.Writer, snap *engine.Snapshot, showAgents bool) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nID\tPLACE\tTEMPLATE\tWEATHER\tMARKET\tPRESENT\tROADS")
	for _, p := range snap.Places {
		market := "-"
		if p.Record.HasHours {
			market = "closed"
			if p.MarketOpen {
				market = "open"
			}
		}
		roads := make([]string, 0, len(p.Connections))
		for _, c := range p.Connections {
			roads = append(roads, fmt.Sprintf("%d(%dm)", c.To, c.Distance))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ID, p.Name, p.Record.Template, p.Weather.Kind, market, len(p.Agents), strings.Join(roads, " "))
	}
	tw.Flush()

	counts := map[string]int{}
	for _, ag := range snap.Agents {
		counts[ag.Activity.String()]++
	}
	fmt.Fprintln(out, "\nActivities:")
	for _, act := range slices.Sorted(maps.Keys(counts)) {
		fmt.Fprintf(out, "  %-12s %d\n", act, counts[act])
	}

	if !showAgents {
		return
	}
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nID\tNAME\tACTIVITY\tAT\tENERGY\tHUNGER\tMOOD")
	for _, ag := range snap.Agents {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.0f\t%.0f\t%.0f\n",
			ag.ID, ag.Name, ag.Activity, ag.Location, ag.Needs.Energy, ag.Needs.Hunger, ag.Needs.Mood)
	}
	tw.Flush()
}
