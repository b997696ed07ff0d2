package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"track-finder/internal/app"
)

var (
	regionStates      []string
	regionConcurrency int
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Maintain the state and county catalog",
}

var regionsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Discover county boundaries from OpenStreetMap",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Catalog.Sync(ctx, env.Overpass, env.DB, regionStates, regionConcurrency)
		if err != nil {
			return err
		}

		fmt.Printf("Synced %d counties in %d states\n", report.Counties, report.States)
		if len(report.Failed) > 0 {
			codes := make([]string, 0, len(report.Failed))
			for code := range report.Failed {
				codes = append(codes, code)
			}
			sort.Strings(codes)
			for _, code := range codes {
				fmt.Printf("  %s: %v\n", code, report.Failed[code])
			}
			return eris.Errorf("%d states failed to sync", len(report.Failed))
		}
		return nil
	},
}

var regionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known states, or the counties of the given states",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		defer w.Flush()

		if len(regionStates) == 0 {
			fmt.Fprintln(w, "CODE\tSTATE\tRELATION\tCOUNTIES")
			for _, s := range env.Catalog.States() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", s.Code, s.Name, s.RelationID, len(env.Catalog.Counties(s.Code)))
			}
			return nil
		}

		fmt.Fprintln(w, "STATE\tCOUNTY\tRELATION\tSYNCED")
		for _, code := range regionStates {
			state, ok := env.Catalog.State(code)
			if !ok {
				return eris.Errorf("unknown state %q", code)
			}
			for _, c := range env.Catalog.Counties(state.Code) {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", state.Code, c.Name, c.RelationID, c.SyncedAt.Format("2006-01-02"))
			}
		}
		return nil
	},
}

func init() {
	regionsSyncCmd.Flags().StringSliceVar(&regionStates, "state", nil, "limit to these states (repeatable)")
	regionsSyncCmd.Flags().IntVar(&regionConcurrency, "concurrency", 2, "states discovered in parallel")
	regionsListCmd.Flags().StringSliceVar(&regionStates, "state", nil, "list counties of these states")

	regionsCmd.AddCommand(regionsSyncCmd, regionsListCmd)
	rootCmd.AddCommand(regionsCmd)
}
