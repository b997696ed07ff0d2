package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"track-finder/internal/app"
	"track-finder/internal/models"
	"track-finder/internal/overpass"
)

var (
	queryState  string
	queryCounty string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print the Overpass QL generated for a county",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		b, err := env.Resolver.Resolve(cmd.Context(), models.Region{State: queryState, County: queryCounty})
		if err != nil {
			return err
		}

		q, err := overpass.BuildRoadsQuery(b, cfg.QueryOptions())
		if err != nil {
			return err
		}

		fmt.Printf("// %s (relation %d, area %d)\n", b.Title(), b.RelationID, q.AreaID)
		fmt.Print(q.Text)
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryState, "state", "", "state name or ISO code")
	queryCmd.Flags().StringVar(&queryCounty, "county", "", "county name")
	_ = queryCmd.MarkFlagRequired("state")
	_ = queryCmd.MarkFlagRequired("county")
	rootCmd.AddCommand(queryCmd)
}
