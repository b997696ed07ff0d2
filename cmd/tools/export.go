package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"track-finder/internal/app"
	"track-finder/internal/export"
	"track-finder/internal/finder"
	"track-finder/internal/models"
)

var (
	exportState     string
	exportCounty    string
	exportMinLength float64
	exportOut       string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the unpaved roads of a county to a KML file",
	Example: `  tools export --state Colorado --county "Boulder County"
  tools export --state CO --county Larimer --min-length 0.5 --out maps/`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		req := finder.Request{Region: models.Region{State: exportState, County: exportCounty}}
		if cmd.Flags().Changed("min-length") {
			req.MinLengthMiles = &exportMinLength
		}

		res, err := env.Finder.Search(ctx, req)
		if errors.Is(err, models.ErrEmptyResultSet) {
			fmt.Printf("No unpaved roads found in %s\n", req.Region)
			return nil
		}
		if err != nil {
			return err
		}

		path := outputPath(exportOut, res.Filename)
		if err := export.WriteFile(path, res.Document); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("region", res.Boundary.Title()),
			zap.Int("fetched", res.Fetched),
			zap.Int("placemarks", res.Document.Placemarks),
			zap.String("path", path),
		)
		fmt.Printf("Wrote %d roads in %s to %s\n", res.Document.Placemarks, res.Boundary.Title(), path)
		return nil
	},
}

// outputPath resolves --out: empty means the working directory, an existing
// directory or a trailing separator means a file inside it.
func outputPath(out, filename string) string {
	if out == "" {
		return filename
	}
	if os.IsPathSeparator(out[len(out)-1]) {
		return filepath.Join(out, filename)
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, filename)
	}
	return out
}

func init() {
	exportCmd.Flags().StringVar(&exportState, "state", "", "state name or ISO code")
	exportCmd.Flags().StringVar(&exportCounty, "county", "", "county name")
	exportCmd.Flags().Float64Var(&exportMinLength, "min-length", 0, "minimum road length in miles (default from config)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file or directory")
	_ = exportCmd.MarkFlagRequired("state")
	_ = exportCmd.MarkFlagRequired("county")
	rootCmd.AddCommand(exportCmd)
}
