// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jcodagnone/terroir/batch"
	"github.com/jcodagnone/terroir/config"
	"github.com/jcodagnone/terroir/geocode"
	"github.com/jcodagnone/terroir/place"
	"github.com/jcodagnone/terroir/store"
	"github.com/jcodagnone/terroir/utils/httputils"
	"github.com/jcodagnone/terroir/utils/textutils"
)

var geocodeOptions struct {
	merge   bool
	geojson bool
	limit   int
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Resolve every place label of the catalog",
	Long: `Reads the wine catalog, queries Nominatim and Wikipedia for every distinct
place label and writes the label to record mapping. Sources are paced
independently, so a run over n labels takes at least n * 1.1s.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		records, err := place.LoadRecords(cfg.Input)
		if err != nil {
			return err
		}

		places := place.Distinct(records)
		if geocodeOptions.limit > 0 && len(places) > geocodeOptions.limit {
			places = places[:geocodeOptions.limit]
		}

		zap.L().Info("loaded catalog",
			zap.String("input", cfg.Input),
			zap.String("records", textutils.FormatInt(int64(len(records)))),
			zap.String("places", textutils.FormatInt(int64(len(places)))),
		)

		nominatim, wikipedia := newSources(cfg)

		orch := batch.New(nominatim, wikipedia,
			batch.WithThreshold(cfg.ThresholdKm),
			batch.WithWorkers(cfg.Workers),
			batch.WithProgress(os.Stdout),
			batch.WithProgressBar(batch.NewTerminalProgressBar(len(places))),
		)

		results, stats, err := orch.Run(ctx, places)
		if err != nil {
			return err
		}

		if err := stats.WriteSummary(os.Stdout, cfg.ThresholdKm); err != nil {
			return eris.Wrap(err, "writing summary")
		}

		if geocodeOptions.merge {
			previous, err := store.Load(cfg.Output)

			switch {
			case errors.Is(err, fs.ErrNotExist):
			case err != nil:
				return err
			default:
				previous.Merge(results)
				results = previous
			}
		}

		if err := results.Save(cfg.Output); err != nil {
			return err
		}

		fmt.Printf("\nSaved %s locations to %s\n", textutils.FormatInt(int64(results.Len())), cfg.Output)

		if geocodeOptions.geojson {
			n, err := store.SaveGeoJSON(cfg.GeoJSON, results, place.IndexByPlace(records))
			if err != nil {
				return err
			}

			fmt.Printf("Saved %s map features to %s\n", textutils.FormatInt(int64(n)), cfg.GeoJSON)
		}

		return nil
	},
}

func newSources(c *config.Config) (*geocode.Nominatim, *geocode.Wikipedia) {
	var trace io.Writer
	if c.HTTPTrace {
		trace = os.Stderr
	}

	nominatim := geocode.NewNominatim(
		geocode.WithBaseURL(c.Nominatim.BaseURL),
		geocode.WithHTTPClient(httputils.NewClient(httputils.ClientOptions{
			UserAgent: c.UserAgent,
			Timeout:   c.Nominatim.Timeout,
			Trace:     trace,
		})),
		geocode.WithMinInterval(c.Nominatim.MinInterval),
		geocode.WithRetry(geocode.RetryPolicy{
			MaxAttempts: c.Nominatim.MaxAttempts,
			Backoff:     c.Nominatim.Backoff,
		}),
	)

	wikipedia := geocode.NewWikipedia(
		geocode.WithBaseURL(c.Wikipedia.BaseURL),
		geocode.WithHTTPClient(httputils.NewClient(httputils.ClientOptions{
			UserAgent: c.UserAgent,
			Timeout:   c.Wikipedia.Timeout,
			Trace:     trace,
		})),
		geocode.WithMinInterval(c.Wikipedia.MinInterval),
		geocode.WithMemoize(c.Wikipedia.Memoize),
	)

	return nominatim, wikipedia
}

func init() {
	f := geocodeCmd.Flags()
	f.String("input", "", "wine catalog JSON file")
	f.String("output", "", "label to record mapping JSON file")
	f.String("geojson", "", "map export file, written with --with-geojson")
	f.Float64("threshold", 0, "divergence threshold in kilometers")
	f.Int("workers", 0, "labels resolved at once")
	f.String("user-agent", "", "User-Agent sent to both services")
	f.Bool("trace", false, "trace HTTP requests and responses to stderr")
	f.BoolVar(&geocodeOptions.merge, "merge", false, "keep records of the existing output for labels not resolved in this run")
	f.BoolVar(&geocodeOptions.geojson, "with-geojson", false, "also write the map export")
	f.IntVar(&geocodeOptions.limit, "limit", 0, "resolve at most this many labels")

	rootCmd.AddCommand(geocodeCmd)
}
