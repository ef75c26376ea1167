// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/jcodagnone/terroir/reconcile"
	"github.com/jcodagnone/terroir/store"
	"github.com/jcodagnone/terroir/utils/textutils"
)

var reportOptions struct {
	top   int
	cells int
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a data-quality report of the saved results",
	Long: `Prints the outcome summary, how far apart Nominatim and Wikipedia are for
the places both resolved, the largest divergences and every failed label.
With --cells and an exported database, also the busiest H3 cells.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		results, err := store.Load(cfg.Output)
		if err != nil {
			return err
		}

		if err := reconcile.WriteReport(os.Stdout, results.Records(), cfg.ThresholdKm, reportOptions.top); err != nil {
			return err
		}

		if reportOptions.cells == 0 {
			return nil
		}

		if _, err := os.Stat(cfg.DBPath); errors.Is(err, fs.ErrNotExist) {
			return eris.Errorf("database not found at %s - run 'export db' first", cfg.DBPath)
		}

		db, repo, err := openRepository(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		counts, err := repo.CountByCell(reportOptions.cells)
		if err != nil {
			return err
		}

		fmt.Printf("\nH3 CELLS (res %d, %s)\n", reportOptions.cells, textutils.FormatInt(int64(len(counts))))

		for i, c := range counts {
			if i == reportOptions.top {
				break
			}

			fmt.Printf("%x  %6s places  %8s wines\n", c.Cell,
				textutils.FormatInt(int64(c.Places)), textutils.FormatInt(int64(c.Wines)))
		}

		return nil
	},
}

func init() {
	f := reportCmd.Flags()
	f.String("output", "", "saved results JSON file")
	f.String("db", "", "DuckDB database file")
	f.Float64("threshold", 0, "divergence threshold in kilometers")
	f.IntVar(&reportOptions.top, "top", 15, "how many divergences and cells to list")
	f.IntVar(&reportOptions.cells, "cells", 0, "H3 resolution (3, 5 or 7) to group exported places by")

	rootCmd.AddCommand(reportCmd)
}
