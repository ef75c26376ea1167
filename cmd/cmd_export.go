// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/jcodagnone/terroir/place"
	"github.com/jcodagnone/terroir/store"
	"github.com/jcodagnone/terroir/utils/textutils"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Derive other formats from the saved results",
}

// loadResults reads the saved results and, when the catalog is available,
// its wine index. A missing catalog only costs the wine counts.
func loadResults() (*store.ResultSet, place.WineIndex, error) {
	results, err := store.Load(cfg.Output)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "results not found at %s - run 'geocode' first", cfg.Output)
	}

	records, err := place.LoadRecords(cfg.Input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, wine counts will be empty\n", err)

		return results, nil, nil
	}

	return results, place.IndexByPlace(records), nil
}

var exportGeoJSONCmd = &cobra.Command{
	Use:   "geojson",
	Short: "Write one map feature per resolved place",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		results, idx, err := loadResults()
		if err != nil {
			return err
		}

		n, err := store.SaveGeoJSON(cfg.GeoJSON, results, idx)
		if err != nil {
			return err
		}

		fmt.Printf("✅ Exported %s features to %s\n", textutils.FormatInt(int64(n)), cfg.GeoJSON)

		return nil
	},
}

// openRepository opens the DuckDB database and makes sure the schema exists.
func openRepository(path string) (*sql.DB, store.PlaceRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, eris.Wrap(err, "creating db directory")
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "opening database")
	}

	repo := store.NewPlaceRepository(db)
	if err := repo.CreateSchema(); err != nil {
		return nil, nil, eris.Wrap(errors.Join(err, db.Close()), "creating places schema")
	}

	return db, repo, nil
}

var exportDBCmd = &cobra.Command{
	Use:   "db",
	Short: "Upsert the saved results into the places table",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		results, idx, err := loadResults()
		if err != nil {
			return err
		}

		db, repo, err := openRepository(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := store.ExportPlaces(repo, results, idx)
		if err != nil {
			return err
		}

		total, err := repo.CountPlaces()
		if err != nil {
			return eris.Wrap(err, "counting places")
		}

		fmt.Printf("✅ Exported %s places to %s (%s in table)\n",
			textutils.FormatInt(int64(n)),
			cfg.DBPath,
			textutils.FormatInt(int64(total)))

		return nil
	},
}

func init() {
	exportGeoJSONCmd.Flags().String("geojson", "", "map export file")
	exportDBCmd.Flags().String("db", "", "DuckDB database file")

	for _, c := range []*cobra.Command{exportGeoJSONCmd, exportDBCmd} {
		c.Flags().String("input", "", "wine catalog JSON file")
		c.Flags().String("output", "", "saved results JSON file")
		exportCmd.AddCommand(c)
	}

	rootCmd.AddCommand(exportCmd)
}
