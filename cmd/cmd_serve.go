// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jcodagnone/terroir/server"
	"github.com/jcodagnone/terroir/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review API over the saved results (local only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		results, idx, err := loadResults()
		if err != nil {
			return err
		}

		var repo store.PlaceRepository

		if _, err := os.Stat(cfg.DBPath); errors.Is(err, fs.ErrNotExist) {
			zap.L().Info("no database, cell summary disabled", zap.String("db", cfg.DBPath))
		} else {
			db, r, err := openRepository(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			repo = r
		}

		fmt.Printf("🗺️  Reviewing %d places\n", results.Len())
		fmt.Printf("📍 Open http://%s/api/stats in your browser\n", cfg.Server.Addr)
		fmt.Println("🔒 Local only - not exposed to internet")

		return server.New(results, idx, repo, cfg.ThresholdKm).Run(ctx, cfg.Server.Addr)
	},
}

func init() {
	f := serveCmd.Flags()
	f.String("input", "", "wine catalog JSON file")
	f.String("output", "", "saved results JSON file")
	f.String("db", "", "DuckDB database file")
	f.Float64("threshold", 0, "divergence threshold in kilometers")
	f.String("addr", "", "loopback address to listen on")

	rootCmd.AddCommand(serveCmd)
}
