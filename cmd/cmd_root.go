// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jcodagnone/terroir/config"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "terroir",
	Short: "reconcile wine region coordinates from two geocoding sources",
	Long: `
terroir resolves the place labels of a wine catalog to coordinates. Every
label is looked up in OpenStreetMap Nominatim and in Wikipedia; when both
answer and agree within the divergence threshold the Nominatim point wins,
otherwise the Wikipedia point is preferred.
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return eris.Wrap(err, "loading .env")
		}

		c, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return err
		}

		if err := c.Validate(); err != nil {
			return err
		}

		if _, err := config.InitLogger(c.Log); err != nil {
			return err
		}

		cfg = c

		return nil
	},
}

var Version = "dev"

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "configuration file (default ./terroir.yaml)")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: console or json")
}

func Execute(version string) {
	Version = version
	rootCmd.Version = version

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		_ = zap.L().Sync()
		os.Exit(1)
	}

	_ = zap.L().Sync()
}
