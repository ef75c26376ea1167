// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/jcodagnone/terroir/place"
	"github.com/jcodagnone/terroir/reconcile"
	"github.com/jcodagnone/terroir/spatial"
	"github.com/jcodagnone/terroir/store"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Dev tools",
}

var debugNormalizeCmd = &cobra.Command{
	Use:   "normalize [label...]",
	Short: "Print the Wikipedia title derived from each label",
	Long: `Prints each label followed by the exact title Wikipedia is asked for and
the country token. Without arguments, reads one label per line from stdin.

$ echo "Cafayate Valley (Calchaquí), Salta, Argentina" | terroir debug normalize
Cafayate Valley (Calchaquí), Salta, Argentina	"Cafayate Valley"	Argentina
`,
	RunE: func(_ *cobra.Command, args []string) error {
		show := func(label string) {
			fmt.Printf("%s\t%q\t%s\n", label, place.Normalize(label), place.Country(label))
		}

		if len(args) > 0 {
			for _, label := range args {
				show(label)
			}

			return nil
		}

		if isatty.IsTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(os.Stderr, "Enter place labels, one per line…")
		}

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			show(scanner.Text())
		}

		return eris.Wrap(scanner.Err(), "reading input")
	},
}

var debugDistanceCmd = &cobra.Command{
	Use:   "distance LAT1 LON1 LAT2 LON2",
	Short: "Print the great-circle distance between two points",
	Args:  cobra.ExactArgs(4),
	RunE: func(_ *cobra.Command, args []string) error {
		var v [4]float64

		for i, arg := range args {
			f, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return eris.Wrapf(err, "parsing %q", arg)
			}

			v[i] = f
		}

		d, err := spatial.DistanceKm(spatial.Point{Lat: v[0], Lng: v[1]}, spatial.Point{Lat: v[2], Lng: v[3]})
		if err != nil {
			return err
		}

		status := "agree"
		if d > cfg.ThresholdKm {
			status = "diverge"
		}

		fmt.Printf("%.2f km (%s at %g km)\n", d, status, cfg.ThresholdKm)

		return nil
	},
}

var debugQueryCmd = &cobra.Command{
	Use:   "query LABEL",
	Short: "Query both sources for one label and print the resolved record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nominatim, wikipedia := newSources(cfg)

		a := nominatim.Query(cmd.Context(), args[0])
		b := wikipedia.Query(cmd.Context(), args[0])
		rec := reconcile.Resolve(args[0], "", a, b, cfg.ThresholdKm)

		out, err := json.MarshalIndent(store.EncodeRecord(rec), "", "  ")
		if err != nil {
			return eris.Wrap(err, "encoding record")
		}

		fmt.Println(string(out))
		fmt.Fprintf(os.Stderr, "%s\n", rec.Status())

		return nil
	},
}

func init() {
	f := debugQueryCmd.Flags()
	f.String("user-agent", "", "User-Agent sent to both services")
	f.Bool("trace", false, "trace HTTP requests and responses to stderr")
	debugDistanceCmd.Flags().Float64("threshold", 0, "divergence threshold in kilometers")

	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugNormalizeCmd)
	debugCmd.AddCommand(debugDistanceCmd)
	debugCmd.AddCommand(debugQueryCmd)
}
