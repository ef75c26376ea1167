// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package batch

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/jcodagnone/terroir/geocode"
	"github.com/jcodagnone/terroir/reconcile"
	"github.com/jcodagnone/terroir/utils/textutils"
)

// maxLabelWidth is how much of a label fits on a progress line.
const maxLabelWidth = 32

// NewTerminalProgressBar returns a bar on stderr when stderr is a terminal
// and stdout is not, so it never interleaves with the progress lines. It
// returns nil otherwise.
func NewTerminalProgressBar(n int) *progressbar.ProgressBar {
	if !isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsTerminal(os.Stdout.Fd()) {
		return nil
	}

	return progressbar.NewOptions(n,
		progressbar.OptionSetDescription("Geocoding"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func writeHeader(w io.Writer) error {
	rule := strings.Repeat("=", 70)
	_, err := fmt.Fprintf(w, "\n%s\n%-5s %-20s %-8s %-8s %-10s %s\n%s\n",
		rule, "#", "Status", "Nom", "Wiki", "Dist", "Location", rule)

	return err
}

func sourceMark(r geocode.Result) string {
	switch {
	case r.Found():
		return "OK"
	case r.Status == geocode.StatusError:
		return "ERR"
	default:
		return "--"
	}
}

func writeLine(w io.Writer, n int, rec reconcile.Record) error {
	dist := "--"
	if rec.DistanceKm != nil {
		dist = fmt.Sprintf("%.1fkm", *rec.DistanceKm)
	}

	_, err := fmt.Fprintf(w, "%-5d %-20s %-8s %-8s %-10s %s\n",
		n, rec.Status(), sourceMark(rec.Nominatim), sourceMark(rec.Wikipedia), dist,
		textutils.Abbreviate(rec.Place, maxLabelWidth))

	return err
}
