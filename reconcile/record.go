// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"fmt"

	"github.com/jcodagnone/terroir/geocode"
	"github.com/jcodagnone/terroir/spatial"
)

// Record is the resolution of one place label. It is built once by Resolve
// and not modified afterwards.
type Record struct {
	Place     string
	Region    string
	Nominatim geocode.Result
	Wikipedia geocode.Result

	// DistanceKm is set only when both sources found a coordinate.
	DistanceKm *float64

	// ChosenSource is empty when neither source found the place.
	ChosenSource geocode.SourceID
	Chosen       *spatial.Point

	Outcome Outcome
}

// Resolved reports whether a coordinate was chosen.
func (r Record) Resolved() bool {
	return r.Chosen != nil
}

// Status is the short human label used on progress lines.
func (r Record) Status() string {
	switch r.Outcome {
	case OutcomeAgreed:
		return "BOTH OK"
	case OutcomeDiverged:
		if r.DistanceKm != nil {
			return fmt.Sprintf("DIVERGED (%.0fkm)", *r.DistanceKm)
		}

		return "DIVERGED"
	case OutcomeOnlyNominatim:
		return "NOM ONLY"
	case OutcomeOnlyWikipedia:
		return "WIKI ONLY"
	default:
		return "FAILED"
	}
}
