// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

// Package reconcile decides which source coordinate becomes the authoritative
// one for a place label and keeps the run counters.
package reconcile

import (
	"math"

	"github.com/jcodagnone/terroir/geocode"
	"github.com/jcodagnone/terroir/spatial"
)

// DefaultThresholdKm is the divergence threshold the run statistics were
// tuned against.
const DefaultThresholdKm = 50.0

// Outcome is the branch of the decision table a record took.
type Outcome string

const (
	OutcomeAgreed        Outcome = "agreed"
	OutcomeDiverged      Outcome = "diverged"
	OutcomeOnlyNominatim Outcome = "only_nominatim"
	OutcomeOnlyWikipedia Outcome = "only_wikipedia"
	OutcomeFailed        Outcome = "failed"
)

// Outcomes lists every outcome in report order.
var Outcomes = []Outcome{OutcomeAgreed, OutcomeDiverged, OutcomeOnlyNominatim, OutcomeOnlyWikipedia, OutcomeFailed}

// Resolve applies the decision table to the two source results:
//
//	A found, B found, distance <= threshold  -> A
//	A found, B found, distance >  threshold  -> B
//	A found only                             -> A
//	B found only                             -> B
//	neither                                  -> no coordinate
//
// Agreement favors the more granular free-text source; divergence favors the
// source indexed by canonical place identity. The rule is kept exactly as is,
// downstream thresholds depend on it.
func Resolve(label, region string, a, b geocode.Result, thresholdKm float64) Record {
	rec := Record{
		Place:     label,
		Region:    region,
		Nominatim: a,
		Wikipedia: b,
	}

	switch {
	case a.Found() && b.Found():
		d, err := spatial.DistanceKm(*a.Point, *b.Point)
		if err != nil {
			// unreachable with well-behaved adapters, which reject invalid points
			rec.choose(geocode.SourceNominatim, *a.Point)
			rec.Outcome = OutcomeOnlyNominatim

			break
		}

		rounded := roundKm(d)
		rec.DistanceKm = &rounded

		if d <= thresholdKm {
			rec.choose(geocode.SourceNominatim, *a.Point)
			rec.Outcome = OutcomeAgreed
		} else {
			rec.choose(geocode.SourceWikipedia, *b.Point)
			rec.Outcome = OutcomeDiverged
		}
	case a.Found():
		rec.choose(geocode.SourceNominatim, *a.Point)
		rec.Outcome = OutcomeOnlyNominatim
	case b.Found():
		rec.choose(geocode.SourceWikipedia, *b.Point)
		rec.Outcome = OutcomeOnlyWikipedia
	default:
		rec.Outcome = OutcomeFailed
	}

	return rec
}

func (r *Record) choose(src geocode.SourceID, p spatial.Point) {
	r.ChosenSource = src
	r.Chosen = &p
}

// roundKm keeps two decimals, the precision the persisted files have always had.
func roundKm(d float64) float64 {
	return math.Round(d*100) / 100
}
