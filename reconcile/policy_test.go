// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcodagnone/terroir/geocode"
	"github.com/jcodagnone/terroir/spatial"
)

func foundAt(src geocode.SourceID, lat, lng float64) geocode.Result {
	return geocode.Result{Source: src, Status: geocode.StatusFound, Point: &spatial.Point{Lat: lat, Lng: lng}, Attempts: 1}
}

func missing(src geocode.SourceID) geocode.Result {
	return geocode.Result{Source: src, Status: geocode.StatusNotFound, Attempts: 1}
}

func broken(src geocode.SourceID) geocode.Result {
	return geocode.Result{Source: src, Status: geocode.StatusError, Err: "timeout", Attempts: 3}
}

func TestResolveDecisionTable(t *testing.T) {
	const (
		a = geocode.SourceNominatim
		b = geocode.SourceWikipedia
	)

	tests := []struct {
		name      string
		a, b      geocode.Result
		source    geocode.SourceID
		chosen    *spatial.Point
		distance  float64
		hasDist   bool
		outcome   Outcome
		distDelta float64
	}{
		{
			name: "agree picks nominatim", a: foundAt(a, 48.8, 2.3), b: foundAt(b, 48.81, 2.31),
			source: a, chosen: &spatial.Point{Lat: 48.8, Lng: 2.3},
			hasDist: true, distance: 1.3, distDelta: 0.1, outcome: OutcomeAgreed,
		},
		{
			name: "diverge picks wikipedia", a: foundAt(a, 45.0, 5.0), b: foundAt(b, 10.0, 5.0),
			source: b, chosen: &spatial.Point{Lat: 10.0, Lng: 5.0},
			hasDist: true, distance: 3894, distDelta: 5, outcome: OutcomeDiverged,
		},
		{
			name: "only wikipedia", a: missing(a), b: foundAt(b, 40.0, -3.0),
			source: b, chosen: &spatial.Point{Lat: 40.0, Lng: -3.0}, outcome: OutcomeOnlyWikipedia,
		},
		{
			name: "nominatim error, wikipedia found", a: broken(a), b: foundAt(b, 40.0, -3.0),
			source: b, chosen: &spatial.Point{Lat: 40.0, Lng: -3.0}, outcome: OutcomeOnlyWikipedia,
		},
		{
			name: "only nominatim", a: foundAt(a, -26.07, -65.97), b: missing(b),
			source: a, chosen: &spatial.Point{Lat: -26.07, Lng: -65.97}, outcome: OutcomeOnlyNominatim,
		},
		{
			name: "nominatim found, wikipedia error", a: foundAt(a, -26.07, -65.97), b: broken(b),
			source: a, chosen: &spatial.Point{Lat: -26.07, Lng: -65.97}, outcome: OutcomeOnlyNominatim,
		},
		{name: "both not found", a: missing(a), b: missing(b), outcome: OutcomeFailed},
		{name: "both errors", a: broken(a), b: broken(b), outcome: OutcomeFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := Resolve("label", "region", tc.a, tc.b, DefaultThresholdKm)

			assert.Equal(t, "label", rec.Place)
			assert.Equal(t, "region", rec.Region)
			assert.Equal(t, tc.outcome, rec.Outcome)
			assert.Equal(t, tc.source, rec.ChosenSource)
			assert.Equal(t, tc.chosen, rec.Chosen)
			assert.Equal(t, tc.a, rec.Nominatim)
			assert.Equal(t, tc.b, rec.Wikipedia)

			if tc.hasDist {
				require.NotNil(t, rec.DistanceKm)
				assert.InDelta(t, tc.distance, *rec.DistanceKm, tc.distDelta)
			} else {
				assert.Nil(t, rec.DistanceKm)
			}
		})
	}
}

func TestResolveChosenIsAFoundPoint(t *testing.T) {
	points := []geocode.Result{
		foundAt(geocode.SourceNominatim, 0, 0),
		foundAt(geocode.SourceNominatim, 0, 0.1),
		foundAt(geocode.SourceNominatim, 60, 30),
		missing(geocode.SourceNominatim),
		broken(geocode.SourceNominatim),
	}

	for _, a := range points {
		for _, b := range points {
			b.Source = geocode.SourceWikipedia

			rec := Resolve("x", "", a, b, DefaultThresholdKm)
			if rec.Chosen == nil {
				assert.False(t, a.Found() || b.Found())
				assert.Empty(t, rec.ChosenSource)

				continue
			}

			switch rec.ChosenSource {
			case geocode.SourceNominatim:
				require.True(t, a.Found())
				assert.Equal(t, *a.Point, *rec.Chosen)
			case geocode.SourceWikipedia:
				require.True(t, b.Found())
				assert.Equal(t, *b.Point, *rec.Chosen)
			default:
				t.Fatalf("unexpected source %q", rec.ChosenSource)
			}
		}
	}
}

func TestResolveThresholdBoundary(t *testing.T) {
	a := foundAt(geocode.SourceNominatim, 0, 0)
	b := foundAt(geocode.SourceWikipedia, 0, 1)

	d, err := spatial.DistanceKm(*a.Point, *b.Point)
	require.NoError(t, err)

	// exactly at the threshold still agrees
	assert.Equal(t, OutcomeAgreed, Resolve("x", "", a, b, d).Outcome)
	assert.Equal(t, OutcomeDiverged, Resolve("x", "", a, b, d-0.001).Outcome)
}

func TestResolveDistanceRounded(t *testing.T) {
	rec := Resolve("x", "", foundAt(geocode.SourceNominatim, 0, 0), foundAt(geocode.SourceWikipedia, 0, 1), DefaultThresholdKm)

	require.NotNil(t, rec.DistanceKm)
	assert.InDelta(t, 111.19, *rec.DistanceKm, 1e-9)
}

func TestRecordStatus(t *testing.T) {
	d := 3894.4
	assert.Equal(t, "DIVERGED (3894km)", Record{Outcome: OutcomeDiverged, DistanceKm: &d}.Status())
	assert.Equal(t, "BOTH OK", Record{Outcome: OutcomeAgreed}.Status())
	assert.Equal(t, "NOM ONLY", Record{Outcome: OutcomeOnlyNominatim}.Status())
	assert.Equal(t, "WIKI ONLY", Record{Outcome: OutcomeOnlyWikipedia}.Status())
	assert.Equal(t, "FAILED", Record{Outcome: OutcomeFailed}.Status())
}

func TestStatistics(t *testing.T) {
	var s Statistics

	s = s.Add(Resolve("a", "", foundAt(geocode.SourceNominatim, 48.8, 2.3), foundAt(geocode.SourceWikipedia, 48.81, 2.31), DefaultThresholdKm))
	s = s.Add(Resolve("b", "", foundAt(geocode.SourceNominatim, 45, 5), foundAt(geocode.SourceWikipedia, 10, 5), DefaultThresholdKm))
	s = s.Add(Resolve("c", "", missing(geocode.SourceNominatim), foundAt(geocode.SourceWikipedia, 40, -3), DefaultThresholdKm))

	before := s
	s = s.Add(Resolve("d", "", missing(geocode.SourceNominatim), broken(geocode.SourceWikipedia), DefaultThresholdKm))

	assert.Equal(t, before.Failed+1, s.Failed)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Agreed)
	assert.Equal(t, 1, s.Diverged)
	assert.Equal(t, 1, s.OnlyWikipedia)
	assert.Equal(t, SourceCounts{Found: 2, NotFound: 2}, s.Nominatim)
	assert.Equal(t, SourceCounts{Found: 3, Errors: 1}, s.Wikipedia)
	assert.Equal(t, 3, s.Resolved())

	rates := s.Rates()
	assert.InDelta(t, 50.0, rates.Nominatim, 1e-9)
	assert.InDelta(t, 75.0, rates.Wikipedia, 1e-9)
	assert.InDelta(t, 75.0, rates.Resolution, 1e-9)

	var buf bytes.Buffer
	require.NoError(t, s.WriteSummary(&buf, DefaultThresholdKm))
	assert.Contains(t, buf.String(), "GEOCODING SUMMARY")
	assert.Contains(t, buf.String(), "Both agree (<= 50km)")
	assert.Contains(t, buf.String(), "Successfully geocoded:         3 (75.0%)")
}

func TestStatisticsEmpty(t *testing.T) {
	var s Statistics

	assert.Zero(t, s.Rates())

	var buf bytes.Buffer
	require.NoError(t, s.WriteSummary(&buf, DefaultThresholdKm))
	assert.Contains(t, buf.String(), "0.0%")
}
