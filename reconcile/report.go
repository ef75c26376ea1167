// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/jcodagnone/terroir/utils/textutils"
)

// Bucket counts the records whose distance falls in [From, To).
type Bucket struct {
	From  float64 `json:"from_km"`
	To    float64 `json:"to_km"`
	Count int     `json:"count"`
}

// Label renders the bucket range, e.g. "10-50 km" or ">= 1000 km".
func (b Bucket) Label() string {
	if math.IsInf(b.To, 1) {
		return fmt.Sprintf(">= %g km", b.From)
	}

	return fmt.Sprintf("%g-%g km", b.From, b.To)
}

// DistanceBuckets splits the records with both coordinates into log-scale
// ranges. The threshold is always an edge, so agreement and divergence never
// share a bucket.
func DistanceBuckets(records []Record, thresholdKm float64) []Bucket {
	edges := []float64{0, 1, 10, 100, 1000}
	if i, ok := slices.BinarySearch(edges, thresholdKm); !ok {
		edges = slices.Insert(edges, i, thresholdKm)
	}

	buckets := make([]Bucket, len(edges))
	for i, from := range edges {
		to := math.Inf(1)
		if i+1 < len(edges) {
			to = edges[i+1]
		}

		buckets[i] = Bucket{From: from, To: to}
	}

	for _, r := range records {
		if r.DistanceKm == nil {
			continue
		}

		// Stored distances are rounded, the outcome tells which side of the
		// threshold the exact distance was on.
		d := *r.DistanceKm

		switch {
		case r.Outcome == OutcomeAgreed && d >= thresholdKm:
			d = math.Nextafter(thresholdKm, 0)
		case r.Outcome == OutcomeDiverged && d < thresholdKm:
			d = thresholdKm
		}

		i := sort.Search(len(buckets), func(i int) bool { return buckets[i].To > d })
		buckets[i].Count++
	}

	return buckets
}

// LargestDivergences returns the diverged records ordered by distance,
// largest first, keeping at most n when n is positive. Ties keep the input
// order.
func LargestDivergences(records []Record, n int) []Record {
	var out []Record

	for _, r := range records {
		if r.Outcome == OutcomeDiverged && r.DistanceKm != nil {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].DistanceKm > *out[j].DistanceKm
	})

	if n > 0 && len(out) > n {
		out = out[:n]
	}

	return out
}

// Failures returns the records for which no coordinate could be chosen.
func Failures(records []Record) []Record {
	var out []Record

	for _, r := range records {
		if !r.Resolved() {
			out = append(out, r)
		}
	}

	return out
}

// WriteReport prints the data-quality report: the summary, how far apart the
// two sources are, the top largest divergences and every failed label.
func WriteReport(w io.Writer, records []Record, thresholdKm float64, top int) error {
	var stats Statistics
	for _, r := range records {
		stats = stats.Add(r)
	}

	if err := stats.WriteSummary(w, thresholdKm); err != nil {
		return err
	}

	thin := strings.Repeat("-", 60)

	var b strings.Builder

	buckets := DistanceBuckets(records, thresholdKm)

	compared := 0
	for _, bk := range buckets {
		compared += bk.Count
	}

	fmt.Fprintf(&b, "\nDISTANCE BETWEEN SOURCES (%s places with both)\n%s\n",
		textutils.FormatInt(int64(compared)), thin)

	for _, bk := range buckets {
		fmt.Fprintf(&b, "%-20s %8s %6.1f%%\n", bk.Label(),
			textutils.FormatInt(int64(bk.Count)), textutils.Percent(bk.Count, compared))
	}

	largest := LargestDivergences(records, top)

	fmt.Fprintf(&b, "\nLARGEST DIVERGENCES\n%s\n", thin)

	if len(largest) == 0 {
		b.WriteString("none\n")
	}

	for i, r := range largest {
		fmt.Fprintf(&b, "%3d. %10.2f km  %s\n", i+1, *r.DistanceKm, r.Place)
	}

	failures := Failures(records)

	fmt.Fprintf(&b, "\nFAILED (%s)\n%s\n", textutils.FormatInt(int64(len(failures))), thin)

	for _, r := range failures {
		reason := "not found"
		if r.Nominatim.Err != "" {
			reason = r.Nominatim.Err
		} else if r.Wikipedia.Err != "" {
			reason = r.Wikipedia.Err
		}

		fmt.Fprintf(&b, "%-40s %s\n", textutils.Abbreviate(r.Place, 40), reason)
	}

	_, err := io.WriteString(w, b.String())

	return err
}
