// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"fmt"
	"io"
	"strings"

	"github.com/jcodagnone/terroir/geocode"
	"github.com/jcodagnone/terroir/utils/textutils"
)

// SourceCounts tallies the lookups of one source.
type SourceCounts struct {
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
	Errors   int `json:"errors"`
}

// Failed counts every lookup that produced no coordinate.
func (c SourceCounts) Failed() int {
	return c.NotFound + c.Errors
}

func (c SourceCounts) add(r geocode.Result) SourceCounts {
	switch {
	case r.Found():
		c.Found++
	case r.Status == geocode.StatusError:
		c.Errors++
	default:
		c.NotFound++
	}

	return c
}

// Statistics are the counters of one run. The zero value is an empty run;
// Add returns a new value instead of mutating shared state.
type Statistics struct {
	Nominatim SourceCounts `json:"nominatim"`
	Wikipedia SourceCounts `json:"wikipedia"`

	Agreed        int `json:"agreed"`
	Diverged      int `json:"diverged"`
	OnlyNominatim int `json:"only_nominatim"`
	OnlyWikipedia int `json:"only_wikipedia"`
	Failed        int `json:"failed"`

	Total int `json:"total"`
}

// Add accounts for one record.
func (s Statistics) Add(r Record) Statistics {
	s.Total++
	s.Nominatim = s.Nominatim.add(r.Nominatim)
	s.Wikipedia = s.Wikipedia.add(r.Wikipedia)

	switch r.Outcome {
	case OutcomeAgreed:
		s.Agreed++
	case OutcomeDiverged:
		s.Diverged++
	case OutcomeOnlyNominatim:
		s.OnlyNominatim++
	case OutcomeOnlyWikipedia:
		s.OnlyWikipedia++
	default:
		s.Failed++
	}

	return s
}

// Count returns the number of records with the given outcome.
func (s Statistics) Count(o Outcome) int {
	switch o {
	case OutcomeAgreed:
		return s.Agreed
	case OutcomeDiverged:
		return s.Diverged
	case OutcomeOnlyNominatim:
		return s.OnlyNominatim
	case OutcomeOnlyWikipedia:
		return s.OnlyWikipedia
	case OutcomeFailed:
		return s.Failed
	default:
		return 0
	}
}

// Resolved is the number of records with a chosen coordinate.
func (s Statistics) Resolved() int {
	return s.Total - s.Failed
}

// Rates are percentages over the total number of records.
type Rates struct {
	Nominatim  float64 `json:"nominatim"`
	Wikipedia  float64 `json:"wikipedia"`
	Agreement  float64 `json:"agreement"`
	Divergence float64 `json:"divergence"`
	Resolution float64 `json:"resolution"`
}

// Rates computes the success, agreement and resolution percentages.
func (s Statistics) Rates() Rates {
	return Rates{
		Nominatim:  textutils.Percent(s.Nominatim.Found, s.Total),
		Wikipedia:  textutils.Percent(s.Wikipedia.Found, s.Total),
		Agreement:  textutils.Percent(s.Agreed, s.Total),
		Divergence: textutils.Percent(s.Diverged, s.Total),
		Resolution: textutils.Percent(s.Resolved(), s.Total),
	}
}

func outcomeTitle(o Outcome, thresholdKm float64) string {
	switch o {
	case OutcomeAgreed:
		return fmt.Sprintf("Both agree (<= %gkm)", thresholdKm)
	case OutcomeDiverged:
		return "Diverged -> used Wikipedia"
	case OutcomeOnlyNominatim:
		return "Only Nominatim available"
	case OutcomeOnlyWikipedia:
		return "Only Wikipedia available"
	default:
		return "Both failed"
	}
}

// WriteSummary prints the end-of-run table.
func (s Statistics) WriteSummary(w io.Writer, thresholdKm float64) error {
	rule := strings.Repeat("=", 70)
	thin := strings.Repeat("-", 60)

	var b strings.Builder

	fmt.Fprintf(&b, "\n%s\nGEOCODING SUMMARY\n%s\n", rule, rule)

	fmt.Fprintf(&b, "\n%-30s %-12s %-12s %-8s %s\n%s\n", "Source", "Success", "Failed", "Errors", "Rate", thin)

	for _, row := range []struct {
		name string
		c    SourceCounts
	}{
		{"Nominatim", s.Nominatim},
		{"Wikipedia", s.Wikipedia},
	} {
		fmt.Fprintf(&b, "%-30s %-12s %-12s %-8s %.1f%%\n", row.name,
			textutils.FormatInt(int64(row.c.Found)),
			textutils.FormatInt(int64(row.c.Failed())),
			textutils.FormatInt(int64(row.c.Errors)),
			textutils.Percent(row.c.Found, s.Total))
	}

	fmt.Fprintf(&b, "\n%-30s %-12s %s\n%s\n", "Outcome", "Count", "Percentage", thin)

	for _, o := range Outcomes {
		n := s.Count(o)
		fmt.Fprintf(&b, "%-30s %-12s %.1f%%\n", outcomeTitle(o, thresholdKm),
			textutils.FormatInt(int64(n)), textutils.Percent(n, s.Total))
	}

	fmt.Fprintf(&b, "\n%-30s %s\n", "Total locations:", textutils.FormatInt(int64(s.Total)))
	fmt.Fprintf(&b, "%-30s %s (%.1f%%)\n%s\n", "Successfully geocoded:",
		textutils.FormatInt(int64(s.Resolved())), s.Rates().Resolution, rule)

	_, err := io.WriteString(w, b.String())

	return err
}
