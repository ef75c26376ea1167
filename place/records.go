// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

// Package place reads the upstream wine records and derives the distinct
// place labels the geocoder works on.
package place

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Record is an upstream catalog entry. Only Place and Region matter for
// geocoding; Name and Vineyard are carried for the map export.
type Record struct {
	Name     string `json:"name"`
	Vineyard string `json:"vineyard"`
	Place    string `json:"place"`
	Region   string `json:"region"`
}

// Place is a distinct label to resolve, with the region of the first record
// that mentioned it.
type Place struct {
	Label  string
	Region string
}

// IsEmpty reports whether the label is blank. Blank labels are never queried.
func IsEmpty(label string) bool {
	return strings.TrimSpace(label) == ""
}

// ParseRecords decodes either the scraper envelope {"wines": [...]} or a bare
// JSON array of records.
func ParseRecords(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, eris.New("place: empty input")
	}

	if data[0] == '[' {
		var records []Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, eris.Wrap(err, "place: decoding record array")
		}

		return records, nil
	}

	var envelope struct {
		Wines *[]Record `json:"wines"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, eris.Wrap(err, "place: decoding records")
	}

	if envelope.Wines == nil {
		return nil, eris.New(`place: input has no "wines" array`)
	}

	return *envelope.Wines, nil
}

// LoadRecords reads upstream records from a JSON file.
func LoadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is provided by the operator
	if err != nil {
		return nil, eris.Wrapf(err, "place: reading %s", path)
	}

	records, err := ParseRecords(data)
	if err != nil {
		return nil, eris.Wrapf(err, "place: parsing %s", path)
	}

	return records, nil
}

// Distinct returns the distinct non-empty place labels in the order they
// first appear.
func Distinct(records []Record) []Place {
	seen := make(map[string]struct{}, len(records))
	places := make([]Place, 0, len(records))

	for _, r := range records {
		if IsEmpty(r.Place) {
			continue
		}

		if _, ok := seen[r.Place]; ok {
			continue
		}

		seen[r.Place] = struct{}{}
		places = append(places, Place{Label: r.Place, Region: r.Region})
	}

	return places
}

// WineIndex groups upstream records by place label for the map export.
type WineIndex map[string][]Record

// IndexByPlace builds a WineIndex, keeping upstream order within each place.
func IndexByPlace(records []Record) WineIndex {
	idx := make(WineIndex)

	for _, r := range records {
		if IsEmpty(r.Place) {
			continue
		}

		idx[r.Place] = append(idx[r.Place], r)
	}

	return idx
}
