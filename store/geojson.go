// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/jcodagnone/terroir/place"
	"github.com/jcodagnone/terroir/reconcile"
)

// maxListedWines caps the "wines" property of a feature.
const maxListedWines = 10

// Feature builds the map feature of a record, nil when nothing was chosen.
func Feature(rec reconcile.Record, wines []place.Record) *geojson.Feature {
	if rec.Chosen == nil {
		return nil
	}

	names := make([]string, 0, min(len(wines), maxListedWines))
	for i, w := range wines {
		if i == maxListedWines {
			break
		}

		names = append(names, w.Name+" ("+w.Vineyard+")")
	}

	nomLat, nomLon := latLon(rec.Nominatim.Point)
	wikiLat, wikiLon := latLon(rec.Wikipedia.Point)

	return &geojson.Feature{
		Geometry: geom.NewPointFlat(geom.XY, []float64{rec.Chosen.Lng, rec.Chosen.Lat}),
		Properties: map[string]interface{}{
			"place":         rec.Place,
			"country":       place.Country(rec.Place),
			"wine_count":    len(wines),
			"wines":         strings.Join(names, "; "),
			"source":        string(rec.ChosenSource),
			"outcome":       string(rec.Outcome),
			"nominatim_lat": nomLat,
			"nominatim_lon": nomLon,
			"wikipedia_lat": wikiLat,
			"wikipedia_lon": wikiLon,
			"distance_km":   rec.DistanceKm,
		},
	}
}

// FeatureCollection builds one Point feature per resolved record, in label
// order. idx may be nil, in which case wine counts are zero.
func FeatureCollection(set *ResultSet, idx place.WineIndex) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}

	for _, rec := range set.Records() {
		if f := Feature(rec, idx[rec.Place]); f != nil {
			fc.Features = append(fc.Features, f)
		}
	}

	return fc
}

// WriteGeoJSON encodes the map export of set to w and returns the number of
// features written.
func WriteGeoJSON(w io.Writer, set *ResultSet, idx place.WineIndex) (int, error) {
	fc := FeatureCollection(set, idx)

	raw, err := fc.MarshalJSON()
	if err != nil {
		return 0, eris.Wrap(err, "store: encoding geojson")
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return 0, eris.Wrap(err, "store: indenting geojson")
	}

	buf.WriteByte('\n')

	if _, err := buf.WriteTo(w); err != nil {
		return 0, eris.Wrap(err, "store: writing geojson")
	}

	return len(fc.Features), nil
}

// SaveGeoJSON writes the map export to path.
func SaveGeoJSON(path string, set *ResultSet, idx place.WineIndex) (int, error) {
	f, err := os.Create(path) // #nosec G304 - path is provided by the operator
	if err != nil {
		return 0, eris.Wrapf(err, "store: creating %s", path)
	}

	n, err := WriteGeoJSON(f, set, idx)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = eris.Wrapf(cerr, "store: closing %s", path)
	}

	return n, err
}
