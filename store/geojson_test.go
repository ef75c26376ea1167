// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcodagnone/terroir/place"
)

type featureCollection struct {
	Type     string `json:"type"`
	Features []struct {
		Type     string `json:"type"`
		Geometry struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func TestWriteGeoJSON(t *testing.T) {
	wines := []place.Record{}
	for i := range 12 {
		wines = append(wines, place.Record{
			Name:     fmt.Sprintf("Wine %d", i),
			Vineyard: "Bodega",
			Place:    "Cafayate Valley, Salta, Argentina",
		})
	}

	var buf bytes.Buffer

	n, err := WriteGeoJSON(&buf, sampleSet(), place.IndexByPlace(wines))
	require.NoError(t, err)
	assert.Equal(t, 3, n, "the failed record has no feature")

	var fc featureCollection
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))

	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 3)

	cafayate := fc.Features[0]
	assert.Equal(t, "Feature", cafayate.Type)
	assert.Equal(t, "Point", cafayate.Geometry.Type)
	// GeoJSON positions are lon, lat
	assert.InDeltaSlice(t, []float64{-65.976, -26.073}, cafayate.Geometry.Coordinates, 1e-9)

	props := cafayate.Properties
	assert.Equal(t, "Cafayate Valley, Salta, Argentina", props["place"])
	assert.Equal(t, "Argentina", props["country"])
	assert.InDelta(t, 12, props["wine_count"], 0)
	assert.Equal(t, "nominatim", props["source"])
	assert.NotNil(t, props["distance_km"])
	assert.InDelta(t, -26.07, props["wikipedia_lat"], 1e-9)

	listed, ok := props["wines"].(string)
	require.True(t, ok)
	assert.Contains(t, listed, "Wine 0 (Bodega); Wine 1 (Bodega)")
	assert.Contains(t, listed, "Wine 9 (Bodega)")
	assert.NotContains(t, listed, "Wine 10")

	priorat := fc.Features[2].Properties
	assert.Equal(t, "Priorat, Spain", priorat["place"])
	assert.Nil(t, priorat["nominatim_lat"])
	assert.Nil(t, priorat["distance_km"])
	assert.InDelta(t, 0, priorat["wine_count"], 0)
	assert.Equal(t, "", priorat["wines"])
}

func TestWriteGeoJSONEmpty(t *testing.T) {
	var buf bytes.Buffer

	n, err := WriteGeoJSON(&buf, NewResultSet(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	var fc featureCollection
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Empty(t, fc.Features)
}

func TestSaveGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.geojson")

	n, err := SaveGeoJSON(path, sampleSet(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = SaveGeoJSON(filepath.Join(t.TempDir(), "missing", "map.geojson"), sampleSet(), nil)
	require.Error(t, err)
}
