// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"github.com/jcodagnone/terroir/geocode"
	"github.com/jcodagnone/terroir/reconcile"
	"github.com/jcodagnone/terroir/spatial"
)

func found(src geocode.SourceID, lat, lng float64, detail string) geocode.Result {
	return geocode.Result{Source: src, Status: geocode.StatusFound, Point: &spatial.Point{Lat: lat, Lng: lng}, Detail: detail, Attempts: 1}
}

func notFound(src geocode.SourceID) geocode.Result {
	return geocode.Result{Source: src, Status: geocode.StatusNotFound, Attempts: 1}
}

func failure(src geocode.SourceID) geocode.Result {
	return geocode.Result{Source: src, Status: geocode.StatusError, Err: "service unavailable (status 503)", Attempts: 3}
}

func sampleRecords() []reconcile.Record {
	return []reconcile.Record{
		reconcile.Resolve("Cafayate Valley, Salta, Argentina", "Salta",
			found(geocode.SourceNominatim, -26.073, -65.976, "Cafayate, Salta"),
			found(geocode.SourceWikipedia, -26.07, -65.97, "Cafayate Valley"),
			reconcile.DefaultThresholdKm),
		reconcile.Resolve("Napa Valley, California, United States", "California",
			found(geocode.SourceNominatim, 45.0, 5.0, "Napa, Somewhere"),
			found(geocode.SourceWikipedia, 38.29, -122.46, "Napa Valley AVA"),
			reconcile.DefaultThresholdKm),
		reconcile.Resolve("Priorat, Spain", "Catalonia",
			notFound(geocode.SourceNominatim),
			found(geocode.SourceWikipedia, 41.2, 0.8, "Priorat"),
			reconcile.DefaultThresholdKm),
		reconcile.Resolve("Xyzzy <Estate> & Co, Nowhere", "",
			failure(geocode.SourceNominatim),
			notFound(geocode.SourceWikipedia),
			reconcile.DefaultThresholdKm),
	}
}

func sampleSet() *ResultSet {
	set := NewResultSet()
	for _, rec := range sampleRecords() {
		set.Put(rec)
	}

	return set
}
