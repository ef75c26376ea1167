// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocode adapts the external geocoding services to a single Source
// contract. Every adapter paces its own requests and reports failures as
// data in a Result; the only error surfaced to callers is context
// cancellation, which shows up as a Result with StatusError.
package geocode

import (
	"context"
	"time"

	"github.com/jcodagnone/terroir/spatial"
)

// SourceID names a geocoding provider.
type SourceID string

const (
	// SourceNominatim is the OpenStreetMap free-text geocoder (source A).
	SourceNominatim SourceID = "nominatim"
	// SourceWikipedia is the Wikipedia page-coordinates lookup (source B).
	SourceWikipedia SourceID = "wikipedia"
)

// Status is the outcome of a single source lookup.
type Status string

const (
	// StatusFound the source returned a coordinate.
	StatusFound Status = "found"
	// StatusNotFound the source answered with no usable coordinate.
	StatusNotFound Status = "not_found"
	// StatusError the lookup failed after all permitted attempts.
	StatusError Status = "error"
)

// Result is what a Source reports for one label.
type Result struct {
	Source SourceID
	Status Status
	// Point is set only when Status is StatusFound.
	Point *spatial.Point
	// Detail is the provider's display name or page title, when known.
	Detail string
	// Err is the failure reason when Status is StatusError.
	Err string
	// Attempts counts network requests made to obtain this result. Zero means
	// the request was never sent (empty title). A memoized answer keeps the
	// count of the request that produced it.
	Attempts int
}

// Found reports whether the result carries a coordinate.
func (r Result) Found() bool {
	return r.Status == StatusFound && r.Point != nil
}

// Source resolves a place label to at most one coordinate.
//
// Query never returns a Go error: every failure is folded into the Result.
// Implementations must be safe for concurrent use and must honor
// MinInterval across all callers.
type Source interface {
	Name() SourceID
	MinInterval() time.Duration
	Query(ctx context.Context, label string) Result
}

func found(id SourceID, p spatial.Point, detail string, attempts int) Result {
	return Result{Source: id, Status: StatusFound, Point: &p, Detail: detail, Attempts: attempts}
}

func notFound(id SourceID, detail string, attempts int) Result {
	return Result{Source: id, Status: StatusNotFound, Detail: detail, Attempts: attempts}
}

func failed(id SourceID, err error, attempts int) Result {
	return Result{Source: id, Status: StatusError, Err: err.Error(), Attempts: attempts}
}
