// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"dagger/terroir/internal/dagger"
	"strconv"
)

type Terroir struct{}

// Runs the unit tests. DuckDB needs network access the first time to fetch
// the spatial extension.
func (t *Terroir) Test(
	ctx context.Context,
	// +defaultPath="/"
	// +ignore=["data", "build", "*.json", "*.geojson", "*.duckdb"]
	src *dagger.Directory,
) (string, error) {
	return t.BuildCliBase(ctx, src).
		WithExec([]string{"go", "test", "-race", "./..."}).
		Stdout(ctx)
}

// Geocodes a catalog with the CLI image and returns the output directory.
// It respects the public services pacing, so expect about 1.1s per label.
func (t *Terroir) Geocode(
	ctx context.Context,
	// +defaultPath="/"
	// +ignore=["data", "build", "*.json", "*.geojson", "*.duckdb"]
	src *dagger.Directory,
	// directory holding wines.json
	data *dagger.Directory,
	// +optional
	// +default=1
	workers int,
) *dagger.Directory {
	return t.BuildCli(ctx, src).
		WithUser("root").
		WithDirectory("/app/data", data).
		WithExec([]string{
			"/app/terroir", "geocode", "--with-geojson",
			"--workers", strconv.Itoa(max(workers, 1)),
		}).
		Directory("/app/data")
}
