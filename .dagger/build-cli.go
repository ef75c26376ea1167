// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

// Build, validation and runtime images for the terroir CLI.
package main

import (
	"context"
	"dagger/terroir/internal/dagger"
)

const (
	cliUser        = "appuser" // build user, uid 1000
	distrolessUser = "65532"   // nonroot user in distroless images
	cliBinary      = "build/terroir"
)

// Compiles the terroir binary into build/ on a cached Go toolchain image.
func (c *Terroir) BuildCliBase(
	ctx context.Context,
	// +defaultPath="/"
	// +ignore=["data", "build", "*.json", "*.geojson", "*.duckdb"]
	src *dagger.Directory,
) *dagger.Container {
	// GOCACHE lives in the build user's home so the volume can be owned by it.
	const cacheDir = "/home/" + cliUser + "/.cache"
	const goBuild = cacheDir + "/go-build"

	return dag.Container().
		// duckdb-go links libduckdb, which needs glibc
		From("golang:1.25.5-bookworm").
		WithExec([]string{"useradd", "-m", "-u", "1000", cliUser}).
		WithWorkdir("/src").
		WithMountedCache(
			"/go/pkg",
			dag.CacheVolume("go-pkg"),
			dagger.ContainerWithMountedCacheOpts{Owner: cliUser},
		).
		WithEnvVariable("GOCACHE", goBuild).
		WithMountedCache(
			cacheDir,
			dag.CacheVolume("go-cache"),
			dagger.ContainerWithMountedCacheOpts{Owner: cliUser},
		).
		// module files first: source edits keep the download layer cached
		WithFile("go.mod", src.File("go.mod")).
		WithFile("go.sum", src.File("go.sum")).
		WithExec([]string{"chown", "-R", cliUser + ":" + cliUser,
			"/src",
			"/home/" + cliUser,
		}).
		WithUser(cliUser).
		WithExec([]string{"go", "mod", "download"}).
		WithUser("root").
		WithDirectory("/src", src).
		WithExec([]string{"chown", "-R", cliUser + ":" + cliUser, "/src"}).
		WithUser(cliUser).
		WithExec([]string{"go", "build", "-trimpath", "-o", cliBinary, "."})
}

// Runs the linters, the security scanners, the license check and the unit tests.
func (c *Terroir) BuildCliValidate(
	ctx context.Context,
	// +defaultPath="/"
	// +ignore=["data", "build", "*.json", "*.geojson", "*.duckdb"]
	src *dagger.Directory,
) *dagger.Container {
	return c.BuildCliBase(ctx, src).
		WithExec([]string{"go", "install", "-v", "github.com/golangci/golangci-lint/cmd/golangci-lint@latest"}).
		WithExec([]string{"go", "install", "-v", "github.com/securego/gosec/v2/cmd/gosec@latest"}).
		WithExec([]string{"go", "install", "-v", "golang.org/x/vuln/cmd/govulncheck@latest"}).
		WithExec([]string{"go", "install", "-v", "honnef.co/go/tools/cmd/staticcheck@latest"}).
		WithExec([]string{"go", "install", "-v", "github.com/google/addlicense@latest"}).
		WithExec([]string{
			"golangci-lint",
			"run",
			"--timeout",
			"5m",
			"./...",
		}).
		WithExec([]string{
			"gosec",
			"-no-fail",
			"-exclude-generated",
			"-exclude-dir", ".dagger",
			"./...",
		}).
		WithExec([]string{"govulncheck", "./..."}).
		WithExec([]string{"go", "vet", "./..."}).
		WithExec([]string{"go", "test", "-count=1", "./..."}).
		WithExec([]string{
			"addlicense",
			"--check",
			"--ignore", "build/**",
			"--ignore", ".dagger/internal/**",
			"-c", "The Terroir Authors",
			"-l", "apache",
			"-s=only",
			".",
		})
}

// Returns a distroless image with only the terroir binary, run as nonroot.
func (c *Terroir) BuildCli(
	ctx context.Context,
	// +defaultPath="/"
	// +ignore=["data", "build", "*.json", "*.geojson", "*.duckdb"]
	src *dagger.Directory,
) *dagger.Container {
	builder := c.BuildCliBase(ctx, src)

	return dag.Container().
		From("gcr.io/distroless/cc-debian12").
		WithWorkdir("/app").
		WithFile("/app/terroir", builder.File("/src/"+cliBinary)).
		WithEntrypoint([]string{"/app/terroir"}).
		WithUser(distrolessUser)
}
