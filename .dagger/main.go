// Biosearch CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/biosearch/internal/dagger"
)

// Biosearch is the main module for the biosearch CI/CD pipeline
type Biosearch struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Biosearch CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".biosearch", "build", "tmp", "_examples"]
	source *dagger.Directory,
) *Biosearch {
	return &Biosearch{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with gcc,
// libsqlite3-dev, ffmpeg, CGO enabled, and the project source mounted.
func (b *Biosearch) goContainer(platform dagger.Platform) *dagger.Container {
	return dag.Container(dagger.ContainerOpts{Platform: platform}).
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev", "ffmpeg"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+string(platform))).
		WithWorkdir("/src").
		WithDirectory("/src", b.Source)
}

// Test runs the biosearch unit tests via "go test"
//
// +check
func (b *Biosearch) Test(ctx context.Context) (string, error) {
	return b.goContainer("").
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}
