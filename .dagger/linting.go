package main

import (
	"context"
	"fmt"

	"dagger/biosearch/internal/dagger"
)

const golangciLintVersion = "v2.8.0"

// lintOpts layers golangci-lint on top of goContainer() so the sqlite dev
// headers, CGO, and Go caches are already in place.
func (b *Biosearch) lintOpts() dagger.GolangcilintOpts {
	base := b.goContainer("").
		WithExec([]string{
			"go",
			"install",
			fmt.Sprintf("github.com/golangci/golangci-lint/v2/cmd/golangci-lint@%s", golangciLintVersion),
		})

	return dagger.GolangcilintOpts{
		BaseCtr: base,
	}
}

// CheckLint runs golangci-lint against the biosearch source code without applying fixes.
func (b *Biosearch) CheckLint(ctx context.Context) (string, error) {
	return dag.Golangcilint(b.Source, b.lintOpts()).Check(ctx)
}

// FixLint runs golangci-lint with --fix and returns the modified source directory.
func (b *Biosearch) FixLint(ctx context.Context) *dagger.Directory {
	return dag.Golangcilint(b.Source, b.lintOpts()).Lint()
}
