package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/biosearch/internal/dagger"
)

// Build and return directory of linux binaries. The sqlite vector store
// needs cgo, so every architecture builds in its own emulated container.
func (b *Biosearch) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	goarches := []string{"amd64", "arm64"}

	outputs := dag.Directory()

	for _, goarch := range goarches {
		path := fmt.Sprintf("linux/%s/", goarch)

		build := b.goContainer(dagger.Platform("linux/"+goarch)).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/biosearch"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (b *Biosearch) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now().UTC().Format(time.RFC3339)

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/biosearch/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/biosearch/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/biosearch/pkg/utils.Buildtime=%s'", buildtime),
	}

	return b.Build(ctx, strings.Join(ldflags, " "))
}
