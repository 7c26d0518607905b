// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/biosearch/pkg/embeddings"
	"github.com/papercomputeco/biosearch/pkg/embeddings/cache"
	"github.com/papercomputeco/biosearch/pkg/embeddings/httpmodel"
	"github.com/papercomputeco/biosearch/pkg/embeddings/worker"
)

// Providers lists the inference provider names NewModel understands.
var Providers = []string{"http", "worker"}

type NewModelOpts struct {
	ProviderType string

	// TargetURL is the model server URL for the http provider.
	TargetURL string

	// Python and Script start the worker provider.
	Python  string
	Script  string
	Workers int

	RateLimit float64

	// CacheURL enables the Redis embedding cache when set.
	CacheURL string

	Logger *slog.Logger
}

func NewModel(ctx context.Context, o *NewModelOpts) (embeddings.Model, error) {
	var (
		model embeddings.Model
		err   error
	)

	switch o.ProviderType {
	case "http":
		model, err = httpmodel.New(httpmodel.Config{
			BaseURL:   o.TargetURL,
			RateLimit: o.RateLimit,
		}, o.Logger)
	case "worker":
		model, err = worker.New(worker.Config{
			Python:  o.Python,
			Script:  o.Script,
			Workers: o.Workers,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported inference provider: %s", o.ProviderType)
	}
	if err != nil {
		return nil, err
	}

	if o.CacheURL == "" {
		return model, nil
	}

	store, err := cache.NewRedisStore(ctx, o.CacheURL)
	if err != nil {
		model.Close()
		return nil, err
	}
	o.Logger.Info("caching embeddings in redis", "provider", o.ProviderType)
	return cache.New(model, store, cache.Config{Namespace: o.ProviderType}, o.Logger), nil
}
