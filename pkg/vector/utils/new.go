package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/biosearch/pkg/vector"
	"github.com/papercomputeco/biosearch/pkg/vector/chroma"
	"github.com/papercomputeco/biosearch/pkg/vector/pgvector"
	"github.com/papercomputeco/biosearch/pkg/vector/pinecone"
	"github.com/papercomputeco/biosearch/pkg/vector/qdrant"
	"github.com/papercomputeco/biosearch/pkg/vector/sqlitevec"
)

// Providers lists the vector store names NewDriver understands.
var Providers = []string{"pinecone", "qdrant", "chroma", "sqlite", "pgvector"}

type NewDriverOpts struct {
	ProviderType string
	Target       string
	Index        string
	APIKey       string
	Dimensions   uint
	Logger       *slog.Logger
}

// NewDriver builds the vector driver named by o.ProviderType. Target is the
// provider's address: an index host, gRPC address, URL, file path or DSN.
func NewDriver(ctx context.Context, o *NewDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "pinecone":
		return pinecone.NewDriver(pinecone.Config{
			Host:   o.Target,
			APIKey: o.APIKey,
		}, o.Logger)

	case "qdrant":
		return qdrant.NewDriver(ctx, qdrant.Config{
			Addr:       o.Target,
			Collection: o.Index,
			Dimensions: o.Dimensions,
			APIKey:     o.APIKey,
		}, o.Logger)

	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL:   o.Target,
			Index: o.Index,
		}, o.Logger)

	case "sqlite":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.Target,
			Dimensions: o.Dimensions,
		}, o.Logger)

	case "pgvector":
		return pgvector.NewDriver(ctx, pgvector.Config{
			ConnString: o.Target,
			Table:      o.Index,
			Dimensions: o.Dimensions,
		}, o.Logger)

	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
