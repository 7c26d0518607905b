// Package pinecone provides a vector driver for a Pinecone serverless index
// built on the official Go SDK.
package pinecone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/papercomputeco/biosearch/pkg/utils"
	"github.com/papercomputeco/biosearch/pkg/vector"
)

// maxUpsertBatch is the largest vector batch Pinecone accepts per request.
const maxUpsertBatch = 100

// Config holds configuration for the Pinecone driver.
type Config struct {
	// Host is the index host, e.g. "faces-abc123.svc.us-east-1.pinecone.io".
	// An "http://" host talks to Pinecone Local without TLS.
	Host string

	// APIKey authenticates against the project owning the index.
	APIKey string

	Retry utils.RetryPolicy
}

// indexConn is the part of *pinecone.IndexConnection the driver uses. A
// connection is bound to a single namespace.
type indexConn interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DeleteVectorsById(ctx context.Context, ids []string) error
	Close() error
}

// Driver implements vector.Driver on a Pinecone index. Pinecone namespaces
// map one to one onto vector namespaces, each with its own connection.
type Driver struct {
	connect func(namespace string) (indexConn, error)
	retry   utils.RetryPolicy
	logger  *slog.Logger

	mu    sync.Mutex
	conns map[string]indexConn
}

// NewDriver creates a new Pinecone driver.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.Host == "" {
		return nil, errors.New("pinecone index host is required")
	}
	if c.APIKey == "" {
		return nil, errors.New("pinecone API key is required")
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: c.APIKey})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	logger.Info("using Pinecone index", "host", c.Host)

	return newDriver(func(namespace string) (indexConn, error) {
		return client.Index(pinecone.NewIndexConnParams{Host: c.Host, Namespace: namespace})
	}, c.Retry, logger), nil
}

func newDriver(connect func(string) (indexConn, error), retry utils.RetryPolicy, logger *slog.Logger) *Driver {
	return &Driver{
		connect: connect,
		retry:   retry,
		logger:  logger,
		conns:   make(map[string]indexConn),
	}
}

// Upsert writes docs in batches of at most 100 vectors.
func (d *Driver) Upsert(ctx context.Context, namespace string, docs []vector.Document) error {
	conn, err := d.conn(namespace)
	if err != nil {
		return err
	}

	for start := 0; start < len(docs); start += maxUpsertBatch {
		end := min(start+maxUpsertBatch, len(docs))

		batch := make([]*pinecone.Vector, 0, end-start)
		for _, doc := range docs[start:end] {
			v, err := toVector(doc)
			if err != nil {
				return fmt.Errorf("upserting %s: %w", doc.ID, err)
			}
			batch = append(batch, v)
		}

		var count uint32
		err := d.do(ctx, func(ctx context.Context) error {
			var err error
			count, err = conn.UpsertVectors(ctx, batch)
			return err
		})
		if err != nil {
			return fmt.Errorf("upserting vectors: %w", err)
		}

		d.logger.Debug("upserted vectors to pinecone",
			"namespace", namespace,
			"count", count,
		)
	}

	return nil
}

// Query finds the topK most similar vectors, metadata included.
func (d *Driver) Query(ctx context.Context, namespace string, embedding []float32, topK int) ([]vector.Match, error) {
	conn, err := d.conn(namespace)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}

	var resp *pinecone.QueryVectorsResponse
	err = d.do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
			Vector:          embedding,
			TopK:            uint32(topK),
			IncludeMetadata: true,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}

	matches := make([]vector.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		matches = append(matches, vector.Match{
			ID:       m.Vector.Id,
			Score:    m.Score,
			Metadata: fromMetadata(m.Vector.Metadata),
		})
	}

	d.logger.Debug("queried pinecone",
		"namespace", namespace,
		"results", len(matches),
	)

	return matches, nil
}

// Delete removes vectors by their IDs.
func (d *Driver) Delete(ctx context.Context, namespace string, ids []string) error {
	conn, err := d.conn(namespace)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	err = d.do(ctx, func(ctx context.Context) error {
		return conn.DeleteVectorsById(ctx, ids)
	})
	if err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	return nil
}

// Close closes every namespace connection.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for ns, conn := range d.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", ns, err))
		}
		delete(d.conns, ns)
	}
	return errors.Join(errs...)
}

// conn returns the connection for namespace, dialing it on first use.
func (d *Driver) conn(namespace string) (indexConn, error) {
	if namespace == "" {
		return nil, vector.ErrNamespace
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if conn, ok := d.conns[namespace]; ok {
		return conn, nil
	}
	conn, err := d.connect(namespace)
	if err != nil {
		return nil, fmt.Errorf("%w: namespace %s: %w", vector.ErrConnection, namespace, err)
	}
	d.conns[namespace] = conn
	return conn, nil
}

// do runs fn under the retry policy. Throttling and transient server
// failures are retried.
func (d *Driver) do(ctx context.Context, fn func(context.Context) error) error {
	return d.retry.Do(ctx, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		switch status.Code(err) {
		case codes.Unavailable:
			return utils.Retryable(fmt.Errorf("%w: %w", vector.ErrConnection, err))
		case codes.ResourceExhausted, codes.Aborted, codes.Internal:
			return utils.Retryable(err)
		default:
			return err
		}
	})
}

func toVector(doc vector.Document) (*pinecone.Vector, error) {
	values := doc.Embedding
	v := &pinecone.Vector{Id: doc.ID, Values: &values}
	if len(doc.Metadata) > 0 {
		md, err := structpb.NewStruct(doc.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encoding metadata: %w", err)
		}
		v.Metadata = md
	}
	return v, nil
}

func fromMetadata(md *pinecone.Metadata) vector.Metadata {
	if md == nil {
		return vector.Metadata{}
	}
	return vector.Metadata(md.AsMap())
}
