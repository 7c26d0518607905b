// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/papercomputeco/biosearch/pkg/utils"
	"github.com/papercomputeco/biosearch/pkg/vector"
)

const (
	// DefaultIndexName prefixes every collection the driver creates.
	DefaultIndexName = "biosearch"

	apiBase = "/api/v2/tenants/default_tenant/databases/default_database"
)

// Driver implements vector.Driver using Chroma's REST API.
// Each namespace lives in its own collection named "<index>-<namespace>".
type Driver struct {
	baseURL    string
	index      string
	httpClient *http.Client
	retry      utils.RetryPolicy
	logger     *slog.Logger

	mu          sync.Mutex
	collections map[string]string
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// Index prefixes collection names. Defaults to DefaultIndexName.
	Index string

	// MaxRetries bounds the attempts made while Chroma is unreachable.
	MaxRetries    uint64
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// NewDriver creates a new Chroma vector driver. It waits for the server's
// heartbeat, retrying with backoff while Chroma is still starting.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, errors.New("chroma URL is required")
	}

	index := c.Index
	if index == "" {
		index = DefaultIndexName
	}

	d := &Driver{
		baseURL: c.URL,
		index:   index,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		retry: utils.RetryPolicy{
			Attempts: c.MaxRetries,
			Delay:    c.RetryDelay,
			MaxDelay: c.MaxRetryDelay,
		},
		logger:      logger,
		collections: make(map[string]string),
	}

	err := d.retry.Do(context.Background(), func(ctx context.Context) error {
		err := d.do(ctx, http.MethodGet, c.URL+"/api/v2/heartbeat", nil, nil)
		if err != nil && utils.ShouldRetry(err) {
			return utils.Retryable(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", vector.ErrConnection, c.URL, err)
	}

	logger.Info("connected to Chroma",
		"url", c.URL,
		"index", index,
	)

	return d, nil
}

// collection resolves the collection id of a namespace, creating it with
// cosine space on first use.
func (d *Driver) collection(ctx context.Context, namespace string) (string, error) {
	if namespace == "" {
		return "", vector.ErrNamespace
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.collections[namespace]; ok {
		return id, nil
	}

	var coll chromaCollection
	err := d.do(ctx, http.MethodPost, d.baseURL+apiBase+"/collections", chromaCreateRequest{
		Name:        d.index + "-" + namespace,
		Metadata:    map[string]any{"hnsw:space": "cosine"},
		GetOrCreate: true,
	}, &coll)
	if err != nil {
		return "", fmt.Errorf("getting or creating collection for %q: %w", namespace, err)
	}

	d.collections[namespace] = coll.ID
	return coll.ID, nil
}

// Upsert stores documents with their embeddings and metadata.
func (d *Driver) Upsert(ctx context.Context, namespace string, docs []vector.Document) error {
	collID, err := d.collection(ctx, namespace)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	req := chromaUpsertRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadatas:  make([]map[string]any, len(docs)),
	}
	for i, doc := range docs {
		req.IDs[i] = doc.ID
		req.Embeddings[i] = doc.Embedding
		req.Metadatas[i] = doc.Metadata
	}

	if err := d.do(ctx, http.MethodPost, d.collectionURL(collID, "upsert"), req, nil); err != nil {
		return fmt.Errorf("upserting documents: %w", err)
	}

	d.logger.Debug("upserted documents to chroma",
		"namespace", namespace,
		"count", len(docs),
	)

	return nil
}

// Query finds the topK most similar documents to the given embedding.
func (d *Driver) Query(ctx context.Context, namespace string, embedding []float32, topK int) ([]vector.Match, error) {
	collID, err := d.collection(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}

	var resp chromaQueryResponse
	err = d.do(ctx, http.MethodPost, d.collectionURL(collID, "query"), chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"metadatas", "distances"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}

	// Only one embedding is queried, so only the first group matters.
	if len(resp.IDs) == 0 || len(resp.IDs[0]) == 0 {
		return nil, nil
	}

	ids := resp.IDs[0]
	var distances []float32
	if len(resp.Distances) > 0 {
		distances = resp.Distances[0]
	}
	var metadatas []map[string]any
	if len(resp.Metadatas) > 0 {
		metadatas = resp.Metadatas[0]
	}

	matches := make([]vector.Match, 0, len(ids))
	for i, id := range ids {
		m := vector.Match{ID: id}
		if i < len(metadatas) {
			m.Metadata = metadatas[i]
		}
		// cosine space: distance is 1 - similarity
		if i < len(distances) {
			m.Score = 1 - distances[i]
		}
		matches = append(matches, m)
	}

	d.logger.Debug("queried chroma",
		"namespace", namespace,
		"results", len(matches),
	)

	return matches, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, namespace string, ids []string) error {
	collID, err := d.collection(ctx, namespace)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	if err := d.do(ctx, http.MethodPost, d.collectionURL(collID, "delete"), chromaDeleteRequest{IDs: ids}, nil); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	d.logger.Debug("deleted documents from chroma",
		"namespace", namespace,
		"count", len(ids),
	)

	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	d.httpClient.CloseIdleConnections()
	return nil
}

func (d *Driver) collectionURL(id, op string) string {
	return fmt.Sprintf("%s%s/collections/%s/%s", d.baseURL, apiBase, id, op)
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (d *Driver) do(ctx context.Context, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
