package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/biosearch/pkg/vector"
)

// QueryCall records one Query invocation.
type QueryCall struct {
	Namespace string
	Embedding []float32
	TopK      int
}

// MockVectorDriver is a test vector driver that records upserts and returns
// canned matches per namespace.
type MockVectorDriver struct {
	mu sync.Mutex

	// Upserted holds every document passed to Upsert, per namespace.
	Upserted map[string][]vector.Document

	// Results is returned by Query for a namespace, truncated to topK.
	Results map[string][]vector.Match

	Queries []QueryCall
	Deleted map[string][]string

	FailUpsert bool
	FailQuery  bool
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		Upserted: make(map[string][]vector.Document),
		Results:  make(map[string][]vector.Match),
		Deleted:  make(map[string][]string),
	}
}

func (m *MockVectorDriver) Upsert(_ context.Context, namespace string, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpsert {
		return errors.New("mock upsert failure")
	}
	m.Upserted[namespace] = append(m.Upserted[namespace], docs...)
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, namespace string, embedding []float32, topK int) ([]vector.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, QueryCall{Namespace: namespace, Embedding: embedding, TopK: topK})
	if m.FailQuery {
		return nil, vector.ErrConnection
	}
	results := m.Results[namespace]
	if len(results) < topK {
		return results, nil
	}
	return results[:topK], nil
}

func (m *MockVectorDriver) Delete(_ context.Context, namespace string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted[namespace] = append(m.Deleted[namespace], ids...)
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}

// UpsertedIDs lists the IDs stored in namespace, in upsert order.
func (m *MockVectorDriver) UpsertedIDs(namespace string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.Upserted[namespace]))
	for _, d := range m.Upserted[namespace] {
		ids = append(ids, d.ID)
	}
	return ids
}
