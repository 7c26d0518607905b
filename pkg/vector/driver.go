// Package vector provides the namespaced vector store abstraction that face
// and speaker embeddings are persisted in, plus its drivers.
package vector

import "context"

// Metadata is the free-form payload stored next to an embedding.
type Metadata map[string]any

// String returns the value under key when it is a string, "" otherwise.
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// Document represents a stored item with its embedding and metadata.
type Document struct {
	// ID is the caller-chosen identifier, unique within a namespace.
	ID string

	// Embedding is the vector representation of a face or a voice.
	Embedding []float32

	// Metadata carries file names, links, timestamps and face numbers.
	Metadata Metadata
}

// Match represents a search result with similarity score.
type Match struct {
	ID string

	// Score is a cosine similarity (higher = more similar).
	Score float32

	Metadata Metadata
}

// Driver handles storage and retrieval of vector embeddings.
// Every operation is scoped to a namespace; documents in different namespaces
// never see each other.
type Driver interface {
	// Upsert stores documents with their embeddings.
	// A document with an existing ID in the namespace is replaced.
	Upsert(ctx context.Context, namespace string, docs []Document) error

	// Query finds the topK most similar documents in namespace, metadata included.
	Query(ctx context.Context, namespace string, embedding []float32, topK int) ([]Match, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, namespace string, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}
