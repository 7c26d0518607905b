package embeddings

import "errors"

var (
	// ErrEmbedding is returned when a model fails to produce an embedding.
	ErrEmbedding = errors.New("embedding failed")

	// ErrDetection is returned when the face detector fails.
	ErrDetection = errors.New("face detection failed")
)
