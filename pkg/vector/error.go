package vector

import "errors"

var (
	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")

	// ErrNamespace is returned when an operation is given an empty namespace.
	ErrNamespace = errors.New("vector namespace is required")

	// ErrDimensions is returned when an embedding does not fit the index.
	ErrDimensions = errors.New("embedding dimensions mismatch")
)
