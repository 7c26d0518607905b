// Package nop provides a blob store that persists nothing.
package nop

import (
	"context"
	"io"

	"github.com/papercomputeco/biosearch/pkg/blob"
)

// Store discards every object and returns empty links.
type Store struct{}

// New returns a no-op store.
func New() *Store {
	return &Store{}
}

func (*Store) Put(_ context.Context, _ string, body io.Reader, _ string) (string, error) {
	_, err := io.Copy(io.Discard, body)
	return "", err
}

func (*Store) Close() error {
	return nil
}

var _ blob.Store = (*Store)(nil)
