package testutils

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/papercomputeco/biosearch/pkg/blob"
)

// StoredObject is one object written to a MockBlobStore.
type StoredObject struct {
	Key         string
	ContentType string
	Body        []byte
}

// MockBlobStore keeps objects in memory and links them beneath BaseURL.
type MockBlobStore struct {
	mu      sync.Mutex
	BaseURL string
	Objects []StoredObject
	FailPut bool
}

func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{BaseURL: "https://media.s3.us-east-1.amazonaws.com"}
}

func (m *MockBlobStore) Put(_ context.Context, key string, body io.Reader, contentType string) (string, error) {
	if m.FailPut {
		return "", errors.New("mock put failure")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects = append(m.Objects, StoredObject{Key: key, ContentType: contentType, Body: data})
	return blob.JoinLink(m.BaseURL, key), nil
}

func (m *MockBlobStore) Close() error {
	return nil
}

var _ blob.Store = (*MockBlobStore)(nil)
