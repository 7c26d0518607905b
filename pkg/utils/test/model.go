package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/biosearch/pkg/embeddings"
	"github.com/papercomputeco/biosearch/pkg/faces"
)

// MockModel is a test embeddings.Model with canned results and call counters.
type MockModel struct {
	mu sync.Mutex

	// Boxes is returned by Detect for every image.
	Boxes []faces.Box

	// FaceEmbedding and SpeakerEmbedding are returned by the embedders.
	FaceEmbedding    []float32
	SpeakerEmbedding []float32

	FaceCalls    int
	SpeakerCalls int
	DetectCalls  int

	// SpeakerPaths records the WAV paths passed to EmbedSpeaker.
	SpeakerPaths []string

	FailFace    bool
	FailSpeaker bool
	FailDetect  bool

	Closed bool
}

func NewMockModel() *MockModel {
	return &MockModel{
		FaceEmbedding:    []float32{0.1, 0.2, 0.3},
		SpeakerEmbedding: []float32{0.3, 0.2, 0.1},
	}
}

func (m *MockModel) EmbedSpeaker(_ context.Context, wavPath string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SpeakerCalls++
	m.SpeakerPaths = append(m.SpeakerPaths, wavPath)
	if m.FailSpeaker {
		return nil, errors.Join(embeddings.ErrEmbedding, errors.New("mock speaker failure"))
	}
	return m.SpeakerEmbedding, nil
}

func (m *MockModel) EmbedFace(_ context.Context, _ []byte) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FaceCalls++
	if m.FailFace {
		return nil, errors.Join(embeddings.ErrEmbedding, errors.New("mock face failure"))
	}
	return m.FaceEmbedding, nil
}

func (m *MockModel) Detect(_ context.Context, _ []byte) ([]faces.Box, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DetectCalls++
	if m.FailDetect {
		return nil, errors.Join(embeddings.ErrDetection, errors.New("mock detect failure"))
	}
	return m.Boxes, nil
}

func (m *MockModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

var _ embeddings.Model = (*MockModel)(nil)
