// Package embeddings defines the model clients that turn faces and voices
// into vectors. Implementations live in the sub packages.
package embeddings

import (
	"context"

	"github.com/papercomputeco/biosearch/pkg/faces"
)

// SpeakerEmbedder produces speaker embeddings from audio.
type SpeakerEmbedder interface {
	// EmbedSpeaker embeds the voice in a mono WAV file.
	EmbedSpeaker(ctx context.Context, wavPath string) ([]float32, error)
}

// FaceEmbedder produces face embeddings from face crops.
type FaceEmbedder interface {
	// EmbedFace embeds an encoded image that already contains only a face.
	EmbedFace(ctx context.Context, img []byte) ([]float32, error)
}

// Model bundles the three models a biosearch server needs.
type Model interface {
	SpeakerEmbedder
	FaceEmbedder
	faces.Detector

	// Close releases any resources held by the model client.
	Close() error
}
