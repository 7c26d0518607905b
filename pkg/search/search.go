// Package search implements speaker and face search on top of the model
// clients, the vector store and object storage. It is transport independent;
// the api package maps its results and errors onto HTTP.
package search

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/papercomputeco/biosearch/pkg/blob"
	"github.com/papercomputeco/biosearch/pkg/embeddings"
	"github.com/papercomputeco/biosearch/pkg/eventstream"
	"github.com/papercomputeco/biosearch/pkg/media"
	"github.com/papercomputeco/biosearch/pkg/vector"
)

// Object key prefixes for uploaded originals.
const (
	AudioKeyPrefix = "search/speaker_recoginition/"
	ImageKeyPrefix = "search/original_image/"
	VideoKeyPrefix = "search/original_videos/"
)

// Config holds the tunables shared by both services.
type Config struct {
	AudioNamespace string
	VideoNamespace string
	ImageNamespace string

	// SampleRate is the WAV rate fed to the speaker model.
	SampleRate int

	// FrameRate is the rate videos are resampled to; FrameInterval picks
	// every Nth resampled frame.
	FrameRate     int
	FrameInterval int

	// WorkDir is where request workspaces are created ("" = OS temp dir).
	WorkDir string
}

// DefaultConfig returns the stock namespaces and sampling values.
func DefaultConfig() Config {
	return Config{
		AudioNamespace: "processed-audio",
		VideoNamespace: "preprocessed-videos",
		ImageNamespace: "preprocessed-images",
		SampleRate:     16000,
		FrameRate:      30,
		FrameInterval:  15,
	}
}

// EventSink accepts ingest events for asynchronous publishing.
type EventSink interface {
	Enqueue(event *eventstream.IngestEvent) bool
}

// Deps are the collaborators of the services.
type Deps struct {
	Vectors vector.Driver
	Model   embeddings.Model
	Blobs   blob.Store
	FFmpeg  *media.FFmpeg

	// Threshold is the minimum similarity a match must reach.
	Threshold *Threshold

	// Events is optional.
	Events EventSink

	Logger *slog.Logger
}

func (d *Deps) emit(event *eventstream.IngestEvent) {
	if d.Events == nil {
		return
	}
	d.Events.Enqueue(event)
}

// Threshold is a similarity cut-off that can be changed while serving.
type Threshold struct {
	bits atomic.Uint64
}

// NewThreshold returns a threshold set to v.
func NewThreshold(v float64) *Threshold {
	t := &Threshold{}
	t.Store(v)
	return t
}

func (t *Threshold) Load() float64 {
	return math.Float64frombits(t.bits.Load())
}

func (t *Threshold) Store(v float64) {
	t.bits.Store(math.Float64bits(v))
}

// newBatchID returns 8 random hex characters.
func newBatchID() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
