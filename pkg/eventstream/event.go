package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMediaIngested is emitted after a media file's embeddings are stored.
	EventTypeMediaIngested = "biosearch.media.ingested"
)

// Family names the media family an event belongs to.
type Family string

const (
	FamilyAudio Family = "audio"
	FamilyImage Family = "image"
	FamilyVideo Family = "video"
)

// IngestEvent is a transport-neutral event payload for an ingested file.
type IngestEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	Family        Family    `json:"family"`
	FileName      string    `json:"file_name"`
	Link          string    `json:"link,omitempty"`
	Namespace     string    `json:"namespace"`
	VectorIDs     []string  `json:"vector_ids"`
	Speaker       string    `json:"speaker,omitempty"`
}

// NewIngestEvent stamps a new event with an ID and the current time.
func NewIngestEvent(family Family, fileName, link, namespace string, vectorIDs []string) *IngestEvent {
	return &IngestEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeMediaIngested,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Family:        family,
		FileName:      fileName,
		Link:          link,
		Namespace:     namespace,
		VectorIDs:     vectorIDs,
	}
}
