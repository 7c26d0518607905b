package kafka

import (
	"context"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"
)

// RecordingWriter captures written messages.
type RecordingWriter struct {
	Messages []kafkago.Message
	Err      error
	Closed   bool
}

func (w *RecordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.Err != nil {
		return w.Err
	}
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func (w *RecordingWriter) Close() error {
	w.Closed = true
	return nil
}

func NewTestPublisher(w *RecordingWriter, logger *slog.Logger) *Publisher {
	return newPublisher(w, "biosearch.ingest", logger)
}
