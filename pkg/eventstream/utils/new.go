// Package eventstreamutils builds ingest event publishers from configuration.
package eventstreamutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/biosearch/pkg/eventstream"
	"github.com/papercomputeco/biosearch/pkg/eventstream/kafka"
	"github.com/papercomputeco/biosearch/pkg/eventstream/nats"
	"github.com/papercomputeco/biosearch/pkg/eventstream/nop"
)

// Providers lists the publisher names NewPublisher understands.
var Providers = []string{"nop", "kafka", "nats"}

type NewPublisherOpts struct {
	ProviderType string

	// Target is the broker list (kafka) or server URL (nats).
	Target string
	Topic  string
	Logger *slog.Logger
}

func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "nop", "":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{Brokers: o.Target, Topic: o.Topic}, o.Logger)
	case "nats":
		return nats.NewPublisher(nats.Config{URL: o.Target, Subject: o.Topic}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", o.ProviderType)
	}
}
