// Package nats publishes ingest events to a NATS subject, propagating the
// trace context in message headers.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/papercomputeco/biosearch/pkg/eventstream"
)

// Config holds configuration for the NATS publisher.
type Config struct {
	URL     string
	Subject string
}

// headerCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type headerCarrier natsgo.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(natsgo.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Publisher publishes events on one subject.
type Publisher struct {
	conn    *natsgo.Conn
	subject string
	logger  *slog.Logger
}

// NewPublisher connects to the NATS server at c.URL.
func NewPublisher(c Config, logger *slog.Logger) (*Publisher, error) {
	if c.Subject == "" {
		return nil, errors.New("nats subject is required")
	}
	url := c.URL
	if url == "" {
		url = natsgo.DefaultURL
	}

	conn, err := natsgo.Connect(url,
		natsgo.Name("biosearch"),
		natsgo.Timeout(5*time.Second),
		natsgo.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	logger.Info("publishing ingest events to nats", "url", url, "subject", c.Subject)
	return &Publisher{conn: conn, subject: c.Subject, logger: logger}, nil
}

// PublishIngest publishes event as JSON.
func (p *Publisher) PublishIngest(ctx context.Context, event *eventstream.IngestEvent) error {
	if event == nil {
		return eventstream.ErrNilIngestEvent
	}

	msg, err := NewMessage(ctx, p.subject, event)
	if err != nil {
		return err
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.subject, err)
	}
	return nil
}

// NewMessage encodes event for subject and injects the trace context of ctx.
func NewMessage(ctx context.Context, subject string, event *eventstream.IngestEvent) (*natsgo.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshaling event: %w", err)
	}
	msg := &natsgo.Msg{
		Subject: subject,
		Data:    data,
		Header:  natsgo.Header{"Event-Type": []string{event.EventType}},
	}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	return msg, nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}

var _ eventstream.Publisher = (*Publisher)(nil)
