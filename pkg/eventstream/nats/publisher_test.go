package nats_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/biosearch/pkg/eventstream"
	"github.com/papercomputeco/biosearch/pkg/eventstream/nats"
	"github.com/papercomputeco/biosearch/pkg/logger"
)

var _ = Describe("NewMessage", func() {
	It("encodes the event and tags its type", func() {
		event := eventstream.NewIngestEvent(eventstream.FamilyAudio, "talk.mp3", "", "processed-audio", []string{"talk_00ff00ff"})

		msg, err := nats.NewMessage(context.Background(), "biosearch.ingest", event)
		Expect(err).NotTo(HaveOccurred())
		Expect(msg.Subject).To(Equal("biosearch.ingest"))
		Expect(msg.Header.Get("Event-Type")).To(Equal(eventstream.EventTypeMediaIngested))

		var decoded eventstream.IngestEvent
		Expect(json.Unmarshal(msg.Data, &decoded)).To(Succeed())
		Expect(decoded.FileName).To(Equal("talk.mp3"))
	})
})

var _ = Describe("NewPublisher", func() {
	It("requires a subject", func() {
		_, err := nats.NewPublisher(nats.Config{URL: "nats://127.0.0.1:4222"}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("subject is required")))
	})

	It("fails when no server is listening", func() {
		_, err := nats.NewPublisher(nats.Config{URL: "nats://127.0.0.1:1", Subject: "s"}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("connecting to nats")))
	})
})
