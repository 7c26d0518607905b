package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/biosearch/pkg/eventstream"
	"github.com/papercomputeco/biosearch/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	It("returns ErrNilIngestEvent for nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishIngest(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilIngestEvent))
	})

	It("succeeds for non-nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishIngest(context.Background(), &eventstream.IngestEvent{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("closes successfully", func() {
		Expect(nop.NewPublisher().Close()).To(Succeed())
	})
})
