package eventstreamutils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/biosearch/pkg/eventstream/kafka"
	"github.com/papercomputeco/biosearch/pkg/eventstream/nop"
	eventstreamutils "github.com/papercomputeco/biosearch/pkg/eventstream/utils"
	"github.com/papercomputeco/biosearch/pkg/logger"
)

var _ = Describe("NewPublisher", func() {
	It("defaults to the nop publisher", func() {
		p, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&nop.Publisher{}))
	})

	It("builds a kafka publisher without dialing", func() {
		p, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
			ProviderType: "kafka",
			Target:       "localhost:9092, localhost:9093",
			Topic:        "biosearch.ingest",
			Logger:       logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&kafka.Publisher{}))
	})

	It("rejects unknown providers", func() {
		_, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{ProviderType: "sqs", Logger: logger.Nop()})
		Expect(err).To(MatchError(ContainSubstring("unsupported events provider")))
	})
})
