package utils

import (
	"context"
	"errors"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RetryPolicy", func() {
	var (
		policy    RetryPolicy
		transient error
	)

	BeforeEach(func() {
		policy = RetryPolicy{Attempts: 3, Delay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
		transient = errors.New("transient")
	})

	It("retries retryable errors until success", func() {
		calls := 0
		err := policy.Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return Retryable(transient)
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(3))
	})

	It("gives up after the configured attempts", func() {
		calls := 0
		err := policy.Do(context.Background(), func(context.Context) error {
			calls++
			return Retryable(transient)
		})
		Expect(err).To(MatchError(transient))
		Expect(err.Error()).To(ContainSubstring("after 3 attempts"))
		Expect(calls).To(Equal(3))
	})

	It("stops on a permanent error", func() {
		calls := 0
		permanent := errors.New("bad request")
		err := policy.Do(context.Background(), func(context.Context) error {
			calls++
			return permanent
		})
		Expect(err).To(MatchError(permanent))
		Expect(calls).To(Equal(1))
	})
})

var _ = Describe("RetryableStatus", func() {
	It("retries throttling and server errors only", func() {
		Expect(RetryableStatus(http.StatusTooManyRequests)).To(BeTrue())
		Expect(RetryableStatus(http.StatusServiceUnavailable)).To(BeTrue())
		Expect(RetryableStatus(http.StatusBadRequest)).To(BeFalse())
		Expect(RetryableStatus(http.StatusOK)).To(BeFalse())
	})
})

var _ = Describe("ShouldRetry", func() {
	It("treats cancellation as permanent", func() {
		Expect(ShouldRetry(nil)).To(BeFalse())
		Expect(ShouldRetry(context.Canceled)).To(BeFalse())
		Expect(ShouldRetry(context.DeadlineExceeded)).To(BeFalse())
		Expect(ShouldRetry(errors.New("connection reset"))).To(BeTrue())
	})
})
