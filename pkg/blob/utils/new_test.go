package blobutils_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/biosearch/pkg/blob/afsblob"
	"github.com/papercomputeco/biosearch/pkg/blob/nop"
	blobutils "github.com/papercomputeco/biosearch/pkg/blob/utils"
	"github.com/papercomputeco/biosearch/pkg/logger"
)

var _ = Describe("NewStore", func() {
	ctx := context.Background()

	It("defaults to the nop store", func() {
		s, err := blobutils.NewStore(ctx, &blobutils.NewStoreOpts{Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeAssignableToTypeOf(&nop.Store{}))
	})

	It("builds the afs store from the bucket URL", func() {
		s, err := blobutils.NewStore(ctx, &blobutils.NewStoreOpts{
			ProviderType: "afs",
			Bucket:       "mem://localhost/media",
			Logger:       logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeAssignableToTypeOf(&afsblob.Store{}))
	})

	It("rejects unknown providers", func() {
		_, err := blobutils.NewStore(ctx, &blobutils.NewStoreOpts{ProviderType: "gcs", Logger: logger.Nop()})
		Expect(err).To(MatchError(ContainSubstring("unsupported blob provider")))
	})
})
