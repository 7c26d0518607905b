package servecmder_test

import (
	"bytes"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	servecmder "github.com/papercomputeco/biosearch/cmd/biosearch/serve"
	"github.com/papercomputeco/biosearch/pkg/config"
)

var _ = Describe("NewServeCmd", func() {
	It("registers every serve flag from the registry", func() {
		cmd := servecmder.NewServeCmd()
		for _, def := range config.ServeFlags {
			Expect(cmd.Flags().Lookup(def.Name)).NotTo(BeNil(), def.Name)
		}
	})

	It("defaults flags to the built-in configuration", func() {
		cmd := servecmder.NewServeCmd()
		Expect(cmd.Flags().Lookup("listen").DefValue).To(Equal(":8000"))
		Expect(cmd.Flags().Lookup("threshold").DefValue).To(Equal("0.5"))
		Expect(cmd.Flags().Lookup("vector-store-provider").DefValue).To(Equal("sqlite"))
	})

	Describe("execution", func() {
		var (
			tmpDir  string
			origDir string
		)

		BeforeEach(func() {
			var err error
			tmpDir, err = os.MkdirTemp("", "biosearch-serve-test-*")
			Expect(err).NotTo(HaveOccurred())
			origDir, err = os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(tmpDir)).To(Succeed())
		})

		AfterEach(func() {
			Expect(os.Chdir(origDir)).To(Succeed())
			os.RemoveAll(tmpDir)
		})

		It("fails fast on an unknown vector store", func() {
			cmd := servecmder.NewServeCmd()
			cmd.PersistentFlags().Bool("debug", false, "")
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs([]string{"--vector-store-provider", "bogus"})

			Expect(cmd.Execute()).To(MatchError(ContainSubstring("unsupported vector store provider")))
		})
	})
})
