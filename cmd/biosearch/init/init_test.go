package initcmder_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/biosearch/cmd/biosearch/init"
	"github.com/papercomputeco/biosearch/pkg/config"
)

func loadConfig(dir string) *config.Config {
	var cfg config.Config
	_, err := toml.DecodeFile(filepath.Join(dir, ".biosearch", "config.toml"), &cfg)
	Expect(err).NotTo(HaveOccurred())
	return &cfg
}

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	run := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "biosearch-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	It("creates a .biosearch directory with default config", func() {
		Expect(run()).To(Succeed())

		cfg := loadConfig(tmpDir)
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.API.Listen).To(Equal(":8000"))
		Expect(cfg.Search.Threshold).To(Equal(0.5))
		Expect(cfg.Search.AudioNamespace).To(Equal("processed-audio"))
	})

	It("does not overwrite an existing config.toml", func() {
		dir := filepath.Join(tmpDir, ".biosearch")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[api]\nlisten = \":9999\"\n"), 0o600)).To(Succeed())

		Expect(run("--preset", "aws")).To(Succeed())
		Expect(loadConfig(tmpDir).API.Listen).To(Equal(":9999"))
	})

	It("applies a named preset", func() {
		Expect(run("--preset", "selfhosted")).To(Succeed())

		cfg := loadConfig(tmpDir)
		Expect(cfg.VectorStore.Provider).To(Equal("qdrant"))
		Expect(cfg.Blob.Endpoint).To(Equal("http://localhost:9000"))
		Expect(cfg.Events.Provider).To(Equal("nats"))
	})

	It("rejects unknown preset names", func() {
		err := run("--preset", "invalid-preset")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
	})

	It("fetches a remote config.toml", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "version = 0\n\n[search]\nthreshold = 0.8\n\n[blob]\nprovider = \"s3\"\nbucket = \"faces\"\n")
		}))
		defer server.Close()

		Expect(run("--preset", server.URL+"/config.toml")).To(Succeed())

		cfg := loadConfig(tmpDir)
		Expect(cfg.Search.Threshold).To(Equal(0.8))
		Expect(cfg.Blob.Bucket).To(Equal("faces"))
	})

	It("fails when the remote config cannot be fetched", func() {
		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		Expect(run("--preset", server.URL)).To(MatchError(ContainSubstring("HTTP 404")))
	})
})
