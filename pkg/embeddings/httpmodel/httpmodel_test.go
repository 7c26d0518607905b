package httpmodel_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/biosearch/pkg/embeddings"
	"github.com/papercomputeco/biosearch/pkg/embeddings/httpmodel"
	"github.com/papercomputeco/biosearch/pkg/faces"
	"github.com/papercomputeco/biosearch/pkg/logger"
	"github.com/papercomputeco/biosearch/pkg/utils"
)

type modelServer struct {
	mu       sync.Mutex
	paths    []string
	bodies   []map[string][]byte
	failures int
}

func (m *modelServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string][]byte
		_ = json.NewDecoder(r.Body).Decode(&body)

		m.mu.Lock()
		m.paths = append(m.paths, r.URL.Path)
		m.bodies = append(m.bodies, body)
		fail := m.failures > 0
		if fail {
			m.failures--
		}
		m.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"warming up"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/faces/detect":
			_, _ = w.Write([]byte(`{"faces":[{"x1":1,"y1":2,"x2":30,"y2":40,"confidence":0.99}]}`))
		case "/v1/faces/embed", "/v1/speaker/embed":
			_, _ = w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"unknown route"}`))
		}
	}
}

var _ = Describe("Client", func() {
	var (
		ms     *modelServer
		server *httptest.Server
		client *httpmodel.Client
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		ms = &modelServer{}
		server = httptest.NewServer(ms.handler())

		var err error
		client, err = httpmodel.New(httpmodel.Config{
			BaseURL: server.URL,
			Retry:   utils.RetryPolicy{Attempts: 3, Delay: time.Millisecond},
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(client.Close()).To(Succeed())
		server.Close()
	})

	It("detects faces", func() {
		boxes, err := client.Detect(ctx, []byte("jpeg"))
		Expect(err).NotTo(HaveOccurred())
		Expect(boxes).To(Equal([]faces.Box{{X1: 1, Y1: 2, X2: 30, Y2: 40, Confidence: 0.99}}))
		Expect(ms.paths).To(Equal([]string{"/v1/faces/detect"}))
		Expect(ms.bodies[0]["image"]).To(Equal([]byte("jpeg")))
	})

	It("embeds a face crop", func() {
		emb, err := client.EmbedFace(ctx, []byte("crop"))
		Expect(err).NotTo(HaveOccurred())
		Expect(emb).To(Equal([]float32{0.1, 0.2, 0.3}))
	})

	It("uploads the WAV file for speaker embeddings", func() {
		wav := filepath.Join(GinkgoT().TempDir(), "voice.wav")
		Expect(os.WriteFile(wav, []byte("RIFF"), 0o600)).To(Succeed())

		emb, err := client.EmbedSpeaker(ctx, wav)
		Expect(err).NotTo(HaveOccurred())
		Expect(emb).To(HaveLen(3))
		Expect(ms.paths).To(Equal([]string{"/v1/speaker/embed"}))
		Expect(ms.bodies[0]["audio"]).To(Equal([]byte("RIFF")))
	})

	It("fails speaker embedding for a missing file", func() {
		_, err := client.EmbedSpeaker(ctx, "/nonexistent/voice.wav")
		Expect(err).To(MatchError(embeddings.ErrEmbedding))
		Expect(ms.paths).To(BeEmpty())
	})

	It("retries while the server is unavailable", func() {
		ms.failures = 2

		_, err := client.EmbedFace(ctx, []byte("crop"))
		Expect(err).NotTo(HaveOccurred())
		Expect(ms.paths).To(HaveLen(3))
	})

	It("gives up after the retry budget", func() {
		ms.failures = 10

		_, err := client.Detect(ctx, []byte("jpeg"))
		Expect(err).To(MatchError(embeddings.ErrDetection))
		Expect(err.Error()).To(ContainSubstring("warming up"))
		Expect(ms.paths).To(HaveLen(3))
	})
})
