package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/biosearch/pkg/client"
)

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		handler  http.HandlerFunc
		c        *client.Client
		dir      string
		received struct {
			path   string
			files  []string
			fields map[string]string
		}
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		handler = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			received.path = r.URL.Path
			received.files = nil
			received.fields = map[string]string{}

			if err := r.ParseMultipartForm(1 << 20); err == nil {
				for _, fhs := range r.MultipartForm.File {
					for _, fh := range fhs {
						received.files = append(received.files, fh.Filename)
					}
				}
				for k, v := range r.MultipartForm.Value {
					received.fields[k] = v[0]
				}
			}
			handler(w, r)
		}))

		var err error
		c, err = client.New(server.URL)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	writeFile := func(name string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte("data"), 0o600)).To(Succeed())
		return path
	}

	respond := func(status int, body string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, body)
		}
	}

	It("rejects a target without scheme or host", func() {
		_, err := client.New("localhost")
		Expect(err).To(HaveOccurred())
	})

	It("uploads a recording for audio search", func() {
		handler = respond(http.StatusOK, `{
  "status": "success",
  "data": {"audio_matches": [{"speaker": "alice", "file_name": "a.wav", "score": 0.8, "link": ""}]}
}`)
		resp, err := c.SearchAudio(context.Background(), writeFile("q.wav"), 4)
		Expect(err).NotTo(HaveOccurred())

		Expect(received.path).To(Equal("/audio/search"))
		Expect(received.files).To(Equal([]string{"q.wav"}))
		Expect(received.fields).To(HaveKeyWithValue("top_k", "4"))
		Expect(resp.Data.Matches).To(HaveLen(1))
		Expect(resp.Data.Matches[0].Speaker).To(Equal("alice"))
	})

	It("reads the no match message", func() {
		handler = respond(http.StatusOK, `{"status":"success","message":"No match found"}`)
		resp, err := c.SearchAudio(context.Background(), writeFile("q.wav"), 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(received.fields).NotTo(HaveKey("top_k"))
		Expect(resp.Message).To(Equal("No match found"))
		Expect(resp.Data.Matches).To(BeEmpty())
	})

	It("sends the speaker with every file", func() {
		handler = respond(http.StatusOK, `{"status":"success","message":"2 files ingested successfully","data":[{"file_name":"a.wav"},{"file_name":"b.wav"}]}`)
		resp, err := c.IngestAudio(context.Background(), "alice", []string{writeFile("a.wav"), writeFile("b.wav")})
		Expect(err).NotTo(HaveOccurred())

		Expect(received.path).To(Equal("/audio/ingest"))
		Expect(received.files).To(ConsistOf("a.wav", "b.wav"))
		Expect(received.fields).To(HaveKeyWithValue("speaker", "alice"))
		Expect(resp.Data).To(HaveLen(2))
	})

	It("surfaces the envelope message on failures", func() {
		handler = respond(http.StatusBadRequest, `{"status":"failed","error":"No face detected in the image"}`)
		_, err := c.SearchFaces(context.Background(), writeFile("me.jpg"), 2)

		var apiErr *client.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(apiErr.Message).To(Equal("No face detected in the image"))
		Expect(received.path).To(Equal("/video/search"))
	})

	It("decodes ingest totals", func() {
		handler = respond(http.StatusOK, `{"status":"success","message":"1 files ingested successfully","data":{"ingested_files":["clip.mp4"],"s3_links":["x"],"total_upserts":3}}`)
		resp, err := c.IngestMedia(context.Background(), []string{writeFile("clip.mp4")})
		Expect(err).NotTo(HaveOccurred())
		Expect(received.path).To(Equal("/video/ingest"))
		Expect(resp.Data.TotalUpserts).To(Equal(3))
		Expect(resp.Data.IngestedFiles).To(Equal([]string{"clip.mp4"}))
	})

	It("fails before sending when a file is missing", func() {
		handler = respond(http.StatusOK, `{}`)
		_, err := c.IngestMedia(context.Background(), []string{filepath.Join(dir, "nope.jpg")})
		Expect(err).To(MatchError(ContainSubstring("opening")))
	})
})
