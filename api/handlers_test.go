package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/biosearch/pkg/logger"
	"github.com/papercomputeco/biosearch/pkg/media"
	"github.com/papercomputeco/biosearch/pkg/search"
	"github.com/papercomputeco/biosearch/pkg/vector"
)

type stubSpeakers struct {
	matches  []search.SpeakerMatch
	ingested []search.IngestedAudio
	err      error
	topK     int
	speaker  string
	names    []string
	panics   bool
}

func (s *stubSpeakers) Search(_ context.Context, u media.Upload, topK int) ([]search.SpeakerMatch, error) {
	if s.panics {
		panic("boom")
	}
	s.topK = topK
	s.names = append(s.names, u.Filename)
	return s.matches, s.err
}

func (s *stubSpeakers) Ingest(_ context.Context, speaker string, uploads []media.Upload) ([]search.IngestedAudio, error) {
	s.speaker = speaker
	for _, u := range uploads {
		s.names = append(s.names, u.Filename)
	}
	return s.ingested, s.err
}

type stubFaces struct {
	results *search.FaceResults
	ingest  *search.FaceIngestResult
	err     error
	topK    int
	names   []string
}

func (s *stubFaces) Search(_ context.Context, u media.Upload, topK int) (*search.FaceResults, error) {
	s.topK = topK
	s.names = append(s.names, u.Filename)
	return s.results, s.err
}

func (s *stubFaces) Ingest(_ context.Context, uploads []media.Upload) (*search.FaceIngestResult, error) {
	for _, u := range uploads {
		s.names = append(s.names, u.Filename)
	}
	return s.ingest, s.err
}

var _ = Describe("Server", func() {
	var (
		speakers *stubSpeakers
		faces    *stubFaces
		server   *Server
	)

	BeforeEach(func() {
		speakers = &stubSpeakers{}
		faces = &stubFaces{results: &search.FaceResults{}}
		server = NewServer(Config{ListenAddr: ":0"}, speakers, faces, logger.Nop())
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(`"pong"`))
		})
	})

	Describe("POST /audio/search", func() {
		It("rejects a request without a file", func() {
			resp, err := server.app.Test(multipartRequest("/audio/search", nil, nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			body, _ := decode(resp)
			Expect(body).To(Equal(map[string]any{"status": "error", "message": "No file provided"}))
		})

		It("defaults top_k to 3", func() {
			req := multipartRequest("/audio/search", []formFile{{"file", "q.wav", []byte("x")}}, nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(speakers.topK).To(Equal(3))
			Expect(speakers.names).To(Equal([]string{"q.wav"}))
		})

		It("rejects a top_k that is not a positive integer", func() {
			for _, v := range []string{"0", "-2", "abc"} {
				req := multipartRequest("/audio/search",
					[]formFile{{"file", "q.wav", []byte("x")}},
					map[string]string{"top_k": v})
				resp, err := server.app.Test(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				body, _ := decode(resp)
				Expect(body["message"]).To(Equal("top_k must be a positive integer"))
			}
		})

		It("maps an invalid type to a 400", func() {
			speakers.err = search.ErrInvalidType
			req := multipartRequest("/audio/search", []formFile{{"file", "q.txt", []byte("x")}}, nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			body, _ := decode(resp)
			Expect(body).To(Equal(map[string]any{
				"status":  "error",
				"message": "Invalid file type. Only audio files are allowed.",
			}))
		})

		It("checks the file type before top_k", func() {
			req := multipartRequest("/audio/search",
				[]formFile{{"file", "notes.txt", []byte("x")}},
				map[string]string{"top_k": "abc"})
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			body, _ := decode(resp)
			Expect(body["message"]).To(Equal("Invalid file type. Only audio files are allowed."))
			Expect(speakers.names).To(BeEmpty())
		})

		It("reports when nothing matched", func() {
			req := multipartRequest("/audio/search", []formFile{{"file", "q.wav", []byte("x")}}, nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())

			body, _ := decode(resp)
			Expect(body).To(Equal(map[string]any{"status": "success", "message": "No match found"}))
		})

		It("returns matches as indented JSON", func() {
			speakers.matches = []search.SpeakerMatch{
				{Speaker: "alice", FileName: "a.wav", Score: 0.75, Link: "https://x/a.wav"},
			}
			req := multipartRequest("/audio/search",
				[]formFile{{"file", "q.wav", []byte("x")}},
				map[string]string{"top_k": "5"})
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(speakers.topK).To(Equal(5))

			body, raw := decode(resp)
			Expect(raw).To(ContainSubstring("\n  \"status\": \"success\""))
			Expect(body["data"]).To(Equal(map[string]any{
				"audio_matches": []any{map[string]any{
					"speaker":   "alice",
					"file_name": "a.wav",
					"score":     0.75,
					"link":      "https://x/a.wav",
				}},
			}))
		})

		It("turns unexpected errors into the 500 envelope", func() {
			speakers.err = errors.New("vector store down")
			req := multipartRequest("/audio/search", []formFile{{"file", "q.wav", []byte("x")}}, nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

			body, _ := decode(resp)
			Expect(body).To(Equal(map[string]any{"status": "failed", "error": "vector store down"}))
		})

		It("recovers from panics", func() {
			speakers.panics = true
			req := multipartRequest("/audio/search", []formFile{{"file", "q.wav", []byte("x")}}, nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

			body, _ := decode(resp)
			Expect(body["status"]).To(Equal("failed"))
			Expect(body["error"]).To(ContainSubstring("boom"))
		})
	})

	Describe("POST /audio/ingest", func() {
		It("requires a speaker name", func() {
			req := multipartRequest("/audio/ingest", []formFile{{"files", "a.wav", []byte("x")}}, nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			body, _ := decode(resp)
			Expect(body["message"]).To(Equal("No files provided or speaker name missing"))
		})

		It("accepts an empty speaker name when the field is sent", func() {
			req := multipartRequest("/audio/ingest",
				[]formFile{{"files", "a.wav", []byte("x")}},
				map[string]string{"speaker": ""})
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(speakers.speaker).To(BeEmpty())
			Expect(speakers.names).To(Equal([]string{"a.wav"}))
		})

		It("requires at least one file", func() {
			req := multipartRequest("/audio/ingest", nil, map[string]string{"speaker": "alice"})
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("reports how many files were ingested", func() {
			speakers.ingested = []search.IngestedAudio{
				{FileName: "a.wav", Link: "https://x/a.wav", Speaker: "alice"},
			}
			req := multipartRequest("/audio/ingest",
				[]formFile{{"files", "a.wav", []byte("x")}, {"files", "b.wav", []byte("y")}},
				map[string]string{"speaker": "alice"})
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(speakers.speaker).To(Equal("alice"))
			Expect(speakers.names).To(Equal([]string{"a.wav", "b.wav"}))

			body, _ := decode(resp)
			Expect(body["message"]).To(Equal("1 files ingested successfully"))
			Expect(body["data"]).To(HaveLen(1))
		})

		It("keeps an empty data list when nothing was ingested", func() {
			speakers.ingested = []search.IngestedAudio{}
			req := multipartRequest("/audio/ingest",
				[]formFile{{"files", "a.wav", []byte("x")}},
				map[string]string{"speaker": "alice"})
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())

			body, _ := decode(resp)
			Expect(body["message"]).To(Equal("0 files ingested successfully"))
			Expect(body["data"]).To(Equal([]any{}))
		})

		It("rejects the batch on an invalid type", func() {
			speakers.err = search.ErrInvalidType
			req := multipartRequest("/audio/ingest",
				[]formFile{{"files", "a.txt", []byte("x")}},
				map[string]string{"speaker": "alice"})
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			body, _ := decode(resp)
			Expect(body["message"]).To(Equal("Invalid file type. Only audio files are allowed."))
		})
	})

	Describe("POST /video/search", func() {
		It("requires both image and top_k", func() {
			req := multipartRequest("/video/search", []formFile{{"image", "me.jpg", []byte("x")}}, nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			body, _ := decode(resp)
			Expect(body).To(Equal(map[string]any{"status": "failed", "error": "Image and top_k are required"}))
		})

		It("rejects a non-numeric top_k", func() {
			req := multipartRequest("/video/search",
				[]formFile{{"image", "me.jpg", []byte("x")}},
				map[string]string{"top_k": "many"})
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			body, _ := decode(resp)
			Expect(body["error"]).To(Equal("top_k must be a positive integer"))
		})

		It("checks the file type before top_k", func() {
			req := multipartRequest("/video/search",
				[]formFile{{"image", "notes.txt", []byte("x")}},
				map[string]string{"top_k": "many"})
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			body, _ := decode(resp)
			Expect(body).To(Equal(map[string]any{"status": "failed", "error": "Invalid file type. Only image files are allowed"}))
			Expect(faces.names).To(BeEmpty())
		})

		It("maps search errors to 400s", func() {
			cases := map[error]string{
				search.ErrInvalidType: "Invalid file type. Only image files are allowed",
				search.ErrNoFace:      "No face detected in the image",
			}
			for serr, msg := range cases {
				faces.err = serr
				req := multipartRequest("/video/search",
					[]formFile{{"image", "me.jpg", []byte("x")}},
					map[string]string{"top_k": "2"})
				resp, err := server.app.Test(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				body, _ := decode(resp)
				Expect(body).To(Equal(map[string]any{"status": "failed", "error": msg}))
			}
		})

		It("reports when neither namespace matched", func() {
			req := multipartRequest("/video/search",
				[]formFile{{"image", "me.jpg", []byte("x")}},
				map[string]string{"top_k": "2"})
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(faces.topK).To(Equal(2))

			body, _ := decode(resp)
			Expect(body).To(Equal(map[string]any{"status": "success", "message": "No result found"}))
		})

		It("returns both match lists", func() {
			faces.results = &search.FaceResults{
				VideoMatches: []search.FaceMatch{{ID: "clip.mp4#15_1", Score: 0.9, Metadata: vector.Metadata{"time_stamp": 0.5}}},
				ImageMatches: []search.FaceMatch{},
			}
			req := multipartRequest("/video/search",
				[]formFile{{"image", "me.jpg", []byte("x")}},
				map[string]string{"top_k": "2"})
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, _ := decode(resp)
			data := body["data"].(map[string]any)
			Expect(data["video_matches"]).To(HaveLen(1))
			Expect(data["image_matches"]).To(Equal([]any{}))
		})
	})

	Describe("POST /video/ingest", func() {
		It("requires files", func() {
			resp, err := server.app.Test(multipartRequest("/video/ingest", nil, nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			body, _ := decode(resp)
			Expect(body).To(Equal(map[string]any{"status": "error", "message": "No files provided"}))
		})

		It("rejects an invalid type", func() {
			faces.err = search.ErrInvalidType
			req := multipartRequest("/video/ingest", []formFile{{"files", "notes.txt", []byte("x")}}, nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			body, _ := decode(resp)
			Expect(body["message"]).To(Equal("Invalid file type. Only image and video files are allowed."))
		})

		It("answers processing failures with a 500 error envelope", func() {
			faces.err = errors.New("processing me.jpg: detector offline")
			req := multipartRequest("/video/ingest", []formFile{{"files", "me.jpg", []byte("x")}}, nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

			body, _ := decode(resp)
			Expect(body).To(Equal(map[string]any{
				"status":  "error",
				"message": "processing me.jpg: detector offline",
			}))
		})

		It("returns the ingest totals", func() {
			faces.ingest = &search.FaceIngestResult{
				IngestedFiles: []string{"me.jpg", "clip.mp4"},
				Links:         []string{"https://x/me.jpg", "https://x/clip.mp4"},
				TotalUpserts:  4,
			}
			req := multipartRequest("/video/ingest", []formFile{
				{"files", "me.jpg", []byte("x")},
				{"files", "clip.mp4", []byte("y")},
			}, nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(faces.names).To(Equal([]string{"me.jpg", "clip.mp4"}))

			body, _ := decode(resp)
			Expect(body["message"]).To(Equal("2 files ingested successfully"))
			Expect(body["data"]).To(Equal(map[string]any{
				"ingested_files": []any{"me.jpg", "clip.mp4"},
				"s3_links":       []any{"https://x/me.jpg", "https://x/clip.mp4"},
				"total_upserts":  float64(4),
			}))
		})
	})
})
