package search_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/biosearch/pkg/eventstream"
	"github.com/papercomputeco/biosearch/pkg/faces"
	"github.com/papercomputeco/biosearch/pkg/logger"
	"github.com/papercomputeco/biosearch/pkg/media"
	"github.com/papercomputeco/biosearch/pkg/search"
	testutils "github.com/papercomputeco/biosearch/pkg/utils/test"
	"github.com/papercomputeco/biosearch/pkg/vector"
)

var _ = Describe("Faces", func() {
	var (
		vectors *testutils.MockVectorDriver
		model   *testutils.MockModel
		blobs   *testutils.MockBlobStore
		sink    *recordingSink
		cfg     search.Config
		deps    search.Deps
		svc     *search.Faces
		img     []byte
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		vectors = testutils.NewMockVectorDriver()
		model = testutils.NewMockModel()
		model.Boxes = []faces.Box{{X1: 0, Y1: 0, X2: 16, Y2: 16}}
		blobs = testutils.NewMockBlobStore()
		sink = &recordingSink{}
		img = jpegBytes()

		// 31 identical frames: indices 0, 15 and 30 are sampled.
		frame := filepath.Join(GinkgoT().TempDir(), "frame.jpg")
		Expect(os.WriteFile(frame, img, 0o600)).To(Succeed())
		ffmpeg := writeScript(`i=0
while [ $i -lt 31 ]; do cat "` + frame + `"; i=$((i+1)); done`)

		cfg = search.DefaultConfig()
		cfg.WorkDir = GinkgoT().TempDir()
		deps = search.Deps{
			Vectors:   vectors,
			Model:     model,
			Blobs:     blobs,
			FFmpeg:    media.NewFFmpeg(ffmpeg, logger.Nop()),
			Threshold: search.NewThreshold(0.5),
			Events:    sink,
			Logger:    logger.Nop(),
		}
		svc = search.NewFaces(cfg, deps)
	})

	Describe("Search", func() {
		BeforeEach(func() {
			vectors.Results["preprocessed-videos"] = []vector.Match{
				{ID: "clip.mp4#15_1", Score: 0.8, Metadata: vector.Metadata{"time_stamp": 0.5}},
				{ID: "clip.mp4#30_1", Score: 0.2},
			}
			vectors.Results["preprocessed-images"] = []vector.Match{
				{ID: "me.jpg#1", Score: 0.5, Metadata: vector.Metadata{"face_no": 1}},
			}
		})

		It("queries both namespaces with the same embedding", func() {
			results, err := svc.Search(ctx, media.FromBytes("query.jpg", img), 5)
			Expect(err).NotTo(HaveOccurred())

			Expect(results.VideoMatches).To(Equal([]search.FaceMatch{
				{ID: "clip.mp4#15_1", Score: 0.8, Metadata: vector.Metadata{"time_stamp": 0.5}},
			}))
			Expect(results.ImageMatches).To(Equal([]search.FaceMatch{
				{ID: "me.jpg#1", Score: 0.5, Metadata: vector.Metadata{"face_no": 1}},
			}))

			Expect(vectors.Queries).To(HaveLen(2))
			namespaces := []string{vectors.Queries[0].Namespace, vectors.Queries[1].Namespace}
			Expect(namespaces).To(ConsistOf("preprocessed-videos", "preprocessed-images"))
			Expect(vectors.Queries[0].Embedding).To(Equal(vectors.Queries[1].Embedding))
		})

		It("embeds only the first face", func() {
			model.Boxes = append(model.Boxes, faces.Box{X1: 16, Y1: 16, X2: 32, Y2: 32})
			_, err := svc.Search(ctx, media.FromBytes("query.jpg", img), 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(model.FaceCalls).To(Equal(1))
		})

		It("reports empty results", func() {
			deps.Threshold.Store(0.95)
			results, err := svc.Search(ctx, media.FromBytes("query.jpg", img), 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results.Empty()).To(BeTrue())
		})

		It("fails when no face is found", func() {
			model.Boxes = nil
			_, err := svc.Search(ctx, media.FromBytes("query.jpg", img), 5)
			Expect(err).To(MatchError(search.ErrNoFace))
			Expect(vectors.Queries).To(BeEmpty())
		})

		It("rejects non-image uploads", func() {
			_, err := svc.Search(ctx, media.FromBytes("clip.mp4", nil), 5)
			Expect(err).To(MatchError(search.ErrInvalidType))
		})

		It("propagates vector store failures", func() {
			vectors.FailQuery = true
			_, err := svc.Search(ctx, media.FromBytes("query.jpg", img), 5)
			Expect(err).To(MatchError(vector.ErrConnection))
		})
	})

	Describe("Ingest", func() {
		It("stores every face of an image", func() {
			model.Boxes = []faces.Box{{X2: 16, Y2: 16}, {X1: 16, Y1: 16, X2: 32, Y2: 32}}

			result, err := svc.Ingest(ctx, []media.Upload{media.FromBytes("team.png", img)})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IngestedFiles).To(Equal([]string{"team.png"}))
			Expect(result.Links).To(Equal([]string{"https://media.s3.us-east-1.amazonaws.com/search/original_image/team.png"}))
			Expect(result.TotalUpserts).To(Equal(2))

			Expect(vectors.UpsertedIDs("preprocessed-images")).To(Equal([]string{"team.png#1", "team.png#2"}))
			Expect(vectors.Upserted["preprocessed-images"][1].Metadata).To(Equal(vector.Metadata{
				"file_type": "png",
				"file_name": "team.png",
				"face_no":   2,
				"link":      result.Links[0],
			}))

			Expect(blobs.Objects[0].ContentType).To(Equal("image/png"))
		})

		It("keeps the extension case of the upload", func() {
			result, err := svc.Ingest(ctx, []media.Upload{media.FromBytes("ME.JPG", img)})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.TotalUpserts).To(Equal(1))

			Expect(blobs.Objects[0].ContentType).To(Equal("image/JPG"))
			Expect(vectors.Upserted["preprocessed-images"][0].Metadata["file_type"]).To(Equal("JPG"))
		})

		It("stores faces from every 15th frame of a video", func() {
			result, err := svc.Ingest(ctx, []media.Upload{media.FromBytes("clip.mp4", []byte("mp4"))})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.TotalUpserts).To(Equal(3))
			Expect(vectors.UpsertedIDs("preprocessed-videos")).To(Equal([]string{
				"clip.mp4#0_1", "clip.mp4#15_1", "clip.mp4#30_1",
			}))

			docs := vectors.Upserted["preprocessed-videos"]
			Expect(docs[1].Metadata["time_stamp"]).To(Equal(0.5))
			Expect(docs[2].Metadata["time_stamp"]).To(Equal(1.0))
			Expect(docs[2].Metadata["file_type"]).To(Equal("mp4"))

			Expect(blobs.Objects).To(HaveLen(1))
			Expect(blobs.Objects[0].Key).To(Equal("search/original_videos/clip.mp4"))
			Expect(blobs.Objects[0].ContentType).To(Equal("video/mp4"))
		})

		It("counts files without faces", func() {
			model.Boxes = nil
			result, err := svc.Ingest(ctx, []media.Upload{media.FromBytes("empty.jpg", img)})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IngestedFiles).To(Equal([]string{"empty.jpg"}))
			Expect(result.TotalUpserts).To(BeZero())
			Expect(vectors.Upserted).To(BeEmpty())
		})

		It("publishes one event per file", func() {
			_, err := svc.Ingest(ctx, []media.Upload{
				media.FromBytes("me.jpg", img),
				media.FromBytes("clip.mp4", []byte("mp4")),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(sink.events).To(HaveLen(2))
			Expect(sink.events[0].Family).To(Equal(eventstream.FamilyImage))
			Expect(sink.events[1].Family).To(Equal(eventstream.FamilyVideo))
			Expect(sink.events[1].VectorIDs).To(HaveLen(3))
		})

		It("rejects uploads that are neither images nor videos", func() {
			_, err := svc.Ingest(ctx, []media.Upload{
				media.FromBytes("me.jpg", img),
				media.FromBytes("talk.mp3", nil),
			})
			Expect(err).To(MatchError(search.ErrInvalidType))
			Expect(blobs.Objects).To(BeEmpty())
		})

		It("requires files", func() {
			_, err := svc.Ingest(ctx, nil)
			Expect(err).To(MatchError(search.ErrMissingInput))
		})

		It("aborts on the first processing failure", func() {
			model.FailDetect = true
			_, err := svc.Ingest(ctx, []media.Upload{
				media.FromBytes("a.jpg", img),
				media.FromBytes("b.jpg", img),
			})
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, search.ErrInvalidType)).To(BeFalse())
			Expect(model.DetectCalls).To(Equal(1))
		})
	})
})
