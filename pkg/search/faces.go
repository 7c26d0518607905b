package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/biosearch/pkg/eventstream"
	"github.com/papercomputeco/biosearch/pkg/faces"
	"github.com/papercomputeco/biosearch/pkg/media"
	"github.com/papercomputeco/biosearch/pkg/vector"
)

// Faces searches and ingests faces from images and videos.
type Faces struct {
	config Config
	deps   Deps
}

// NewFaces creates the face service.
func NewFaces(c Config, d Deps) *Faces {
	return &Faces{config: c, deps: d}
}

// Search embeds the first face in the uploaded image and queries the video
// and image namespaces with it.
func (f *Faces) Search(ctx context.Context, upload media.Upload, topK int) (*FaceResults, error) {
	if media.KindOf(upload.Filename) != media.KindImage {
		return nil, fmt.Errorf("%w: %s", ErrInvalidType, upload.Filename)
	}

	img, err := readUpload(upload)
	if err != nil {
		return nil, err
	}

	boxes, err := f.deps.Model.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	if len(boxes) == 0 {
		return nil, ErrNoFace
	}

	emb, err := f.embedFace(ctx, img, boxes[0])
	if err != nil {
		return nil, err
	}

	var videoMatches, imageMatches []vector.Match
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		videoMatches, err = f.deps.Vectors.Query(gctx, f.config.VideoNamespace, emb, topK)
		return err
	})
	g.Go(func() error {
		var err error
		imageMatches, err = f.deps.Vectors.Query(gctx, f.config.ImageNamespace, emb, topK)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("querying faces: %w", err)
	}

	threshold := f.deps.Threshold.Load()
	results := &FaceResults{
		VideoMatches: filterFaces(videoMatches, threshold),
		ImageMatches: filterFaces(imageMatches, threshold),
	}

	f.deps.Logger.Debug("face search",
		"file_name", upload.Filename,
		"faces", len(boxes),
		"video_matches", len(results.VideoMatches),
		"image_matches", len(results.ImageMatches),
	)
	return results, nil
}

func filterFaces(matches []vector.Match, threshold float64) []FaceMatch {
	out := make([]FaceMatch, 0, len(matches))
	for _, m := range matches {
		if float64(m.Score) < threshold {
			continue
		}
		out = append(out, FaceMatch{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return out
}

// Ingest stores every face found in the uploaded images and in the sampled
// frames of the uploaded videos. Uploads are validated first; the first
// processing failure aborts the request.
func (f *Faces) Ingest(ctx context.Context, uploads []media.Upload) (*FaceIngestResult, error) {
	if len(uploads) == 0 {
		return nil, ErrMissingInput
	}
	for _, u := range uploads {
		if k := media.KindOf(u.Filename); k != media.KindImage && k != media.KindVideo {
			return nil, fmt.Errorf("%w: %s", ErrInvalidType, u.Filename)
		}
	}

	ws, err := media.NewWorkspace(f.config.WorkDir)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	result := &FaceIngestResult{
		IngestedFiles: make([]string, 0, len(uploads)),
		Links:         make([]string, 0, len(uploads)),
	}

	for _, u := range uploads {
		name := filepath.Base(u.Filename)

		var (
			link string
			ids  []string
			err  error
		)
		family := eventstream.FamilyImage
		namespace := f.config.ImageNamespace
		if media.KindOf(name) == media.KindVideo {
			family = eventstream.FamilyVideo
			namespace = f.config.VideoNamespace
			link, ids, err = f.ingestVideo(ctx, ws, name, u)
		} else {
			link, ids, err = f.ingestImage(ctx, ws, name, u)
		}
		if err != nil {
			return nil, fmt.Errorf("processing %s: %w", name, err)
		}

		result.IngestedFiles = append(result.IngestedFiles, name)
		result.Links = append(result.Links, link)
		result.TotalUpserts += len(ids)

		f.deps.emit(eventstream.NewIngestEvent(family, name, link, namespace, ids))
	}

	f.deps.Logger.Info("ingested faces",
		"files", len(result.IngestedFiles),
		"upserts", result.TotalUpserts,
	)
	return result, nil
}

func (f *Faces) ingestImage(ctx context.Context, ws *media.Workspace, name string, u media.Upload) (string, []string, error) {
	path, err := ws.Spool(u)
	if err != nil {
		return "", nil, err
	}
	img, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}

	ext := media.Ext(name)
	link, err := f.deps.Blobs.Put(ctx, ImageKeyPrefix+name, bytes.NewReader(img), "image/"+ext)
	if err != nil {
		return "", nil, err
	}

	boxes, err := f.deps.Model.Detect(ctx, img)
	if err != nil {
		return "", nil, err
	}

	docs := make([]vector.Document, 0, len(boxes))
	for i, box := range boxes {
		emb, err := f.embedFace(ctx, img, box)
		if err != nil {
			return "", nil, err
		}
		faceNo := i + 1
		docs = append(docs, vector.Document{
			ID:        fmt.Sprintf("%s#%d", name, faceNo),
			Embedding: emb,
			Metadata: vector.Metadata{
				"file_type": ext,
				"file_name": name,
				"face_no":   faceNo,
				"link":      link,
			},
		})
	}

	ids, err := f.upsert(ctx, f.config.ImageNamespace, docs)
	return link, ids, err
}

func (f *Faces) ingestVideo(ctx context.Context, ws *media.Workspace, name string, u media.Upload) (string, []string, error) {
	path, err := ws.Spool(u)
	if err != nil {
		return "", nil, err
	}

	link, err := f.storeFile(ctx, path, VideoKeyPrefix+name, "video/mp4")
	if err != nil {
		return "", nil, err
	}

	ext := media.Ext(name)
	var ids []string
	_, err = f.deps.FFmpeg.SampleFrames(ctx, path, f.config.FrameRate, f.config.FrameInterval, func(frame media.Frame) error {
		boxes, err := f.deps.Model.Detect(ctx, frame.Data)
		if err != nil {
			return err
		}

		docs := make([]vector.Document, 0, len(boxes))
		for i, box := range boxes {
			emb, err := f.embedFace(ctx, frame.Data, box)
			if err != nil {
				return err
			}
			faceNo := i + 1
			docs = append(docs, vector.Document{
				ID:        fmt.Sprintf("%s#%d_%d", name, frame.Index, faceNo),
				Embedding: emb,
				Metadata: vector.Metadata{
					"file_type":  ext,
					"file_name":  name,
					"time_stamp": frame.Timestamp,
					"face_no":    faceNo,
					"link":       link,
				},
			})
		}

		frameIDs, err := f.upsert(ctx, f.config.VideoNamespace, docs)
		ids = append(ids, frameIDs...)
		return err
	})
	if err != nil {
		return "", nil, err
	}
	return link, ids, nil
}

func (f *Faces) embedFace(ctx context.Context, img []byte, box faces.Box) ([]float32, error) {
	crop, err := faces.Crop(img, box)
	if err != nil {
		return nil, err
	}
	return f.deps.Model.EmbedFace(ctx, crop)
}

func (f *Faces) upsert(ctx context.Context, namespace string, docs []vector.Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if err := f.deps.Vectors.Upsert(ctx, namespace, docs); err != nil {
		return nil, fmt.Errorf("upserting into %s: %w", namespace, err)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func (f *Faces) storeFile(ctx context.Context, path, key, contentType string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	return f.deps.Blobs.Put(ctx, key, file, contentType)
}

func readUpload(u media.Upload) ([]byte, error) {
	r, err := u.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", u.Filename, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}
