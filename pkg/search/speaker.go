package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/papercomputeco/biosearch/pkg/eventstream"
	"github.com/papercomputeco/biosearch/pkg/media"
	"github.com/papercomputeco/biosearch/pkg/vector"
)

// Speakers searches and ingests voices.
type Speakers struct {
	config Config
	deps   Deps
}

// NewSpeakers creates the speaker service.
func NewSpeakers(c Config, d Deps) *Speakers {
	return &Speakers{config: c, deps: d}
}

// Search returns the stored voices most similar to the speaker in upload.
func (s *Speakers) Search(ctx context.Context, upload media.Upload, topK int) ([]SpeakerMatch, error) {
	if media.KindOf(upload.Filename) != media.KindAudio {
		return nil, fmt.Errorf("%w: %s", ErrInvalidType, upload.Filename)
	}

	ws, err := media.NewWorkspace(s.config.WorkDir)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	emb, err := s.embed(ctx, ws, upload)
	if err != nil {
		return nil, err
	}

	matches, err := s.deps.Vectors.Query(ctx, s.config.AudioNamespace, emb, topK)
	if err != nil {
		return nil, fmt.Errorf("querying speakers: %w", err)
	}

	threshold := s.deps.Threshold.Load()
	results := make([]SpeakerMatch, 0, len(matches))
	for _, m := range matches {
		// Compared as percentages.
		if float64(m.Score)*100 < threshold*100 {
			continue
		}
		results = append(results, SpeakerMatch{
			Speaker:  m.Metadata.String("speaker"),
			FileName: m.Metadata.String("file_name"),
			Score:    m.Score,
			Link:     m.Metadata.String("link"),
		})
	}

	s.deps.Logger.Debug("speaker search",
		"file_name", upload.Filename,
		"candidates", len(matches),
		"matches", len(results),
		"threshold", threshold,
	)
	return results, nil
}

// Ingest stores a voice embedding for every upload under speaker. All
// uploads are validated before any work starts. A file that fails later is
// logged and skipped; the result lists only stored files.
func (s *Speakers) Ingest(ctx context.Context, speaker string, uploads []media.Upload) ([]IngestedAudio, error) {
	if len(uploads) == 0 {
		return nil, ErrMissingInput
	}
	for _, u := range uploads {
		if media.KindOf(u.Filename) != media.KindAudio {
			return nil, fmt.Errorf("%w: %s", ErrInvalidType, u.Filename)
		}
	}

	batch, err := newBatchID()
	if err != nil {
		return nil, fmt.Errorf("generating batch id: %w", err)
	}

	ws, err := media.NewWorkspace(s.config.WorkDir)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	results := make([]IngestedAudio, 0, len(uploads))
	for _, u := range uploads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := s.ingestOne(ctx, ws, speaker, batch, u)
		if err != nil {
			s.deps.Logger.Warn("skipping audio file",
				"file_name", u.Filename,
				"speaker", speaker,
				"error", err,
			)
			continue
		}
		results = append(results, *res)
	}

	s.deps.Logger.Info("ingested audio",
		"speaker", speaker,
		"batch", batch,
		"files", len(results),
		"skipped", len(uploads)-len(results),
	)
	return results, nil
}

func (s *Speakers) ingestOne(ctx context.Context, ws *media.Workspace, speaker, batch string, u media.Upload) (*IngestedAudio, error) {
	path, err := ws.Spool(u)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(u.Filename)
	link, err := s.store(ctx, path, AudioKeyPrefix+name)
	if err != nil {
		return nil, err
	}

	wav, err := s.deps.FFmpeg.ConvertToWAV(ctx, path, s.config.SampleRate)
	if err != nil {
		return nil, err
	}
	emb, err := s.deps.Model.EmbedSpeaker(ctx, wav)
	if err != nil {
		return nil, err
	}

	id := media.Stem(name) + "_" + batch
	err = s.deps.Vectors.Upsert(ctx, s.config.AudioNamespace, []vector.Document{{
		ID:        id,
		Embedding: emb,
		Metadata: vector.Metadata{
			"file_name": name,
			"id":        id,
			"link":      link,
			"speaker":   speaker,
		},
	}})
	if err != nil {
		return nil, fmt.Errorf("upserting %s: %w", id, err)
	}

	event := eventstream.NewIngestEvent(eventstream.FamilyAudio, name, link, s.config.AudioNamespace, []string{id})
	event.Speaker = speaker
	s.deps.emit(event)

	return &IngestedAudio{FileName: name, Link: link, Speaker: speaker}, nil
}

func (s *Speakers) store(ctx context.Context, path, key string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.deps.Blobs.Put(ctx, key, f, "audio/mp3")
}

func (s *Speakers) embed(ctx context.Context, ws *media.Workspace, u media.Upload) ([]float32, error) {
	path, err := ws.Spool(u)
	if err != nil {
		return nil, err
	}
	wav, err := s.deps.FFmpeg.ConvertToWAV(ctx, path, s.config.SampleRate)
	if err != nil {
		return nil, err
	}
	return s.deps.Model.EmbedSpeaker(ctx, wav)
}
