package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/biosearch/pkg/media"
	"github.com/papercomputeco/biosearch/pkg/search"
)

const (
	msgNoFile            = "No file provided"
	msgInvalidAudio      = "Invalid file type. Only audio files are allowed."
	msgMissingAudioInput = "No files provided or speaker name missing"
	msgMissingImageInput = "Image and top_k are required"
	msgInvalidImage      = "Invalid file type. Only image files are allowed"
	msgNoFace            = "No face detected in the image"
	msgNoFiles           = "No files provided"
	msgInvalidMedia      = "Invalid file type. Only image and video files are allowed."
	msgBadTopK           = "top_k must be a positive integer"
	msgNoMatch           = "No match found"
	msgNoResult          = "No result found"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleAudioSearch handles POST /audio/search.
// Form fields:
//   - file (required): the query recording
//   - top_k (optional, default 3)
func (s *Server) handleAudioSearch(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorMessage(msgNoFile))
	}
	if media.KindOf(fh.Filename) != media.KindAudio {
		return c.Status(fiber.StatusBadRequest).JSON(errorMessage(msgInvalidAudio))
	}

	topK := s.config.DefaultTopK
	if raw := c.FormValue("top_k"); raw != "" {
		if topK, err = parseTopK(raw); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(errorMessage(msgBadTopK))
		}
	}

	matches, err := s.speakers.Search(c.UserContext(), media.FromFileHeader(fh), topK)
	switch {
	case errors.Is(err, search.ErrInvalidType):
		return c.Status(fiber.StatusBadRequest).JSON(errorMessage(msgInvalidAudio))
	case err != nil:
		return err
	}

	if len(matches) == 0 {
		return sendIndented(c, fiber.StatusOK, successMessage(msgNoMatch, nil))
	}
	return sendIndented(c, fiber.StatusOK, success(fiber.Map{"audio_matches": matches}))
}

// handleAudioIngest handles POST /audio/ingest.
// Form fields:
//   - files (required, repeated): recordings of one speaker
//   - speaker (required, may be empty): the speaker's name
func (s *Server) handleAudioIngest(c *fiber.Ctx) error {
	files := formFiles(c, "files")
	speaker, ok := formField(c, "speaker")
	if len(files) == 0 || !ok {
		return c.Status(fiber.StatusBadRequest).JSON(errorMessage(msgMissingAudioInput))
	}

	results, err := s.speakers.Ingest(c.UserContext(), speaker, files)
	switch {
	case errors.Is(err, search.ErrInvalidType):
		return c.Status(fiber.StatusBadRequest).JSON(errorMessage(msgInvalidAudio))
	case errors.Is(err, search.ErrMissingInput):
		return c.Status(fiber.StatusBadRequest).JSON(errorMessage(msgMissingAudioInput))
	case err != nil:
		return err
	}

	return sendIndented(c, fiber.StatusOK, successMessage(ingestedMessage(len(results)), results))
}

// handleVideoSearch handles POST /video/search.
// Form fields:
//   - image (required): a picture containing the face to look for
//   - top_k (required)
func (s *Server) handleVideoSearch(c *fiber.Ctx) error {
	fh, err := c.FormFile("image")
	raw := c.FormValue("top_k")
	if err != nil || raw == "" {
		return c.Status(fiber.StatusBadRequest).JSON(failed(msgMissingImageInput))
	}
	if media.KindOf(fh.Filename) != media.KindImage {
		return c.Status(fiber.StatusBadRequest).JSON(failed(msgInvalidImage))
	}

	topK, err := parseTopK(raw)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failed(msgBadTopK))
	}

	results, err := s.faces.Search(c.UserContext(), media.FromFileHeader(fh), topK)
	switch {
	case errors.Is(err, search.ErrInvalidType):
		return c.Status(fiber.StatusBadRequest).JSON(failed(msgInvalidImage))
	case errors.Is(err, search.ErrNoFace):
		return c.Status(fiber.StatusBadRequest).JSON(failed(msgNoFace))
	case err != nil:
		return err
	}

	if results.Empty() {
		return sendIndented(c, fiber.StatusOK, successMessage(msgNoResult, nil))
	}
	return sendIndented(c, fiber.StatusOK, success(results))
}

// handleVideoIngest handles POST /video/ingest.
// Form fields:
//   - files (required, repeated): images and videos
func (s *Server) handleVideoIngest(c *fiber.Ctx) error {
	files := formFiles(c, "files")
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(errorMessage(msgNoFiles))
	}

	result, err := s.faces.Ingest(c.UserContext(), files)
	switch {
	case errors.Is(err, search.ErrInvalidType):
		return c.Status(fiber.StatusBadRequest).JSON(errorMessage(msgInvalidMedia))
	case errors.Is(err, search.ErrMissingInput):
		return c.Status(fiber.StatusBadRequest).JSON(errorMessage(msgNoFiles))
	case err != nil:
		s.logger.Error("video ingest failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorMessage(err.Error()))
	}

	return sendIndented(c, fiber.StatusOK, successMessage(ingestedMessage(len(result.IngestedFiles)), result))
}

func formFiles(c *fiber.Ctx, field string) []media.Upload {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}
	return uploads(form.File[field])
}

// formField reports a multipart value and whether the field was sent at all.
func formField(c *fiber.Ctx, field string) (string, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		return "", false
	}
	values, ok := form.Value[field]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func uploads(headers []*multipart.FileHeader) []media.Upload {
	out := make([]media.Upload, 0, len(headers))
	for _, fh := range headers {
		out = append(out, media.FromFileHeader(fh))
	}
	return out
}

func parseTopK(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New(msgBadTopK)
	}
	return n, nil
}

func ingestedMessage(n int) string {
	return fmt.Sprintf("%d files ingested successfully", n)
}
