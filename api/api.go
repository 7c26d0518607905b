package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/papercomputeco/biosearch/pkg/media"
	"github.com/papercomputeco/biosearch/pkg/search"
)

const defaultMaxUploadSize = 512 << 20

// SpeakerService is the speaker search backend.
type SpeakerService interface {
	Search(ctx context.Context, upload media.Upload, topK int) ([]search.SpeakerMatch, error)
	Ingest(ctx context.Context, speaker string, uploads []media.Upload) ([]search.IngestedAudio, error)
}

// FaceService is the face search backend.
type FaceService interface {
	Search(ctx context.Context, upload media.Upload, topK int) (*search.FaceResults, error)
	Ingest(ctx context.Context, uploads []media.Upload) (*search.FaceIngestResult, error)
}

// Server is the API server for speaker and face search.
type Server struct {
	config   Config
	speakers SpeakerService
	faces    FaceService
	logger   *slog.Logger
	app      *fiber.App
}

// NewServer creates a new API server.
func NewServer(config Config, speakers SpeakerService, faces FaceService, logger *slog.Logger) *Server {
	if config.DefaultTopK <= 0 {
		config.DefaultTopK = 3
	}
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = defaultMaxUploadSize
	}

	s := &Server{
		config:   config,
		speakers: speakers,
		faces:    faces,
		logger:   logger,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             config.MaxUploadSize,
		ErrorHandler:          s.handleError,
	})
	app.Use(s.logRequests)
	app.Use(recover.New())
	app.Use(compress.New())

	app.Get("/ping", s.handlePing)
	app.Post("/audio/search", s.handleAudioSearch)
	app.Post("/audio/ingest", s.handleAudioIngest)
	app.Post("/video/search", s.handleVideoSearch)
	app.Post("/video/ingest", s.handleVideoIngest)

	s.app = app
	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// logRequests logs one line per request once the handler has finished.
func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	} else if err != nil {
		status = fiber.StatusInternalServerError
	}

	s.logger.Info("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"latency", time.Since(start),
	)
	return err
}

// handleError renders errors that escaped a handler, panics included.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code != fiber.StatusInternalServerError {
		return c.Status(fe.Code).JSON(failed(fe.Message))
	}

	s.logger.Error("request failed",
		"method", c.Method(),
		"path", c.Path(),
		"error", err,
	)
	return c.Status(fiber.StatusInternalServerError).JSON(failed(err.Error()))
}
