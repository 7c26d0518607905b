// Package servecmder provides the serve command that runs the biosearch API.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/biosearch/api"
	blobutils "github.com/papercomputeco/biosearch/pkg/blob/utils"
	"github.com/papercomputeco/biosearch/pkg/config"
	"github.com/papercomputeco/biosearch/pkg/dotdir"
	embeddingutils "github.com/papercomputeco/biosearch/pkg/embeddings/utils"
	eventstreamutils "github.com/papercomputeco/biosearch/pkg/eventstream/utils"
	"github.com/papercomputeco/biosearch/pkg/logger"
	"github.com/papercomputeco/biosearch/pkg/media"
	"github.com/papercomputeco/biosearch/pkg/search"
	vectorutils "github.com/papercomputeco/biosearch/pkg/vector/utils"
	"github.com/papercomputeco/biosearch/pkg/worker"
)

type ServeCommander struct {
	flags config.FlagSet

	listen            string
	logFile           string
	threshold         float64
	workDir           string
	ffmpeg            string
	vectorProvider    string
	vectorTarget      string
	vectorIndex       string
	blobProvider      string
	blobBucket        string
	inferenceProvider string
	inferenceTarget   string
	eventsProvider    string
	eventsTarget      string

	debug     bool
	configDir string
	viper     *viper.Viper
	logger    *slog.Logger
}

var serveFlags = []string{
	config.FlagListen,
	config.FlagLogFile,
	config.FlagThreshold,
	config.FlagWorkDir,
	config.FlagFFmpeg,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagVectorIndex,
	config.FlagBlobProvider,
	config.FlagBlobBucket,
	config.FlagInferenceProv,
	config.FlagInferenceTgt,
	config.FlagEventsProvider,
	config.FlagEventsTarget,
}

const serveLongDesc string = `Run the biosearch API server.

The server answers:
  POST /audio/search    Find speakers by voice
  POST /audio/ingest    Store recordings of a speaker
  POST /video/search    Find images and video frames by face
  POST /video/ingest    Store the faces in images and videos

Configuration precedence: flags, BIOSEARCH_* environment variables,
config.toml in the .biosearch/ directory, built-in defaults. Changes to
search.threshold in config.toml are picked up without a restart.`

const serveShortDesc string = "Run the biosearch API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{flags: config.ServeFlags}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, cmder.flags, serveFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, cmder.flags, config.FlagLogFile, &cmder.logFile)
	config.AddFloatFlag(cmd, cmder.flags, config.FlagThreshold, &cmder.threshold)
	config.AddStringFlag(cmd, cmder.flags, config.FlagWorkDir, &cmder.workDir)
	config.AddStringFlag(cmd, cmder.flags, config.FlagFFmpeg, &cmder.ffmpeg)
	config.AddStringFlag(cmd, cmder.flags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, cmder.flags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, cmder.flags, config.FlagVectorIndex, &cmder.vectorIndex)
	config.AddStringFlag(cmd, cmder.flags, config.FlagBlobProvider, &cmder.blobProvider)
	config.AddStringFlag(cmd, cmder.flags, config.FlagBlobBucket, &cmder.blobBucket)
	config.AddStringFlag(cmd, cmder.flags, config.FlagInferenceProv, &cmder.inferenceProvider)
	config.AddStringFlag(cmd, cmder.flags, config.FlagInferenceTgt, &cmder.inferenceTarget)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEventsTarget, &cmder.eventsTarget)

	return cmd
}

func (c *ServeCommander) run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromViper(c.viper)

	closeLog, err := c.setupLogger(cfg.API.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	vectors, err := vectorutils.NewDriver(ctx, &vectorutils.NewDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		Target:       cfg.VectorStore.Target,
		Index:        cfg.VectorStore.Index,
		APIKey:       cfg.VectorStore.APIKey,
		Dimensions:   cfg.VectorStore.Dimensions,
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	defer vectors.Close()

	model, err := embeddingutils.NewModel(ctx, &embeddingutils.NewModelOpts{
		ProviderType: cfg.Inference.Provider,
		TargetURL:    cfg.Inference.Target,
		Python:       cfg.Inference.Python,
		Script:       cfg.Inference.Script,
		RateLimit:    cfg.Inference.RateLimit,
		CacheURL:     cfg.Inference.CacheURL,
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating inference model: %w", err)
	}
	defer model.Close()

	blobs, err := blobutils.NewStore(ctx, &blobutils.NewStoreOpts{
		ProviderType:    cfg.Blob.Provider,
		Bucket:          cfg.Blob.Bucket,
		Region:          cfg.Blob.Region,
		Endpoint:        cfg.Blob.Endpoint,
		AccessKeyID:     cfg.Blob.AccessKeyID,
		SecretAccessKey: cfg.Blob.SecretAccessKey,
		BaseURL:         cfg.Blob.BaseURL,
		Logger:          c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating blob store: %w", err)
	}
	defer blobs.Close()

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Target:       cfg.Events.Target,
		Topic:        cfg.Events.Topic,
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	defer publisher.Close()

	pool, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating publish pool: %w", err)
	}
	// Runs before publisher.Close so queued events are flushed.
	defer pool.Close()

	workDir, err := dotdir.NewManager().WorkDir(cfg.Search.WorkDir, c.configDir)
	if err != nil {
		return err
	}

	threshold := search.NewThreshold(cfg.Search.Threshold)
	config.WatchThreshold(c.viper, func(t float64) {
		threshold.Store(t)
		c.logger.Info("score threshold reloaded", "threshold", t)
	})

	searchConfig := search.Config{
		AudioNamespace: cfg.Search.AudioNamespace,
		VideoNamespace: cfg.Search.VideoNamespace,
		ImageNamespace: cfg.Search.ImageNamespace,
		SampleRate:     cfg.Search.SampleRate,
		FrameRate:      cfg.Search.FrameRate,
		FrameInterval:  cfg.Search.FrameInterval,
		WorkDir:        workDir,
	}
	deps := search.Deps{
		Vectors:   vectors,
		Model:     model,
		Blobs:     blobs,
		FFmpeg:    media.NewFFmpeg(cfg.Search.FFmpegPath, c.logger),
		Threshold: threshold,
		Events:    pool,
		Logger:    c.logger,
	}

	server := api.NewServer(api.Config{
		ListenAddr:    cfg.API.Listen,
		DefaultTopK:   cfg.Search.TopK,
		MaxUploadSize: cfg.Search.MaxUploadSizeMiB << 20,
	}, search.NewSpeakers(searchConfig, deps), search.NewFaces(searchConfig, deps), c.logger)

	c.logger.Info("biosearch configured",
		"vector_store", cfg.VectorStore.Provider,
		"inference", cfg.Inference.Provider,
		"blob", cfg.Blob.Provider,
		"events", cfg.Events.Provider,
		"threshold", cfg.Search.Threshold,
		"work_dir", workDir,
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		if err := server.Shutdown(); err != nil {
			return fmt.Errorf("shutting down API server: %w", err)
		}
		return nil
	}
}

// setupLogger builds the pretty console logger, plus a JSON file logger
// when logFile is set.
func (c *ServeCommander) setupLogger(logFile string) (func(), error) {
	console := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))
	if logFile == "" {
		c.logger = console
		return func() {}, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	c.logger = logger.Multi(console, logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	))
	return func() {
		if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			console.Warn("closing log file", "error", err)
		}
	}, nil
}
