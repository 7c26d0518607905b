// Package afsblob implements blob.Store on top of viant/afs, so media can be
// kept on the local file system (file://) or in memory (mem://) when no
// object store is available.
package afsblob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/papercomputeco/biosearch/pkg/blob"
)

// Config holds configuration for the afs store.
type Config struct {
	// BaseURL is the storage root, e.g. "file:///var/lib/biosearch/media".
	// A bare path is treated as a local directory.
	BaseURL string

	// LinkBaseURL, when set, replaces BaseURL in returned links.
	LinkBaseURL string
}

// Store writes objects beneath a base URL.
type Store struct {
	fs       afs.Service
	baseURL  string
	linkBase string
	logger   *slog.Logger
}

// New creates an afs store.
func New(c Config, logger *slog.Logger) (*Store, error) {
	base := c.BaseURL
	if base == "" {
		return nil, errors.New("afs base URL is required")
	}
	if !strings.Contains(base, "://") {
		base = "file://" + base
	}

	logger.Info("storing media with afs", "base_url", base)

	return &Store{
		fs:       afs.New(),
		baseURL:  base,
		linkBase: c.LinkBaseURL,
		logger:   logger,
	}, nil
}

// Put writes body to BaseURL/key.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	URL := blob.JoinLink(s.baseURL, key)
	if err := s.fs.Upload(ctx, URL, file.DefaultFileOsMode, body); err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}

	s.logger.Debug("stored object", "url", URL, "content_type", contentType)

	if s.linkBase != "" {
		return blob.JoinLink(s.linkBase, key), nil
	}
	return URL, nil
}

// Get reads an object back. Used by tests and the CLI.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	return s.fs.DownloadWithURL(ctx, blob.JoinLink(s.baseURL, key))
}

func (s *Store) Close() error {
	return nil
}

var _ blob.Store = (*Store)(nil)
