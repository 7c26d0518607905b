// Package cache wraps an embeddings.Model with a Redis cache keyed on the
// SHA-256 of the input content, so re-ingesting or re-searching the same file
// skips the models entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/papercomputeco/biosearch/pkg/embeddings"
	"github.com/papercomputeco/biosearch/pkg/faces"
)

// DefaultTTL is how long cached results live.
const DefaultTTL = 24 * time.Hour

// Store is the key/value surface the cache needs. RedisStore implements it.
type Store interface {
	// Get returns found=false, err=nil on a miss.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Config holds configuration for the cache.
type Config struct {
	// Namespace prefixes every key, typically the model provider name.
	Namespace string

	TTL time.Duration
}

// Model caches the results of the wrapped model.
type Model struct {
	next   embeddings.Model
	store  Store
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// New wraps next with a cache kept in store.
func New(next embeddings.Model, store Store, c Config, logger *slog.Logger) *Model {
	ttl := c.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	ns := c.Namespace
	if ns == "" {
		ns = "default"
	}
	return &Model{
		next:   next,
		store:  store,
		prefix: "biosearch:" + ns + ":",
		ttl:    ttl,
		logger: logger,
	}
}

// EmbedSpeaker embeds the WAV file unless its content was embedded before.
func (m *Model) EmbedSpeaker(ctx context.Context, wavPath string) ([]float32, error) {
	content, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading audio: %v", embeddings.ErrEmbedding, err)
	}

	var emb []float32
	err = m.cached(ctx, "speaker", content, &emb, func() (any, error) {
		return m.next.EmbedSpeaker(ctx, wavPath)
	})
	return emb, err
}

// EmbedFace embeds img unless it was embedded before.
func (m *Model) EmbedFace(ctx context.Context, img []byte) ([]float32, error) {
	var emb []float32
	err := m.cached(ctx, "face", img, &emb, func() (any, error) {
		return m.next.EmbedFace(ctx, img)
	})
	return emb, err
}

// Detect detects faces in img unless it was seen before.
func (m *Model) Detect(ctx context.Context, img []byte) ([]faces.Box, error) {
	var boxes []faces.Box
	err := m.cached(ctx, "detect", img, &boxes, func() (any, error) {
		return m.next.Detect(ctx, img)
	})
	return boxes, err
}

// Close closes the store and the wrapped model.
func (m *Model) Close() error {
	storeErr := m.store.Close()
	if err := m.next.Close(); err != nil {
		return err
	}
	return storeErr
}

// cached looks up kind+sha256(content). Cache failures are logged and the
// model is called directly.
func (m *Model) cached(ctx context.Context, kind string, content []byte, out any, compute func() (any, error)) error {
	sum := sha256.Sum256(content)
	key := m.prefix + kind + ":" + hex.EncodeToString(sum[:])

	raw, found, err := m.store.Get(ctx, key)
	switch {
	case err != nil:
		m.logger.Warn("embedding cache read failed", "key", key, "error", err)
	case found:
		if err := json.Unmarshal(raw, out); err == nil {
			m.logger.Debug("embedding cache hit", "key", key)
			return nil
		}
		m.logger.Warn("discarding corrupt cache entry", "key", key)
	}

	v, err := compute()
	if err != nil {
		return err
	}

	raw, err = json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding cache entry: %w", err)
	}
	if err := m.store.Set(ctx, key, raw, m.ttl); err != nil {
		m.logger.Warn("embedding cache write failed", "key", key, "error", err)
	}
	return nil
}

// RedisStore keeps cache entries in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the Redis server at url ("redis://host:6379/0").
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var (
	_ embeddings.Model = (*Model)(nil)
	_ Store            = (*RedisStore)(nil)
)
