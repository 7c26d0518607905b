// Package httpmodel implements the embeddings.Model client for a model server
// that exposes face detection, face embedding and speaker embedding over HTTP.
//
// The server contract, all JSON with base64 byte fields:
//
//	POST /v1/speaker/embed {"audio": <16 kHz mono WAV>} -> {"embedding": [...]}
//	POST /v1/faces/detect  {"image": <encoded still>}   -> {"faces": [{"x1","y1","x2","y2","confidence"}]}
//	POST /v1/faces/embed   {"image": <JPEG face crop>}  -> {"embedding": [...]}
//
// Failures answer a non-2xx status with {"error": "..."}. The models are the
// ones the worker provider's worker.py loads: TitaNet-large speaker
// embeddings, MTCNN detection and VGG-Face crops embedded without
// re-detection.
package httpmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/papercomputeco/biosearch/pkg/embeddings"
	"github.com/papercomputeco/biosearch/pkg/faces"
	"github.com/papercomputeco/biosearch/pkg/utils"
)

const (
	// DefaultBaseURL is the default model server URL.
	DefaultBaseURL = "http://localhost:9000"

	speakerEmbedPath = "/v1/speaker/embed"
	faceDetectPath   = "/v1/faces/detect"
	faceEmbedPath    = "/v1/faces/embed"
)

// Config holds configuration for the model server client.
type Config struct {
	// BaseURL is the model server URL. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64

	// Timeout bounds a single request. Defaults to 120s.
	Timeout time.Duration

	Retry utils.RetryPolicy
}

// Client talks to the model server.
type Client struct {
	baseURL    string
	limiter    *rate.Limiter
	retry      utils.RetryPolicy
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a new model server client.
func New(c Config, logger *slog.Logger) (*Client, error) {
	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if c.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.RateLimit), max(1, int(c.RateLimit)))
	}

	logger.Info("using model server", "url", baseURL, "rate_limit", c.RateLimit)

	return &Client{
		baseURL: baseURL,
		limiter: limiter,
		retry:   c.Retry,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}, nil
}

// EmbedSpeaker uploads the WAV file and returns the speaker embedding.
func (c *Client) EmbedSpeaker(ctx context.Context, wavPath string) ([]float32, error) {
	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading audio: %v", embeddings.ErrEmbedding, err)
	}

	var resp embedResponse
	if err := c.post(ctx, speakerEmbedPath, speakerRequest{Audio: audio}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", embeddings.ErrEmbedding)
	}
	return resp.Embedding, nil
}

// EmbedFace returns the embedding of a face crop.
func (c *Client) EmbedFace(ctx context.Context, img []byte) ([]float32, error) {
	var resp embedResponse
	if err := c.post(ctx, faceEmbedPath, imageRequest{Image: img}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", embeddings.ErrEmbedding)
	}
	return resp.Embedding, nil
}

// Detect returns the faces found in img.
func (c *Client) Detect(ctx context.Context, img []byte) ([]faces.Box, error) {
	var resp detectResponse
	if err := c.post(ctx, faceDetectPath, imageRequest{Image: img}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrDetection, err)
	}
	return resp.Faces, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	return c.retry.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if utils.ShouldRetry(err) {
				return utils.Retryable(fmt.Errorf("sending request: %w", err))
			}
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		c.logger.Debug("model server call",
			"path", path,
			"status", resp.StatusCode,
			"duration", time.Since(start),
		)

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(resp.Body)
			err := statusError(resp.StatusCode, raw)
			if utils.RetryableStatus(resp.StatusCode) {
				return utils.Retryable(err)
			}
			return err
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	})
}

func statusError(code int, raw []byte) error {
	var e errorResponse
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return fmt.Errorf("model server returned status %d: %s", code, e.Error)
	}
	if len(raw) == 0 {
		return errors.New("model server returned status " + http.StatusText(code))
	}
	return fmt.Errorf("model server returned status %d: %s", code, strings.TrimSpace(string(raw)))
}

var _ embeddings.Model = (*Client)(nil)
