// Package client talks to a running biosearch API server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/papercomputeco/biosearch/pkg/search"
)

// Response is the envelope every biosearch endpoint answers with.
type Response[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    T      `json:"data,omitempty"`
}

// AudioMatches is the data of a successful audio search.
type AudioMatches struct {
	Matches []search.SpeakerMatch `json:"audio_matches"`
}

// APIError is returned for any non-200 answer.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("biosearch API returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Client is a biosearch API client.
type Client struct {
	target *url.URL
	http   *http.Client
}

// New creates a client for the API server at target.
func New(target string) (*Client, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target URL: %q", target)
	}

	return &Client{
		target: u,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// SearchAudio looks up the speakers whose voice matches the recording at path.
func (c *Client) SearchAudio(ctx context.Context, path string, topK int) (*Response[AudioMatches], error) {
	fields := map[string]string{}
	if topK > 0 {
		fields["top_k"] = strconv.Itoa(topK)
	}

	out := &Response[AudioMatches]{}
	return out, c.post(ctx, "/audio/search", "file", []string{path}, fields, out)
}

// IngestAudio stores recordings of speaker.
func (c *Client) IngestAudio(ctx context.Context, speaker string, paths []string) (*Response[[]search.IngestedAudio], error) {
	out := &Response[[]search.IngestedAudio]{}
	return out, c.post(ctx, "/audio/ingest", "files", paths, map[string]string{"speaker": speaker}, out)
}

// SearchFaces looks up stored images and video frames showing the face in
// the image at path.
func (c *Client) SearchFaces(ctx context.Context, path string, topK int) (*Response[search.FaceResults], error) {
	out := &Response[search.FaceResults]{}
	return out, c.post(ctx, "/video/search", "image", []string{path}, map[string]string{"top_k": strconv.Itoa(topK)}, out)
}

// IngestMedia stores the faces found in images and videos.
func (c *Client) IngestMedia(ctx context.Context, paths []string) (*Response[search.FaceIngestResult], error) {
	out := &Response[search.FaceIngestResult]{}
	return out, c.post(ctx, "/video/ingest", "files", paths, nil, out)
}

func (c *Client) post(ctx context.Context, path, field string, files []string, fields map[string]string, out any) error {
	body, contentType, err := multipartBody(field, files, fields)
	if err != nil {
		return err
	}

	u := *c.target
	u.Path = path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to biosearch API at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// errorMessage pulls the human readable part out of an error envelope.
func errorMessage(raw []byte) string {
	var env Response[json.RawMessage]
	if err := json.Unmarshal(raw, &env); err != nil {
		return string(bytes.TrimSpace(raw))
	}
	if env.Message != "" {
		return env.Message
	}
	if env.Error != "" {
		return env.Error
	}
	return string(bytes.TrimSpace(raw))
}

func multipartBody(field string, files []string, fields map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, path := range files {
		if err := addFile(w, field, path); err != nil {
			return nil, "", err
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

func addFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}
