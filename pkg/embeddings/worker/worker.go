// Package worker implements embeddings.Model on top of long-lived Python
// interpreters that load the face and speaker models once and then serve
// requests over pipes.
//
// worker.py in this directory is the reference interpreter: MTCNN with
// keep_all for detection, VGG-Face (raw normalization, detector "skip") for
// face embeddings and NeMo TitaNet-large for speaker embeddings. Each frame is
// a big-endian uint32 length and a JSON body; requests go to stdin and
// responses come back on fd 3.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/papercomputeco/biosearch/pkg/embeddings"
	"github.com/papercomputeco/biosearch/pkg/faces"
)

const (
	opDetect       = "detect"
	opEmbedFace    = "embed_face"
	opEmbedSpeaker = "embed_speaker"
)

// Config holds configuration for the worker pool.
type Config struct {
	// Python is the interpreter. Defaults to "python3".
	Python string

	// Script is the worker entry point.
	Script string

	// Workers is the number of interpreters. Defaults to 1.
	Workers int
}

type request struct {
	Op    string `json:"op"`
	Image []byte `json:"image,omitempty"`
	Path  string `json:"path,omitempty"`
}

type response struct {
	Embedding []float32   `json:"embedding,omitempty"`
	Faces     []faces.Box `json:"faces,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Pool hands requests to idle interpreters. An interpreter that stalls past
// the caller's deadline or breaks the frame stream is killed and started again
// before its next request.
type Pool struct {
	idle   chan *process
	start  func(id int) (*process, error)
	logger *slog.Logger

	mu    sync.Mutex
	procs []*process
}

// New starts c.Workers interpreters running c.Script.
func New(c Config, logger *slog.Logger) (*Pool, error) {
	if c.Script == "" {
		return nil, errors.New("worker script is required")
	}
	if c.Python == "" {
		c.Python = "python3"
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}

	procs := make([]*process, 0, c.Workers)
	for i := range c.Workers {
		p, err := startProcess(i, c.Python, c.Script)
		if err != nil {
			for _, started := range procs {
				_ = started.close()
			}
			return nil, err
		}
		procs = append(procs, p)
	}

	logger.Info("started model workers", "python", c.Python, "script", c.Script, "workers", c.Workers)
	pool := newPool(procs, logger)
	pool.start = func(id int) (*process, error) {
		return startProcess(id, c.Python, c.Script)
	}
	return pool, nil
}

func newPool(procs []*process, logger *slog.Logger) *Pool {
	idle := make(chan *process, len(procs))
	for i, p := range procs {
		p.id = i
		idle <- p
	}
	return &Pool{idle: idle, procs: procs, logger: logger}
}

// EmbedSpeaker asks a worker to embed the WAV file at wavPath.
func (p *Pool) EmbedSpeaker(ctx context.Context, wavPath string) ([]float32, error) {
	resp, err := p.call(ctx, request{Op: opEmbedSpeaker, Path: wavPath})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", embeddings.ErrEmbedding, err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", embeddings.ErrEmbedding)
	}
	return resp.Embedding, nil
}

// EmbedFace asks a worker to embed a face crop.
func (p *Pool) EmbedFace(ctx context.Context, img []byte) ([]float32, error) {
	resp, err := p.call(ctx, request{Op: opEmbedFace, Image: img})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", embeddings.ErrEmbedding, err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", embeddings.ErrEmbedding)
	}
	return resp.Embedding, nil
}

// Detect asks a worker for the faces in img.
func (p *Pool) Detect(ctx context.Context, img []byte) ([]faces.Box, error) {
	resp, err := p.call(ctx, request{Op: opDetect, Image: img})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", embeddings.ErrDetection, err)
	}
	return resp.Faces, nil
}

// Close stops every interpreter.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, proc := range p.procs {
		if proc.broken {
			continue
		}
		if err := proc.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pool) call(ctx context.Context, req request) (*response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var proc *process
	select {
	case proc = <-p.idle:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { p.idle <- proc }()

	if proc.broken {
		if proc, err = p.restart(proc); err != nil {
			return nil, err
		}
	}

	type result struct {
		raw []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		raw, err := proc.roundTrip(payload)
		done <- result{raw, err}
	}()

	var raw []byte
	select {
	case res := <-done:
		if res.err != nil {
			p.logger.Error("model worker failed", "worker_id", proc.id, "op", req.Op, "error", res.err)
			p.retire(proc)
			return nil, res.err
		}
		raw = res.raw
	case <-ctx.Done():
		p.logger.Warn("killing stalled model worker", "worker_id", proc.id, "op", req.Op, "error", ctx.Err())
		p.retire(proc)
		<-done
		return nil, ctx.Err()
	}

	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	return &resp, nil
}

// retire kills proc and marks it for a restart.
func (p *Pool) retire(proc *process) {
	proc.broken = true
	_ = proc.kill()
}

// restart replaces a retired process. When no replacement can be started the
// retired process stays in the pool and the next caller tries again.
func (p *Pool) restart(old *process) (*process, error) {
	if p.start == nil {
		return old, fmt.Errorf("worker %d: %w", old.id, errUnavailable)
	}

	proc, err := p.start(old.id)
	if err != nil {
		p.logger.Error("restarting model worker", "worker_id", old.id, "error", err)
		return old, fmt.Errorf("worker %d: %w: %w", old.id, errUnavailable, err)
	}

	p.mu.Lock()
	p.procs[old.id] = proc
	p.mu.Unlock()

	p.logger.Info("restarted model worker", "worker_id", proc.id)
	return proc, nil
}

var _ embeddings.Model = (*Pool)(nil)
