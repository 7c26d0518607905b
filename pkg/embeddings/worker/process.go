package worker

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// maxFrame bounds a single response frame.
const maxFrame = 64 << 20

// errUnavailable is returned for a worker that died and could not be
// restarted.
var errUnavailable = errors.New("worker is unavailable")

// lockedBuffer collects stderr while the process writes to it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// process is one Python interpreter speaking length-prefixed frames:
// requests on its stdin, responses on fd 3.
type process struct {
	id     int
	cmd    *exec.Cmd
	stderr *lockedBuffer
	stdin  io.WriteCloser
	data   io.ReadCloser

	// broken is set once the frame stream can no longer be trusted.
	broken bool

	stopOnce sync.Once
	stopErr  error
}

func startProcess(id int, python, script string) (*process, error) {
	cmd := exec.Command(python, "-u", script)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating data pipe: %w", err)
	}
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Only the child keeps the write end.
	w.Close()

	return &process{
		id:     id,
		cmd:    cmd,
		stderr: stderr,
		stdin:  stdin,
		data:   r,
	}, nil
}

// roundTrip writes one request frame and reads one response frame. Any error
// leaves the stream in an unknown state.
func (p *process) roundTrip(payload []byte) ([]byte, error) {
	if err := binary.Write(p.stdin, binary.BigEndian, uint32(len(payload))); err != nil {
		return nil, p.crashed(err)
	}
	if _, err := p.stdin.Write(payload); err != nil {
		return nil, p.crashed(err)
	}

	var header [4]byte
	if _, err := io.ReadFull(p.data, header[:]); err != nil {
		return nil, p.crashed(err)
	}

	n := binary.BigEndian.Uint32(header[:])
	if n > maxFrame {
		return nil, fmt.Errorf("worker %d sent a %d byte frame", p.id, n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(p.data, body); err != nil {
		return nil, p.crashed(err)
	}
	return body, nil
}

// crashed attaches whatever the interpreter printed to stderr.
func (p *process) crashed(err error) error {
	if p.stderr == nil {
		return fmt.Errorf("worker %d: %w", p.id, err)
	}
	if logs := p.stderr.String(); logs != "" {
		return fmt.Errorf("worker %d: %w\n%s", p.id, err, logs)
	}
	return fmt.Errorf("worker %d: %w", p.id, err)
}

// kill tears the process down without waiting for it to finish its current
// frame. Blocked reads and writes on its pipes return.
func (p *process) kill() error {
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	return p.close()
}

// close shuts the pipes and reaps the interpreter. Safe to call repeatedly.
func (p *process) close() error {
	p.stopOnce.Do(func() {
		p.stdin.Close()
		p.data.Close()
		if p.cmd != nil {
			p.stopErr = p.cmd.Wait()
		}
	})
	return p.stopErr
}
