package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// maxFrameSize bounds a single decoded MJPEG frame.
const maxFrameSize = 64 << 20

// ErrFFmpeg is returned when an ffmpeg invocation fails.
var ErrFFmpeg = errors.New("ffmpeg failed")

// Frame is a sampled video frame encoded as JPEG.
type Frame struct {
	// Index counts frames after resampling, starting at 0.
	Index int

	// Timestamp is Index divided by the sampling frame rate, in seconds.
	Timestamp float64

	Data []byte
}

// FFmpeg runs the ffmpeg binary.
type FFmpeg struct {
	path     string
	maxFrame int
	logger   *slog.Logger
}

// NewFFmpeg returns a runner for the binary at path ("ffmpeg" when empty).
func NewFFmpeg(path string, logger *slog.Logger) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path, maxFrame: maxFrameSize, logger: logger}
}

// ConvertToWAV writes a mono WAV copy of in at sampleRate next to it and
// returns its path. The output is removed when conversion fails.
func (f *FFmpeg) ConvertToWAV(ctx context.Context, in string, sampleRate int) (string, error) {
	out := strings.TrimSuffix(in, filepath.Ext(in)) + ".converted.wav"

	cmd := exec.CommandContext(ctx, f.path,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", in,
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-f", "wav",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(out)
		return "", ffmpegError(err, &stderr)
	}

	f.logger.Debug("converted audio", "in", filepath.Base(in), "sample_rate", sampleRate)
	return out, nil
}

// SampleFrames decodes path at fps frames per second and calls fn with every
// frame whose index is a multiple of every. Returning an error from fn stops
// decoding. It returns the number of decoded frames.
func (f *FFmpeg) SampleFrames(ctx context.Context, path string, fps, every int, fn func(Frame) error) (int, error) {
	if fps <= 0 || every <= 0 {
		return 0, fmt.Errorf("invalid sampling: fps=%d every=%d", fps, every)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.path,
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-vf", "fps="+strconv.Itoa(fps),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("creating ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("%w: starting: %v", ErrFFmpeg, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, min(1<<20, f.maxFrame)), f.maxFrame)
	scanner.Split(SplitJPEG)

	total := 0
	var fnErr error
	for scanner.Scan() {
		idx := total
		total++
		if idx%every != 0 {
			continue
		}

		data := make([]byte, len(scanner.Bytes()))
		copy(data, scanner.Bytes())

		fnErr = fn(Frame{
			Index:     idx,
			Timestamp: float64(idx) / float64(fps),
			Data:      data,
		})
		if fnErr != nil {
			break
		}
	}
	scanErr := scanner.Err()

	// ffmpeg blocks on a pipe nobody reads once scanning stops early.
	if fnErr != nil || scanErr != nil {
		cancel()
		_ = cmd.Wait()
		if fnErr != nil {
			return total, fnErr
		}
		return total, fmt.Errorf("splitting frames: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return total, ffmpegError(err, &stderr)
	}

	f.logger.Debug("sampled video", "file", filepath.Base(path), "frames", total, "every", every)
	return total, nil
}

// SplitJPEG is a bufio.SplitFunc that yields whole JPEG images from an
// MJPEG stream by scanning for SOI and EOI markers.
func SplitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	end += start + len(jpegSOI) + len(jpegEOI)
	return end, data[start:end], nil
}

func ffmpegError(err error, stderr *bytes.Buffer) error {
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return fmt.Errorf("%w: %v: %s", ErrFFmpeg, err, msg)
	}
	return fmt.Errorf("%w: %v", ErrFFmpeg, err)
}
