package worker

import (
	"io"
	"log/slog"
)

// NewPipePool builds a single-worker pool over in-memory pipes.
func NewPipePool(stdin io.WriteCloser, data io.ReadCloser, logger *slog.Logger) *Pool {
	return newPool([]*process{{stdin: stdin, data: data}}, logger)
}
