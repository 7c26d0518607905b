package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Workspace is a scratch directory owned by one request. Everything written
// into it is removed by Close.
type Workspace struct {
	dir string
}

// NewWorkspace creates a fresh directory beneath root, or beneath the OS
// temp directory when root is "".
func NewWorkspace(root string) (*Workspace, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("creating work root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, "biosearch-*")
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir is the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Spool copies the upload into the workspace and returns its path. The
// client's file name is reduced to its base; clashing names get a numeric
// prefix.
func (w *Workspace) Spool(u Upload) (string, error) {
	src, err := u.Open()
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", u.Filename, err)
	}
	defer src.Close()

	path := w.freePath(filepath.Base(u.Filename))
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (w *Workspace) freePath(name string) string {
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "upload"
	}
	path := filepath.Join(w.dir, name)
	for i := 1; ; i++ {
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(w.dir, strconv.Itoa(i)+"_"+name)
	}
}

// Close removes the workspace and everything in it.
func (w *Workspace) Close() error {
	return os.RemoveAll(w.dir)
}
