package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const workDirName = "work"

// WorkDir returns the directory under which per-request workspaces are
// created. An explicit dir wins. Otherwise the resolved .biosearch/work is
// used, falling back to the OS temp dir when no .biosearch/ exists.
func (m *Manager) WorkDir(explicit, overrideDir string) (string, error) {
	if explicit != "" {
		if err := os.MkdirAll(explicit, 0o700); err != nil {
			return "", fmt.Errorf("creating work directory %s: %w", explicit, err)
		}
		return filepath.Abs(explicit)
	}

	target, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	if target == "" {
		return os.TempDir(), nil
	}

	dir := filepath.Join(target, workDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating work directory %s: %w", dir, err)
	}
	return dir, nil
}
