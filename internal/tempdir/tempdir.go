// Package tempdir manages scratch directories under the system temp dir.
package tempdir

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	pbtsSubdir      = "pbts"
	maxAge          = 60 * time.Minute
	cleanupInterval = 5 * time.Minute
)

var cleanupOnce sync.Once

// StartCleanup starts removing stale scratch directories in the background.
// Calling it more than once has no effect.
func StartCleanup() {
	cleanupOnce.Do(func() {
		go cleanupLoop()
	})
}

func baseDir() string {
	return filepath.Join(os.TempDir(), pbtsSubdir)
}

// NewScratchDir creates a fresh directory for one compiler run. The caller
// removes it when done; leftovers are picked up by the cleanup loop.
func NewScratchDir() (string, error) {
	base := baseDir()

	if err := os.MkdirAll(base, 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create %s", base)
	}

	dir, err := os.MkdirTemp(base, "descriptors-*")
	if err != nil {
		return "", errors.Wrap(err, "failed to create scratch directory")
	}

	slog.Debug("Created scratch directory", "path", dir)
	return dir, nil
}

func cleanupLoop() {
	cleanupOldFolders(baseDir(), time.Now())

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for now := range ticker.C {
		cleanupOldFolders(baseDir(), now)
	}
}

func cleanupOldFolders(base string, now time.Time) {
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		slog.Error("Failed to read pbts temp directory", "error", err)
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			slog.Error("Failed to get info for temp folder", "name", entry.Name(), "error", err)
			continue
		}

		age := now.Sub(info.ModTime())
		if age > maxAge {
			path := filepath.Join(base, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				slog.Error("Failed to remove old temp folder", "path", path, "error", err)
			} else {
				slog.Debug("Cleaned up old temp folder", "path", path, "age", age)
			}
		}
	}
}
