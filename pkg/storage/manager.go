package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// ErrExists is returned by Commit when the target appeared while the file
// was being written
var ErrExists = errors.New("target file already exists")

// Partial files are named .civitdl-<target base>.<random>.part. The prefix
// keeps a finished image whose own extension is .part out of cleanup.
const (
	partialPrefix = ".civitdl-"
	partialSuffix = ".part"
)

func isPartial(name string) bool {
	return strings.HasPrefix(name, partialPrefix) && strings.HasSuffix(name, partialSuffix)
}

// Manager handles the output directory of one run
type Manager struct {
	outputDir string
	committed atomic.Int64
}

// NewManager creates the output directory if needed
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{outputDir: outputDir}, nil
}

// OutputDir returns the output directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// Target returns the file path for an image id and URL
func (m *Manager) Target(id, rawURL string) string {
	return TargetPath(m.outputDir, id, rawURL)
}

// Exists reports whether a regular file is present at target
func (m *Manager) Exists(target string) bool {
	info, err := os.Stat(target)
	return err == nil && !info.IsDir()
}

// CommittedCount returns how many files this manager has committed
func (m *Manager) CommittedCount() int64 {
	return m.committed.Load()
}

// Create opens a partial file next to target. Nothing is visible at target
// until Commit succeeds.
func (m *Manager) Create(target string) (*PartialFile, error) {
	dir, base := filepath.Split(target)
	if dir == "" {
		dir = "."
	}

	f, err := os.CreateTemp(dir, partialPrefix+base+".*"+partialSuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to create partial file: %w", err)
	}

	return &PartialFile{file: f, target: target, manager: m}, nil
}

// CleanupPartials removes partial files left behind by an interrupted run
// and returns how many were removed
func (m *Manager) CleanupPartials() (int, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !isPartial(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(m.outputDir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// PartialFile is a file being written for a single target
type PartialFile struct {
	file    *os.File
	target  string
	manager *Manager
	written int64
	done    bool
}

// Write appends p to the partial file
func (p *PartialFile) Write(b []byte) (int, error) {
	n, err := p.file.Write(b)
	p.written += int64(n)
	return n, err
}

// Written returns the number of bytes written so far
func (p *PartialFile) Written() int64 {
	return p.written
}

// Target returns the final path of the file
func (p *PartialFile) Target() string {
	return p.target
}

// Commit moves the partial file into place without replacing an existing
// target. On any error the partial file is removed.
func (p *PartialFile) Commit() error {
	if p.done {
		return errors.New("partial file already finished")
	}
	p.done = true

	partPath := p.file.Name()
	defer os.Remove(partPath)

	if err := p.file.Sync(); err != nil {
		p.file.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := p.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	// A hard link fails instead of overwriting, unlike rename
	err := os.Link(partPath, p.target)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrExist):
		return ErrExists
	default:
		if _, statErr := os.Stat(p.target); statErr == nil {
			return ErrExists
		}
		if err := os.Rename(partPath, p.target); err != nil {
			return fmt.Errorf("failed to move file into place: %w", err)
		}
	}

	p.manager.committed.Add(1)
	return nil
}

// Abort discards the partial file. It is safe to call after Commit.
func (p *PartialFile) Abort() {
	if p.done {
		return
	}
	p.done = true
	p.file.Close()
	os.Remove(p.file.Name())
}
