// Package artifact persists pipeline stage output deterministically under
// <data>/uploads/<slug>/: per-page layout/OCR JSON, preprocessed page
// images, and a single ocr_output.json manifest. Every write is atomic
// (temp file, then rename), the same pattern used for downloaded uploads
// elsewhere in this stack.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ArtifactSink is the narrow collaborator the writer uses to persist one
// named blob. A relative path like "layout_page_001.json" is always rooted
// under the sink's own base directory.
type ArtifactSink interface {
	Write(relPath string, data []byte) error
}

// DiskSink writes to relPath under Root, atomically: it writes to a
// temporary file in the same directory first, then renames it into place,
// so a reader never observes a partially-written artifact.
type DiskSink struct {
	Root string
}

func (d *DiskSink) Write(relPath string, data []byte) error {
	full := filepath.Join(d.Root, relPath)
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("artifact: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*.tmp")
	if err != nil {
		return fmt.Errorf("artifact: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("artifact: write %s: %w", relPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("artifact: close temp file for %s: %w", relPath, err)
	}

	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("artifact: rename into place %s: %w", relPath, err)
	}
	return nil
}

// InMemorySink collects writes in memory, for tests that want to inspect
// exact bytes without touching disk.
type InMemorySink struct {
	mu    sync.Mutex
	Files map[string][]byte
}

func NewInMemorySink() *InMemorySink {
	return &InMemorySink{Files: make(map[string][]byte)}
}

func (m *InMemorySink) Write(relPath string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.Files[relPath] = cp
	return nil
}

func (m *InMemorySink) Get(relPath string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.Files[relPath]
	return b, ok
}
