package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileGateway keeps each collection in <dir>/<collection>.json.
type FileGateway struct {
	dir string
	mu  sync.Mutex
}

// NewFileGateway creates dir if needed so first-run succeeds.
func NewFileGateway(dir string) (*FileGateway, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileGateway{dir: dir}, nil
}

func (g *FileGateway) path(collection string) string {
	return filepath.Join(g.dir, collection+".json")
}

// Load never fails on a missing file.
func (g *FileGateway) Load(collection string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	data, err := os.ReadFile(g.path(collection))
	if errors.Is(err, os.ErrNotExist) {
		return emptyArray, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save writes to a temp file in the same directory and renames it over the
// target, so a crash mid-write leaves the previous content intact.
func (g *FileGateway) Save(collection string, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tmp, err := os.CreateTemp(g.dir, collection+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, g.path(collection))
}

// Close is a no-op; files are not held open between calls.
func (g *FileGateway) Close() error { return nil }
