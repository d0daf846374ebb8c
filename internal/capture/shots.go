package capture

import (
	"fmt"
	"os"
	"path/filepath"
)

// ShotStore persists captured stills to a directory. Each shot is written
// exactly once: a filename collision is an error, never an overwrite.
type ShotStore struct {
	dir string
}

// NewShotStore creates the shots directory if needed.
func NewShotStore(dir string) (*ShotStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating shots directory: %w", err)
	}
	return &ShotStore{dir: dir}, nil
}

// Save writes one still and returns its full path.
func (s *ShotStore) Save(filename string, data []byte) (string, error) {
	path := filepath.Join(s.dir, filename)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("creating shot file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("writing shot file: %w", err)
	}
	return path, nil
}

// Get reads a previously saved shot.
func (s *ShotStore) Get(filename string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if err != nil {
		return nil, fmt.Errorf("reading shot file: %w", err)
	}
	return data, nil
}
