package producer

import (
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore persists encoded frames as numbered files under one
// directory. Slot numbers are dense and never reused; the capture service
// owns allocation.
type LocalStore struct {
	dir string
}

// NewLocalStore creates dir if needed. Frame files are world read-write
// so any local user can inspect or prune them.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Path returns the file name for a slot.
func (s *LocalStore) Path(slot int) string {
	return filepath.Join(s.dir, fmt.Sprintf("cap_%06d.ppm", slot))
}

// Write creates or truncates the slot file and writes all of data before
// returning. A short write is reported as an error.
func (s *LocalStore) Write(slot int, data []byte) error {
	path := s.Path(slot)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return fmt.Errorf("store: open %s: %w", path, err)
	}
	n, err := f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	if n != len(data) {
		return fmt.Errorf("store: short write to %s: %d of %d bytes", path, n, len(data))
	}
	return nil
}

// Read returns the full contents of the slot file.
func (s *LocalStore) Read(slot int) ([]byte, error) {
	data, err := os.ReadFile(s.Path(slot))
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", s.Path(slot), err)
	}
	return data, nil
}
