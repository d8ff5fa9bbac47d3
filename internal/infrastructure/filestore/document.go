package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Document is a JSON file holding a single value of type T. All access goes
// through Update or Read, which serialize on one mutex, so callers get
// read-modify-write atomicity within the process. Writes replace the file
// via rename so a crash never leaves a half-written document.
type Document[T any] struct {
	mu   sync.Mutex
	path string
	zero func() T
}

func NewDocument[T any](path string, zero func() T) (*Document[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &Document[T]{path: path, zero: zero}, nil
}

// Read returns a snapshot of the stored value.
func (d *Document[T]) Read() (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.load()
}

// Update loads the value, applies fn and persists the result unless fn
// returns an error.
func (d *Document[T]) Update(fn func(v *T) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.load()
	if err != nil {
		return err
	}
	if err := fn(&v); err != nil {
		return err
	}
	return d.save(v)
}

func (d *Document[T]) load() (T, error) {
	v := d.zero()
	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return v, nil
	}
	if err != nil {
		return v, fmt.Errorf("reading %s: %w", d.path, err)
	}
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decoding %s: %w", d.path, err)
	}
	return v, nil
}

func (d *Document[T]) save(v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", d.path, err)
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return fmt.Errorf("replacing %s: %w", d.path, err)
	}
	return nil
}
