package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileDocuments keeps one <name>.json file per collection inside Dir and
// replaces it whole on every save.
type FileDocuments struct {
	Dir string
}

func NewFileDocuments(dir string) *FileDocuments {
	return &FileDocuments{Dir: dir}
}

func (d *FileDocuments) path(name string) string {
	return filepath.Join(d.Dir, name+".json")
}

func (d *FileDocuments) Load(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(d.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (d *FileDocuments) Save(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create data dir %q: %w", d.Dir, err)
	}
	tmp, err := os.CreateTemp(d.Dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, d.path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func (d *FileDocuments) Close() error { return nil }
