package consent

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/spf13/afero"
)

// File stores all keys in one JSON object on an afero filesystem
type File struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewFile creates a file backend at path
func NewFile(fsys afero.Fs, path string) *File {
	return &File{fs: fsys, path: path}
}

func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	data[key] = value
	return f.save(data)
}

func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return f.save(data)
}

func (f *File) load() (map[string]string, error) {
	data := make(map[string]string)

	raw, err := afero.ReadFile(f.fs, f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading consent file: %w", err)
	}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("error decoding consent file: %w", err)
	}
	return data, nil
}

func (f *File) save(data map[string]string) error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := f.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating consent dir: %w", err)
		}
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := afero.WriteFile(f.fs, f.path, raw, 0644); err != nil {
		return fmt.Errorf("error saving consent file: %w", err)
	}
	return nil
}
