package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// AferoStore is a Store backed by an afero filesystem: the OS filesystem in
// the CLI, an in-memory one in tests.
type AferoStore struct {
	fs   afero.Fs
	root string
}

// NewAferoStore creates a new AferoStore rooted at root.
func NewAferoStore(fs afero.Fs, root string) *AferoStore {
	return &AferoStore{fs: fs, root: root}
}

func (s *AferoStore) path(name string) string {
	return filepath.Join(s.root, name)
}

// Save writes the content of the reader to the given path.
func (s *AferoStore) Save(ctx context.Context, path string, reader io.Reader) (int64, error) {
	full := s.path(path)
	if err := s.fs.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return 0, err
	}
	f, err := s.fs.Create(full)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(f, reader)
}

// Delete removes a file.
func (s *AferoStore) Delete(ctx context.Context, path string) error {
	return s.fs.Remove(s.path(path))
}

// Open opens a file for reading.
func (s *AferoStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	return s.fs.OpenFile(s.path(path), os.O_RDONLY, 0)
}

// SaveJSON writes v as indented JSON and returns the full path written.
func SaveJSON(ctx context.Context, store *AferoStore, name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	if _, err := store.Save(ctx, name, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	return store.path(name), nil
}

// LoadJSON decodes the JSON file name into v.
func LoadJSON(ctx context.Context, store Store, name string, v any) error {
	f, err := store.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
