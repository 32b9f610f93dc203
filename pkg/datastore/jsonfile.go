package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// JSONFile stores the mapping as one indented JSON object.
type JSONFile struct {
	path string
}

// NewJSONFile returns a JSON file backend. The file is created on first Load.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Load reads the file, creating an empty store when it does not exist.
func (f *JSONFile) Load(_ context.Context) (Records, error) {
	data, err := os.ReadFile(f.path) //nolint:gosec // path from server config
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("store file not found, creating", "path", f.path)
		if err := os.WriteFile(f.path, []byte("{}"), 0o600); err != nil {
			return nil, fmt.Errorf("datastore: create %s: %w", f.path, err)
		}
		return Records{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("datastore: read %s: %w", f.path, err)
	}

	var raw map[string]diskRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("datastore: parse %s: %w", f.path, err)
	}
	records := make(Records, len(raw))
	for id, d := range raw {
		records[id] = fromDisk(id, d)
	}
	return records, nil
}

// Save writes the mapping to a temp file and renames it over the store.
func (f *JSONFile) Save(_ context.Context, records Records) error {
	raw := make(map[string]diskRecord, len(records))
	for id, rec := range records {
		raw[id] = toDisk(rec)
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("datastore: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("datastore: write %s: %w", f.path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("datastore: write %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("datastore: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("datastore: replace %s: %w", f.path, err)
	}
	return nil
}

func (f *JSONFile) Close() error { return nil }
