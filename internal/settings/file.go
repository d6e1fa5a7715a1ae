package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileBackend stores settings records in a YAML file keyed by user/session:
//
//	default:
//	  optimization_level: balanced
//	  fallback_to_local: true
type FileBackend struct {
	path string
	key  string
}

// NewFileBackend creates a backend for the record named key in path
func NewFileBackend(path, key string) *FileBackend {
	if key == "" {
		key = "default"
	}
	return &FileBackend{path: path, key: key}
}

func (f *FileBackend) Load(ctx context.Context) (OptimizationConfig, bool, error) {
	records, err := f.readAll()
	if err != nil {
		return OptimizationConfig{}, false, err
	}

	cfg, ok := records[f.key]
	return cfg, ok, nil
}

func (f *FileBackend) Save(ctx context.Context, cfg OptimizationConfig) error {
	records, err := f.readAll()
	if err != nil {
		return err
	}
	records[f.key] = cfg

	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	// Write to a sibling file and rename so readers never see a partial record
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}

func (f *FileBackend) readAll() (map[string]OptimizationConfig, error) {
	records := make(map[string]OptimizationConfig)

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", f.path, err)
	}
	if records == nil {
		records = make(map[string]OptimizationConfig)
	}
	return records, nil
}
