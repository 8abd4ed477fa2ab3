// Package file implements kv.Storage as a single JSON document on disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Storage keeps every key in one JSON object. Each write rewrites the file
// through a temporary file and a rename so readers never see a torn document.
type Storage struct {
	mu   sync.Mutex
	path string
}

// New returns a store rooted at path. The parent directory is created on
// first write.
func New(path string) *Storage {
	return &Storage{path: path}
}

// Path returns the backing file.
func (s *Storage) Path() string {
	return s.path
}

// Get reads the file and returns the value stored under key.
func (s *Storage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return "", false, err
	}
	val, ok := data[key]
	return val, ok, nil
}

// Set stores value under key and rewrites the file.
func (s *Storage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	data[key] = value
	return s.write(data)
}

// Delete removes key. The file is only rewritten when the key existed.
func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return s.write(data)
}

// HealthCheck verifies the backing file, if present, is readable.
func (s *Storage) HealthCheck(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.read()
	return err
}

func (s *Storage) read() (map[string]string, error) {
	payload, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	data := map[string]string{}
	if len(payload) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return data, nil
}

func (s *Storage) write(data map[string]string) error {
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
