package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"libreplexity/internal/common/fsutil"
)

// FileStore keeps preferences in a JSON object on disk.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore stores preferences at path; a leading '~' is expanded.
func NewFileStore(path string) *FileStore {
	if p, err := fsutil.ExpandHome(path); err == nil {
		path = p
	}
	return &FileStore{path: path}
}

func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return err
	}
	data[key] = value
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(s.path, b, 0o644); err != nil {
		return fmt.Errorf("prefs: %w", err)
	}
	return nil
}

func (s *FileStore) load() (map[string]string, error) {
	data := map[string]string{}
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return data, nil
		}
		return nil, fmt.Errorf("prefs: %w", err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("prefs: decode %s: %w", s.path, err)
	}
	return data, nil
}
