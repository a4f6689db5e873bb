package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store persists per-source processing offsets in a single JSON file. A
// source that has never been committed reports offset 0, as does a
// missing checkpoint file. Writes go through a temp file and rename so a
// crash mid-write never leaves a corrupt checkpoint behind.
type Store struct {
	path string

	mutex   sync.Mutex
	offsets map[string]int64
}

func NewStore(path string) (*Store, error) {
	s := &Store{
		path:    path,
		offsets: make(map[string]int64),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}

	if err := json.Unmarshal(data, &s.offsets); err != nil {
		return nil, fmt.Errorf("parse checkpoint file %s: %w", path, err)
	}
	return s, nil
}

// Offset returns the last committed offset for source, 0 if none.
func (s *Store) Offset(source string) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.offsets[source], nil
}

// Commit records offset for source and persists the full offset map.
func (s *Store) Commit(source string, offset int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	previous, existed := s.offsets[source]
	s.offsets[source] = offset

	if err := s.persist(); err != nil {
		if existed {
			s.offsets[source] = previous
		} else {
			delete(s.offsets, source)
		}
		return err
	}
	return nil
}

func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.offsets, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace checkpoint file: %w", err)
	}
	return nil
}
