package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/berfenger/sensorist2mqtt/internal/core/port"

	"gopkg.in/yaml.v3"
)

type yamlDocument struct {
	Readings map[string]port.Reading `yaml:"readings"`
}

// YAMLStore keeps the last reading of each sensor in a single YAML file.
type YAMLStore struct {
	path     string
	mu       sync.RWMutex
	readings map[string]port.Reading
}

// OpenYAMLStore loads path if it exists. A missing file yields an empty store.
func OpenYAMLStore(path string) (*YAMLStore, error) {
	s := &YAMLStore{
		path:     path,
		readings: make(map[string]port.Reading),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}
	for k, v := range doc.Readings {
		s.readings[k] = v
	}
	return s, nil
}

func (s *YAMLStore) Load(uniqueID string) (port.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.readings[uniqueID]
	return r, ok
}

func (s *YAMLStore) Save(uniqueID string, reading port.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings[uniqueID] = reading
	return s.flush()
}

// flush writes to a temp file and renames it over the target. Caller holds mu.
func (s *YAMLStore) flush() error {
	data, err := yaml.Marshal(yamlDocument{Readings: s.readings})
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".sensorist-state-*")
	if err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

type MemoryStore struct {
	mu       sync.RWMutex
	readings map[string]port.Reading
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{readings: make(map[string]port.Reading)}
}

func (s *MemoryStore) Load(uniqueID string) (port.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.readings[uniqueID]
	return r, ok
}

func (s *MemoryStore) Save(uniqueID string, reading port.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings[uniqueID] = reading
	return nil
}

// ensure interface compliance
var (
	_ port.ReadingStore = (*YAMLStore)(nil)
	_ port.ReadingStore = (*MemoryStore)(nil)
)
