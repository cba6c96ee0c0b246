// Package nvm persists a simulated node's configuration in a YAML file.
package nvm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"busnode/core"
)

// contents is the on-disk layout
type contents struct {
	Address  uint8 `yaml:"address"`
	ClockCal int8  `yaml:"clockCal"`
}

// FileStore is a core.ConfigStore kept in a YAML file. Every change is
// written through to disk.
type FileStore struct {
	mu   sync.Mutex
	path string
	data contents
}

// Open loads the store at path. A missing file yields the defaults; it is
// created on the first change.
func Open(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		data: contents{Address: core.DefaultAddress},
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read nvm: %w", err)
	}
	if err := yaml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse nvm %s: %w", path, err)
	}
	return s, nil
}

func (s *FileStore) Address() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Address
}

func (s *FileStore) SetAddress(addr uint8) error {
	return s.update(func(c *contents) { c.Address = addr })
}

func (s *FileStore) ClockCal() int8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ClockCal
}

func (s *FileStore) SetClockCal(cal int8) error {
	return s.update(func(c *contents) { c.ClockCal = cal })
}

func (s *FileStore) update(fn func(*contents)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data
	fn(&next)
	if next == s.data {
		return nil
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

// write replaces the file atomically
func (s *FileStore) write(c contents) error {
	raw, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".nvm-*")
	if err != nil {
		return fmt.Errorf("write nvm: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write nvm: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write nvm: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}
