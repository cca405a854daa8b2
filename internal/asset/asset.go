// Package asset provides the content of the files that a production
// includes, loads or plays.
package asset

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

var errNoLoadAddress = errors.New("missing load address")

// Store reads assets relative to a root directory. Read assets are cached,
// the store can be used by concurrently compiled parts.
type Store struct {
	fs   afero.Fs
	root string

	mu    sync.Mutex
	cache map[string][]byte
}

// New returns a store for assets below root.
func New(fs afero.Fs, root string) *Store {
	return &Store{
		fs:    fs,
		root:  root,
		cache: map[string][]byte{},
	}
}

// Path returns the file path of an asset.
func (s *Store) Path(name string) (string, error) {
	if name == "" {
		return "", errors.New("empty asset name")
	}
	if filepath.IsAbs(name) {
		return filepath.Clean(name), nil
	}
	clean := filepath.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("asset '%s' is outside of the asset directory", name)
	}
	return filepath.Join(s.root, clean), nil
}

// Data returns the raw content of an asset.
func (s *Store) Data(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data, ok := s.cache[name]; ok {
		return data, nil
	}
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading asset '%s': %w", name, err)
	}
	s.cache[name] = data
	return data, nil
}

// Program returns the load address and the content of a PRG or SID asset.
func (s *Store) Program(name string) (uint16, []byte, error) {
	data, err := s.Data(name)
	if err != nil {
		return 0, nil, err
	}
	if IsSID(data) {
		sid, err := ParseSID(data)
		if err != nil {
			return 0, nil, fmt.Errorf("parsing SID '%s': %w", name, err)
		}
		return sid.LoadAddress, sid.Data, nil
	}
	address, content, err := SplitPRG(data)
	if err != nil {
		return 0, nil, fmt.Errorf("parsing program '%s': %w", name, err)
	}
	return address, content, nil
}

// Size returns the size of an asset in bytes.
func (s *Store) Size(name string) (int, error) {
	data, err := s.Data(name)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// SplitPRG splits a PRG file into its little endian load address and the
// content.
func SplitPRG(data []byte) (uint16, []byte, error) {
	if len(data) < 2 {
		return 0, nil, errNoLoadAddress
	}
	return uint16(data[0]) | uint16(data[1])<<8, data[2:], nil
}
