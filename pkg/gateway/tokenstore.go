package gateway

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/vitalsync/vitalsync/pkg/types"
)

// FileTokenStore persists the token pair as a 0600 JSON file in the
// data directory. Stands in for platform secure storage (keychain).
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

// NewFileTokenStore creates a token store backed by dataDir/session.json
func NewFileTokenStore(dataDir string) *FileTokenStore {
	return &FileTokenStore{path: filepath.Join(dataDir, "session.json")}
}

// Load reads the stored token pair. A missing file yields an empty pair.
func (s *FileTokenStore) Load() (types.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.TokenPair{}, nil
		}
		return types.TokenPair{}, err
	}

	var pair types.TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return types.TokenPair{}, err
	}
	return pair, nil
}

// Save writes the token pair atomically
func (s *FileTokenStore) Save(pair types.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(pair)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Clear removes the stored token pair
func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryTokenStore holds the token pair in memory. Used in tests.
type MemoryTokenStore struct {
	mu   sync.Mutex
	pair types.TokenPair
}

// NewMemoryTokenStore creates a memory token store seeded with a pair
func NewMemoryTokenStore(pair types.TokenPair) *MemoryTokenStore {
	return &MemoryTokenStore{pair: pair}
}

// Load returns the current pair
func (s *MemoryTokenStore) Load() (types.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair, nil
}

// Save replaces the current pair
func (s *MemoryTokenStore) Save(pair types.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	return nil
}

// Clear zeroes the current pair
func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = types.TokenPair{}
	return nil
}
