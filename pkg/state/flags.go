package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const flagFileName = "nanny.json"

// FlagStore records whether a previous session already completed setup.
type FlagStore interface {
	// Seen reports whether MarkSeen was called in an earlier session.
	Seen(ctx context.Context) (bool, error)

	// MarkSeen records the marker.
	MarkSeen(ctx context.Context) error
}

// marker is the on-disk document.
type marker struct {
	Initialized bool      `json:"initialized"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// FileFlagStore implements FlagStore using a JSON file.
type FileFlagStore struct {
	dir string
}

// NewFileFlagStore creates a store that keeps its file in dir.
func NewFileFlagStore(dir string) *FileFlagStore {
	return &FileFlagStore{dir: dir}
}

// Seen reads the marker. A missing file means not seen.
func (s *FileFlagStore) Seen(ctx context.Context) (bool, error) {
	m, err := s.load()
	if err != nil {
		return false, err
	}
	return m.Initialized, nil
}

// MarkSeen writes the marker atomically (temp file, then rename).
func (s *FileFlagStore) MarkSeen(ctx context.Context) error {
	m, err := s.load()
	if err != nil {
		// Rewrite a corrupt marker rather than keep failing.
		m = marker{}
	}

	now := time.Now().UTC()
	if !m.Initialized {
		m.Initialized = true
		m.FirstSeenAt = now
	}
	m.LastSeenAt = now

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	path := s.Path()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Path returns the full path to the marker file.
func (s *FileFlagStore) Path() string {
	return filepath.Join(s.dir, flagFileName)
}

func (s *FileFlagStore) load() (marker, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return marker{}, nil
		}
		return marker{}, err
	}

	var m marker
	if err := json.Unmarshal(data, &m); err != nil {
		return marker{}, err
	}
	return m, nil
}

// MemoryFlagStore implements FlagStore in memory.
type MemoryFlagStore struct {
	mu   sync.Mutex
	seen bool
}

// NewMemoryFlagStore creates a store; seen sets the initial marker.
func NewMemoryFlagStore(seen bool) *MemoryFlagStore {
	return &MemoryFlagStore{seen: seen}
}

func (s *MemoryFlagStore) Seen(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen, nil
}

func (s *MemoryFlagStore) MarkSeen(ctx context.Context) error {
	s.mu.Lock()
	s.seen = true
	s.mu.Unlock()
	return nil
}
