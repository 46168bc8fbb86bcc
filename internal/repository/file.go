package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"omikuji-bot/internal/model"
)

// FileStore persists the snapshot as one JSON document on disk.
// Saves go through a sibling temp file that is renamed over the canonical
// path, so readers only ever see the previous or the new snapshot.
type FileStore struct {
	path string
	mu   sync.Mutex

	// rename is swapped in tests to observe the state between write and commit.
	rename func(oldpath, newpath string) error
}

// NewFileStore creates a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:   path,
		rename: os.Rename,
	}
}

// Path returns the canonical snapshot path.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the persisted snapshot.
// A missing, empty, unreadable or corrupt file yields an empty snapshot and
// never an error; corruption is logged and overwritten by the next save.
func (s *FileStore) Load(ctx context.Context) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

// Save atomically replaces the snapshot on disk.
func (s *FileStore) Save(ctx context.Context, snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(snap)
}

// Update runs a load-modify-save cycle under the store lock.
func (s *FileStore) Update(ctx context.Context, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.load()
	persist, err := fn(snap)
	if err != nil {
		return err
	}
	if !persist {
		return nil
	}
	return s.save(snap)
}

// Get returns one user's record from the current file.
func (s *FileStore) Get(ctx context.Context, userID string) (*model.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return recordOf(s.load(), userID), nil
}

func (s *FileStore) load() model.Snapshot {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", s.path).Msg("Failed to read data file, starting from empty snapshot")
		}
		return model.Snapshot{}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return model.Snapshot{}
	}

	snap := model.Snapshot{}
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Data file is corrupt, starting from empty snapshot")
		return model.Snapshot{}
	}
	// A literal null decodes into a nil map.
	if snap == nil {
		log.Warn().Str("path", s.path).Msg("Data file holds no snapshot, starting from empty snapshot")
		return model.Snapshot{}
	}
	for id, rec := range snap {
		if rec == nil {
			delete(snap, id)
			continue
		}
		rec.UserID = id
		if rec.Balance < 0 {
			log.Warn().Str("path", s.path).Str("user_id", id).Int64("balance", rec.Balance).Msg("Negative balance in data file, resetting to 0")
			rec.Balance = 0
		}
	}
	return snap
}

func (s *FileStore) save(snap model.Snapshot) error {
	if snap == nil {
		snap = model.Snapshot{}
	}
	data, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("%w: failed to encode snapshot: %w", ErrStoreWrite, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create data directory: %w", ErrStoreWrite, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %w", ErrStoreWrite, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: failed to write temp file: %w", ErrStoreWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: failed to sync temp file: %w", ErrStoreWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to close temp file: %w", ErrStoreWrite, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("%w: failed to set file mode: %w", ErrStoreWrite, err)
	}
	if err := s.rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: failed to replace data file: %w", ErrStoreWrite, err)
	}
	committed = true

	log.Debug().Str("path", s.path).Int("users", len(snap)).Msg("Snapshot saved")
	return nil
}

// encodeSnapshot renders snap as indented JSON with sorted keys and
// unescaped non-ASCII text.
func encodeSnapshot(snap model.Snapshot) ([]byte, error) {
	data, err := json.MarshalIndentWithOption(snap, "", "  ", json.DisableHTMLEscape())
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
