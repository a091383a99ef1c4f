package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// FileStore keeps each slot as <dir>/<slot>.json.
type FileStore struct {
	dir    string
	saveMu sync.Mutex // guards file writes
}

// NewFileStore creates a file-backed store rooted at dir.
// An empty dir defaults to ~/.agentconsole.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".agentconsole")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	log.Info().Str("dir", dir).Msg("File store configured")
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(slot Slot) string {
	return filepath.Join(f.dir, string(slot)+".json")
}

func (f *FileStore) Load(_ context.Context, slot Slot) ([]byte, error) {
	data, err := os.ReadFile(f.path(slot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ErrNotFound{Entity: "slot", Key: string(slot)}
		}
		return nil, fmt.Errorf("read slot %s: %w", slot, err)
	}
	return data, nil
}

// Save writes to a temp file then renames it over the slot file so a
// crash mid-write never leaves a truncated document behind.
func (f *FileStore) Save(_ context.Context, slot Slot, data []byte) error {
	f.saveMu.Lock()
	defer f.saveMu.Unlock()

	target := f.path(slot)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename %s: %w", target, err)
	}
	log.Debug().Str("path", target).Msg("Slot saved")
	return nil
}

func (f *FileStore) Ping(_ context.Context) error {
	_, err := os.Stat(f.dir)
	return err
}

func (f *FileStore) Close() error { return nil }
