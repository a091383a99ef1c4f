// Package store provides the slot-based persistence adapter for the console.
//
// State is kept as one JSON document per named slot. Every owner writes its
// whole slot on each change (full overwrite, last writer wins); there is no
// incremental patching and no cross-process coordination.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Slot names a persisted document.
type Slot string

const (
	SlotAgents   Slot = "agents"
	SlotSessions Slot = "chat_sessions"
	SlotSuites   Slot = "eval_suites"
	SlotRuns     Slot = "eval_runs"
	SlotSettings Slot = "settings"
)

// Slots lists every slot the console persists.
var Slots = []Slot{SlotAgents, SlotSessions, SlotSuites, SlotRuns, SlotSettings}

// Store is the persistence interface shared by all state owners.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the raw document for a slot, or *ErrNotFound if the
	// slot has never been written.
	Load(ctx context.Context, slot Slot) ([]byte, error)

	// Save overwrites the document for a slot.
	Save(ctx context.Context, slot Slot, data []byte) error

	// Ping checks if the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// IsNotFound reports whether err is (or wraps) an *ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}

// ── Constructors ────────────────────────────────────────────

// Driver selects a Store implementation.
type Driver string

const (
	DriverFile   Driver = "file"
	DriverSQLite Driver = "sqlite"
	DriverMemory Driver = "memory"
)

// Open returns the Store for a driver. location is a directory for the
// file driver and a database path for sqlite; memory ignores it.
func Open(driver Driver, location string) (Store, error) {
	switch driver {
	case DriverFile, "":
		return NewFileStore(location)
	case DriverSQLite:
		return NewSQLiteStore(location)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// ── JSON helpers ────────────────────────────────────────────

// LoadJSON decodes a slot into v. It returns false when the slot is
// missing, unreadable or corrupt; v may then be partially written, so
// callers decode into a fresh value and fall back to their defaults. Errors are logged, never returned.
func LoadJSON(ctx context.Context, s Store, slot Slot, v any) bool {
	data, err := s.Load(ctx, slot)
	if err != nil {
		if IsNotFound(err) {
			log.Debug().Str("slot", string(slot)).Msg("Slot empty, using defaults")
		} else {
			log.Warn().Err(err).Str("slot", string(slot)).Msg("Failed to read slot, using defaults")
		}
		return false
	}
	if len(data) == 0 {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Error().Err(err).Str("slot", string(slot)).Msg("Failed to parse slot, using defaults")
		return false
	}
	return true
}

// SaveJSON encodes v and overwrites the slot. Failures are logged and
// returned so callers that care can react; interactive flows ignore them.
func SaveJSON(ctx context.Context, s Store, slot Slot, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("slot", string(slot)).Msg("Failed to marshal slot")
		return fmt.Errorf("marshal %s: %w", slot, err)
	}
	if err := s.Save(ctx, slot, data); err != nil {
		log.Error().Err(err).Str("slot", string(slot)).Msg("Failed to save slot")
		return fmt.Errorf("save %s: %w", slot, err)
	}
	return nil
}
