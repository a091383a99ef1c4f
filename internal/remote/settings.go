package remote

import (
	"context"
	"strings"
	"sync"

	"github.com/agentoven/console/internal/store"
	"github.com/agentoven/console/pkg/models"
	"github.com/rs/zerolog/log"
)

// Settings owns the connection settings slot.
type Settings struct {
	mu    sync.RWMutex
	store store.Store
	cur   models.ConnectionSettings
}

// NewSettings loads the settings slot, falling back to defaults when the
// slot is empty or corrupt.
func NewSettings(ctx context.Context, s store.Store, defaults models.ConnectionSettings) *Settings {
	cur := defaults
	var loaded models.ConnectionSettings
	if store.LoadJSON(ctx, s, store.SlotSettings, &loaded) {
		cur = loaded
	}
	return &Settings{store: s, cur: cur}
}

// ConnectionSettings returns the current settings.
func (s *Settings) ConnectionSettings() models.ConnectionSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Update replaces the settings and persists them.
func (s *Settings) Update(ctx context.Context, next models.ConnectionSettings) models.ConnectionSettings {
	next.BaseURL = strings.TrimRight(strings.TrimSpace(next.BaseURL), "/")
	s.mu.Lock()
	s.cur = next
	s.mu.Unlock()
	_ = store.SaveJSON(ctx, s.store, store.SlotSettings, next)
	log.Info().Str("base_url", next.BaseURL).Bool("api_key", next.APIKey != "").Msg("Connection settings updated")
	return next
}
