package handlers

import (
	"errors"
	"net/http"

	"github.com/agentoven/console/internal/remote"
	"github.com/agentoven/console/pkg/models"
)

type settingsView struct {
	BaseURL      string `json:"baseUrl"`
	APIKey       string `json:"apiKey,omitempty"`
	APIKeyIsSet  bool   `json:"apiKeySet"`
	IsConfigured bool   `json:"configured"`
}

func viewSettings(s models.ConnectionSettings) settingsView {
	return settingsView{
		BaseURL:      s.BaseURL,
		APIKey:       maskKey(s.APIKey),
		APIKeyIsSet:  s.APIKey != "",
		IsConfigured: s.BaseURL != "",
	}
}

// maskKey keeps the last four characters of a key.
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, viewSettings(h.Settings.ConnectionSettings()))
}

// UpdateSettings replaces the connection settings. An omitted apiKey keeps
// the stored one; an empty string clears it.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BaseURL string  `json:"baseUrl"`
		APIKey  *string `json:"apiKey"`
	}
	if !decode(w, r, &req) {
		return
	}
	next := models.ConnectionSettings{BaseURL: req.BaseURL, APIKey: h.Settings.ConnectionSettings().APIKey}
	if req.APIKey != nil {
		next.APIKey = *req.APIKey
	}
	respondJSON(w, http.StatusOK, viewSettings(h.Settings.Update(r.Context(), next)))
}

// ListRemoteAgents proxies the backend's agent list.
func (h *Handlers) ListRemoteAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Remote.ListAgents(r.Context())
	if err != nil {
		if errors.Is(err, remote.ErrNotConfigured) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if agents == nil {
		agents = []remote.Agent{}
	}
	respondJSON(w, http.StatusOK, agents)
}
