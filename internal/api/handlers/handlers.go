// Package handlers implements the HTTP API of the agent console: the agent
// registry, chat sessions, evaluation suites and connection settings.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/agentoven/console/internal/chat"
	"github.com/agentoven/console/internal/eval"
	"github.com/agentoven/console/internal/registry"
	"github.com/agentoven/console/internal/remote"
	"github.com/agentoven/console/pkg/models"
)

// Reviewer produces agent performance reviews.
type Reviewer interface {
	EvaluatePerformance(ctx context.Context, agent models.AgentConfig, conversation []models.Message) models.PerformanceReport
}

// AgentLister lists the agents served by the remote backend.
type AgentLister interface {
	ListAgents(ctx context.Context) ([]remote.Agent, error)
}

// Handlers holds all handler dependencies.
type Handlers struct {
	Registry *registry.Registry
	Chat     *chat.Manager
	Eval     *eval.Engine
	Judge    Reviewer
	Settings *remote.Settings
	Remote   AgentLister
}

// New creates a new Handlers instance with all dependencies.
func New(reg *registry.Registry, cm *chat.Manager, ev *eval.Engine, judge Reviewer, settings *remote.Settings, rc AgentLister) *Handlers {
	return &Handlers{
		Registry: reg,
		Chat:     cm,
		Eval:     ev,
		Judge:    judge,
		Settings: settings,
		Remote:   rc,
	}
}

// ── Helpers ──────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// decodeOptional is decode for requests whose body may be empty.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
