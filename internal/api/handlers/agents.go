package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/agentoven/console/internal/remote"
	"github.com/agentoven/console/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ── Agent Registry ──────────────────────────────────────────

func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Registry.List())
}

func (h *Handlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req models.AgentConfig
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.ID != "" {
		if _, exists := h.Registry.Get(req.ID); exists {
			respondError(w, http.StatusConflict, "agent already exists: "+req.ID)
			return
		}
	}
	respondJSON(w, http.StatusCreated, h.Registry.CreateAgent(r.Context(), req))
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	agent, ok := h.Registry.Get(chi.URLParam(r, "agentId"))
	if !ok {
		respondError(w, http.StatusNotFound, "agent not found")
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

func (h *Handlers) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	if !h.Registry.DeleteAgent(r.Context(), chi.URLParam(r, "agentId")) {
		respondError(w, http.StatusNotFound, "agent not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Drafts & Versions ───────────────────────────────────────

func (h *Handlers) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var patch models.DraftPatch
	if !decode(w, r, &patch) {
		return
	}
	agent, ok := h.Registry.SaveDraft(r.Context(), chi.URLParam(r, "agentId"), patch)
	h.respondAgent(w, agent, ok)
}

func (h *Handlers) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	agent, ok := h.Registry.DiscardDraft(r.Context(), chi.URLParam(r, "agentId"))
	h.respondAgent(w, agent, ok)
}

func (h *Handlers) PublishDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChangeLog string `json:"changeLog"`
	}
	if !decodeOptional(w, r, &req) {
		return
	}
	agent, ok := h.Registry.PublishDraft(r.Context(), chi.URLParam(r, "agentId"), req.ChangeLog)
	h.respondAgent(w, agent, ok)
}

func (h *Handlers) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "version must be an integer")
		return
	}
	if _, ok := h.Registry.Get(agentID); !ok {
		respondError(w, http.StatusNotFound, "agent not found")
		return
	}
	agent, ok := h.Registry.RestoreVersion(r.Context(), agentID, version)
	if !ok {
		respondError(w, http.StatusNotFound, "version not found")
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

func (h *Handlers) respondAgent(w http.ResponseWriter, agent models.AgentConfig, ok bool) {
	if !ok {
		respondError(w, http.StatusNotFound, "agent not found")
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

// ── Test Lab ────────────────────────────────────────────────

func (h *Handlers) UpdateTestCases(w http.ResponseWriter, r *http.Request) {
	var cases []models.TestCase
	if !decode(w, r, &cases) {
		return
	}
	agent, ok := h.Registry.UpdateTestCases(r.Context(), chi.URLParam(r, "agentId"), cases)
	h.respondAgent(w, agent, ok)
}

func (h *Handlers) RunTestCases(w http.ResponseWriter, r *http.Request) {
	agent, ok := h.Registry.Get(chi.URLParam(r, "agentId"))
	if !ok {
		respondError(w, http.StatusNotFound, "agent not found")
		return
	}
	results, err := h.Eval.RunTestCases(r.Context(), agent)
	if err != nil {
		respondRunError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// ReviewPerformance asks the judge to review the agent over a conversation:
// the named session, or the current one.
func (h *Handlers) ReviewPerformance(w http.ResponseWriter, r *http.Request) {
	agent, ok := h.Registry.Get(chi.URLParam(r, "agentId"))
	if !ok {
		respondError(w, http.StatusNotFound, "agent not found")
		return
	}
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if !decodeOptional(w, r, &req) {
		return
	}

	var sess models.Session
	if req.SessionID != "" {
		sess, ok = h.Chat.Session(req.SessionID)
	} else {
		sess, ok = h.Chat.CurrentSession()
	}
	if !ok || len(sess.Messages) == 0 {
		respondError(w, http.StatusBadRequest, "no conversation to review")
		return
	}

	report := h.Judge.EvaluatePerformance(r.Context(), agent, sess.Messages)
	log.Info().Str("agent", agent.ID).Int("score", report.OverallScore).Msg("Performance review complete")
	respondJSON(w, http.StatusOK, report)
}

// respondRunError maps an aborted evaluation to a status.
func respondRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, remote.ErrNotConfigured):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusBadGateway, err.Error())
	}
}
