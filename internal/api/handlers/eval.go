package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/agentoven/console/internal/eval"
	"github.com/agentoven/console/pkg/models"
	"github.com/go-chi/chi/v5"
)

// ── Suites ──────────────────────────────────────────────────

type suiteRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handlers) ListSuites(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Eval.Suites())
}

func (h *Handlers) CreateSuite(w http.ResponseWriter, r *http.Request) {
	var req suiteRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	id := h.Eval.CreateSuite(r.Context(), req.Name, req.Description)
	suite, _ := h.Eval.Suite(id)
	respondJSON(w, http.StatusCreated, suite)
}

func (h *Handlers) GetSuite(w http.ResponseWriter, r *http.Request) {
	suite, ok := h.Eval.Suite(chi.URLParam(r, "suiteId"))
	if !ok {
		respondError(w, http.StatusNotFound, "suite not found")
		return
	}
	respondJSON(w, http.StatusOK, suite)
}

func (h *Handlers) UpdateSuite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "suiteId")
	var req suiteRequest
	if !decode(w, r, &req) {
		return
	}
	if !h.Eval.UpdateSuite(r.Context(), id, req.Name, req.Description) {
		respondError(w, http.StatusNotFound, "suite not found")
		return
	}
	suite, _ := h.Eval.Suite(id)
	respondJSON(w, http.StatusOK, suite)
}

func (h *Handlers) UpdateSuiteCases(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "suiteId")
	var cases []models.EvaluationCase
	if !decode(w, r, &cases) {
		return
	}
	if !h.Eval.UpdateSuiteCases(r.Context(), id, cases) {
		respondError(w, http.StatusNotFound, "suite not found")
		return
	}
	suite, _ := h.Eval.Suite(id)
	respondJSON(w, http.StatusOK, suite)
}

func (h *Handlers) DeleteSuite(w http.ResponseWriter, r *http.Request) {
	if !h.Eval.DeleteSuite(r.Context(), chi.URLParam(r, "suiteId")) {
		respondError(w, http.StatusNotFound, "suite not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Runs ────────────────────────────────────────────────────

// RunSuite evaluates an agent against a suite and returns the recorded run.
// An empty suite is a no-op answered with 204.
func (h *Handlers) RunSuite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID string `json:"agentId"`
	}
	if !decode(w, r, &req) {
		return
	}
	agent, ok := h.Registry.Get(req.AgentID)
	if !ok {
		respondError(w, http.StatusNotFound, "agent not found")
		return
	}

	run, err := h.Eval.RunSuite(r.Context(), chi.URLParam(r, "suiteId"), agent)
	switch {
	case errors.Is(err, eval.ErrSuiteNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, eval.ErrEmptySuite):
		w.WriteHeader(http.StatusNoContent)
	case err != nil:
		respondRunError(w, err)
	default:
		respondJSON(w, http.StatusCreated, run)
	}
}

func (h *Handlers) ListSuiteRuns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "suiteId")
	if _, ok := h.Eval.Suite(id); !ok {
		respondError(w, http.StatusNotFound, "suite not found")
		return
	}
	respondJSON(w, http.StatusOK, h.Eval.Runs(id))
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Eval.Runs(""))
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.Eval.Run(chi.URLParam(r, "runId"))
	if !ok {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, run)
}
