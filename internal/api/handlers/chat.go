package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/agentoven/console/internal/chat"
	"github.com/agentoven/console/internal/remote"
	"github.com/agentoven/console/pkg/models"
	"github.com/go-chi/chi/v5"
)

// ── Sessions ────────────────────────────────────────────────

func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Chat.Sessions())
}

// NewChat detaches the current session. The next message starts a new one.
func (h *Handlers) NewChat(w http.ResponseWriter, r *http.Request) {
	h.Chat.NewChat()
	h.ChatState(w, r)
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.Chat.Session(chi.URLParam(r, "sessionId"))
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (h *Handlers) SelectSession(w http.ResponseWriter, r *http.Request) {
	if !h.Chat.SelectSession(chi.URLParam(r, "sessionId")) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	h.ChatState(w, r)
}

func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.Chat.DeleteSession(r.Context(), chi.URLParam(r, "sessionId")) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Chat state ──────────────────────────────────────────────

type chatState struct {
	CurrentSessionID string   `json:"currentSessionId"`
	ActiveAgentID    string   `json:"activeAgentId"`
	Suggestions      []string `json:"suggestions"`
}

func (h *Handlers) ChatState(w http.ResponseWriter, r *http.Request) {
	st := chatState{
		ActiveAgentID: h.Chat.ActiveAgentID(),
		Suggestions:   h.Chat.Suggestions(),
	}
	if cur, ok := h.Chat.CurrentSession(); ok {
		st.CurrentSessionID = cur.ID
	}
	if st.Suggestions == nil {
		st.Suggestions = []string{}
	}
	respondJSON(w, http.StatusOK, st)
}

func (h *Handlers) SetActiveAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID string `json:"agentId"`
	}
	if !decode(w, r, &req) {
		return
	}
	if !h.Chat.SetActiveAgent(req.AgentID) {
		respondError(w, http.StatusNotFound, "agent not found")
		return
	}
	h.ChatState(w, r)
}

func (h *Handlers) Suggestions(w http.ResponseWriter, r *http.Request) {
	out := h.Chat.Suggestions()
	if out == nil {
		out = []string{}
	}
	respondJSON(w, http.StatusOK, out)
}

// ── Messages ────────────────────────────────────────────────

type sendRequest struct {
	Text        string              `json:"text"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

// SendMessage runs one turn and answers with the finalized reply. The turn
// outlives the request, so a client that drops keeps receiving it over the
// websocket.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.Chat.HandleSendMessage(context.WithoutCancel(r.Context()), req.Text, req.Attachments)
	respondTurn(w, msg, err)
}

func (h *Handlers) EditMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.Chat.HandleEditMessage(context.WithoutCancel(r.Context()), chi.URLParam(r, "messageId"), req.Text)
	respondTurn(w, msg, err)
}

func (h *Handlers) Regenerate(w http.ResponseWriter, r *http.Request) {
	msg, err := h.Chat.HandleRegenerate(context.WithoutCancel(r.Context()))
	respondTurn(w, msg, err)
}

func (h *Handlers) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	if !h.Chat.HandleDeleteMessage(r.Context(), chi.URLParam(r, "messageId")) {
		respondError(w, http.StatusNotFound, "message not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) SetFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Feedback models.Feedback `json:"feedback"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Feedback != models.FeedbackUp && req.Feedback != models.FeedbackDown {
		respondError(w, http.StatusBadRequest, `feedback must be "up" or "down"`)
		return
	}
	if !h.Chat.SetFeedback(r.Context(), chi.URLParam(r, "messageId"), req.Feedback) {
		respondError(w, http.StatusNotFound, "model message not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportChat downloads the current session as a text transcript.
func (h *Handlers) ExportChat(w http.ResponseWriter, r *http.Request) {
	name, doc, ok := h.Chat.HandleExportChat()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

// respondTurn maps a chat turn outcome to a response. A reply that was
// produced is returned with 200 even when generation failed: its text
// carries the error.
func respondTurn(w http.ResponseWriter, msg models.Message, err error) {
	if msg.ID != "" {
		respondJSON(w, http.StatusOK, msg)
		return
	}
	switch {
	case errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrNoAgent),
		errors.Is(err, chat.ErrNotUserMessage),
		errors.Is(err, remote.ErrNotConfigured):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrMessageNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrStreamCancelled):
		respondError(w, http.StatusConflict, err.Error())
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "no reply produced")
	}
}
