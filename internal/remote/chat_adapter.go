package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentoven/console/internal/chat"
	"github.com/agentoven/console/pkg/models"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

const cleanupTimeout = 10 * time.Second

// Backend is the slice of Client the chat adapter and the evaluation engine
// depend on.
type Backend interface {
	CreateSession(ctx context.Context, agentID, title string) (Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	RunStream(ctx context.Context, agentID, sessionID, input string, onChunk func(text string)) (StreamResult, error)
}

// binding ties a local chat session to the backend session holding its
// conversation. synced counts the local messages the backend has seen.
type binding struct {
	remoteID string
	agentID  string
	synced   int
}

// ChatAdapter serves chat turns from the remote backend. The backend keeps
// conversation state per session, so each local chat session is bound to a
// backend session. When local history no longer matches what the backend
// has seen (an edit, a delete, a restart), a fresh backend session is opened
// and seeded with a transcript of the local history.
type ChatAdapter struct {
	backend  Backend
	bindings *lru.Cache[string, binding]
}

// NewChatAdapter creates an adapter caching up to size session bindings.
// Evicted bindings have their backend session deleted.
func NewChatAdapter(backend Backend, size int) (*ChatAdapter, error) {
	if size <= 0 {
		size = 256
	}
	a := &ChatAdapter{backend: backend}
	cache, err := lru.NewWithEvict[string, binding](size, func(_ string, b binding) {
		a.release(b)
	})
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	a.bindings = cache
	return a, nil
}

var _ chat.Generator = (*ChatAdapter)(nil)

// StreamChat runs one chat turn on the backend.
func (a *ChatAdapter) StreamChat(ctx context.Context, req chat.Request, onChunk func(string)) (chat.Result, error) {
	b, input, err := a.prepare(ctx, req)
	if err != nil {
		return chat.Result{}, err
	}

	res, err := a.backend.RunStream(ctx, b.agentID, b.remoteID, input, onChunk)
	if err != nil {
		// The backend may hold a half-finished turn; never reuse the session.
		a.bindings.Remove(req.SessionID)
		return chat.Result{}, err
	}

	b.synced = len(req.History) + 2
	a.bindings.Add(req.SessionID, b)
	return chat.Result{Text: res.Text, Metrics: res.Metrics}, nil
}

// Forget drops the binding of a local session and deletes its backend
// session.
func (a *ChatAdapter) Forget(sessionID string) {
	a.bindings.Remove(sessionID)
}

// Close deletes every bound backend session.
func (a *ChatAdapter) Close() {
	a.bindings.Purge()
}

// prepare returns the binding to run in and the input to send.
func (a *ChatAdapter) prepare(ctx context.Context, req chat.Request) (binding, string, error) {
	input := withAttachments(req.Text, req.Attachments)

	b, ok := a.bindings.Get(req.SessionID)
	if ok && b.agentID == req.Agent.ID && b.synced == len(req.History) {
		return b, input, nil
	}
	if ok {
		a.Forget(req.SessionID)
	}

	sess, err := a.backend.CreateSession(ctx, req.Agent.ID, "console:"+req.SessionID)
	if err != nil {
		return binding{}, "", err
	}
	log.Debug().
		Str("session", req.SessionID).
		Str("remote_session", sess.SessionID).
		Int("history", len(req.History)).
		Msg("Bound chat session to backend session")

	b = binding{remoteID: sess.SessionID, agentID: req.Agent.ID}
	a.bindings.Add(req.SessionID, b)

	if len(req.History) > 0 {
		input = transcript(req.History) + "\n\nContinue the conversation. User: " + input
	}
	return b, input, nil
}

func (a *ChatAdapter) release(b binding) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := a.backend.DeleteSession(ctx, b.remoteID); err != nil {
			log.Debug().Err(err).Str("remote_session", b.remoteID).Msg("Backend session cleanup failed")
		}
	}()
}

func transcript(history []models.Message) string {
	var sb strings.Builder
	sb.WriteString("Conversation so far:")
	for _, m := range history {
		role := "User"
		if m.Role == models.RoleModel {
			role = "Assistant"
		}
		sb.WriteString("\n")
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(withAttachments(m.Text, m.Attachments))
	}
	return sb.String()
}

// withAttachments notes attachment names inline; the backend run contract
// carries text only.
func withAttachments(text string, atts []models.Attachment) string {
	if len(atts) == 0 {
		return text
	}
	names := make([]string, len(atts))
	for i, att := range atts {
		names[i] = att.Name
	}
	return text + "\n[attachments: " + strings.Join(names, ", ") + "]"
}
