// Package chat implements the chat session manager: multiple independent
// conversation threads per agent, streamed reply assembly, edit / delete /
// regenerate semantics and post-reply suggestions.
//
// Each session moves idle → streaming → idle. A model reply is a
// placeholder (empty, streaming) that is overwritten by cumulative chunks
// and finalized exactly once. Every stream runs under its own cancellable
// context keyed by session and message id; leaving a session or starting a
// new turn in it cancels the older stream so late chunks never land in a
// newer conversation state.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/agentoven/console/internal/store"
	"github.com/agentoven/console/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	titleMaxRunes   = 30
	maxSuggestions  = 3
	defaultLanguage = "English"
)

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrNoAgent         = errors.New("no active agent")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotUserMessage  = errors.New("only user messages can be edited")
	ErrStreamCancelled = errors.New("stream cancelled")
)

// Options configures a Manager.
type Options struct {
	Store     store.Store
	Agents    AgentSource
	Generator Generator
	Suggester Suggester // optional
	// Language is named in the directive appended to every agent
	// instruction. Defaults to English.
	Language string
	// Preflight, when set, runs before a send or edit changes anything. Its
	// error aborts the operation.
	Preflight func() error
	// OnSessionDeleted, when set, is called after a session is removed,
	// outside the manager lock.
	OnSessionDeleted func(sessionID string)
}

type streamKey struct {
	sessionID string
	messageID string
}

type stream struct {
	cancel context.CancelFunc
}

// Manager owns all chat sessions.
type Manager struct {
	mu        sync.Mutex
	store     store.Store
	agents    AgentSource
	gen       Generator
	suggester Suggester
	preflight func() error
	onDeleted func(sessionID string)
	directive string

	sessions      []*models.Session // lastModified desc
	currentID     string
	activeAgentID string

	suggestions  []string
	suggestToken uint64

	streams map[streamKey]*stream

	subs    map[int]chan SessionEvent
	nextSub int

	bg  sync.WaitGroup
	now func() time.Time
}

// NewManager loads the sessions slot and returns a ready Manager.
func NewManager(ctx context.Context, opts Options) *Manager {
	lang := opts.Language
	if lang == "" {
		lang = defaultLanguage
	}
	m := &Manager{
		store:     opts.Store,
		agents:    opts.Agents,
		gen:       opts.Generator,
		suggester: opts.Suggester,
		preflight: opts.Preflight,
		onDeleted: opts.OnSessionDeleted,
		directive: fmt.Sprintf("\n\nIMPORTANT: Always respond in %s.", lang),
		streams:   make(map[streamKey]*stream),
		subs:      make(map[int]chan SessionEvent),
		now:       func() time.Time { return time.Now().UTC() },
	}

	var loaded []models.Session
	if store.LoadJSON(ctx, m.store, store.SlotSessions, &loaded) {
		for i := range loaded {
			s := loaded[i]
			// A stream cannot survive a restart.
			for j := range s.Messages {
				s.Messages[j].IsStreaming = false
			}
			m.sessions = append(m.sessions, &s)
		}
		m.sortLocked()
	}

	if agents := m.agents.List(); len(agents) > 0 {
		m.activeAgentID = agents[0].ID
	}

	log.Info().Int("sessions", len(m.sessions)).Msg("Chat sessions loaded")
	return m
}

// ── Reads ────────────────────────────────────────────────────

// Sessions returns copies of all sessions, most recently modified first.
func (m *Manager) Sessions() []models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Session, len(m.sessions))
	for i, s := range m.sessions {
		out[i] = s.Clone()
	}
	return out
}

// Session returns a copy of one session.
func (m *Manager) Session(id string) (models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.findLocked(id); s != nil {
		return s.Clone(), true
	}
	return models.Session{}, false
}

// CurrentSession returns the session new messages go to, if any.
func (m *Manager) CurrentSession() (models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.findLocked(m.currentID); s != nil {
		return s.Clone(), true
	}
	return models.Session{}, false
}

// ActiveAgentID returns the agent new sessions are bound to.
func (m *Manager) ActiveAgentID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeAgentID
}

// Suggestions returns the follow-ups for the last completed model turn.
func (m *Manager) Suggestions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.suggestions...)
}

// ── Navigation ───────────────────────────────────────────────

// NewChat detaches the current session; the next send starts a new one.
func (m *Manager) NewChat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveCurrentLocked()
	m.currentID = ""
}

// SelectSession makes id the current session and its agent the active one.
func (m *Manager) SelectSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.findLocked(id)
	if s == nil {
		return false
	}
	if id != m.currentID {
		m.leaveCurrentLocked()
	}
	m.currentID = id
	if s.AgentID != "" {
		m.activeAgentID = s.AgentID
	}
	return true
}

// SetActiveAgent binds new sessions to agentID. When the current session
// belongs to a different agent it is detached.
func (m *Manager) SetActiveAgent(agentID string) bool {
	if _, ok := m.agents.Get(agentID); !ok {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeAgentID = agentID
	if cur := m.findLocked(m.currentID); cur != nil && cur.AgentID != agentID {
		m.leaveCurrentLocked()
		m.currentID = ""
	}
	return true
}

// DeleteSession removes a session and cancels its streams.
func (m *Manager) DeleteSession(ctx context.Context, id string) bool {
	if !m.deleteSession(ctx, id) {
		return false
	}
	if m.onDeleted != nil {
		m.onDeleted(id)
	}
	return true
}

func (m *Manager) deleteSession(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexLocked(id)
	if idx < 0 {
		return false
	}
	m.cancelSessionStreamsLocked(id)
	m.sessions = append(m.sessions[:idx], m.sessions[idx+1:]...)
	if m.currentID == id {
		m.currentID = ""
		m.clearSuggestionsLocked()
	}
	m.persistLocked(ctx)
	m.publishLocked(SessionEvent{Type: EventSessionDeleted, SessionID: id})
	return true
}

// leaveCurrentLocked cancels streams of the session being left and drops
// its suggestions.
func (m *Manager) leaveCurrentLocked() {
	if m.currentID != "" {
		m.cancelSessionStreamsLocked(m.currentID)
	}
	m.clearSuggestionsLocked()
}

// ── Send / Edit / Regenerate ─────────────────────────────────

// HandleSendMessage appends a user turn to the current session (creating
// one when needed) and streams the model reply. The returned message is the
// finalized reply; on a generation failure its text carries the error and
// the error is also returned.
func (m *Manager) HandleSendMessage(ctx context.Context, text string, attachments []models.Attachment) (models.Message, error) {
	if text == "" && len(attachments) == 0 {
		return models.Message{}, ErrEmptyMessage
	}
	if err := m.checkPreflight(); err != nil {
		return models.Message{}, err
	}

	m.mu.Lock()
	sess := m.findLocked(m.currentID)
	agentID := m.activeAgentID
	if sess != nil && sess.AgentID != "" {
		agentID = sess.AgentID
	}
	agent, ok := m.agents.Get(agentID)
	if !ok {
		m.mu.Unlock()
		return models.Message{}, ErrNoAgent
	}

	now := m.now()
	if sess == nil {
		sess = &models.Session{
			ID:           uuid.New().String(),
			Title:        deriveTitle(text),
			Messages:     []models.Message{},
			AgentID:      agent.ID,
			LastModified: now,
		}
		m.sessions = append(m.sessions, sess)
		m.currentID = sess.ID
		log.Info().Str("session", sess.ID).Str("agent", agent.ID).Msg("Chat session created")
	}

	history := cloneMessages(sess.Messages)
	user := models.Message{
		ID:          uuid.New().String(),
		Role:        models.RoleUser,
		Text:        text,
		Attachments: attachments,
		Timestamp:   now,
	}
	sess.Messages = append(sess.Messages, user)
	m.touchLocked(sess)
	m.clearSuggestionsLocked()
	m.persistLocked(ctx)
	m.publishSessionLocked(sess)
	sessionID := sess.ID
	m.mu.Unlock()

	return m.generate(ctx, sessionID, agent, history, user)
}

// HandleEditMessage rewrites a user message and regenerates from it; every
// message after it is discarded.
func (m *Manager) HandleEditMessage(ctx context.Context, messageID, newText string) (models.Message, error) {
	if err := m.checkPreflight(); err != nil {
		return models.Message{}, err
	}
	m.mu.Lock()
	sess := m.findLocked(m.currentID)
	if sess == nil {
		m.mu.Unlock()
		return models.Message{}, ErrMessageNotFound
	}
	idx := indexOfMessage(sess.Messages, messageID)
	if idx < 0 {
		m.mu.Unlock()
		return models.Message{}, ErrMessageNotFound
	}
	orig := sess.Messages[idx]
	if orig.Role != models.RoleUser {
		m.mu.Unlock()
		return models.Message{}, ErrNotUserMessage
	}
	agent, ok := m.agents.Get(sess.AgentID)
	if !ok {
		m.mu.Unlock()
		return models.Message{}, ErrNoAgent
	}

	m.cancelSessionStreamsLocked(sess.ID)

	edited := orig
	edited.Text = newText
	edited.Timestamp = m.now()

	history := cloneMessages(sess.Messages[:idx])
	sess.Messages = append(cloneMessages(sess.Messages[:idx]), edited)
	m.touchLocked(sess)
	m.clearSuggestionsLocked()
	m.persistLocked(ctx)
	m.publishSessionLocked(sess)
	sessionID := sess.ID
	m.mu.Unlock()

	return m.generate(ctx, sessionID, agent, history, edited)
}

// HandleRegenerate re-runs the last user turn of the current session.
func (m *Manager) HandleRegenerate(ctx context.Context) (models.Message, error) {
	m.mu.Lock()
	sess := m.findLocked(m.currentID)
	var last *models.Message
	if sess != nil {
		for i := len(sess.Messages) - 1; i >= 0; i-- {
			if sess.Messages[i].Role == models.RoleUser {
				last = &sess.Messages[i]
				break
			}
		}
	}
	if last == nil {
		m.mu.Unlock()
		return models.Message{}, ErrMessageNotFound
	}
	id, text := last.ID, last.Text
	m.mu.Unlock()

	return m.HandleEditMessage(ctx, id, text)
}

// generate appends the streaming placeholder, runs the generator and
// finalizes the reply.
func (m *Manager) generate(ctx context.Context, sessionID string, agent models.AgentConfig, history []models.Message, user models.Message) (models.Message, error) {
	m.mu.Lock()
	sess := m.findLocked(sessionID)
	if sess == nil {
		m.mu.Unlock()
		return models.Message{}, ErrMessageNotFound
	}

	placeholder := models.Message{
		ID:          uuid.New().String(),
		Role:        models.RoleModel,
		Text:        "",
		Timestamp:   m.now(),
		IsStreaming: true,
		AgentName:   agent.Name,
	}
	sess.Messages = append(sess.Messages, placeholder)

	// One stream per session: anything still running here is stale.
	m.cancelSessionStreamsLocked(sessionID)
	streamCtx, cancel := context.WithCancel(ctx)
	key := streamKey{sessionID: sessionID, messageID: placeholder.ID}
	own := &stream{cancel: cancel}
	m.streams[key] = own

	m.persistLocked(ctx)
	m.publishSessionLocked(sess)
	m.mu.Unlock()
	defer cancel()

	augmented := agent.Clone()
	augmented.SystemInstruction += m.directive

	start := time.Now()
	res, err := m.gen.StreamChat(streamCtx, Request{
		SessionID:   sessionID,
		Agent:       augmented,
		History:     history,
		Text:        user.Text,
		Attachments: user.Attachments,
	}, func(text string) {
		m.applyChunk(key, own, text)
	})
	latency := time.Since(start)

	m.mu.Lock()
	defer m.mu.Unlock()

	owned := m.streams[key] == own
	delete(m.streams, key)
	sess = m.findLocked(sessionID)
	var msg *models.Message
	if sess != nil {
		if i := indexOfMessage(sess.Messages, placeholder.ID); i >= 0 {
			msg = &sess.Messages[i]
		}
	}
	if msg == nil {
		// Truncated away by an edit or delete, or the session is gone.
		return models.Message{}, ErrStreamCancelled
	}

	var outErr error
	switch {
	case !owned || (err != nil && streamCtx.Err() != nil):
		// Detached or cancelled: keep what arrived, stop streaming.
		outErr = ErrStreamCancelled
	case err != nil:
		msg.Text = "Error: " + err.Error()
		outErr = err
		log.Warn().Err(err).Str("session", sessionID).Str("agent", agent.ID).Msg("Chat generation failed")
	default:
		msg.Text = res.Text
		msg.Metrics = res.Metrics
	}
	msg.IsStreaming = false
	m.touchLocked(sess)
	m.persistLocked(ctx)
	m.publishSessionLocked(sess)
	final := *msg

	if outErr == nil {
		m.agents.RecordInteraction(context.WithoutCancel(ctx), agent.ID, latency)
		if m.suggester != nil && m.currentID == sessionID {
			m.startSuggestionsLocked(context.WithoutCancel(ctx), sessionID, cloneMessages(sess.Messages))
		}
	}
	return final, outErr
}

// applyChunk replaces the placeholder text with the cumulative snapshot,
// unless the stream has been detached.
func (m *Manager) applyChunk(key streamKey, own *stream, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streams[key] != own {
		return
	}
	sess := m.findLocked(key.sessionID)
	if sess == nil {
		return
	}
	i := indexOfMessage(sess.Messages, key.messageID)
	if i < 0 {
		return
	}
	sess.Messages[i].Text = text
	// Not persisted; the final text is.
	m.touchLocked(sess)
	m.publishLocked(SessionEvent{Type: EventMessageChunk, SessionID: key.sessionID, MessageID: key.messageID, Text: text})
}

// ── Delete / Feedback ────────────────────────────────────────

// HandleDeleteMessage removes a message together with its pair: a user
// message takes the model reply right after it, a model reply takes the
// user message right before it. Unpaired messages go alone.
func (m *Manager) HandleDeleteMessage(ctx context.Context, messageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.findLocked(m.currentID)
	if sess == nil {
		return false
	}
	idx := indexOfMessage(sess.Messages, messageID)
	if idx < 0 {
		return false
	}

	from, to := idx, idx+1
	msgs := sess.Messages
	switch msgs[idx].Role {
	case models.RoleUser:
		if idx+1 < len(msgs) && msgs[idx+1].Role == models.RoleModel {
			to = idx + 2
		}
	case models.RoleModel:
		if idx-1 >= 0 && msgs[idx-1].Role == models.RoleUser {
			from = idx - 1
		}
	}

	for _, gone := range msgs[from:to] {
		m.cancelStreamLocked(streamKey{sessionID: sess.ID, messageID: gone.ID})
	}
	kept := make([]models.Message, 0, len(msgs)-(to-from))
	kept = append(kept, msgs[:from]...)
	kept = append(kept, msgs[to:]...)
	sess.Messages = kept

	if n := len(kept); n == 0 || kept[n-1].Role == models.RoleUser {
		m.clearSuggestionsLocked()
	}
	m.touchLocked(sess)
	m.persistLocked(ctx)
	m.publishSessionLocked(sess)
	return true
}

// SetFeedback rates a model reply. Giving the same rating twice clears it.
func (m *Manager) SetFeedback(ctx context.Context, messageID string, fb models.Feedback) bool {
	if fb != models.FeedbackUp && fb != models.FeedbackDown {
		return false
	}
	m.mu.Lock()
	sess := m.findLocked(m.currentID)
	if sess == nil {
		m.mu.Unlock()
		return false
	}
	idx := indexOfMessage(sess.Messages, messageID)
	if idx < 0 || sess.Messages[idx].Role != models.RoleModel {
		m.mu.Unlock()
		return false
	}
	prev := sess.Messages[idx].Feedback
	next := fb
	if prev == fb {
		next = ""
	}
	sess.Messages[idx].Feedback = next
	m.touchLocked(sess)
	m.persistLocked(ctx)
	m.publishSessionLocked(sess)
	agentID := sess.AgentID
	m.mu.Unlock()

	m.agents.RecordFeedback(ctx, agentID, prev, next)
	return true
}

// ── Suggestions ──────────────────────────────────────────────

func (m *Manager) clearSuggestionsLocked() {
	m.suggestions = nil
	m.suggestToken++
}

func (m *Manager) startSuggestionsLocked(ctx context.Context, sessionID string, convo []models.Message) {
	token := m.suggestToken
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		out, err := m.suggester.Suggest(ctx, convo)
		if err != nil {
			log.Debug().Err(err).Str("session", sessionID).Msg("Suggestion generation failed")
			return
		}
		if len(out) > maxSuggestions {
			out = out[:maxSuggestions]
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.suggestToken != token || m.currentID != sessionID {
			return
		}
		m.suggestions = out
		m.publishLocked(SessionEvent{Type: EventSuggestions, SessionID: sessionID, Suggestions: append([]string(nil), out...)})
	}()
}

// ── Internals ────────────────────────────────────────────────

func (m *Manager) checkPreflight() error {
	if m.preflight == nil {
		return nil
	}
	return m.preflight()
}

func (m *Manager) cancelStreamLocked(key streamKey) {
	if st, ok := m.streams[key]; ok {
		st.cancel()
		delete(m.streams, key)
	}
}

func (m *Manager) cancelSessionStreamsLocked(sessionID string) {
	for key, st := range m.streams {
		if key.sessionID == sessionID {
			st.cancel()
			delete(m.streams, key)
		}
	}
}

func (m *Manager) findLocked(id string) *models.Session {
	if i := m.indexLocked(id); i >= 0 {
		return m.sessions[i]
	}
	return nil
}

func (m *Manager) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, s := range m.sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) touchLocked(s *models.Session) {
	s.LastModified = m.now()
	m.sortLocked()
}

func (m *Manager) sortLocked() {
	sort.SliceStable(m.sessions, func(i, j int) bool {
		return m.sessions[i].LastModified.After(m.sessions[j].LastModified)
	})
}

func (m *Manager) persistLocked(ctx context.Context) {
	out := make([]models.Session, len(m.sessions))
	for i, s := range m.sessions {
		out[i] = *s
	}
	_ = store.SaveJSON(context.WithoutCancel(ctx), m.store, store.SlotSessions, out)
}

func indexOfMessage(msgs []models.Message, id string) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneMessages(msgs []models.Message) []models.Message {
	return models.Session{Messages: msgs}.Clone().Messages
}

// deriveTitle takes the first 30 characters of text, adding an ellipsis
// when it had to cut.
func deriveTitle(text string) string {
	if text == "" {
		return "New Chat"
	}
	if utf8.RuneCountInString(text) <= titleMaxRunes {
		return text
	}
	return string([]rune(text)[:titleMaxRunes]) + "…"
}
