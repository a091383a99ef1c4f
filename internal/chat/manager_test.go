package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentoven/console/internal/store"
	"github.com/agentoven/console/pkg/models"
)

// ── Fakes ────────────────────────────────────────────────────

type fakeAgents struct {
	mu           sync.Mutex
	agents       map[string]models.AgentConfig
	order        []string
	interactions int
	feedback     []models.Feedback
}

func newFakeAgents(agents ...models.AgentConfig) *fakeAgents {
	f := &fakeAgents{agents: make(map[string]models.AgentConfig)}
	for _, a := range agents {
		f.agents[a.ID] = a
		f.order = append(f.order, a.ID)
	}
	return f
}

func (f *fakeAgents) Get(id string) (models.AgentConfig, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agents[id]
	return a, ok
}

func (f *fakeAgents) List() []models.AgentConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AgentConfig
	for _, id := range f.order {
		out = append(out, f.agents[id])
	}
	return out
}

func (f *fakeAgents) RecordInteraction(_ context.Context, _ string, _ time.Duration) {
	f.mu.Lock()
	f.interactions++
	f.mu.Unlock()
}

func (f *fakeAgents) RecordFeedback(_ context.Context, _ string, _, next models.Feedback) {
	f.mu.Lock()
	f.feedback = append(f.feedback, next)
	f.mu.Unlock()
}

// scriptedGenerator emits its chunks in order then returns final or err.
type scriptedGenerator struct {
	mu     sync.Mutex
	chunks []string
	final  string
	err    error
	reqs   []Request
}

func (g *scriptedGenerator) StreamChat(_ context.Context, req Request, onChunk func(string)) (Result, error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()
	for _, c := range g.chunks {
		onChunk(c)
	}
	if g.err != nil {
		return Result{}, g.err
	}
	return Result{Text: g.final, Metrics: &models.MessageMetrics{LatencyMs: 12}}, nil
}

func (g *scriptedGenerator) lastRequest() Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reqs[len(g.reqs)-1]
}

// blockingGenerator emits one chunk and then waits for cancellation.
type blockingGenerator struct {
	started chan struct{}
}

func (g *blockingGenerator) StreamChat(ctx context.Context, _ Request, onChunk func(string)) (Result, error) {
	onChunk("partial")
	close(g.started)
	<-ctx.Done()
	onChunk("partial and late")
	return Result{}, ctx.Err()
}

// funcGenerator adapts a function to Generator.
type funcGenerator func(ctx context.Context, req Request, onChunk func(string)) (Result, error)

func (f funcGenerator) StreamChat(ctx context.Context, req Request, onChunk func(string)) (Result, error) {
	return f(ctx, req, onChunk)
}

type fakeSuggester struct {
	out []string
	err error
}

func (s *fakeSuggester) Suggest(context.Context, []models.Message) ([]string, error) {
	return s.out, s.err
}

var testAgent = models.AgentConfig{
	ID:                "helper",
	Name:              "Helper",
	SystemInstruction: "You help.",
	Model:             "gemini-2.5-flash",
	CurrentVersion:    1,
}

func newTestManager(t *testing.T, gen Generator, sugg Suggester) (*Manager, *fakeAgents, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	agents := newFakeAgents(testAgent)
	m := NewManager(context.Background(), Options{
		Store:     s,
		Agents:    agents,
		Generator: gen,
		Suggester: sugg,
	})

	// Strictly increasing clock so ordering is deterministic.
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return m, agents, s
}

// ── Send ─────────────────────────────────────────────────────

func TestSendMessage_CreatesSessionAndStreams(t *testing.T) {
	gen := &scriptedGenerator{chunks: []string{"He", "Hello"}, final: "Hello there"}
	m, agents, _ := newTestManager(t, gen, nil)

	events, stop := m.Subscribe(64)
	defer stop()

	reply, err := m.HandleSendMessage(context.Background(), "Hi!", nil)
	if err != nil {
		t.Fatalf("HandleSendMessage() error = %v", err)
	}
	if reply.Text != "Hello there" || reply.IsStreaming {
		t.Errorf("reply = %q streaming=%v, want final text and not streaming", reply.Text, reply.IsStreaming)
	}
	if reply.AgentName != "Helper" {
		t.Errorf("reply.AgentName = %q, want Helper", reply.AgentName)
	}

	sess, ok := m.CurrentSession()
	if !ok {
		t.Fatal("expected a current session")
	}
	if sess.Title != "Hi!" || sess.AgentID != "helper" {
		t.Errorf("session = %+v", sess)
	}
	if len(sess.Messages) != 2 || sess.Messages[0].Role != models.RoleUser || sess.Messages[1].Role != models.RoleModel {
		t.Fatalf("messages = %+v, want user then model", sess.Messages)
	}

	req := gen.lastRequest()
	if !strings.HasSuffix(req.Agent.SystemInstruction, "IMPORTANT: Always respond in English.") {
		t.Errorf("instruction = %q, want language directive appended", req.Agent.SystemInstruction)
	}
	if !strings.HasPrefix(req.Agent.SystemInstruction, "You help.") {
		t.Errorf("instruction = %q, want original instruction kept", req.Agent.SystemInstruction)
	}
	if len(req.History) != 0 {
		t.Errorf("history = %d messages, want 0 for the first turn", len(req.History))
	}
	if agents.interactions != 1 {
		t.Errorf("interactions = %d, want 1", agents.interactions)
	}

	var chunks []string
	for len(events) > 0 {
		ev := <-events
		if ev.Type == EventMessageChunk {
			chunks = append(chunks, ev.Text)
		}
	}
	if strings.Join(chunks, "|") != "He|Hello" {
		t.Errorf("chunk events = %v, want cumulative snapshots", chunks)
	}
}

func TestSendMessage_SecondTurnCarriesHistory(t *testing.T) {
	gen := &scriptedGenerator{final: "ok"}
	m, _, _ := newTestManager(t, gen, nil)

	if _, err := m.HandleSendMessage(context.Background(), "one", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.HandleSendMessage(context.Background(), "two", nil); err != nil {
		t.Fatal(err)
	}
	if got := len(gen.lastRequest().History); got != 2 {
		t.Errorf("history = %d messages, want 2", got)
	}
	if got := len(m.Sessions()); got != 1 {
		t.Errorf("sessions = %d, want 1", got)
	}
}

func TestSendMessage_ErrorAsContent(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("backend down")}
	m, agents, _ := newTestManager(t, gen, nil)

	reply, err := m.HandleSendMessage(context.Background(), "Hi", nil)
	if err == nil {
		t.Fatal("expected generation error")
	}
	if reply.Text != "Error: backend down" || reply.IsStreaming {
		t.Errorf("reply = %q streaming=%v", reply.Text, reply.IsStreaming)
	}
	sess, _ := m.CurrentSession()
	if len(sess.Messages) != 2 {
		t.Errorf("messages = %d, want session intact with 2", len(sess.Messages))
	}
	if agents.interactions != 0 {
		t.Errorf("failed turns must not count as interactions")
	}
}

func TestSendMessage_Empty(t *testing.T) {
	m, _, _ := newTestManager(t, &scriptedGenerator{}, nil)
	if _, err := m.HandleSendMessage(context.Background(), "", nil); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("err = %v, want ErrEmptyMessage", err)
	}
	if len(m.Sessions()) != 0 {
		t.Error("no session should be created for an empty message")
	}
}

func TestSendMessage_Persists(t *testing.T) {
	m, _, s := newTestManager(t, &scriptedGenerator{final: "saved"}, nil)
	if _, err := m.HandleSendMessage(context.Background(), "Hi", nil); err != nil {
		t.Fatal(err)
	}

	reloaded := NewManager(context.Background(), Options{Store: s, Agents: newFakeAgents(testAgent), Generator: &scriptedGenerator{}})
	sessions := reloaded.Sessions()
	if len(sessions) != 1 || len(sessions[0].Messages) != 2 {
		t.Fatalf("reloaded sessions = %+v", sessions)
	}
	if sessions[0].Messages[1].Text != "saved" {
		t.Errorf("reloaded reply = %q, want saved", sessions[0].Messages[1].Text)
	}
}

func TestNewManager_ClearsStaleStreamingFlag(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	stale := []models.Session{{
		ID: "s1", Title: "t", AgentID: "helper",
		Messages: []models.Message{{ID: "m1", Role: models.RoleModel, Text: "half", IsStreaming: true}},
	}}
	if err := store.SaveJSON(context.Background(), s, store.SlotSessions, stale); err != nil {
		t.Fatal(err)
	}

	m := NewManager(context.Background(), Options{Store: s, Agents: newFakeAgents(testAgent), Generator: &scriptedGenerator{}})
	got, ok := m.Session("s1")
	if !ok {
		t.Fatal("session s1 not loaded")
	}
	if got.Messages[0].IsStreaming {
		t.Error("streaming flag should be cleared on load")
	}
}

// ── Cancellation ─────────────────────────────────────────────

func TestSendMessage_ChunksTouchSession(t *testing.T) {
	var m *Manager
	var stamps []time.Time
	stamp := func() {
		sess, _ := m.CurrentSession()
		stamps = append(stamps, sess.LastModified)
	}
	gen := funcGenerator(func(_ context.Context, _ Request, onChunk func(string)) (Result, error) {
		stamp()
		onChunk("Hi")
		stamp()
		onChunk("Hi there")
		stamp()
		return Result{Text: "Hi there"}, nil
	})
	m, _, _ = newTestManager(t, gen, nil)

	if _, err := m.HandleSendMessage(context.Background(), "hello", nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(stamps) != 3 {
		t.Fatalf("stamps = %d, want 3", len(stamps))
	}
	for i := 1; i < len(stamps); i++ {
		if !stamps[i].After(stamps[i-1]) {
			t.Errorf("chunk %d did not advance lastModified: %v -> %v", i, stamps[i-1], stamps[i])
		}
	}
}

func TestNewChat_CancelsInFlightStream(t *testing.T) {
	gen := &blockingGenerator{started: make(chan struct{})}
	m, _, _ := newTestManager(t, gen, nil)

	type outcome struct {
		msg models.Message
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		msg, err := m.HandleSendMessage(context.Background(), "long question", nil)
		done <- outcome{msg, err}
	}()

	<-gen.started
	sess, _ := m.CurrentSession()
	m.NewChat()

	select {
	case out := <-done:
		if !errors.Is(out.err, ErrStreamCancelled) {
			t.Errorf("err = %v, want ErrStreamCancelled", out.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream was not cancelled")
	}

	got, _ := m.Session(sess.ID)
	last := got.Messages[len(got.Messages)-1]
	if last.Text != "partial" {
		t.Errorf("text = %q, want partial text kept and late chunk dropped", last.Text)
	}
	if last.IsStreaming {
		t.Error("cancelled placeholder must stop streaming")
	}
	if _, ok := m.CurrentSession(); ok {
		t.Error("NewChat should detach the current session")
	}
}

func TestDeleteSession_CancelsStream(t *testing.T) {
	gen := &blockingGenerator{started: make(chan struct{})}
	m, _, _ := newTestManager(t, gen, nil)

	done := make(chan error, 1)
	go func() {
		_, err := m.HandleSendMessage(context.Background(), "q", nil)
		done <- err
	}()
	<-gen.started
	sess, _ := m.CurrentSession()

	if !m.DeleteSession(context.Background(), sess.ID) {
		t.Fatal("DeleteSession() = false")
	}
	select {
	case err := <-done:
		if !errors.Is(err, ErrStreamCancelled) {
			t.Errorf("err = %v, want ErrStreamCancelled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream was not cancelled")
	}
	if len(m.Sessions()) != 0 {
		t.Error("session should be gone")
	}
}

func TestDeleteSession_NotifiesCallback(t *testing.T) {
	m, _, _ := newTestManager(t, &scriptedGenerator{final: "ok"}, nil)
	ctx := context.Background()
	var deleted []string
	m.onDeleted = func(id string) { deleted = append(deleted, id) }

	if _, err := m.HandleSendMessage(ctx, "hello", nil); err != nil {
		t.Fatal(err)
	}
	sess, _ := m.CurrentSession()

	if m.DeleteSession(ctx, "missing") {
		t.Error("deleting an unknown session should report false")
	}
	if !m.DeleteSession(ctx, sess.ID) {
		t.Fatal("delete failed")
	}
	if len(deleted) != 1 || deleted[0] != sess.ID {
		t.Errorf("deleted = %v, want [%s]", deleted, sess.ID)
	}
}

// ── Edit / Regenerate ────────────────────────────────────────

func TestEditMessage_TruncatesAndRegenerates(t *testing.T) {
	gen := &scriptedGenerator{final: "first"}
	m, _, _ := newTestManager(t, gen, nil)
	ctx := context.Background()

	if _, err := m.HandleSendMessage(ctx, "q1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.HandleSendMessage(ctx, "q2", nil); err != nil {
		t.Fatal(err)
	}
	sess, _ := m.CurrentSession()
	first := sess.Messages[0]

	gen.final = "rewritten"
	reply, err := m.HandleEditMessage(ctx, first.ID, "q1 edited")
	if err != nil {
		t.Fatalf("HandleEditMessage() error = %v", err)
	}
	if reply.Text != "rewritten" {
		t.Errorf("reply = %q", reply.Text)
	}

	sess, _ = m.CurrentSession()
	if len(sess.Messages) != 2 {
		t.Fatalf("messages = %d, want 2 after truncation", len(sess.Messages))
	}
	edited := sess.Messages[0]
	if edited.ID != first.ID || edited.Role != models.RoleUser || edited.Text != "q1 edited" {
		t.Errorf("edited = %+v", edited)
	}
	if !edited.Timestamp.After(first.Timestamp) {
		t.Error("edited message should carry a new timestamp")
	}
	if len(gen.lastRequest().History) != 0 {
		t.Error("regeneration history must stop before the edited message")
	}
}

func TestEditMessage_RejectsModelMessage(t *testing.T) {
	m, _, _ := newTestManager(t, &scriptedGenerator{final: "a"}, nil)
	if _, err := m.HandleSendMessage(context.Background(), "q", nil); err != nil {
		t.Fatal(err)
	}
	sess, _ := m.CurrentSession()
	_, err := m.HandleEditMessage(context.Background(), sess.Messages[1].ID, "x")
	if !errors.Is(err, ErrNotUserMessage) {
		t.Errorf("err = %v, want ErrNotUserMessage", err)
	}
	if _, err := m.HandleEditMessage(context.Background(), "missing", "x"); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("err = %v, want ErrMessageNotFound", err)
	}
}

func TestRegenerate(t *testing.T) {
	gen := &scriptedGenerator{final: "v1"}
	m, _, _ := newTestManager(t, gen, nil)
	if _, err := m.HandleSendMessage(context.Background(), "q", nil); err != nil {
		t.Fatal(err)
	}
	gen.final = "v2"
	reply, err := m.HandleRegenerate(context.Background())
	if err != nil {
		t.Fatalf("HandleRegenerate() error = %v", err)
	}
	if reply.Text != "v2" {
		t.Errorf("reply = %q, want v2", reply.Text)
	}
	sess, _ := m.CurrentSession()
	if len(sess.Messages) != 2 || sess.Messages[0].Text != "q" {
		t.Errorf("messages = %+v", sess.Messages)
	}
}

// ── Delete ───────────────────────────────────────────────────

func TestDeleteMessage_Pairs(t *testing.T) {
	ctx := context.Background()

	t.Run("user with reply removes both", func(t *testing.T) {
		m, _, _ := newTestManager(t, &scriptedGenerator{final: "a"}, nil)
		m.HandleSendMessage(ctx, "q1", nil)
		m.HandleSendMessage(ctx, "q2", nil)
		sess, _ := m.CurrentSession()

		if !m.HandleDeleteMessage(ctx, sess.Messages[0].ID) {
			t.Fatal("HandleDeleteMessage() = false")
		}
		sess, _ = m.CurrentSession()
		if len(sess.Messages) != 2 || sess.Messages[0].Text != "q2" {
			t.Errorf("messages = %+v, want only the second pair", sess.Messages)
		}
	})

	t.Run("model removes preceding user", func(t *testing.T) {
		m, _, _ := newTestManager(t, &scriptedGenerator{final: "a"}, nil)
		m.HandleSendMessage(ctx, "q1", nil)
		sess, _ := m.CurrentSession()

		m.HandleDeleteMessage(ctx, sess.Messages[1].ID)
		sess, _ = m.CurrentSession()
		if len(sess.Messages) != 0 {
			t.Errorf("messages = %d, want 0", len(sess.Messages))
		}
	})

	t.Run("trailing unpaired user removes only itself", func(t *testing.T) {
		m, _, _ := newTestManager(t, &scriptedGenerator{final: "a"}, nil)
		m.HandleSendMessage(ctx, "q1", nil)

		// Append an unanswered user turn directly.
		m.mu.Lock()
		s := m.findLocked(m.currentID)
		s.Messages = append(s.Messages, models.Message{ID: "orphan", Role: models.RoleUser, Text: "q2"})
		m.mu.Unlock()

		m.HandleDeleteMessage(ctx, "orphan")
		sess, _ := m.CurrentSession()
		if len(sess.Messages) != 2 {
			t.Errorf("messages = %d, want 2", len(sess.Messages))
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		m, _, _ := newTestManager(t, &scriptedGenerator{final: "a"}, nil)
		m.HandleSendMessage(ctx, "q1", nil)
		if m.HandleDeleteMessage(ctx, "nope") {
			t.Error("HandleDeleteMessage(unknown) = true")
		}
	})
}

// ── Ordering / Navigation ────────────────────────────────────

func TestSessions_MostRecentFirst(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, &scriptedGenerator{final: "a"}, nil)

	m.HandleSendMessage(ctx, "in A", nil)
	a, _ := m.CurrentSession()
	m.NewChat()
	m.HandleSendMessage(ctx, "in B", nil)
	b, _ := m.CurrentSession()

	if got := m.Sessions(); got[0].ID != b.ID {
		t.Fatalf("Sessions()[0] = %s, want B", got[0].Title)
	}

	if !m.SelectSession(a.ID) {
		t.Fatal("SelectSession(A) = false")
	}
	m.SetFeedback(ctx, a.Messages[1].ID, models.FeedbackUp)

	if got := m.Sessions(); got[0].ID != a.ID {
		t.Errorf("Sessions()[0] = %s, want A after mutation", got[0].Title)
	}
}

func TestSetActiveAgent_DetachesForeignSession(t *testing.T) {
	ctx := context.Background()
	m, agents, _ := newTestManager(t, &scriptedGenerator{final: "a"}, nil)
	other := models.AgentConfig{ID: "other", Name: "Other"}
	agents.agents[other.ID] = other
	agents.order = append(agents.order, other.ID)

	m.HandleSendMessage(ctx, "hello", nil)
	if !m.SetActiveAgent("other") {
		t.Fatal("SetActiveAgent() = false")
	}
	if _, ok := m.CurrentSession(); ok {
		t.Error("current session bound to another agent should be detached")
	}
	if m.SetActiveAgent("ghost") {
		t.Error("SetActiveAgent(unknown) = true")
	}
	if m.ActiveAgentID() != "other" {
		t.Errorf("ActiveAgentID() = %q", m.ActiveAgentID())
	}
}

// ── Feedback / Suggestions ───────────────────────────────────

func TestSetFeedback_Toggles(t *testing.T) {
	ctx := context.Background()
	m, agents, _ := newTestManager(t, &scriptedGenerator{final: "a"}, nil)
	m.HandleSendMessage(ctx, "q", nil)
	sess, _ := m.CurrentSession()
	reply := sess.Messages[1].ID

	m.SetFeedback(ctx, reply, models.FeedbackUp)
	m.SetFeedback(ctx, reply, models.FeedbackUp)

	sess, _ = m.CurrentSession()
	if sess.Messages[1].Feedback != "" {
		t.Errorf("feedback = %q, want cleared after repeat", sess.Messages[1].Feedback)
	}
	if len(agents.feedback) != 2 || agents.feedback[0] != models.FeedbackUp || agents.feedback[1] != "" {
		t.Errorf("recorded = %v", agents.feedback)
	}
	if m.SetFeedback(ctx, sess.Messages[0].ID, models.FeedbackDown) {
		t.Error("feedback on a user message should be rejected")
	}
}

func TestSuggestions_Lifecycle(t *testing.T) {
	ctx := context.Background()
	sugg := &fakeSuggester{out: []string{"a", "b", "c", "d"}}
	m, _, _ := newTestManager(t, &scriptedGenerator{final: "reply"}, sugg)

	m.HandleSendMessage(ctx, "q", nil)
	m.bg.Wait()

	if got := m.Suggestions(); len(got) != 3 {
		t.Fatalf("Suggestions() = %v, want 3", got)
	}

	sess, _ := m.CurrentSession()
	m.HandleDeleteMessage(ctx, sess.Messages[1].ID)
	if got := m.Suggestions(); len(got) != 0 {
		t.Errorf("Suggestions() = %v, want cleared after delete", got)
	}
}

func TestSuggestions_FailureLeavesEmpty(t *testing.T) {
	sugg := &fakeSuggester{err: errors.New("quota")}
	m, _, _ := newTestManager(t, &scriptedGenerator{final: "reply"}, sugg)

	reply, err := m.HandleSendMessage(context.Background(), "q", nil)
	m.bg.Wait()
	if err != nil || reply.Text != "reply" {
		t.Errorf("suggestion failure must not affect the reply: %q %v", reply.Text, err)
	}
	if got := m.Suggestions(); len(got) != 0 {
		t.Errorf("Suggestions() = %v, want empty", got)
	}
}

// ── Export / Title ───────────────────────────────────────────

func TestExportChat(t *testing.T) {
	m, _, _ := newTestManager(t, &scriptedGenerator{final: "Bonjour"}, nil)

	if _, _, ok := m.HandleExportChat(); ok {
		t.Error("export without a session should be a no-op")
	}

	m.HandleSendMessage(context.Background(), "Say hello in French!", nil)
	name, doc, ok := m.HandleExportChat()
	if !ok {
		t.Fatal("HandleExportChat() ok = false")
	}
	if name != "say_hello_in_french.txt" {
		t.Errorf("filename = %q", name)
	}
	text := string(doc)
	if strings.Count(text, "\n---\n") != 1 {
		t.Errorf("want one separator between two blocks:\n%s", text)
	}
	if !strings.Contains(text, "[User]") || !strings.Contains(text, "[Helper]") || !strings.Contains(text, "Bonjour") {
		t.Errorf("export missing content:\n%s", text)
	}
}

func TestExportChat_EmptySession(t *testing.T) {
	m, _, _ := newTestManager(t, &scriptedGenerator{final: "a"}, nil)
	m.HandleSendMessage(context.Background(), "q", nil)
	sess, _ := m.CurrentSession()
	m.HandleDeleteMessage(context.Background(), sess.Messages[0].ID)

	if _, _, ok := m.HandleExportChat(); ok {
		t.Error("exporting a chat with no messages should produce nothing")
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "New Chat"},
		{"short", "short"},
		{strings.Repeat("a", 30), strings.Repeat("a", 30)},
		{strings.Repeat("b", 31), strings.Repeat("b", 30) + "…"},
		{strings.Repeat("é", 40), strings.Repeat("é", 30) + "…"},
	}
	for _, tt := range tests {
		if got := deriveTitle(tt.in); got != tt.want {
			t.Errorf("deriveTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
