// Package registry owns agent configurations: draft/publish versioning,
// prompt history, embedded test cases and activity metrics.
//
// Operations on an unknown id are silent no-ops that report ok=false, so
// a caller racing an asynchronous delete never fails.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/agentoven/console/internal/store"
	"github.com/agentoven/console/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Registry is the agent store. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	store  store.Store
	agents []*models.AgentConfig
	now    func() time.Time
}

// New loads the agents slot. Built-in agents are seeded when the slot is
// missing, empty or corrupt.
func New(ctx context.Context, s store.Store) *Registry {
	r := &Registry{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}

	var loaded []models.AgentConfig
	if store.LoadJSON(ctx, s, store.SlotAgents, &loaded) && len(loaded) > 0 {
		for i := range loaded {
			a := loaded[i]
			r.agents = append(r.agents, &a)
		}
		log.Info().Int("agents", len(r.agents)).Msg("Agent registry loaded")
		return r
	}

	now := r.now()
	for _, a := range DefaultAgents() {
		a.CreatedAt, a.UpdatedAt = now, now
		r.agents = append(r.agents, &a)
	}
	r.persistLocked(ctx)
	log.Info().Int("agents", len(r.agents)).Msg("🌱 Seeded default agents")
	return r
}

// ── Reads ───────────────────────────────────────────────────

// Get returns a copy of an agent.
func (r *Registry) Get(id string) (models.AgentConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a := r.findLocked(id); a != nil {
		return a.Clone(), true
	}
	return models.AgentConfig{}, false
}

// List returns copies of all agents in creation order.
func (r *Registry) List() []models.AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AgentConfig, len(r.agents))
	for i, a := range r.agents {
		out[i] = a.Clone()
	}
	return out
}

// ── Lifecycle ───────────────────────────────────────────────

// CreateAgent appends a fully formed agent. An empty id is generated; any
// other id is taken as is.
func (r *Registry) CreateAgent(ctx context.Context, cfg models.AgentConfig) models.AgentConfig {
	a := cfg.Clone()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CurrentVersion == 0 {
		a.CurrentVersion = 1
	}
	if a.PromptVersions == nil {
		a.PromptVersions = []models.PromptVersion{}
	}
	if a.TestCases == nil {
		a.TestCases = []models.TestCase{}
	}
	if len(a.Style) == 0 {
		// Stored without the key, so it reloads as nil.
		a.Style = nil
	}
	now := r.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = append(r.agents, &a)
	r.persistLocked(ctx)
	log.Info().Str("agent", a.ID).Str("name", a.Name).Msg("Agent created")
	return a.Clone()
}

// DeleteAgent removes an agent.
func (r *Registry) DeleteAgent(ctx context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.agents {
		if a.ID == id {
			r.agents = append(r.agents[:i], r.agents[i+1:]...)
			r.persistLocked(ctx)
			log.Info().Str("agent", id).Msg("Agent deleted")
			return true
		}
	}
	return false
}

// ── Drafts ──────────────────────────────────────────────────

// SaveDraft merges patch into the agent's draft, seeding the draft from the
// live fields first when there is none. Live fields are never touched.
func (r *Registry) SaveDraft(ctx context.Context, id string, patch models.DraftPatch) (models.AgentConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.findLocked(id)
	if a == nil {
		return models.AgentConfig{}, false
	}
	d := draftOrSeed(a)
	patch.Apply(d)
	a.DraftConfig = d
	r.persistLocked(ctx)
	return a.Clone(), true
}

// DiscardDraft drops any pending draft.
func (r *Registry) DiscardDraft(ctx context.Context, id string) (models.AgentConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.findLocked(id)
	if a == nil {
		return models.AgentConfig{}, false
	}
	a.DraftConfig = nil
	r.persistLocked(ctx)
	return a.Clone(), true
}

// PublishDraft makes the draft live. Every publish bumps CurrentVersion by
// one; a PromptVersion is recorded only when the instruction changed. With
// no draft the agent is left exactly as it was.
func (r *Registry) PublishDraft(ctx context.Context, id, changeLog string) (models.AgentConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.findLocked(id)
	if a == nil {
		return models.AgentConfig{}, false
	}
	d := a.DraftConfig
	if d == nil {
		return a.Clone(), true
	}

	now := r.now()
	a.CurrentVersion++
	if d.SystemInstruction != a.SystemInstruction {
		if changeLog == "" {
			changeLog = models.DefaultChangeLog
		}
		pv := models.PromptVersion{
			Version:           a.CurrentVersion,
			Timestamp:         now,
			SystemInstruction: d.SystemInstruction,
			ChangeLog:         changeLog,
			Author:            models.VersionAuthor,
		}
		a.PromptVersions = append([]models.PromptVersion{pv}, a.PromptVersions...)
	}

	a.Name = d.Name
	a.NameLocalized = d.NameLocalized
	a.Description = d.Description
	a.DescriptionLocalized = d.DescriptionLocalized
	a.SystemInstruction = d.SystemInstruction
	a.DraftConfig = nil
	a.UpdatedAt = now

	r.persistLocked(ctx)
	log.Info().Str("agent", id).Int("version", a.CurrentVersion).Msg("📦 Agent draft published")
	return a.Clone(), true
}

// RestoreVersion stages a recorded instruction into the draft. It does not
// publish. ok is false when the agent or the version does not exist.
func (r *Registry) RestoreVersion(ctx context.Context, id string, version int) (models.AgentConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.findLocked(id)
	if a == nil {
		return models.AgentConfig{}, false
	}
	for _, pv := range a.PromptVersions {
		if pv.Version != version {
			continue
		}
		d := draftOrSeed(a)
		d.SystemInstruction = pv.SystemInstruction
		a.DraftConfig = d
		r.persistLocked(ctx)
		return a.Clone(), true
	}
	return a.Clone(), false
}

// draftOrSeed returns a copy of the agent's draft, or a new one seeded from
// the live fields.
func draftOrSeed(a *models.AgentConfig) *models.DraftConfig {
	if a.DraftConfig != nil {
		d := *a.DraftConfig
		return &d
	}
	return &models.DraftConfig{
		Name:                 a.Name,
		NameLocalized:        a.NameLocalized,
		Description:          a.Description,
		DescriptionLocalized: a.DescriptionLocalized,
		SystemInstruction:    a.SystemInstruction,
	}
}

// ── Test lab ────────────────────────────────────────────────

// UpdateTestCases replaces the agent's test cases. Cases without an id get
// one.
func (r *Registry) UpdateTestCases(ctx context.Context, id string, cases []models.TestCase) (models.AgentConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.findLocked(id)
	if a == nil {
		return models.AgentConfig{}, false
	}
	next := make([]models.TestCase, len(cases))
	for i, tc := range cases {
		if tc.ID == "" {
			tc.ID = uuid.New().String()
		}
		next[i] = tc
	}
	a.TestCases = next
	a.UpdatedAt = r.now()
	r.persistLocked(ctx)
	return a.Clone(), true
}

// ── Metrics ─────────────────────────────────────────────────

// RecordInteraction counts a completed chat reply and folds its latency
// into the running average.
func (r *Registry) RecordInteraction(ctx context.Context, id string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.findLocked(id)
	if a == nil {
		return
	}
	m := &a.Metrics
	n := int64(m.TotalInteractions)
	m.AvgResponseTimeMs = (m.AvgResponseTimeMs*n + latency.Milliseconds()) / (n + 1)
	m.TotalInteractions++
	r.persistLocked(ctx)
}

// RecordFeedback moves a reply's rating from prev to next; either may be
// empty.
func (r *Registry) RecordFeedback(ctx context.Context, id string, prev, next models.Feedback) {
	if prev == next {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.findLocked(id)
	if a == nil {
		return
	}
	m := &a.Metrics
	switch prev {
	case models.FeedbackUp:
		m.PositiveFeedback = max(0, m.PositiveFeedback-1)
	case models.FeedbackDown:
		m.NegativeFeedback = max(0, m.NegativeFeedback-1)
	}
	switch next {
	case models.FeedbackUp:
		m.PositiveFeedback++
	case models.FeedbackDown:
		m.NegativeFeedback++
	}
	r.persistLocked(ctx)
}

// RecordEvaluation stores the latest evaluation score of an agent.
func (r *Registry) RecordEvaluation(ctx context.Context, id string, score int, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.findLocked(id)
	if a == nil {
		return
	}
	a.Metrics.LastEvaluationScore = &score
	a.Metrics.LastEvaluatedAt = &at
	r.persistLocked(ctx)
}

// ── Internals ───────────────────────────────────────────────

func (r *Registry) findLocked(id string) *models.AgentConfig {
	for _, a := range r.agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (r *Registry) persistLocked(ctx context.Context) {
	out := make([]models.AgentConfig, len(r.agents))
	for i, a := range r.agents {
		out[i] = *a
	}
	_ = store.SaveJSON(context.WithoutCancel(ctx), r.store, store.SlotAgents, out)
}
