// Package eval runs evaluation suites and agent test labs against the
// remote backend and scores every answer with the judge.
//
// Each case gets its own backend session (create → run → delete). Cases run
// on a bounded worker pool; with one worker a suite runs strictly in order.
// Results always follow case order whatever the pool size.
package eval

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/agentoven/console/internal/publish"
	"github.com/agentoven/console/internal/remote"
	"github.com/agentoven/console/internal/store"
	"github.com/agentoven/console/internal/telemetry"
	"github.com/agentoven/console/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrSuiteNotFound = errors.New("suite not found")
	ErrEmptySuite    = errors.New("suite has no cases")
)

// Evaluator scores one output. It never fails.
type Evaluator interface {
	Evaluate(ctx context.Context, input, actual, expected, systemInstruction string) models.JudgeResult
}

// ScoreRecorder stores an agent's latest evaluation score.
type ScoreRecorder interface {
	RecordEvaluation(ctx context.Context, agentID string, score int, at time.Time)
}

// Options configures an Engine.
type Options struct {
	Store     store.Store
	Backend   remote.Backend
	Judge     Evaluator
	Agents    ScoreRecorder        // optional
	Publisher publish.RunPublisher // optional
	Workers   int
}

// Engine owns evaluation suites and runs.
type Engine struct {
	mu      sync.RWMutex
	store   store.Store
	backend remote.Backend
	judge   Evaluator
	agents  ScoreRecorder
	pub     publish.RunPublisher
	workers int

	suites []*models.EvaluationSuite
	runs   []models.EvaluationRun // newest first

	now func() time.Time
}

// New loads the suites and runs slots.
func New(ctx context.Context, opts Options) *Engine {
	e := &Engine{
		store:   opts.Store,
		backend: opts.Backend,
		judge:   opts.Judge,
		agents:  opts.Agents,
		pub:     opts.Publisher,
		workers: max(1, opts.Workers),
		now:     func() time.Time { return time.Now().UTC() },
	}
	if e.pub == nil {
		e.pub = publish.Nop{}
	}

	var suites []models.EvaluationSuite
	if store.LoadJSON(ctx, e.store, store.SlotSuites, &suites) {
		for i := range suites {
			s := suites[i]
			e.suites = append(e.suites, &s)
		}
	}
	var runs []models.EvaluationRun
	if store.LoadJSON(ctx, e.store, store.SlotRuns, &runs) {
		e.runs = runs
	}
	log.Info().Int("suites", len(e.suites)).Int("runs", len(e.runs)).Msg("Evaluation state loaded")
	return e
}

// ── Suites ──────────────────────────────────────────────────

// CreateSuite adds an empty suite and returns its id.
func (e *Engine) CreateSuite(ctx context.Context, name, description string) string {
	now := e.now()
	s := &models.EvaluationSuite{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Cases:       []models.EvaluationCase{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.suites = append(e.suites, s)
	e.persistSuitesLocked(ctx)
	log.Info().Str("suite", s.ID).Str("name", name).Msg("Evaluation suite created")
	return s.ID
}

// UpdateSuite renames a suite.
func (e *Engine) UpdateSuite(ctx context.Context, id, name, description string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.findSuiteLocked(id)
	if s == nil {
		return false
	}
	s.Name = name
	s.Description = description
	s.UpdatedAt = e.now()
	e.persistSuitesLocked(ctx)
	return true
}

// UpdateSuiteCases replaces the suite's cases. Cases without an id get one.
func (e *Engine) UpdateSuiteCases(ctx context.Context, id string, cases []models.EvaluationCase) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.findSuiteLocked(id)
	if s == nil {
		return false
	}
	next := make([]models.EvaluationCase, len(cases))
	for i, c := range cases {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		next[i] = c
	}
	s.Cases = next
	s.UpdatedAt = e.now()
	e.persistSuitesLocked(ctx)
	return true
}

// DeleteSuite removes a suite and every run of it.
func (e *Engine) DeleteSuite(ctx context.Context, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := -1
	for i, s := range e.suites {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	e.suites = append(e.suites[:idx], e.suites[idx+1:]...)

	kept := e.runs[:0]
	for _, r := range e.runs {
		if r.SuiteID != id {
			kept = append(kept, r)
		}
	}
	removed := len(e.runs) - len(kept)
	e.runs = kept

	e.persistSuitesLocked(ctx)
	e.persistRunsLocked(ctx)
	log.Info().Str("suite", id).Int("runs_removed", removed).Msg("Evaluation suite deleted")
	return true
}

// Suites returns copies of all suites.
func (e *Engine) Suites() []models.EvaluationSuite {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.EvaluationSuite, len(e.suites))
	for i, s := range e.suites {
		out[i] = cloneSuite(s)
	}
	return out
}

// Suite returns a copy of one suite.
func (e *Engine) Suite(id string) (models.EvaluationSuite, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if s := e.findSuiteLocked(id); s != nil {
		return cloneSuite(s), true
	}
	return models.EvaluationSuite{}, false
}

// ── Runs ────────────────────────────────────────────────────

// Runs returns runs newest first, limited to one suite unless suiteID is
// empty.
func (e *Engine) Runs(suiteID string) []models.EvaluationRun {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.EvaluationRun, 0, len(e.runs))
	for _, r := range e.runs {
		if suiteID == "" || r.SuiteID == suiteID {
			out = append(out, cloneRun(r))
		}
	}
	return out
}

// Run returns one run.
func (e *Engine) Run(id string) (models.EvaluationRun, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, r := range e.runs {
		if r.ID == id {
			return cloneRun(r), true
		}
	}
	return models.EvaluationRun{}, false
}

// ExpiredRuns returns the runs recorded before cutoff, newest first.
func (e *Engine) ExpiredRuns(cutoff time.Time) []models.EvaluationRun {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []models.EvaluationRun
	for _, r := range e.runs {
		if r.Timestamp.Before(cutoff) {
			out = append(out, cloneRun(r))
		}
	}
	return out
}

// PurgeRuns deletes runs by id and returns how many were removed.
func (e *Engine) PurgeRuns(ctx context.Context, ids []string) int {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.runs[:0]
	for _, r := range e.runs {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	removed := len(e.runs) - len(kept)
	e.runs = kept
	if removed > 0 {
		e.persistRunsLocked(ctx)
	}
	return removed
}

// RunSuite evaluates agent against every case of a suite with a non-blank
// input and records the run. A case that fails outright is logged and left
// out of the results. Only a missing backend configuration or a cancelled
// context abort the run.
func (e *Engine) RunSuite(ctx context.Context, suiteID string, agent models.AgentConfig) (models.EvaluationRun, error) {
	suite, ok := e.Suite(suiteID)
	if !ok {
		return models.EvaluationRun{}, ErrSuiteNotFound
	}
	if len(suite.Cases) == 0 {
		return models.EvaluationRun{}, ErrEmptySuite
	}

	ctx, span := telemetry.Tracer().Start(ctx, "eval.run_suite")
	defer span.End()
	span.SetAttributes(
		attribute.String("suite.id", suite.ID),
		attribute.String("agent.id", agent.ID),
		attribute.Int("suite.cases", len(suite.Cases)),
	)

	cases := make([]caseSpec, len(suite.Cases))
	for i, c := range suite.Cases {
		cases[i] = caseSpec{id: c.ID, input: c.Input, expected: c.ExpectedOutput}
	}
	log.Info().
		Str("suite", suite.Name).
		Str("agent", agent.Name).
		Int("cases", len(cases)).
		Int("workers", e.workers).
		Msg("🧪 Evaluation run started")

	results, err := e.runCases(ctx, agent, "Eval: "+suite.Name, cases)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.EvaluationRun{}, err
	}

	run := models.EvaluationRun{
		ID:           uuid.New().String(),
		SuiteID:      suite.ID,
		SuiteName:    suite.Name,
		AgentID:      agent.ID,
		AgentName:    agent.Name,
		AgentVersion: agent.CurrentVersion,
		Timestamp:    e.now(),
		OverallScore: OverallScore(results),
		Results:      results,
	}
	span.SetAttributes(attribute.Int("run.score", run.OverallScore), attribute.Int("run.results", len(results)))

	e.mu.Lock()
	if e.findSuiteLocked(suite.ID) == nil {
		e.mu.Unlock()
		log.Warn().Str("suite", suite.ID).Str("agent", agent.ID).Msg("Suite deleted during evaluation run, discarding run")
		return models.EvaluationRun{}, ErrSuiteNotFound
	}
	e.runs = append([]models.EvaluationRun{run}, e.runs...)
	e.persistRunsLocked(ctx)
	e.mu.Unlock()

	log.Info().
		Str("suite", suite.Name).
		Str("agent", agent.Name).
		Int("score", run.OverallScore).
		Int("results", len(results)).
		Msg("✅ Evaluation run complete")

	if len(results) > 0 && e.agents != nil {
		e.agents.RecordEvaluation(ctx, agent.ID, run.OverallScore, run.Timestamp)
	}
	if err := e.pub.PublishRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn().Err(err).Str("run", run.ID).Msg("Failed to publish evaluation run")
	}
	return cloneRun(run), nil
}

// RunTestCases runs an agent's embedded test cases. Results are returned,
// not recorded.
func (e *Engine) RunTestCases(ctx context.Context, agent models.AgentConfig) ([]models.TestResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "eval.run_test_cases")
	defer span.End()
	span.SetAttributes(attribute.String("agent.id", agent.ID))

	cases := make([]caseSpec, len(agent.TestCases))
	for i, tc := range agent.TestCases {
		cases[i] = caseSpec{id: tc.ID, input: tc.Input, expected: tc.ExpectedOutput}
	}
	return e.runCases(ctx, agent, "Test: "+agent.Name, cases)
}

// OverallScore is the rounded mean of the result scores, or 0 with no
// results.
func OverallScore(results []models.TestResult) int {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += float64(r.Score)
	}
	return int(math.Round(sum / float64(len(results))))
}

// ── Internals ───────────────────────────────────────────────

func (e *Engine) findSuiteLocked(id string) *models.EvaluationSuite {
	for _, s := range e.suites {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (e *Engine) persistSuitesLocked(ctx context.Context) {
	out := make([]models.EvaluationSuite, len(e.suites))
	for i, s := range e.suites {
		out[i] = *s
	}
	_ = store.SaveJSON(context.WithoutCancel(ctx), e.store, store.SlotSuites, out)
}

func (e *Engine) persistRunsLocked(ctx context.Context) {
	_ = store.SaveJSON(context.WithoutCancel(ctx), e.store, store.SlotRuns, e.runs)
}

func cloneSuite(s *models.EvaluationSuite) models.EvaluationSuite {
	c := *s
	c.Cases = make([]models.EvaluationCase, len(s.Cases))
	copy(c.Cases, s.Cases)
	return c
}

func cloneRun(r models.EvaluationRun) models.EvaluationRun {
	c := r
	c.Results = make([]models.TestResult, len(r.Results))
	copy(c.Results, r.Results)
	return c
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
