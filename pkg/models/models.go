package models

import (
	"time"
)

// ── Agent ────────────────────────────────────────────────────

// DefaultChangeLog is recorded on a PromptVersion when the publisher gave no note.
const DefaultChangeLog = "Updated via console"

// VersionAuthor is the fixed author label stamped on every PromptVersion.
const VersionAuthor = "System"

// AgentConfig is a configured persona: name, system instruction and model,
// plus its version history and embedded test lab.
//
// The top-level fields are always the live configuration. DraftConfig holds
// pending, unpublished overrides and never applies on its own.
type AgentConfig struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	NameLocalized        string `json:"nameLocalized,omitempty"`
	Description          string `json:"description"`
	DescriptionLocalized string `json:"descriptionLocalized,omitempty"`
	SystemInstruction    string `json:"systemInstruction"`
	Model                string `json:"model"`

	// Style carries UI hints (colour, icon). The core never reads it.
	Style map[string]string `json:"style,omitempty"`

	CurrentVersion int             `json:"currentVersion"`
	PromptVersions []PromptVersion `json:"promptVersions"` // newest first
	TestCases      []TestCase      `json:"testCases"`
	Metrics        AgentMetrics    `json:"metrics"`
	DraftConfig    *DraftConfig    `json:"draftConfig,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DraftConfig is the subset of AgentConfig that can be edited as a draft.
type DraftConfig struct {
	Name                 string `json:"name"`
	NameLocalized        string `json:"nameLocalized,omitempty"`
	Description          string `json:"description"`
	DescriptionLocalized string `json:"descriptionLocalized,omitempty"`
	SystemInstruction    string `json:"systemInstruction"`
}

// DraftPatch enumerates the fields a draft edit may change.
// A nil field leaves the draft value as it is.
type DraftPatch struct {
	Name                 *string `json:"name,omitempty"`
	NameLocalized        *string `json:"nameLocalized,omitempty"`
	Description          *string `json:"description,omitempty"`
	DescriptionLocalized *string `json:"descriptionLocalized,omitempty"`
	SystemInstruction    *string `json:"systemInstruction,omitempty"`
}

// Apply merges the non-nil fields of p into d (last write wins per field).
func (p DraftPatch) Apply(d *DraftConfig) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.NameLocalized != nil {
		d.NameLocalized = *p.NameLocalized
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.DescriptionLocalized != nil {
		d.DescriptionLocalized = *p.DescriptionLocalized
	}
	if p.SystemInstruction != nil {
		d.SystemInstruction = *p.SystemInstruction
	}
}

// PromptVersion is an immutable snapshot recorded when a changed
// instruction is published.
type PromptVersion struct {
	Version           int       `json:"version"`
	Timestamp         time.Time `json:"timestamp"`
	SystemInstruction string    `json:"systemInstruction"`
	ChangeLog         string    `json:"changeLog"`
	Author            string    `json:"author"`
}

// AgentMetrics aggregates chat and evaluation activity for an agent.
type AgentMetrics struct {
	TotalInteractions   int        `json:"totalInteractions"`
	AvgResponseTimeMs   int64      `json:"avgResponseTimeMs"`
	PositiveFeedback    int        `json:"positiveFeedback"`
	NegativeFeedback    int        `json:"negativeFeedback"`
	LastEvaluationScore *int       `json:"lastEvaluationScore,omitempty"`
	LastEvaluatedAt     *time.Time `json:"lastEvaluatedAt,omitempty"`
}

// Clone returns a deep copy so callers can never alias registry state.
func (a AgentConfig) Clone() AgentConfig {
	c := a
	if a.Style != nil {
		c.Style = make(map[string]string, len(a.Style))
		for k, v := range a.Style {
			c.Style[k] = v
		}
	}
	if a.PromptVersions != nil {
		c.PromptVersions = make([]PromptVersion, len(a.PromptVersions))
		copy(c.PromptVersions, a.PromptVersions)
	}
	if a.TestCases != nil {
		c.TestCases = make([]TestCase, len(a.TestCases))
		copy(c.TestCases, a.TestCases)
	}
	if a.DraftConfig != nil {
		d := *a.DraftConfig
		c.DraftConfig = &d
	}
	if a.Metrics.LastEvaluationScore != nil {
		s := *a.Metrics.LastEvaluationScore
		c.Metrics.LastEvaluationScore = &s
	}
	if a.Metrics.LastEvaluatedAt != nil {
		t := *a.Metrics.LastEvaluatedAt
		c.Metrics.LastEvaluatedAt = &t
	}
	return c
}

// ── Test Lab ─────────────────────────────────────────────────

// TestCase is an input/expected pair embedded in an agent.
type TestCase struct {
	ID             string `json:"id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput,omitempty"`
}

// TestResult is the judged outcome of one case. It is run-scoped.
type TestResult struct {
	TestCaseID   string    `json:"testCaseId"`
	ActualOutput string    `json:"actualOutput"`
	Score        int       `json:"score"`
	Pass         bool      `json:"pass"`
	Reasoning    string    `json:"reasoning"`
	Timestamp    time.Time `json:"timestamp"`
}

// ── Evaluation ───────────────────────────────────────────────

// EvaluationCase is one case of a suite.
type EvaluationCase struct {
	ID             string `json:"id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput,omitempty"`
}

// EvaluationSuite is a named, reusable group of cases.
type EvaluationSuite struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Cases       []EvaluationCase `json:"cases"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// EvaluationRun records one execution of a suite against an agent.
// Suite and agent fields are snapshots taken at run time so the record
// stays readable after either one changes or disappears.
type EvaluationRun struct {
	ID           string       `json:"id"`
	SuiteID      string       `json:"suiteId"`
	SuiteName    string       `json:"suiteName"`
	AgentID      string       `json:"agentId"`
	AgentName    string       `json:"agentName"`
	AgentVersion int          `json:"agentVersion"`
	Timestamp    time.Time    `json:"timestamp"`
	OverallScore int          `json:"overallScore"`
	Results      []TestResult `json:"results"`
}

// ── Judge ────────────────────────────────────────────────────

// PassThreshold is the minimum score that counts as a pass.
const PassThreshold = 70

// JudgeResult is the structured verdict for one output.
type JudgeResult struct {
	Score     int    `json:"score"`
	Pass      bool   `json:"pass"`
	Reasoning string `json:"reasoning"`
}

// PerformanceMetrics are the 0–10 sub-scores of a performance review.
type PerformanceMetrics struct {
	Relevance int `json:"relevance"`
	Accuracy  int `json:"accuracy"`
	Clarity   int `json:"clarity"`
	Safety    int `json:"safety"`
}

// PerformanceReport is the agent-level review produced by the judge.
type PerformanceReport struct {
	OverallScore int                `json:"overallScore"`
	Metrics      PerformanceMetrics `json:"metrics"`
	Suggestions  []string           `json:"suggestions"`
	Reasoning    string             `json:"reasoning,omitempty"`
}

// ── Chat ─────────────────────────────────────────────────────

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type Feedback string

const (
	FeedbackUp   Feedback = "up"
	FeedbackDown Feedback = "down"
)

// Attachment is an inline file sent with a user message.
type Attachment struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"` // base64 in JSON
}

// MessageMetrics are per-response measurements reported by the backend.
type MessageMetrics struct {
	LatencyMs    int64 `json:"latencyMs"`
	InputTokens  int64 `json:"inputTokens,omitempty"`
	OutputTokens int64 `json:"outputTokens,omitempty"`
}

// Message is one turn of a chat session.
type Message struct {
	ID          string          `json:"id"`
	Role        Role            `json:"role"`
	Text        string          `json:"text"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	IsStreaming bool            `json:"isStreaming"`
	AgentName   string          `json:"agentName,omitempty"`
	Feedback    Feedback        `json:"feedback,omitempty"`
	Metrics     *MessageMetrics `json:"metrics,omitempty"`
	Logs        []string        `json:"logs,omitempty"`
}

// Session is a conversation thread bound to one agent.
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Messages     []Message `json:"messages"`
	AgentID      string    `json:"agentId"`
	LastModified time.Time `json:"lastModified"`
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	c := s
	c.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		if m.Attachments != nil {
			m.Attachments = append([]Attachment(nil), m.Attachments...)
		}
		if m.Metrics != nil {
			mm := *m.Metrics
			m.Metrics = &mm
		}
		if m.Logs != nil {
			m.Logs = append([]string(nil), m.Logs...)
		}
		c.Messages[i] = m
	}
	return c
}

// ── Settings ─────────────────────────────────────────────────

// ConnectionSettings locate the remote agent-serving backend.
type ConnectionSettings struct {
	BaseURL string `json:"baseUrl"`
	APIKey  string `json:"apiKey,omitempty"`
}
