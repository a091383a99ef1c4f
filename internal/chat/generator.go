package chat

import (
	"context"
	"time"

	"github.com/agentoven/console/pkg/models"
)

// Request is one streamed generation for a chat turn.
type Request struct {
	// SessionID is the local chat session the turn belongs to.
	SessionID string
	// Agent carries the live configuration with the language directive
	// already appended to SystemInstruction.
	Agent models.AgentConfig
	// History is every message before the new user turn.
	History     []models.Message
	Text        string
	Attachments []models.Attachment
}

// Result is the terminal outcome of a successful generation.
type Result struct {
	Text    string
	Metrics *models.MessageMetrics
}

// Generator streams a model reply. onChunk receives the cumulative text so
// far, never a delta.
type Generator interface {
	StreamChat(ctx context.Context, req Request, onChunk func(text string)) (Result, error)
}

// Suggester proposes follow-up prompts for a finished conversation.
type Suggester interface {
	Suggest(ctx context.Context, conversation []models.Message) ([]string, error)
}

// AgentSource resolves agents by id and records chat activity on them.
type AgentSource interface {
	Get(id string) (models.AgentConfig, bool)
	List() []models.AgentConfig
	RecordInteraction(ctx context.Context, id string, latency time.Duration)
	RecordFeedback(ctx context.Context, id string, prev, next models.Feedback)
}
