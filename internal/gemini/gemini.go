// Package gemini wraps the genai client for the two things the console asks
// of Gemini: schema-constrained JSON for the judge and streamed chat replies.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agentoven/console/internal/chat"
	"github.com/agentoven/console/internal/config"
	"github.com/agentoven/console/pkg/models"
	"github.com/rs/zerolog/log"
	genai "google.golang.org/genai"
)

// DefaultChatModel is used when an agent names no model.
const DefaultChatModel = "gemini-2.5-flash"

// ErrEmptyResponse is returned when the model produced no candidate text.
var ErrEmptyResponse = errors.New("gemini returned no content")

// Client is a thin wrapper around the official genai client.
type Client struct {
	cli        *genai.Client
	judgeModel string
}

// NewClient creates a Gemini API client. An empty API key lets genai fall
// back to GEMINI_API_KEY / GOOGLE_API_KEY.
func NewClient(ctx context.Context, cfg config.GeminiConfig) (*Client, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	model := cfg.JudgeModel
	if model == "" {
		model = DefaultChatModel
	}
	return &Client{cli: cli, judgeModel: model}, nil
}

func (c *Client) Name() string { return "gemini:" + c.judgeModel }

// GenerateJSON asks the judge model for application/json constrained by
// schema and returns the raw response text.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	resp, err := c.cli.Models.GenerateContent(ctx, c.judgeModel,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	)
	if err != nil {
		return "", err
	}
	txt := resp.Text()
	if strings.TrimSpace(txt) == "" {
		return "", ErrEmptyResponse
	}
	return txt, nil
}

var _ chat.Generator = (*Client)(nil)

// StreamChat streams a chat reply from the agent's model. Gemini yields
// deltas; onChunk receives the accumulated text.
func (c *Client) StreamChat(ctx context.Context, req chat.Request, onChunk func(string)) (chat.Result, error) {
	model := req.Agent.Model
	if model == "" {
		model = DefaultChatModel
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		if m.IsStreaming || (m.Text == "" && len(m.Attachments) == 0) {
			continue
		}
		contents = append(contents, toContent(m.Role, m.Text, m.Attachments))
	}
	contents = append(contents, toContent(models.RoleUser, req.Text, req.Attachments))

	cfg := &genai.GenerateContentConfig{}
	if req.Agent.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.Agent.SystemInstruction}}}
	}

	start := time.Now()
	var (
		text  strings.Builder
		usage *genai.GenerateContentResponseUsageMetadata
	)
	for resp, err := range c.cli.Models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			return chat.Result{}, err
		}
		if resp.UsageMetadata != nil {
			usage = resp.UsageMetadata
		}
		delta := resp.Text()
		if delta == "" {
			continue
		}
		text.WriteString(delta)
		onChunk(text.String())
	}

	metrics := &models.MessageMetrics{LatencyMs: time.Since(start).Milliseconds()}
	if usage != nil {
		metrics.InputTokens = int64(usage.PromptTokenCount)
		metrics.OutputTokens = int64(usage.CandidatesTokenCount)
	}
	log.Debug().
		Str("model", model).
		Int64("latency_ms", metrics.LatencyMs).
		Int64("output_tokens", metrics.OutputTokens).
		Msg("Gemini stream complete")
	return chat.Result{Text: text.String(), Metrics: metrics}, nil
}

func toContent(role models.Role, text string, atts []models.Attachment) *genai.Content {
	parts := make([]*genai.Part, 0, len(atts)+1)
	for _, a := range atts {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: a.MIMEType, Data: a.Data}})
	}
	if text != "" {
		parts = append(parts, &genai.Part{Text: text})
	}
	return &genai.Content{Role: string(role), Parts: parts}
}
