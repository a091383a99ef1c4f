// Package judge scores agent outputs with an LLM acting as evaluator.
//
// Evaluate and EvaluatePerformance never return errors: any transport or
// parse failure yields a well-formed fallback verdict (score 0, fail) and is
// logged. Pass/fail is always derived locally from the score.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/agentoven/console/internal/telemetry"
	"github.com/agentoven/console/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
	genai "google.golang.org/genai"
)

const (
	maxSuggestions     = 3
	maxPerformanceMsgs = 20
)

// Fallback reasons. The underlying error is logged, not shown.
const (
	reasonUnavailable = "Evaluation failed: the judge backend could not be reached."
	reasonUnparsable  = "Evaluation failed: the judge response could not be parsed."
	reasonIdentical   = "Actual output matches the expected output exactly."
)

var ErrNoBackend = errors.New("judge backend not configured")

// Backend returns JSON text constrained by schema for a prompt.
type Backend interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

// Judge evaluates outputs. A nil backend makes every call fall back.
type Judge struct {
	backend Backend
	limiter *rate.Limiter
}

// New creates a Judge whose backend calls are throttled to rps with the
// given burst. rps <= 0 disables throttling.
func New(backend Backend, rps float64, burst int) *Judge {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &Judge{backend: backend, limiter: rate.NewLimiter(limit, burst)}
}

// ── Test-case judging ───────────────────────────────────────

var verdictSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"score":     {Type: genai.TypeInteger, Description: "0 to 100"},
		"pass":      {Type: genai.TypeBoolean},
		"reasoning": {Type: genai.TypeString},
	},
	Required: []string{"score", "pass", "reasoning"},
}

// Evaluate scores actual against expected when expected is set, otherwise
// on its own merits. The result is always well formed.
func (j *Judge) Evaluate(ctx context.Context, input, actual, expected, systemInstruction string) models.JudgeResult {
	mode := "reference_free"
	if strings.TrimSpace(expected) != "" {
		mode = "reference"
	}
	ctx, span := telemetry.Tracer().Start(ctx, "judge.evaluate")
	defer span.End()
	span.SetAttributes(attribute.String("judge.mode", mode))

	if mode == "reference" && strings.TrimSpace(actual) == strings.TrimSpace(expected) {
		return models.JudgeResult{Score: 100, Pass: true, Reasoning: reasonIdentical}
	}

	var prompt string
	if mode == "reference" {
		prompt = referencePrompt(input, actual, expected, systemInstruction)
	} else {
		prompt = referenceFreePrompt(input, actual, systemInstruction)
	}

	var raw struct {
		Score     float64 `json:"score"`
		Reasoning string  `json:"reasoning"`
	}
	if reason, err := j.generate(ctx, prompt, verdictSchema, &raw); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.JudgeResult{Score: 0, Pass: false, Reasoning: reason}
	}

	score := clamp(int(raw.Score+0.5), 0, 100)
	span.SetAttributes(attribute.Int("judge.score", score))
	return models.JudgeResult{
		Score:     score,
		Pass:      score >= models.PassThreshold,
		Reasoning: strings.TrimSpace(raw.Reasoning),
	}
}

func referencePrompt(input, actual, expected, instruction string) string {
	return fmt.Sprintf(`You are an impartial evaluator of AI agent responses.

Agent system instruction:
%s

User input:
%s

Expected output:
%s

Actual output:
%s

Score from 0 to 100 how well the actual output matches the intent and the facts of the expected output. Exact wording does not matter; missing or contradicting facts do. A score of %d or more is a pass. Explain your score briefly in "reasoning".`,
		orNone(instruction), input, expected, actual, models.PassThreshold)
}

func referenceFreePrompt(input, actual, instruction string) string {
	return fmt.Sprintf(`You are an impartial evaluator of AI agent responses.

Agent system instruction:
%s

User input:
%s

Agent output:
%s

No reference answer is available. Score from 0 to 100 the standalone quality of the output: accuracy, relevance to the input, and a tone consistent with the system instruction. A score of %d or more is a pass. Explain your score briefly in "reasoning".`,
		orNone(instruction), input, actual, models.PassThreshold)
}

// ── Agent performance ───────────────────────────────────────

var performanceSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"overallScore": {Type: genai.TypeInteger, Description: "0 to 100"},
		"metrics": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"relevance": {Type: genai.TypeInteger, Description: "0 to 10"},
				"accuracy":  {Type: genai.TypeInteger, Description: "0 to 10"},
				"clarity":   {Type: genai.TypeInteger, Description: "0 to 10"},
				"safety":    {Type: genai.TypeInteger, Description: "0 to 10"},
			},
			Required: []string{"relevance", "accuracy", "clarity", "safety"},
		},
		"suggestions": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"reasoning":   {Type: genai.TypeString},
	},
	Required: []string{"overallScore", "metrics", "suggestions"},
}

// EvaluatePerformance reviews an agent from its configuration and a sample
// conversation. The result is always well formed.
func (j *Judge) EvaluatePerformance(ctx context.Context, agent models.AgentConfig, conversation []models.Message) models.PerformanceReport {
	ctx, span := telemetry.Tracer().Start(ctx, "judge.performance")
	defer span.End()
	span.SetAttributes(attribute.String("agent.id", agent.ID))

	if len(conversation) > maxPerformanceMsgs {
		conversation = conversation[len(conversation)-maxPerformanceMsgs:]
	}
	prompt := fmt.Sprintf(`You are reviewing the performance of an AI agent.

Agent name: %s
Agent description: %s
Agent system instruction:
%s

Sample conversation:
%s

Rate the agent. Give an overall score from 0 to 100, four sub-scores from 0 to 10 (relevance, accuracy, clarity, safety), and 2 to 3 concrete suggestions for improving the system instruction.`,
		agent.Name, orNone(agent.Description), orNone(agent.SystemInstruction), transcript(conversation))

	var report models.PerformanceReport
	if reason, err := j.generate(ctx, prompt, performanceSchema, &report); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.PerformanceReport{Suggestions: []string{}, Reasoning: reason}
	}

	report.OverallScore = clamp(report.OverallScore, 0, 100)
	report.Metrics.Relevance = clamp(report.Metrics.Relevance, 0, 10)
	report.Metrics.Accuracy = clamp(report.Metrics.Accuracy, 0, 10)
	report.Metrics.Clarity = clamp(report.Metrics.Clarity, 0, 10)
	report.Metrics.Safety = clamp(report.Metrics.Safety, 0, 10)
	report.Suggestions = compact(report.Suggestions, maxSuggestions)
	return report
}

// ── Follow-up suggestions ───────────────────────────────────

var suggestionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"suggestions": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"suggestions"},
}

// Suggest proposes up to three short follow-up prompts the user might send
// next. Unlike the evaluators it reports failures.
func (j *Judge) Suggest(ctx context.Context, conversation []models.Message) ([]string, error) {
	if len(conversation) == 0 {
		return nil, nil
	}
	if len(conversation) > maxPerformanceMsgs {
		conversation = conversation[len(conversation)-maxPerformanceMsgs:]
	}
	prompt := fmt.Sprintf(`Given this conversation, propose up to %d short follow-up messages the user is likely to send next. Write them from the user's point of view, in the language of the conversation.

%s`, maxSuggestions, transcript(conversation))

	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if _, err := j.generate(ctx, prompt, suggestionSchema, &out); err != nil {
		return nil, err
	}
	return compact(out.Suggestions, maxSuggestions), nil
}

// ── Internals ───────────────────────────────────────────────

// generate calls the backend and decodes into v. On failure it returns the
// fallback reason to show alongside the error to log.
func (j *Judge) generate(ctx context.Context, prompt string, schema *genai.Schema, v any) (string, error) {
	if j == nil || j.backend == nil {
		return reasonUnavailable, ErrNoBackend
	}
	if err := j.limiter.Wait(ctx); err != nil {
		return reasonUnavailable, fmt.Errorf("judge rate limit: %w", err)
	}
	txt, err := j.backend.GenerateJSON(ctx, prompt, schema)
	if err != nil {
		log.Warn().Err(err).Msg("Judge backend call failed")
		return reasonUnavailable, fmt.Errorf("judge backend: %w", err)
	}
	if err := json.Unmarshal([]byte(StripFences(txt)), v); err != nil {
		log.Warn().Err(err).Str("response", truncate(txt, 200)).Msg("Judge response is not valid JSON")
		return reasonUnparsable, fmt.Errorf("decode judge response: %w", err)
	}
	return "", nil
}

// StripFences removes a surrounding markdown code fence (``` or ```json)
// from a model response.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the language tag line.
		if tag := strings.TrimSpace(s[:nl]); !strings.ContainsAny(tag, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func transcript(msgs []models.Message) string {
	var sb strings.Builder
	for i, m := range msgs {
		if i > 0 {
			sb.WriteString("\n")
		}
		if m.Role == models.RoleModel {
			sb.WriteString("Agent: ")
		} else {
			sb.WriteString("User: ")
		}
		sb.WriteString(m.Text)
	}
	return sb.String()
}

func compact(in []string, limit int) []string {
	out := make([]string, 0, limit)
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
