package eval

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentoven/console/internal/remote"
	"github.com/agentoven/console/internal/telemetry"
	"github.com/agentoven/console/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

type caseSpec struct {
	id       string
	input    string
	expected string
}

// runCases executes cases on the worker pool and returns the collected
// results in case order. Blank inputs are skipped.
func (e *Engine) runCases(ctx context.Context, agent models.AgentConfig, title string, cases []caseSpec) ([]models.TestResult, error) {
	slots := make([]*models.TestResult, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, c := range cases {
		if isBlank(c.input) {
			continue
		}
		g.Go(func() error {
			res, err := e.runCase(gctx, agent, title, c)
			switch {
			case err == nil:
				slots[i] = &res
				return nil
			case errors.Is(err, remote.ErrNotConfigured), gctx.Err() != nil:
				return err
			default:
				log.Warn().Err(err).Str("case", c.id).Str("agent", agent.ID).Msg("Evaluation case failed")
				return nil
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]models.TestResult, 0, len(cases))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results, nil
}

// runCase runs one case in its own backend session and judges the answer.
// A failed generation becomes an "Error: ..." answer; only a failure to
// open the session fails the case.
func (e *Engine) runCase(ctx context.Context, agent models.AgentConfig, title string, c caseSpec) (models.TestResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "eval.case")
	defer span.End()
	span.SetAttributes(attribute.String("case.id", c.id))

	sess, err := e.backend.CreateSession(ctx, agent.ID, title)
	if err != nil {
		return models.TestResult{}, fmt.Errorf("create session: %w", err)
	}

	actual := ""
	res, err := e.backend.RunStream(ctx, agent.ID, sess.SessionID, c.input, nil)
	if err != nil {
		actual = "Error: " + err.Error()
	} else {
		actual = res.Text
	}

	if err := e.backend.DeleteSession(context.WithoutCancel(ctx), sess.SessionID); err != nil {
		log.Debug().Err(err).Str("remote_session", sess.SessionID).Msg("Evaluation session cleanup failed")
	}
	if ctx.Err() != nil {
		return models.TestResult{}, ctx.Err()
	}

	verdict := e.judge.Evaluate(ctx, c.input, actual, c.expected, agent.SystemInstruction)
	span.SetAttributes(attribute.Int("case.score", verdict.Score), attribute.Bool("case.pass", verdict.Pass))

	return models.TestResult{
		TestCaseID:   c.id,
		ActualOutput: actual,
		Score:        verdict.Score,
		Pass:         verdict.Pass,
		Reasoning:    verdict.Reasoning,
		Timestamp:    e.now(),
	}, nil
}
