// Package remote implements the client for the remote agent-serving backend.
//
// The backend is session scoped: a caller opens a session for an agent,
// streams one or more runs in it, and deletes it when done. Runs stream
// server-sent events; the client turns deltas into cumulative snapshots so
// every onChunk call carries the full text received so far.
package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentoven/console/pkg/models"
	"github.com/rs/zerolog/log"
)

// ErrNotConfigured is returned before any network activity when no backend
// URL has been set.
var ErrNotConfigured = errors.New("remote backend URL is not configured")

// SettingsSource supplies the current connection settings.
type SettingsSource interface {
	ConnectionSettings() models.ConnectionSettings
}

// Agent is an agent as listed by the backend.
type Agent struct {
	AgentID     string `json:"agent_id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Session is a backend conversation scope.
type Session struct {
	SessionID string `json:"session_id"`
	AgentID   string `json:"agent_id,omitempty"`
	Title     string `json:"title,omitempty"`
}

// StreamResult is the terminal outcome of a successful run.
type StreamResult struct {
	Text    string
	Metrics *models.MessageMetrics
}

// Client talks to the backend over HTTP.
type Client struct {
	settings SettingsSource
	client   *http.Client
}

// NewClient creates a backend client. No timeout is set on the HTTP client:
// runs stream for as long as the backend keeps the response open; callers
// bound them with their context.
func NewClient(src SettingsSource) *Client {
	return &Client{
		settings: src,
		client:   &http.Client{},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	cfg := c.settings.ConnectionSettings()
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNotConfigured
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(cfg.BaseURL, "/")+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ListAgents returns the agents the backend serves.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/agents", nil)
	if err != nil {
		return nil, err
	}
	var agents []Agent
	if err := c.do(req, &agents); err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return agents, nil
}

// CreateSession opens a backend session for an agent.
func (c *Client) CreateSession(ctx context.Context, agentID, title string) (Session, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/agents/"+url.PathEscape(agentID)+"/sessions",
		map[string]string{"title": title})
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := c.do(req, &sess); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	if sess.SessionID == "" {
		return Session{}, errors.New("create session: backend returned no session_id")
	}
	return sess, nil
}

// DeleteSession removes a backend session.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// streamEvent is one server-sent event payload.
type streamEvent struct {
	Type    string `json:"type"` // "delta", "complete", "error"
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
	Metrics *struct {
		LatencyMs    int64 `json:"latency_ms"`
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"metrics,omitempty"`
}

// RunStream runs input in a backend session. onChunk (may be nil) receives
// the cumulative text after every delta. Exactly one of the result or the
// error is meaningful.
func (c *Client) RunStream(ctx context.Context, agentID, sessionID, input string, onChunk func(text string)) (StreamResult, error) {
	req, err := c.newRequest(ctx, http.MethodPost,
		"/agents/"+url.PathEscape(agentID)+"/sessions/"+url.PathEscape(sessionID)+"/runs",
		map[string]any{"input": input, "stream": true})
	if err != nil {
		return StreamResult{}, err
	}
	req.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return StreamResult{}, fmt.Errorf("run stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return StreamResult{}, fmt.Errorf("run stream: backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var text strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue // comments, event names, blank separators
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			log.Debug().Err(err).Str("payload", payload).Msg("Skipping malformed stream event")
			continue
		}

		switch ev.Type {
		case "delta":
			text.WriteString(ev.Text)
			if onChunk != nil {
				onChunk(text.String())
			}
		case "complete":
			final := ev.Text
			if final == "" {
				final = text.String()
			}
			metrics := &models.MessageMetrics{LatencyMs: time.Since(start).Milliseconds()}
			if ev.Metrics != nil {
				if ev.Metrics.LatencyMs > 0 {
					metrics.LatencyMs = ev.Metrics.LatencyMs
				}
				metrics.InputTokens = ev.Metrics.InputTokens
				metrics.OutputTokens = ev.Metrics.OutputTokens
			}
			return StreamResult{Text: final, Metrics: metrics}, nil
		case "error":
			msg := ev.Message
			if msg == "" {
				msg = "unknown backend error"
			}
			return StreamResult{}, errors.New(msg)
		}
	}
	if err := scanner.Err(); err != nil {
		return StreamResult{}, fmt.Errorf("run stream: %w", err)
	}
	return StreamResult{}, fmt.Errorf("run stream: %w", io.ErrUnexpectedEOF)
}
