package remote_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentoven/console/internal/remote"
	"github.com/agentoven/console/internal/store"
	"github.com/agentoven/console/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSettings models.ConnectionSettings

func (s staticSettings) ConnectionSettings() models.ConnectionSettings {
	return models.ConnectionSettings(s)
}

// fakeBackend serves the backend contract from a chi router.
func fakeBackend(t *testing.T, events []string) (*httptest.Server, *[]string) {
	t.Helper()
	var deleted []string
	r := chi.NewRouter()
	r.Get("/agents", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]remote.Agent{{AgentID: "a1", Name: "One"}})
	})
	r.Post("/agents/{agentID}/sessions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(remote.Session{SessionID: "s-" + chi.URLParam(r, "agentID")})
	})
	r.Delete("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		deleted = append(deleted, chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/agents/{agentID}/sessions/{sessionID}/runs", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Input == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", ev)
		}
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &deleted
}

func TestClient_NotConfigured(t *testing.T) {
	c := remote.NewClient(staticSettings{})

	_, err := c.ListAgents(context.Background())
	assert.ErrorIs(t, err, remote.ErrNotConfigured)

	_, err = c.RunStream(context.Background(), "a", "s", "hi", nil)
	assert.ErrorIs(t, err, remote.ErrNotConfigured)
}

func TestClient_ListAgents(t *testing.T) {
	srv, _ := fakeBackend(t, nil)
	c := remote.NewClient(staticSettings{BaseURL: srv.URL + "/", APIKey: "secret"})

	agents, err := c.ListAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "a1", agents[0].AgentID)

	c = remote.NewClient(staticSettings{BaseURL: srv.URL})
	_, err = c.ListAgents(context.Background())
	assert.ErrorContains(t, err, "401")
}

func TestClient_SessionLifecycle(t *testing.T) {
	srv, deleted := fakeBackend(t, nil)
	c := remote.NewClient(staticSettings{BaseURL: srv.URL})

	sess, err := c.CreateSession(context.Background(), "a1", "eval")
	require.NoError(t, err)
	assert.Equal(t, "s-a1", sess.SessionID)

	require.NoError(t, c.DeleteSession(context.Background(), sess.SessionID))
	assert.Equal(t, []string{"s-a1"}, *deleted)
}

func TestClient_RunStream_Cumulative(t *testing.T) {
	srv, _ := fakeBackend(t, []string{
		`{"type":"delta","text":"Hel"}`,
		`not json`,
		`{"type":"delta","text":"lo"}`,
		`{"type":"complete","metrics":{"latency_ms":42,"input_tokens":3,"output_tokens":2}}`,
	})
	c := remote.NewClient(staticSettings{BaseURL: srv.URL})

	var chunks []string
	res, err := c.RunStream(context.Background(), "a1", "s1", "hi", func(text string) {
		chunks = append(chunks, text)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "Hello"}, chunks)
	assert.Equal(t, "Hello", res.Text)
	require.NotNil(t, res.Metrics)
	assert.Equal(t, int64(42), res.Metrics.LatencyMs)
	assert.Equal(t, int64(2), res.Metrics.OutputTokens)
}

func TestClient_RunStream_Error(t *testing.T) {
	srv, _ := fakeBackend(t, []string{
		`{"type":"delta","text":"par"}`,
		`{"type":"error","message":"model overloaded"}`,
	})
	c := remote.NewClient(staticSettings{BaseURL: srv.URL})

	_, err := c.RunStream(context.Background(), "a1", "s1", "hi", nil)
	assert.EqualError(t, err, "model overloaded")
}

func TestClient_RunStream_Truncated(t *testing.T) {
	srv, _ := fakeBackend(t, []string{`{"type":"delta","text":"x"}`})
	c := remote.NewClient(staticSettings{BaseURL: srv.URL})

	_, err := c.RunStream(context.Background(), "a1", "s1", "hi", nil)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSettings_PersistAndReload(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	defer s.Close()

	settings := remote.NewSettings(ctx, s, models.ConnectionSettings{BaseURL: "http://default"})
	assert.Equal(t, "http://default", settings.ConnectionSettings().BaseURL)

	settings.Update(ctx, models.ConnectionSettings{BaseURL: " http://backend:8000/ ", APIKey: "k"})

	reloaded := remote.NewSettings(ctx, s, models.ConnectionSettings{BaseURL: "http://default"})
	got := reloaded.ConnectionSettings()
	assert.Equal(t, "http://backend:8000", got.BaseURL)
	assert.Equal(t, "k", got.APIKey)
	assert.False(t, strings.HasSuffix(got.BaseURL, "/"))
}
