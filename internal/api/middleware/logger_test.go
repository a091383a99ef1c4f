package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentoven/console/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// captureLog routes the global logger into a buffer for the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var out map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &out); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	return out
}

func newLoggedRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/agents/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	r.Get("/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data: 1\n\n"))
		w.(http.Flusher).Flush()
	})
	return r
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		path  string
		level string
		route string
	}{
		{"/health", "debug", "/health"},
		{"/agents/a1", "warn", "/agents/{id}"},
		{"/boom", "error", "/boom"},
		{"/stream", "info", "/stream"},
	}
	for _, tt := range tests {
		buf := captureLog(t)
		newLoggedRouter().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

		line := lastLine(t, buf)
		if line["level"] != tt.level {
			t.Errorf("%s: level = %v, want %s", tt.path, line["level"], tt.level)
		}
		if line["route"] != tt.route {
			t.Errorf("%s: route = %v, want %s", tt.path, line["route"], tt.route)
		}
		if line["path"] != tt.path {
			t.Errorf("%s: path = %v", tt.path, line["path"])
		}
	}
}

func TestLogger_PassesFlushThrough(t *testing.T) {
	buf := captureLog(t)
	w := httptest.NewRecorder()
	newLoggedRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))

	if !w.Flushed {
		t.Error("Flush did not reach the underlying writer")
	}
	if got := lastLine(t, buf)["bytes"]; got != float64(len("data: 1\n\n")) {
		t.Errorf("bytes = %v", got)
	}
}
