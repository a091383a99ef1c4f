package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/agentoven/console/internal/chat"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
	wsBuffer    = 128
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// SessionEvents streams chat session events over a websocket: snapshots,
// streamed chunks, deletions and follow-up suggestions. An optional
// session_id query parameter limits the stream to one session.
func (h *Handlers) SessionEvents(w http.ResponseWriter, r *http.Request) {
	only := strings.TrimSpace(r.URL.Query().Get("session_id"))

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := h.Chat.Subscribe(wsBuffer)
	defer unsubscribe()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if only != "" && ev.SessionID != only {
					continue
				}
				if err := writeEvent(conn, ev); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	log.Debug().Str("session", only).Msg("Session event stream opened")

	// Clients only send control frames; reading drives the pong handler and
	// notices a closed connection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	cancel()
	<-writerDone
	log.Debug().Str("session", only).Msg("Session event stream closed")
}

func writeEvent(conn *websocket.Conn, ev chat.SessionEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}
