package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second
const wsHistoryReplay = 50

// handleEvents streams pipeline events over a websocket. Recent history is
// replayed on connect so late subscribers see what just happened.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !validateToken(r, h.AuthToken) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.Bus == nil {
		writeError(w, http.StatusInternalServerError, "event bus unavailable")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return isOriginAllowed(r, h.AllowedOrigins)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logWarn(r, "websocket upgrade failed", err)
		return
	}
	defer conn.Close()

	events, cancel := h.Bus.Subscribe()
	defer cancel()

	for _, past := range h.Bus.History(wsHistoryReplay) {
		if err := writeEvent(conn, past); err != nil {
			return
		}
	}

	// Reads only surface client disconnects; inbound messages are ignored.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, e); err != nil {
				return
			}
		case <-disconnected:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, payload any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(payload)
}
