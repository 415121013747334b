package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// GenerationEvents handles GET /v1/generations/{id}/events — WebSocket stream
// of progress events for one generation. The stream closes after a terminal
// event (succeeded or failed) or when the client goes away.
func (h *Handler) GenerationEvents(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid generation id")
		return
	}

	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("events ws upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := h.broker.Subscribe(id)
	defer cancel()

	// Reader goroutine only to detect client disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Str("generation_id", id.String()).Msg("events ws write")
				return
			}
			if ev.Stage == "succeeded" || ev.Stage == "failed" {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
		case <-done:
			return
		}
	}
}
