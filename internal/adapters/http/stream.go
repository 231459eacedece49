package httpadapter

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PabloGalante/chatsync/internal/app/syncengine"
	"github.com/PabloGalante/chatsync/internal/observability"
)

const (
	pongWait   = 60 * time.Second
	writeWait  = 10 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream pushes the current view, then every published view, as JSON
// text frames. A slow client only ever sees the latest view.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	log := observability.LoggerFromContext(r.Context())

	views := make(chan syncengine.View, 1)
	cancel := s.engine.Observe(func(v syncengine.View) {
		// Observers are called one at a time, so after the drain the
		// send cannot block.
		select {
		case <-views:
		default:
		}
		views <- v
	})
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ws.SetReadLimit(4096)
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case v := <-views:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(s.toViewResponse(v)); err != nil {
				log.Debug("stream write failed", "err", err)
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
