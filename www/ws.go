package www

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSMessage is one observer event on the WebSocket stream.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

const wsWriteTimeout = 10 * time.Second

// WSHandler streams the same observer events as SSE over a WebSocket. The
// client is not expected to send anything; reads only detect disconnects.
func (h *Handlers) WSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}
	defer conn.Close()

	id, ch := h.eventHub.AddClient()
	defer h.eventHub.RemoveClient(id)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("ws: read error: %v", err)
				}
				return
			}
		}
	}()

	h.engine.ObserverConnected(id)

	for {
		select {
		case <-gone:
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if evt.Event == evKeepalive {
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
				continue
			}
			data := json.RawMessage(evt.Data)
			if !json.Valid(data) {
				data, _ = json.Marshal(evt.Data)
			}
			if err := conn.WriteJSON(WSMessage{Event: evt.Event, Data: data}); err != nil {
				log.Printf("ws: write error: %v", err)
				return
			}
		}
	}
}
