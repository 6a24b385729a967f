package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hollowlabs/revenant/core"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origin policy is enforced by the CORS middleware before the upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is the envelope for both directions of the chat socket.
type wsMessage struct {
	Type      string `json:"type"`
	Query     string `json:"query,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`

	// Set on the final "done" frame.
	Response *core.AgentResponse `json:"response,omitempty"`
}

// handleWebsocket runs a chat loop over one socket: the client sends
// {"type":"query",...} frames, the server streams "chunk" frames and closes
// each exchange with a "done" frame.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1 << 20)
	log.Printf("[WS] Client connected: %s", clientIP(r))

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[WS] Read error: %v", err)
			}
			return
		}
		if msg.Type != "query" {
			conn.WriteJSON(wsMessage{Type: "error", Error: "expected a query frame"})
			continue
		}

		req := &core.AgentRequest{Query: msg.Query, SessionID: msg.SessionID}
		resp, err := s.engine.QueryStream(r.Context(), req, func(chunk string) {
			conn.WriteJSON(wsMessage{Type: "chunk", Content: chunk})
		})
		if err != nil {
			conn.WriteJSON(wsMessage{Type: "error", Error: err.Error()})
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(wsMessage{Type: "done", Response: resp}); err != nil {
			log.Printf("[WS] Write error: %v", err)
			return
		}
		conn.SetWriteDeadline(time.Time{})
	}
}
