package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/headline-dev/headline/pkg/models"
)

const (
	wsReadLimit    = 64 << 10
	wsWriteTimeout = 10 * time.Second
)

// wsRequest is a client message on /ws.
type wsRequest struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	Country  string `json:"country,omitempty"`
}

// wsResponse is a server message on /ws. Errors carry Message, news carries
// Data, which is always a list (possibly empty).
type wsResponse struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Source  string `json:"source,omitempty"`
	Message string `json:"message,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// handleWS serves news over a websocket: each {"type":"news"} message gets one
// {"type":"news","data":[...]} reply; bad input gets {"type":"error"}.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	log := s.log.WithField("remote", r.RemoteAddr)
	log.Debug("websocket connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("websocket read")
			}
			return
		}

		resp := s.wsDispatch(r, data)
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(resp); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				log.WithError(err).Warn("websocket write")
			}
			return
		}
	}
}

func (s *Server) wsDispatch(r *http.Request, data []byte) wsResponse {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return wsResponse{Type: "error", Message: "Invalid message format"}
	}

	switch req.Type {
	case "news":
		category := req.Category
		if category == "" {
			category = "general"
		}
		res := s.svc.Fetch(r.Context(), category, req.Country)
		records := res.Records
		if records == nil {
			records = []models.ContentRecord{}
		}
		return wsResponse{Type: "news", Data: records, Source: res.Source.String()}
	default:
		return wsResponse{Type: "error", Message: "Unknown message type"}
	}
}
