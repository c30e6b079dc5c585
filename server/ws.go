package server

import (
	"context"
	"net/http"

	"LocalFM/logger"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStateWS pushes a state snapshot on connect and on every engine change,
// and accepts player commands from the client.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.verify(r)
	if !ok {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket 升级失败", logger.ErrorField(err))
		return
	}

	client := NewClient(s.hub, conn, claims.Username)
	if !s.hub.Register(client) {
		conn.Close()
		return
	}
	st := s.app.Engine.State()
	client.SendMessage(&WSMessage{Type: MsgTypeState, State: &st})

	go client.WritePump()
	client.ReadPump(context.Background(), s.control)
}
