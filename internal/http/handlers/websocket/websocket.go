package websocket

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/princekumarofficial/plate-console/internal/http/middleware"
	"github.com/princekumarofficial/plate-console/internal/utils/response"
	wsClient "github.com/princekumarofficial/plate-console/internal/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocketHandler handles WebSocket connections
// @Summary Subscribe to submission events
// @Description Upgrades to a WebSocket that receives submission.started, submission.succeeded and submission.failed events for the caller's session
// @Tags events
// @Success 101 "Switching protocols"
// @Failure 400 {object} response.Response "Session required"
// @Router /ws [get]
func WebSocketHandler(hub *wsClient.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := middleware.GetSessionIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("session required")))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("Failed to upgrade WebSocket connection", slog.String("error", err.Error()))
			return
		}

		client := wsClient.NewClient(conn, sessionID, hub)
		if !hub.RegisterClient(client) {
			conn.Close()
			return
		}

		client.Start()

		slog.Info("WebSocket connection established", slog.String("session_id", sessionID))
	}
}
