package handlers

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/LegalDragon/pickleball-community/brackets"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub      *brackets.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler разрешает подключения только с allowedOrigins; "*" снимает проверку.
func NewWebSocketHandler(hub *brackets.Hub, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// ServeWs подключает зрителя к комнате жеребьёвки дивизиона.
// Первым сообщением клиент получает снимок текущего состояния, затем события по порядку версий.
// @Summary WebSocket комнаты жеребьёвки
// @Tags drawing
// @Param divisionID path int true "ID дивизиона"
// @Success 101 "Switching Protocols"
// @Router /ws/divisions/{divisionID}/drawing [get]
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	divisionID, err := intURLParam(r, "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade сам отправляет HTTP ошибку клиенту, так что здесь просто логируем.
		h.logger.Warn("failed to upgrade drawing connection", slog.Int("division_id", divisionID), slog.Any("error", err))
		return
	}

	client := &brackets.Client{
		Hub:        h.hub,
		Conn:       conn,
		Send:       make(chan []byte, brackets.ClientBufferSize),
		Room:       brackets.DivisionRoom(divisionID),
		DivisionID: divisionID,
	}

	select {
	case h.hub.Register <- client:
	case <-r.Context().Done():
		conn.Close()
		return
	case <-h.hub.Done():
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	h.logger.Debug("drawing spectator connected", slog.String("room", client.Room))
}
