package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/Dosada05/event-participation/middleware"
	"github.com/Dosada05/event-participation/realtime"
	"github.com/gorilla/websocket"
)

type LiveHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewLiveHandler accepts websocket upgrades from allowedOrigins; "*" or an
// empty list allows any origin.
func NewLiveHandler(hub *realtime.Hub, allowedOrigins []string, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// ServeLive subscribes the connection to the event's live feed.
func (h *LiveHandler) ServeLive(w http.ResponseWriter, r *http.Request) {
	event := middleware.EventFromContext(r.Context())
	room := event.Slug

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("failed to upgrade live connection", slog.String("room", room), slog.Any("error", err))
		return
	}

	client := realtime.NewClient(h.hub, conn, room)
	if !h.hub.Register(client) {
		_ = conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
