// Package ws exposes the room over a websocket endpoint. One socket is
// one connection in the registry; the wire protocol is JSON frames of
// the form {"event": "...", "data": {...}}.
package ws

import (
	"log/slog"
	"net/http"

	"chat-room/auth"
	"chat-room/domain"
	"chat-room/services"

	"github.com/gorilla/websocket"
)

type Handler struct {
	log        *slog.Logger
	service    services.IChatService
	resolver   auth.IIdentityResolver
	bufferSize int
	upgrader   websocket.Upgrader
}

func NewHandler(log *slog.Logger, service services.IChatService,
	resolver auth.IIdentityResolver, bufferSize int) *Handler {
	return &Handler{
		log:        log,
		service:    service,
		resolver:   resolver,
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeHTTP upgrades the request and attaches the socket. A missing or
// invalid token still attaches the connection; it just cannot join
// until it reconnects with a valid one.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var identity *domain.Identity
	if token := r.URL.Query().Get("token"); token != "" {
		resolved, err := h.resolver.Resolve(token)
		if err != nil {
			h.log.Warn("Websocket token rejected", "error", err)
		} else {
			identity = &resolved
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Websocket upgrade failed", "error", err)
		return
	}

	client := newClient(h.log, h.service, conn, identity, h.bufferSize)
	client.connID = h.service.Attach(client, identity)
	h.log.Info("Websocket attached", "conn_id", client.connID, "authenticated", identity != nil)

	go client.writePump()
	go client.readPump()
}
