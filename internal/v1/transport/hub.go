// Package transport owns the WebSocket side of the server: the handshake,
// one reader and one writer goroutine per connection, and the dispatch of
// client frames into the room engine.
package transport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/eratosthenes-game/server/internal/v1/auth"
	"github.com/eratosthenes-game/server/internal/v1/logging"
	"github.com/eratosthenes-game/server/internal/v1/registry"
	"github.com/eratosthenes-game/server/internal/v1/room"
)

// PasscodeDecoder verifies a passcode and returns the identity it carries.
type PasscodeDecoder interface {
	Decode(passcode string) (*auth.Identity, error)
}

// Hub upgrades room WebSocket requests and hands each connection its pumps.
type Hub struct {
	engine    *room.Engine
	sockets   *registry.Registry
	passcodes PasscodeDecoder
	upgrader  websocket.Upgrader
}

// NewHub builds a hub. An empty allowedOrigins list accepts any origin,
// which is meant for development setups only.
func NewHub(engine *room.Engine, sockets *registry.Registry, passcodes PasscodeDecoder, allowedOrigins []string) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Hub{
		engine:    engine,
		sockets:   sockets,
		passcodes: passcodes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowed) == 0 {
					return true
				}
				return allowed[origin]
			},
		},
	}
}

// ServeWs handles GET /rooms/:id/ws. Authentication and the ban check run
// before the upgrade so refused clients get a plain HTTP status instead of
// a doomed socket.
func (h *Hub) ServeWs(c *gin.Context) {
	roomID := c.Param("id")
	ctx := c.Request.Context()

	identity, err := h.passcodes.Decode(c.Query("passcode"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": true})
		return
	}

	if !h.engine.Exists(roomID) {
		c.JSON(http.StatusNotFound, gin.H{"error": true})
		return
	}
	var refusal *room.Error
	if err := h.engine.CanConnect(roomID, *identity, ""); errors.As(err, &refusal) && refusal.Code == room.CodeUserBanned {
		c.JSON(http.StatusForbidden, gin.H{"error": true})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(ctx, "websocket upgrade failed",
			zap.String("room_id", roomID),
			zap.Error(err))
		return
	}

	socketID, send := h.sockets.Add()
	client := &Client{
		hub:      h,
		conn:     conn,
		send:     send,
		socketID: socketID,
		roomID:   roomID,
		identity: *identity,
	}
	logging.Info(ctx, "websocket connected",
		zap.String("room_id", roomID),
		zap.String("public_id", identity.PublicID),
		zap.Int64("socket_id", socketID))

	go client.writePump()
	client.readPump()
}
