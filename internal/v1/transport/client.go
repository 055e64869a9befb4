package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/eratosthenes-game/server/internal/v1/auth"
	"github.com/eratosthenes-game/server/internal/v1/events"
	"github.com/eratosthenes-game/server/internal/v1/logging"
	"github.com/eratosthenes-game/server/internal/v1/metrics"
)

const writeWait = 10 * time.Second

// wsConnection is the slice of *websocket.Conn the client needs, so tests
// can substitute a mock.
type wsConnection interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one WebSocket connection. The read pump runs on the handler's
// goroutine, the write pump on its own; neither touches the other's state.
type Client struct {
	hub      *Hub
	conn     wsConnection
	send     <-chan []byte
	socketID int64
	roomID   string
	identity auth.Identity
}

// writePump drains the registry channel onto the wire. The channel closing
// (registry removal) is the signal to send a close frame and hang up.
func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logging.Warn(context.Background(), "websocket write failed",
				zap.Int64("socket_id", c.socketID),
				zap.Error(err))
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump decodes client frames and dispatches them into the engine until
// the connection drops. Malformed frames are logged and skipped; the
// connection stays up.
func (c *Client) readPump() {
	ctx := context.WithValue(context.Background(), logging.RoomIDKey, c.roomID)
	ctx = context.WithValue(ctx, logging.PublicIDKey, c.identity.PublicID)

	defer func() {
		c.hub.sockets.Remove(c.socketID)
		c.hub.engine.Disconnect(ctx, c.roomID, c.identity.PrivateID, c.socketID)
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg events.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			metrics.WebsocketEvents.WithLabelValues("unknown", "invalid").Inc()
			logging.Warn(ctx, "malformed client frame, skipping", zap.Error(err))
			continue
		}

		logging.Info(ctx, "client message",
			zap.String(logging.TaskField, logging.TaskClientSentWS),
			zap.String("event_type", string(msg.Type)),
			zap.Int64("socket_id", c.socketID))

		c.dispatch(ctx, msg)
	}
}

func (c *Client) dispatch(ctx context.Context, msg events.ClientMessage) {
	var err error
	status := "ok"

	switch msg.Type {
	case events.TypePing:
		c.hub.sockets.Send(c.socketID, events.Pong())

	case events.TypeChatMessage:
		var payload events.ChatMessagePayload
		if err = json.Unmarshal(msg.Payload, &payload); err == nil {
			err = c.hub.engine.Chat(ctx, c.roomID, c.identity.PrivateID, payload)
		}

	case events.TypeUserConnected:
		var payload events.BriefUserInfoPayload
		if err = json.Unmarshal(msg.Payload, &payload); err == nil {
			err = c.hub.engine.Connect(ctx, c.roomID, c.identity, payload, c.socketID)
		}

	case events.TypeUserReConnected:
		var payload events.BriefUserInfoPayload
		if len(msg.Payload) > 0 {
			err = json.Unmarshal(msg.Payload, &payload)
		}
		if err == nil {
			err = c.hub.engine.Reconnect(ctx, c.roomID, c.identity, payload, c.socketID)
		}

	case events.TypeUserDisconnected:
		c.hub.engine.Disconnect(ctx, c.roomID, c.identity.PrivateID, c.socketID)

	case events.TypeRoundStarted:
		err = c.hub.engine.StartRound(ctx, c.roomID, c.identity.PrivateID)

	default:
		status = "unknown"
		logging.Warn(ctx, "unknown client event type",
			zap.String("event_type", string(msg.Type)))
	}

	if err != nil {
		status = "error"
		logging.Warn(ctx, "client event rejected",
			zap.String("event_type", string(msg.Type)),
			zap.Error(err))
	}
	metrics.WebsocketEvents.WithLabelValues(string(msg.Type), status).Inc()
}
