// Package events defines the JSON messages exchanged over room WebSockets.
// Every frame is an envelope {"type": ..., "payload": ...}; the type value
// selects the payload shape.
package events

import "encoding/json"

// Type identifies a WebSocket event.
type Type string

// Client-sent event types.
const (
	TypePing             Type = "ping"
	TypeChatMessage      Type = "chatMessage"
	TypeUserConnected    Type = "userConnected"
	TypeUserReConnected  Type = "userReConnected"
	TypeUserDisconnected Type = "userDisconnected"
	TypeRoundStarted     Type = "roundStarted"
)

// Server-sent event types. chatMessage, userConnected, userReConnected,
// userDisconnected and roundStarted flow in both directions.
const (
	TypePong             Type = "pong"
	TypeBotMessage       Type = "botMessage"
	TypeTick             Type = "tick"
	TypeGuessSubmitted   Type = "guessSubmitted"
	TypeGuessRevoked     Type = "guessRevoked"
	TypeRoundFinished    Type = "roundFinished"
	TypeGameFinished     Type = "gameFinished"
	TypeRoundEnded       Type = "roundEnded"
	TypeUserMuted        Type = "userMuted"
	TypeUserUnmuted      Type = "userUnmuted"
	TypeUserBanned       Type = "userBanned"
	TypeUserScoreChanged Type = "userScoreChanged"
)

// ClientMessage is a decoded client frame. Payload stays raw until the
// handler for the type parses it.
type ClientMessage struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// BriefUserInfoPayload accompanies presence events in both directions.
type BriefUserInfoPayload struct {
	Username    string `json:"username"`
	AvatarEmoji string `json:"avatarEmoji"`
}

// ChatMessagePayload is the body of a client chatMessage frame.
type ChatMessagePayload struct {
	From          string   `json:"from"`
	Content       string   `json:"content"`
	AttachmentIDs []string `json:"attachmentIds"`
}
