package events

import "encoding/json"

type envelope struct {
	Type    Type `json:"type"`
	Payload any  `json:"payload"`
}

// BotPayload is the typed body of a bot chat message.
type BotPayload struct {
	Type    Type `json:"type"`
	Payload any  `json:"payload"`
}

// RoundPayload describes a round boundary in bot messages.
type RoundPayload struct {
	RoundNumber   int `json:"roundNumber"`
	RoundsPerGame int `json:"roundsPerGame"`
}

// UsernamePayload names the subject of presence bot messages.
type UsernamePayload struct {
	Username string `json:"username"`
}

// PublicIDPayload identifies the subject of moderation and guess events.
type PublicIDPayload struct {
	PublicID string `json:"publicId"`
}

// RoundStartedBot builds the bot payload announcing a round start.
func RoundStartedBot(roundNumber, roundsPerGame int) BotPayload {
	return BotPayload{Type: TypeRoundStarted, Payload: RoundPayload{
		RoundNumber:   roundNumber,
		RoundsPerGame: roundsPerGame,
	}}
}

// RoundEndedBot builds the bot payload announcing a round end.
func RoundEndedBot(roundNumber, roundsPerGame int) BotPayload {
	return BotPayload{Type: TypeRoundEnded, Payload: RoundPayload{
		RoundNumber:   roundNumber,
		RoundsPerGame: roundsPerGame,
	}}
}

// UserConnectedBot builds the bot payload announcing a join.
func UserConnectedBot(username string) BotPayload {
	return BotPayload{Type: TypeUserConnected, Payload: UsernamePayload{Username: username}}
}

// UserDisconnectedBot builds the bot payload announcing a leave.
func UserDisconnectedBot(username string) BotPayload {
	return BotPayload{Type: TypeUserDisconnected, Payload: UsernamePayload{Username: username}}
}

// ChatMessageBody is the server-sent chatMessage payload.
type ChatMessageBody struct {
	ID            uint64   `json:"id"`
	From          string   `json:"from"`
	Content       string   `json:"content"`
	AttachmentIDs []string `json:"attachmentIds"`
}

// BotMessageBody is the server-sent botMessage payload.
type BotMessageBody struct {
	ID      uint64     `json:"id"`
	Content BotPayload `json:"content"`
}

// New encodes a server event of the given type and payload.
func New(t Type, payload any) []byte {
	return mustMarshal(envelope{Type: t, Payload: payload})
}

// Pong is the reply to a client ping.
func Pong() []byte {
	return New(TypePong, nil)
}

// Tick carries the remaining seconds in the running round.
func Tick(secondsLeft int) []byte {
	return New(TypeTick, secondsLeft)
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// All payload types above are marshal-safe.
		panic(err)
	}
	return b
}
