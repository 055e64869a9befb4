package room

import (
	"encoding/json"
	"sync/atomic"

	"github.com/eratosthenes-game/server/internal/v1/events"
)

// nextChatID numbers chat entries across the whole process, so entry ids
// stay unique even when a player hops between rooms.
var nextChatID atomic.Uint64

// ChatEntry is one message in a room's history, authored either by a player
// or by the room bot. Exactly one of player/bot is set.
type ChatEntry struct {
	ID     uint64
	Player *PlayerMessage
	Bot    *events.BotPayload
}

// PlayerMessage is the player-authored variant of a chat entry.
type PlayerMessage struct {
	AuthorName    string
	Content       string
	AttachmentIDs []string
}

type playerEntryJSON struct {
	Type          string   `json:"type"`
	ID            uint64   `json:"id"`
	AuthorName    string   `json:"authorName"`
	Content       string   `json:"content"`
	AttachmentIDs []string `json:"attachmentIds"`
}

type botEntryJSON struct {
	Type    string            `json:"type"`
	ID      uint64            `json:"id"`
	Content events.BotPayload `json:"content"`
}

// MarshalJSON renders the fromPlayer/fromBot tagged union.
func (e ChatEntry) MarshalJSON() ([]byte, error) {
	if e.Player != nil {
		attachments := e.Player.AttachmentIDs
		if attachments == nil {
			attachments = []string{}
		}
		return json.Marshal(playerEntryJSON{
			Type:          "fromPlayer",
			ID:            e.ID,
			AuthorName:    e.Player.AuthorName,
			Content:       e.Player.Content,
			AttachmentIDs: attachments,
		})
	}
	return json.Marshal(botEntryJSON{
		Type:    "fromBot",
		ID:      e.ID,
		Content: *e.Bot,
	})
}

// appendPlayerEntry adds a player message to the log and returns it.
// Must be called with r.mu held.
func (r *Room) appendPlayerEntry(msg PlayerMessage) ChatEntry {
	entry := ChatEntry{ID: nextChatID.Add(1), Player: &msg}
	r.appendEntry(entry)
	return entry
}

// appendBotEntry adds a bot message to the log and returns it.
// Must be called with r.mu held.
func (r *Room) appendBotEntry(payload events.BotPayload) ChatEntry {
	entry := ChatEntry{ID: nextChatID.Add(1), Bot: &payload}
	r.appendEntry(entry)
	return entry
}

func (r *Room) appendEntry(entry ChatEntry) {
	r.chatLog = append(r.chatLog, entry)
	if len(r.chatLog) > LastMessagesCap {
		r.chatLog = r.chatLog[len(r.chatLog)-LastMessagesCap:]
	}
}

// wireMessage converts a chat entry into its WebSocket broadcast frame.
func (e ChatEntry) wireMessage() []byte {
	if e.Player != nil {
		attachments := e.Player.AttachmentIDs
		if attachments == nil {
			attachments = []string{}
		}
		return events.New(events.TypeChatMessage, events.ChatMessageBody{
			ID:            e.ID,
			From:          e.Player.AuthorName,
			Content:       e.Player.Content,
			AttachmentIDs: attachments,
		})
	}
	return events.New(events.TypeBotMessage, events.BotMessageBody{
		ID:      e.ID,
		Content: *e.Bot,
	})
}
