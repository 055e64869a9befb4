// Package room implements the game rooms: membership, chat, rounds, guesses
// and host moderation. All state is process-local; each room is guarded by
// its own mutex and outbound messages are handed to the socket registry
// after the lock is released.
package room

import (
	"encoding/json"
	"sync"

	"github.com/eratosthenes-game/server/internal/v1/geo"
)

const (
	// RoundsPerGame is how many rounds make up one game.
	RoundsPerGame = 10
	// LastMessagesCap bounds the retained chat history per room.
	LastMessagesCap = 50
	// MaxUsernameLen is the username limit in grapheme clusters.
	MaxUsernameLen = 20
	// MaxMessageLen is the chat message limit in grapheme clusters.
	MaxMessageLen = 500
	// RoundTicks is the countdown length of a round in seconds.
	RoundTicks = 100
)

// ErrorCode is the machine-readable reason an operation was refused. Values
// appear verbatim in HTTP responses.
type ErrorCode string

const (
	CodeRoomNotFound      ErrorCode = "roomNotFound"
	CodeYouAreNotTheHost  ErrorCode = "youAreNotTheHost"
	CodeUserAlreadyInRoom ErrorCode = "userAlreadyInRoom"
	CodeUsernameTooLong   ErrorCode = "usernameTooLong"
	CodeUserBanned        ErrorCode = "userBanned"
	CodeUserNotFound      ErrorCode = "userNotFound"
)

// Error is a refusal with a wire-visible code.
type Error struct {
	Code ErrorCode
}

func (e *Error) Error() string {
	return string(e.Code)
}

// refused returns the Error for a code.
func refused(code ErrorCode) *Error {
	return &Error{Code: code}
}

// Member is one player's state within a room. A zero SocketID means the
// player is currently disconnected (possibly within the reconnect grace).
type Member struct {
	PublicID         string
	PrivateID        string
	Name             string
	AvatarEmoji      string
	Score            uint64
	IsHost           bool
	IsMuted          bool
	DescriptionIndex int
	SocketID         int64
	LastGuess        *geo.LatLng
	SubmittedGuess   bool
	LastRoundScore   *uint64
}

// Status is the room's phase. While waiting it remembers where the previous
// round took place; while playing it knows the current target.
type Status struct {
	Playing          bool
	CurrentLocation  geo.LatLng
	PreviousLocation *geo.LatLng
}

type waitingStatus struct {
	Type             string      `json:"type"`
	PreviousLocation *geo.LatLng `json:"previousLocation"`
}

type playingStatus struct {
	Type            string     `json:"type"`
	CurrentLocation geo.LatLng `json:"currentLocation"`
}

// MarshalJSON renders the tagged union clients consume.
func (s Status) MarshalJSON() ([]byte, error) {
	if s.Playing {
		return json.Marshal(playingStatus{Type: "playing", CurrentLocation: s.CurrentLocation})
	}
	return json.Marshal(waitingStatus{Type: "waiting", PreviousLocation: s.PreviousLocation})
}

// Room is one game room. Members keeps join order; index 0 inherits the host
// role when the host leaves. roundSeq increments on every round start and
// finish so a stale timer can detect that its round is over.
type Room struct {
	ID string

	mu       sync.Mutex
	members  []*Member
	chatLog  []ChatEntry
	banned   []string
	rounds   int
	status   Status
	roundSeq uint64
}

func newRoom(id string) *Room {
	return &Room{
		ID:     id,
		rounds: RoundsPerGame,
	}
}

func (r *Room) memberByPrivateID(privateID string) *Member {
	for _, m := range r.members {
		if m.PrivateID == privateID {
			return m
		}
	}
	return nil
}

func (r *Room) memberByPublicID(publicID string) *Member {
	for _, m := range r.members {
		if m.PublicID == publicID {
			return m
		}
	}
	return nil
}

// hasDifferentUserWithSameUsername reports whether username is already taken
// by a member other than privateID's. Must be called with r.mu held.
func (r *Room) hasDifferentUserWithSameUsername(privateID, username string) bool {
	for _, m := range r.members {
		if m.PrivateID != privateID && m.Name == username {
			return true
		}
	}
	return false
}

func (r *Room) isBanned(publicID string) bool {
	for _, id := range r.banned {
		if id == publicID {
			return true
		}
	}
	return false
}

// socketIDs snapshots the live socket ids of all members, optionally
// excluding one member. Must be called with r.mu held.
func (r *Room) socketIDs(excludePrivateID string) []int64 {
	ids := make([]int64, 0, len(r.members))
	for _, m := range r.members {
		if m.SocketID == 0 || m.PrivateID == excludePrivateID {
			continue
		}
		ids = append(ids, m.SocketID)
	}
	return ids
}

// removeMember drops a member and reassigns the host role if needed.
// Must be called with r.mu held.
func (r *Room) removeMember(target *Member) {
	for i, m := range r.members {
		if m == target {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	if target.IsHost && len(r.members) > 0 {
		r.members[0].IsHost = true
	}
}

// usedDescriptionIndexes reports which description indexes current members
// occupy. Must be called with r.mu held.
func (r *Room) usedDescriptionIndexes() map[int]bool {
	used := make(map[int]bool, len(r.members))
	for _, m := range r.members {
		used[m.DescriptionIndex] = true
	}
	return used
}
