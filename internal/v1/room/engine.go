package room

import (
	"sort"
	"time"

	"github.com/eratosthenes-game/server/internal/v1/auth"
	"github.com/eratosthenes-game/server/internal/v1/geo"
	"github.com/eratosthenes-game/server/internal/v1/metrics"
	"github.com/eratosthenes-game/server/internal/v1/registry"
)

// DefaultDisconnectGrace is how long a disconnected member may return
// before being removed from the room.
const DefaultDisconnectGrace = 5 * time.Second

// Engine runs the game rules on top of the room store. It is the only
// writer of room state; transports and HTTP handlers call into it and
// never touch rooms directly.
type Engine struct {
	store     *Store
	sockets   *registry.Registry
	locations *geo.Locations

	// RequireHostToStart restricts the roundStarted event to the host.
	RequireHostToStart bool
	// DisconnectGrace and TickInterval are shortened in tests.
	DisconnectGrace time.Duration
	TickInterval    time.Duration
}

// NewEngine wires an engine to its store, socket registry and location
// catalog.
func NewEngine(store *Store, sockets *registry.Registry, locations *geo.Locations) *Engine {
	return &Engine{
		store:           store,
		sockets:         sockets,
		locations:       locations,
		DisconnectGrace: DefaultDisconnectGrace,
		TickInterval:    time.Second,
	}
}

// delivery is one outbound frame with its target sockets. Operations build
// deliveries under the room lock and send them after unlocking, so a slow
// socket can never hold up room state.
type delivery struct {
	msg     []byte
	targets []int64
}

func (e *Engine) deliver(plans []delivery) {
	for _, p := range plans {
		e.sockets.Broadcast(p.msg, p.targets)
	}
}

// CreateRoom makes an empty room and returns its id.
func (e *Engine) CreateRoom() string {
	return e.store.Create().ID
}

// Exists reports whether a room id is live.
func (e *Engine) Exists(roomID string) bool {
	return e.store.Get(roomID) != nil
}

// CanConnect checks whether an identity could join a room with the given
// username, without changing anything. A nil error means the join would be
// accepted. A username already held by a different user is refused with
// userAlreadyInRoom; the holder themselves passes, so a returning player can
// reconnect under their own name.
func (e *Engine) CanConnect(roomID string, identity auth.Identity, username string) error {
	r := e.store.Get(roomID)
	if r == nil {
		return refused(CodeRoomNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isBanned(identity.PublicID) {
		return refused(CodeUserBanned)
	}
	if graphemeLen(username) > MaxUsernameLen {
		return refused(CodeUsernameTooLong)
	}
	if r.hasDifferentUserWithSameUsername(identity.PrivateID, username) {
		return refused(CodeUserAlreadyInRoom)
	}
	return nil
}

// IsHost reports whether the identity behind privateID is the room's host.
func (e *Engine) IsHost(roomID, privateID string) (bool, error) {
	r := e.store.Get(roomID)
	if r == nil {
		return false, refused(CodeRoomNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.memberByPrivateID(privateID)
	return m != nil && m.IsHost, nil
}

// UserInfo is one row of the user listing.
type UserInfo struct {
	PublicID       string      `json:"publicId"`
	Name           string      `json:"name"`
	AvatarEmoji    string      `json:"avatarEmoji"`
	IsHost         bool        `json:"isHost"`
	Score          uint64      `json:"score"`
	Description    string      `json:"description"`
	LastGuess      *geo.LatLng `json:"lastGuess"`
	LastRoundScore *uint64     `json:"lastRoundScore"`
	SubmittedGuess bool        `json:"submittedGuess"`
}

// Users returns the member listing sorted by score descending, together
// with the room status.
func (e *Engine) Users(roomID string) ([]UserInfo, Status, error) {
	r := e.store.Get(roomID)
	if r == nil {
		return nil, Status{}, refused(CodeRoomNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]UserInfo, 0, len(r.members))
	for _, m := range r.members {
		users = append(users, UserInfo{
			PublicID:       m.PublicID,
			Name:           m.Name,
			AvatarEmoji:    m.AvatarEmoji,
			IsHost:         m.IsHost,
			Score:          m.Score,
			Description:    Description(m.DescriptionIndex),
			LastGuess:      m.LastGuess,
			LastRoundScore: m.LastRoundScore,
			SubmittedGuess: m.SubmittedGuess,
		})
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].Score > users[j].Score
	})
	return users, r.status, nil
}

// Messages returns the retained chat history, oldest first.
func (e *Engine) Messages(roomID string) ([]ChatEntry, error) {
	r := e.store.Get(roomID)
	if r == nil {
		return nil, refused(CodeRoomNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ChatEntry, len(r.chatLog))
	copy(out, r.chatLog)
	return out, nil
}

func (e *Engine) updateMemberGauge(r *Room) {
	metrics.RoomMembers.WithLabelValues(r.ID).Set(float64(len(r.members)))
}
