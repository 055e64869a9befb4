package room

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eratosthenes-game/server/internal/v1/auth"
	"github.com/eratosthenes-game/server/internal/v1/events"
	"github.com/eratosthenes-game/server/internal/v1/logging"
)

// Connect admits a new member to a room. The joiner's own socket receives
// the bot announcement; peers additionally get the raw userConnected event.
// The first member becomes host.
//
// A private id that is already a member is handled as a rejoin: the member
// is moved onto the new socket (aborting any pending grace removal), the
// profile from the new handshake is applied, and the call still reports
// userAlreadyInRoom so the caller knows no new member was created.
func (e *Engine) Connect(ctx context.Context, roomID string, identity auth.Identity, info events.BriefUserInfoPayload, socketID int64) error {
	r := e.store.Get(roomID)
	if r == nil {
		return refused(CodeRoomNotFound)
	}

	r.mu.Lock()
	if r.isBanned(identity.PublicID) {
		r.mu.Unlock()
		return refused(CodeUserBanned)
	}
	if graphemeLen(info.Username) > MaxUsernameLen {
		r.mu.Unlock()
		return refused(CodeUsernameTooLong)
	}
	if member := r.memberByPrivateID(identity.PrivateID); member != nil {
		member.SocketID = socketID
		member.applyProfile(r, info)
		r.mu.Unlock()
		logging.Info(ctx, "user rejoined on a new socket",
			zap.String("room_id", roomID),
			zap.String("public_id", identity.PublicID))
		return refused(CodeUserAlreadyInRoom)
	}
	if r.hasDifferentUserWithSameUsername(identity.PrivateID, info.Username) {
		r.mu.Unlock()
		return refused(CodeUserAlreadyInRoom)
	}

	member := &Member{
		PublicID:         identity.PublicID,
		PrivateID:        identity.PrivateID,
		Name:             info.Username,
		AvatarEmoji:      info.AvatarEmoji,
		IsHost:           len(r.members) == 0,
		DescriptionIndex: randomDescriptionIndex(r.usedDescriptionIndexes()),
		SocketID:         socketID,
	}
	r.members = append(r.members, member)
	e.updateMemberGauge(r)

	entry := r.appendBotEntry(events.UserConnectedBot(info.Username))
	plans := []delivery{
		{msg: entry.wireMessage(), targets: r.socketIDs("")},
		{msg: events.New(events.TypeUserConnected, info), targets: r.socketIDs(identity.PrivateID)},
	}
	r.mu.Unlock()

	e.deliver(plans)
	logging.Info(ctx, "user connected",
		zap.String("room_id", roomID),
		zap.String("public_id", identity.PublicID),
		zap.Bool("is_host", member.IsHost))
	return nil
}

// Reconnect reattaches a member who came back within the grace window to a
// new socket. The name and avatar from the reconnect payload replace the
// stored ones. Peers are told via userReConnected.
func (e *Engine) Reconnect(ctx context.Context, roomID string, identity auth.Identity, info events.BriefUserInfoPayload, socketID int64) error {
	r := e.store.Get(roomID)
	if r == nil {
		return refused(CodeRoomNotFound)
	}

	r.mu.Lock()
	member := r.memberByPrivateID(identity.PrivateID)
	if member == nil {
		r.mu.Unlock()
		return refused(CodeUserNotFound)
	}
	member.SocketID = socketID
	member.applyProfile(r, info)
	current := events.BriefUserInfoPayload{Username: member.Name, AvatarEmoji: member.AvatarEmoji}
	plans := []delivery{
		{msg: events.New(events.TypeUserReConnected, current), targets: r.socketIDs(identity.PrivateID)},
	}
	r.mu.Unlock()

	e.deliver(plans)
	logging.Info(ctx, "user reconnected",
		zap.String("room_id", roomID),
		zap.String("public_id", identity.PublicID))
	return nil
}

// applyProfile overwrites a member's name and avatar with the ones from a
// fresh handshake. A name another member already holds is kept out; empty
// payload fields leave the stored values alone. Must be called with r.mu
// held.
func (m *Member) applyProfile(r *Room, info events.BriefUserInfoPayload) {
	if info.Username != "" && !r.hasDifferentUserWithSameUsername(m.PrivateID, info.Username) {
		m.Name = info.Username
	}
	if info.AvatarEmoji != "" {
		m.AvatarEmoji = info.AvatarEmoji
	}
}

// Disconnect marks a member's socket as gone and starts the removal grace
// timer. Both a closed connection and a client-sent userDisconnected event
// land here. socketID guards against a stale close racing a reconnect;
// pass 0 to skip that check.
func (e *Engine) Disconnect(ctx context.Context, roomID, privateID string, socketID int64) {
	r := e.store.Get(roomID)
	if r == nil {
		return
	}

	r.mu.Lock()
	member := r.memberByPrivateID(privateID)
	if member == nil || (socketID != 0 && member.SocketID != socketID) {
		r.mu.Unlock()
		return
	}
	member.SocketID = 0
	r.mu.Unlock()

	logging.Info(ctx, "user disconnected, grace started",
		zap.String("room_id", roomID),
		zap.Duration("grace", e.DisconnectGrace))
	time.AfterFunc(e.DisconnectGrace, func() {
		e.removeIfStillGone(roomID, privateID)
	})
}

// removeIfStillGone completes a disconnect after the grace window. It backs
// off when the member reconnected in the meantime or is already gone.
func (e *Engine) removeIfStillGone(roomID, privateID string) {
	r := e.store.Get(roomID)
	if r == nil {
		return
	}

	r.mu.Lock()
	member := r.memberByPrivateID(privateID)
	if member == nil || member.SocketID != 0 {
		r.mu.Unlock()
		return
	}
	r.removeMember(member)
	e.updateMemberGauge(r)

	entry := r.appendBotEntry(events.UserDisconnectedBot(member.Name))
	info := events.BriefUserInfoPayload{Username: member.Name, AvatarEmoji: member.AvatarEmoji}
	plans := []delivery{
		{msg: entry.wireMessage(), targets: r.socketIDs("")},
		{msg: events.New(events.TypeUserDisconnected, info), targets: r.socketIDs("")},
	}
	r.mu.Unlock()

	// The room itself stays for the process lifetime, even when empty.
	e.deliver(plans)
}
