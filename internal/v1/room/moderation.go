package room

import (
	"context"

	"go.uber.org/zap"

	"github.com/eratosthenes-game/server/internal/v1/events"
	"github.com/eratosthenes-game/server/internal/v1/logging"
)

// Chat appends a player message to the room log and relays it to the other
// members; the author already has the message locally and gets no echo.
// Messages from muted members and messages over the length limit are dropped
// without an error; the sender gets no signal.
func (e *Engine) Chat(ctx context.Context, roomID, privateID string, payload events.ChatMessagePayload) error {
	r := e.store.Get(roomID)
	if r == nil {
		return refused(CodeRoomNotFound)
	}

	r.mu.Lock()
	member := r.memberByPrivateID(privateID)
	if member == nil {
		r.mu.Unlock()
		return refused(CodeUserNotFound)
	}
	if member.IsMuted {
		r.mu.Unlock()
		return nil
	}
	if graphemeLen(payload.Content) > MaxMessageLen {
		r.mu.Unlock()
		logging.Warn(ctx, "chat message over length limit, dropping",
			zap.String("room_id", roomID),
			zap.String("public_id", member.PublicID))
		return nil
	}

	entry := r.appendPlayerEntry(PlayerMessage{
		AuthorName:    member.Name,
		Content:       payload.Content,
		AttachmentIDs: payload.AttachmentIDs,
	})
	plans := []delivery{{msg: entry.wireMessage(), targets: r.socketIDs(privateID)}}
	r.mu.Unlock()

	e.deliver(plans)
	return nil
}

// hostAction runs fn against a target member after verifying the caller is
// the room's host.
func (e *Engine) hostAction(roomID, callerPrivateID, targetPublicID string, fn func(r *Room, target *Member) []delivery) error {
	r := e.store.Get(roomID)
	if r == nil {
		return refused(CodeRoomNotFound)
	}

	r.mu.Lock()
	caller := r.memberByPrivateID(callerPrivateID)
	if caller == nil || !caller.IsHost {
		r.mu.Unlock()
		return refused(CodeYouAreNotTheHost)
	}
	target := r.memberByPublicID(targetPublicID)
	if target == nil {
		r.mu.Unlock()
		return refused(CodeUserNotFound)
	}
	plans := fn(r, target)
	r.mu.Unlock()

	e.deliver(plans)
	return nil
}

// Mute silences a member. Their chat messages are dropped server-side until
// they are unmuted.
func (e *Engine) Mute(ctx context.Context, roomID, callerPrivateID, targetPublicID string) error {
	return e.hostAction(roomID, callerPrivateID, targetPublicID, func(r *Room, target *Member) []delivery {
		target.IsMuted = true
		return []delivery{{
			msg:     events.New(events.TypeUserMuted, events.PublicIDPayload{PublicID: target.PublicID}),
			targets: r.socketIDs(""),
		}}
	})
}

// Unmute lifts a mute.
func (e *Engine) Unmute(ctx context.Context, roomID, callerPrivateID, targetPublicID string) error {
	return e.hostAction(roomID, callerPrivateID, targetPublicID, func(r *Room, target *Member) []delivery {
		target.IsMuted = false
		return []delivery{{
			msg:     events.New(events.TypeUserUnmuted, events.PublicIDPayload{PublicID: target.PublicID}),
			targets: r.socketIDs(""),
		}}
	})
}

// Ban removes a member and bars their public id from rejoining. The banned
// player's socket stays open; they learn about it from the userBanned event
// and their chat history stays in the log.
func (e *Engine) Ban(ctx context.Context, roomID, callerPrivateID, targetPublicID string) error {
	err := e.hostAction(roomID, callerPrivateID, targetPublicID, func(r *Room, target *Member) []delivery {
		// Snapshot before removal so the banned member still receives the event.
		targets := r.socketIDs("")
		r.banned = append(r.banned, target.PublicID)
		r.removeMember(target)
		e.updateMemberGauge(r)
		return []delivery{{
			msg:     events.New(events.TypeUserBanned, events.PublicIDPayload{PublicID: target.PublicID}),
			targets: targets,
		}}
	})
	if err == nil {
		logging.Info(ctx, "user banned",
			zap.String("room_id", roomID),
			zap.String("public_id", targetPublicID))
	}
	return err
}

// ChangeScore adds amount (possibly negative) to a member's score,
// saturating at zero.
func (e *Engine) ChangeScore(ctx context.Context, roomID, callerPrivateID, targetPublicID string, amount int64) error {
	return e.hostAction(roomID, callerPrivateID, targetPublicID, func(r *Room, target *Member) []delivery {
		next := int64(target.Score) + amount
		if next < 0 {
			next = 0
		}
		target.Score = uint64(next)
		return []delivery{{
			msg:     events.New(events.TypeUserScoreChanged, events.PublicIDPayload{PublicID: target.PublicID}),
			targets: r.socketIDs(""),
		}}
	})
}
