package room

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/eratosthenes-game/server/internal/v1/events"
	"github.com/eratosthenes-game/server/internal/v1/geo"
	"github.com/eratosthenes-game/server/internal/v1/logging"
	"github.com/eratosthenes-game/server/internal/v1/metrics"
)

// SaveGuess stores a member's working guess without submitting it.
func (e *Engine) SaveGuess(roomID, privateID string, coord geo.LatLng) error {
	r := e.store.Get(roomID)
	if r == nil {
		return refused(CodeRoomNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	member := r.memberByPrivateID(privateID)
	if member == nil {
		return refused(CodeUserNotFound)
	}
	member.LastGuess = &coord
	return nil
}

// SubmitGuess locks in a member's guess. Outside a round the coordinates are
// stored but the submission flag stays down, so a stray submit can never end
// a round. When every member has submitted, the round finishes immediately.
func (e *Engine) SubmitGuess(ctx context.Context, roomID, privateID string, coord geo.LatLng) error {
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
	member.LastGuess = &coord
	if r.status.Playing {
		member.SubmittedGuess = true
	}

	plans := []delivery{{
		msg:     events.New(events.TypeGuessSubmitted, events.PublicIDPayload{PublicID: member.PublicID}),
		targets: r.socketIDs(""),
	}}

	if r.status.Playing && r.everyoneSubmitted() {
		plans = append(plans, e.finishRoundLocked(r)...)
	}
	r.mu.Unlock()

	e.deliver(plans)
	return nil
}

// RevokeGuess takes back a submitted guess, reopening the round for that
// member.
func (e *Engine) RevokeGuess(ctx context.Context, roomID, privateID string) error {
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
	member.SubmittedGuess = false
	plans := []delivery{{
		msg:     events.New(events.TypeGuessRevoked, events.PublicIDPayload{PublicID: member.PublicID}),
		targets: r.socketIDs(""),
	}}
	r.mu.Unlock()

	e.deliver(plans)
	return nil
}

// StartRound flips a waiting room into a playing one: a new target is drawn,
// the round announcement lands in chat, and the countdown begins. Starting
// the first round of a game resets all scores. A room already playing
// ignores the request, which also keeps a second countdown from spawning.
func (e *Engine) StartRound(ctx context.Context, roomID, privateID string) error {
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
	if e.RequireHostToStart && !member.IsHost {
		r.mu.Unlock()
		return refused(CodeYouAreNotTheHost)
	}
	if r.status.Playing {
		r.mu.Unlock()
		return nil
	}

	newGame := r.rounds == RoundsPerGame
	for _, m := range r.members {
		if newGame {
			m.Score = 0
			m.LastGuess = nil
			m.LastRoundScore = nil
		}
		m.SubmittedGuess = false
	}

	location := e.locations.Random()
	r.status = Status{Playing: true, CurrentLocation: location}
	r.roundSeq++
	seq := r.roundSeq

	roundNumber := RoundsPerGame + 1 - r.rounds
	entry := r.appendBotEntry(events.RoundStartedBot(roundNumber, RoundsPerGame))
	plans := []delivery{
		{msg: entry.wireMessage(), targets: r.socketIDs("")},
		{msg: events.New(events.TypeRoundStarted, location), targets: r.socketIDs("")},
	}
	r.mu.Unlock()

	e.deliver(plans)
	logging.Info(ctx, "round started",
		zap.String("room_id", roomID),
		zap.Int("round_number", roundNumber),
		zap.Bool("new_game", newGame))

	go e.runCountdown(roomID, seq)
	return nil
}

// runCountdown broadcasts the remaining seconds, one tick interval apart,
// and finishes the round after the zero tick. Each tick waits out its
// interval first, so the first one lands a full interval after the round
// started. It backs off as soon as the round it was started for is no longer
// the live one.
func (e *Engine) runCountdown(roomID string, seq uint64) {
	for remaining := RoundTicks; remaining >= 0; remaining-- {
		time.Sleep(e.TickInterval)

		r := e.store.Get(roomID)
		if r == nil {
			return
		}

		r.mu.Lock()
		if !r.status.Playing || r.roundSeq != seq {
			r.mu.Unlock()
			return
		}
		plan := delivery{msg: events.Tick(remaining), targets: r.socketIDs("")}
		r.mu.Unlock()

		e.deliver([]delivery{plan})
	}
	e.finishRound(roomID, seq)
}

func (e *Engine) finishRound(roomID string, seq uint64) {
	r := e.store.Get(roomID)
	if r == nil {
		return
	}

	r.mu.Lock()
	if !r.status.Playing || r.roundSeq != seq {
		r.mu.Unlock()
		return
	}
	plans := e.finishRoundLocked(r)
	r.mu.Unlock()

	e.deliver(plans)
}

// finishRoundLocked settles the round: every member with a stored guess
// earns points, the round counter advances, and the room returns to waiting.
// Must be called with r.mu held and r.status.Playing true.
func (e *Engine) finishRoundLocked(r *Room) []delivery {
	target := r.status.CurrentLocation
	for _, m := range r.members {
		if m.LastGuess != nil {
			points := geo.Score(*m.LastGuess, target)
			m.Score += points
			m.LastRoundScore = &points
		} else {
			m.LastRoundScore = nil
		}
		m.SubmittedGuess = false
	}

	if r.rounds > 0 {
		r.rounds--
	}
	gameFinished := r.rounds == 0
	roundNumber := RoundsPerGame - r.rounds
	if gameFinished {
		r.rounds = RoundsPerGame
		roundNumber = RoundsPerGame
	}

	r.status = Status{Playing: false, PreviousLocation: &target}
	r.roundSeq++

	entry := r.appendBotEntry(events.RoundEndedBot(roundNumber, RoundsPerGame))
	finishType := events.TypeRoundFinished
	if gameFinished {
		finishType = events.TypeGameFinished
	}
	plans := []delivery{
		{msg: entry.wireMessage(), targets: r.socketIDs("")},
		{msg: events.New(finishType, nil), targets: r.socketIDs("")},
	}

	metrics.RoundsFinished.WithLabelValues(strconv.FormatBool(gameFinished)).Inc()
	logging.Info(context.Background(), "round finished",
		zap.String("room_id", r.ID),
		zap.Int("round_number", roundNumber),
		zap.Bool("game_finished", gameFinished))
	return plans
}

// everyoneSubmitted reports whether every member locked in a guess.
// Must be called with r.mu held.
func (r *Room) everyoneSubmitted() bool {
	if len(r.members) == 0 {
		return false
	}
	for _, m := range r.members {
		if !m.SubmittedGuess {
			return false
		}
	}
	return true
}
