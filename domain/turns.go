package domain

import "time"

// TurnChange reports a rotation step for the turn_changed broadcast.
type TurnChange struct {
	PreviousTurnPlayerId string
	NextTurnPlayerId     string
}

// StartGame transitions lobby -> in_progress. The first player in join
// order (the host, unless they left) takes the first turn.
func (r *Room) StartGame(now time.Time) error {
	if r.Status != StatusLobby {
		return ErrWrongStatus
	}
	if len(r.Players) == 0 {
		return ErrPlayerNotFound
	}
	r.Status = StatusInProgress
	r.CurrentTurnPlayerId = r.Players[0].Id
	r.CurrentTurnIndex = 0
	r.armTurnTimer(now)
	r.touch(now)
	return nil
}

func (r *Room) armTurnTimer(now time.Time) {
	if r.Config.TimerEnabled {
		r.TimerEndAt = now.Add(time.Duration(r.Config.TimerDuration) * time.Second)
	} else {
		r.TimerEndAt = time.Time{}
	}
}

// ActivePlayers returns the players eligible for rotation and counted
// by completion checks: everyone not still catching up. Connection
// status is deliberately not consulted; a disconnected player keeps
// their place in the order and the turn timer unsticks their turn.
func (r *Room) ActivePlayers() []*Player {
	active := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if !p.IsCatchingUp {
			active = append(active, p)
		}
	}
	return active
}

// AdvanceTurn hands the turn to the next active player, wrapping. If
// the current holder is no longer active (caught-up flag flipped on, or
// removed from the roster) the turn falls to the first active player
// instead of continuing from a stale position. Returns false when no
// active player exists; rotation stalls and the holder is unchanged.
func (r *Room) AdvanceTurn(now time.Time) (TurnChange, bool) {
	active := r.ActivePlayers()
	if len(active) == 0 {
		return TurnChange{}, false
	}

	previous := r.CurrentTurnPlayerId
	next := active[0]
	for i, p := range active {
		if p.Id == previous {
			next = active[(i+1)%len(active)]
			break
		}
	}

	r.CurrentTurnPlayerId = next.Id
	// Index into the full roster, not the active subset, so it survives
	// players flipping in and out of catch-up.
	r.CurrentTurnIndex = r.playerIndex(next.Id)
	r.armTurnTimer(now)
	r.touch(now)
	return TurnChange{PreviousTurnPlayerId: previous, NextTurnPlayerId: next.Id}, true
}

// CheckTurnTimeout force-advances the turn when its deadline has
// passed. This is the only path that moves the turn without a client
// action. Late or duplicate alarm fires see a recomputed (or cleared)
// deadline and are no-ops.
func (r *Room) CheckTurnTimeout(now time.Time) (TurnChange, bool) {
	if r.TimerEndAt.IsZero() || now.Before(r.TimerEndAt) {
		return TurnChange{}, false
	}
	change, ok := r.AdvanceTurn(now)
	if !ok {
		// Nobody to hand the turn to; disarm so the alarm stops firing.
		r.TimerEndAt = time.Time{}
		return TurnChange{}, false
	}
	return change, true
}

// EnsureTurnHolder reassigns the turn when the current holder is no
// longer an active roster member (removed, or flipped to catching up).
// With no active player left the holder id and timer are cleared, so
// the id never names a departed player; rotation resumes through this
// method once someone becomes active again. Returns true when anything
// changed; NextTurnPlayerId is empty for the cleared case.
func (r *Room) EnsureTurnHolder(now time.Time) (TurnChange, bool) {
	if r.Status != StatusInProgress {
		return TurnChange{}, false
	}
	holder := r.Player(r.CurrentTurnPlayerId)
	if holder != nil && !holder.IsCatchingUp {
		return TurnChange{}, false
	}

	change, ok := r.AdvanceTurn(now)
	if ok {
		return change, true
	}
	previous := r.CurrentTurnPlayerId
	if previous == "" {
		return TurnChange{}, false
	}
	r.CurrentTurnPlayerId = ""
	r.CurrentTurnIndex = 0
	r.TimerEndAt = time.Time{}
	r.touch(now)
	return TurnChange{PreviousTurnPlayerId: previous}, true
}

// ReadyToEnd is the completion predicate: enough items, and every
// player (catching up or not) has ranked a full board. Re-evaluated by
// the room actor after every ranking write and catch-up transition.
func (r *Room) ReadyToEnd() bool {
	if len(r.Items) < r.Config.ItemsPerGame {
		return false
	}
	for _, p := range r.Players {
		if p.IsCatchingUp || len(p.Rankings) < r.Config.ItemsPerGame {
			return false
		}
	}
	return true
}

// EndGame transitions in_progress -> ended and clears all turn and
// timer state. The clears hold until a Reset.
func (r *Room) EndGame(now time.Time) error {
	if r.Status != StatusInProgress {
		return ErrWrongStatus
	}
	r.Status = StatusEnded
	r.CurrentTurnPlayerId = ""
	r.CurrentTurnIndex = 0
	r.TimerEndAt = time.Time{}
	r.RankingTimerEndAt = time.Time{}
	r.touch(now)
	return nil
}
