// internal/game/scheduler.go
package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	engine "github.com/linanqiu/acquire-game-sub002/engine"
)

// afterTransition runs after every accepted state change. It resyncs every
// client, then keeps applying decisions that need no human (bots and seats
// whose player left) until the game ends or a human must act, at which point
// the turn timer is armed. Assumes lock is held by caller.
func (r *Room) afterTransition() {
	for {
		r.DecisionID++
		r.broadcastSyncStateToAll()
		r.cacheSnapshot()
		if r.Aborted {
			return
		}
		if r.Engine.IsGameOver() {
			r.endGame()
			return
		}

		act, source, err := r.automaticAction()
		if err != nil {
			r.abort(fmt.Errorf("%w: %v", engine.ErrInvariantViolation, err))
			return
		}
		if source == "" {
			r.armTurn()
			return
		}
		actorID := r.EngineToPlayer[act.Player]
		if err := r.commit(act, actorID, source); err != nil {
			if !r.Aborted {
				r.abort(fmt.Errorf("%w: %s action for seat %d rejected: %v", engine.ErrInvariantViolation, source, act.Player, err))
			}
			return
		}
	}
}

// automaticAction returns the decision for the acting seat when no human
// will make it; source is empty when a human must act. A bot that cannot
// decide is an error. Assumes lock is held by caller.
func (r *Room) automaticAction() (act engine.Action, source string, err error) {
	idx := r.Engine.ActingPlayer()
	if bot, ok := r.bots[idx]; ok {
		act, err = bot.Decide(&r.Engine)
		if err != nil {
			return act, "", fmt.Errorf("bot at seat %d: %w", idx, err)
		}
		return act, "bot", nil
	}
	if r.left[r.EngineToPlayer[idx]] {
		act, ok := r.Engine.DefaultAction()
		if !ok {
			return act, "", fmt.Errorf("no fallback action for abandoned seat %d", idx)
		}
		return act, "abandoned", nil
	}
	return act, "", nil
}

// armTurn announces the pending decision and starts its timer. Assumes lock
// is held by caller.
func (r *Room) armTurn() {
	r.stopTurnTimer()
	idx := r.Engine.ActingPlayer()
	playerID := r.EngineToPlayer[idx]
	payload := map[string]interface{}{
		"turn":       r.Engine.TurnNumber,
		"decisionId": r.DecisionID,
		"phase":      r.Engine.Phase.String(),
	}
	if r.TurnDuration > 0 {
		payload["deadline"] = time.Now().Add(r.TurnDuration).UnixMilli()
	}
	r.fireEvent(GameEvent{Type: EventGamePlayerTurn, User: &EventUser{ID: playerID}, Payload: payload})

	if r.TurnDuration <= 0 {
		return
	}
	expected := r.DecisionID
	r.turnTimer = time.AfterFunc(r.TurnDuration, func() {
		r.Mu.Lock()
		defer r.Mu.Unlock()
		if r.closed || r.GameOver || r.Aborted || r.DecisionID != expected {
			return
		}
		r.handleTimeout(playerID)
	})
}

// stopTurnTimer assumes lock is held by caller.
func (r *Room) stopTurnTimer() {
	if r.turnTimer != nil {
		r.turnTimer.Stop()
		r.turnTimer = nil
	}
}

// handleTimeout plays the fallback action for an idle player. Assumes lock
// is held by caller.
func (r *Room) handleTimeout(playerID uuid.UUID) {
	act, ok := r.Engine.DefaultAction()
	if !ok {
		return
	}
	r.log.WithFields(logrus.Fields{
		"player":   playerID,
		"decision": r.DecisionID,
		"action":   act.Kind.String(),
	}).Info("turn timed out; playing fallback")

	payload := map[string]interface{}{
		"turn":   r.Engine.TurnNumber,
		"phase":  r.Engine.Phase.String(),
		"action": act.Kind.String(),
	}
	r.logAction(playerID, string(EventPlayerTimeout), payload)
	var user *EventUser
	if p := r.getPlayerByID(playerID); p != nil {
		user = eventUser(p)
	}
	r.fireEvent(GameEvent{Type: EventPlayerTimeout, User: user, Payload: payload})

	if err := r.commit(act, playerID, "timeout"); err != nil {
		if !r.Aborted {
			r.abort(fmt.Errorf("%w: fallback action rejected: %v", engine.ErrInvariantViolation, err))
		}
		return
	}
	r.afterTransition()
}
