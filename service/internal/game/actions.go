// internal/game/actions.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	engine "github.com/linanqiu/acquire-game-sub002/engine"
	"github.com/linanqiu/acquire-game-sub002/service/internal/auth"
	"github.com/linanqiu/acquire-game-sub002/service/internal/models"
)

// Inbound action types.
const (
	ActionStart          = "action_start"
	ActionAddBot         = "action_add_bot"
	ActionSync           = "action_sync"
	ActionRejoin         = "action_rejoin"
	ActionLeave          = "action_leave"
	ActionPlaceTile      = "action_place_tile"
	ActionFoundChain     = "action_found_chain"
	ActionChooseSurvivor = "action_choose_survivor"
	ActionDisposition    = "action_submit_disposition"
	ActionBuyStocks      = "action_buy_stocks"
	ActionEndTurn        = "action_end_turn"
)

// Rejection codes carried by private_action_rejected.
const (
	CodeIllegalMove         = "illegal_move"
	CodeInvalidDisposition  = "invalid_disposition"
	CodeInsufficientFunds   = "insufficient_funds"
	CodeNoPendingObligation = "no_pending_obligation"
	CodeNotConnected        = "not_connected"
	CodeNotSeated           = "not_seated"
	CodeUnknownAction       = "unknown_action"
	CodeGameNotStarted      = "game_not_started"
	CodeGameStarted         = "game_started"
	CodeRoomFull            = "room_full"
	CodeRoomAborted         = "room_aborted"
	CodeWrongPassword       = "wrong_password"
	CodeInternal            = "internal_error"
)

// RejectionCode classifies an action error for clients.
func RejectionCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrInvalidDisposition):
		return CodeInvalidDisposition
	case errors.Is(err, engine.ErrInsufficientFunds):
		return CodeInsufficientFunds
	case errors.Is(err, engine.ErrNoPendingObligation):
		return CodeNoPendingObligation
	case errors.Is(err, engine.ErrIllegalMove):
		return CodeIllegalMove
	case errors.Is(err, ErrPlayerNotConnected):
		return CodeNotConnected
	case errors.Is(err, ErrNotSeated):
		return CodeNotSeated
	case errors.Is(err, ErrUnknownAction):
		return CodeUnknownAction
	case errors.Is(err, ErrGameNotStarted):
		return CodeGameNotStarted
	case errors.Is(err, ErrGameStarted):
		return CodeGameStarted
	case errors.Is(err, ErrRoomFull):
		return CodeRoomFull
	case errors.Is(err, ErrRoomAborted):
		return CodeRoomAborted
	case errors.Is(err, auth.ErrWrongPassword):
		return CodeWrongPassword
	}
	return CodeInternal
}

// HandlePlayerAction routes one inbound message from a seated player. Any
// rejection is also reported to the player as private_action_rejected.
func (r *Room) HandlePlayerAction(ctx context.Context, playerID uuid.UUID, action models.GameAction) error {
	if action.ActionType == ActionRejoin {
		// The rejoin attempt may block on the transport; it takes the lock itself.
		_, err := r.Rejoin(ctx, playerID)
		if err != nil {
			r.Mu.Lock()
			r.rejectAction(playerID, action.ActionType, err)
			r.Mu.Unlock()
		}
		return err
	}

	r.Mu.Lock()
	defer r.Mu.Unlock()
	err := r.handleAction(playerID, action)
	if err != nil && !errors.Is(err, engine.ErrInvariantViolation) {
		r.rejectAction(playerID, action.ActionType, err)
	}
	return err
}

// handleAction assumes lock is held by caller.
func (r *Room) handleAction(playerID uuid.UUID, action models.GameAction) error {
	if r.Aborted {
		return ErrRoomAborted
	}
	p := r.getPlayerByID(playerID)
	if p == nil || p.Bot || r.left[playerID] {
		return ErrNotSeated
	}
	if !r.Sessions.IsConnected(playerID) {
		return ErrPlayerNotConnected
	}

	switch action.ActionType {
	case ActionSync:
		r.sendSyncState(playerID)
		return nil
	case ActionStart:
		return r.start(playerID)
	case ActionAddBot:
		if !r.isHost(playerID) {
			return fmt.Errorf("%w: only the host may add bots", engine.ErrIllegalMove)
		}
		strategy, _ := action.Payload["strategy"].(string)
		_, err := r.addBot(strategy)
		return err
	}

	if !r.Started {
		return ErrGameNotStarted
	}
	idx, _ := r.seatOf(playerID)
	act, err := parseAction(idx, action)
	if err != nil {
		return err
	}
	if err := r.commit(act, playerID, "player"); err != nil {
		return err
	}
	r.afterTransition()
	return nil
}

// isHost reports whether playerID holds the first human seat. Assumes lock
// is held by caller.
func (r *Room) isHost(playerID uuid.UUID) bool {
	for _, p := range r.Players {
		if !p.Bot {
			return p.ID == playerID
		}
	}
	return false
}

// rejectAction tells the player why their action was refused. Assumes lock
// is held by caller.
func (r *Room) rejectAction(playerID uuid.UUID, actionType string, err error) {
	code := RejectionCode(err)
	r.log.WithFields(logrus.Fields{"player": playerID, "action": actionType, "code": code}).Debug(err)
	r.fireEventToPlayer(playerID, GameEvent{
		Type: EventPrivateActionRejected,
		Payload: map[string]interface{}{
			"actionType": actionType,
			"code":       code,
			"message":    err.Error(),
		},
	})
}

// parseAction turns a wire action into an engine action for seat idx.
func parseAction(idx uint8, action models.GameAction) (engine.Action, error) {
	act := engine.Action{Player: idx, Tile: engine.NoTile, Chain: engine.NoChain}
	pl := action.Payload

	switch action.ActionType {
	case ActionPlaceTile:
		s, _ := pl["tile"].(string)
		t, err := engine.ParseTile(s)
		if err != nil {
			return act, fmt.Errorf("%w: %v", engine.ErrIllegalMove, err)
		}
		act.Kind = engine.ActionPlaceTile
		act.Tile = t

	case ActionFoundChain, ActionChooseSurvivor:
		c, err := payloadChain(pl, "chain")
		if err != nil {
			return act, err
		}
		act.Kind = engine.ActionFoundChain
		if action.ActionType == ActionChooseSurvivor {
			act.Kind = engine.ActionChooseSurvivor
		}
		act.Chain = c

	case ActionDisposition:
		c, err := payloadChain(pl, "chain")
		if err != nil {
			return act, err
		}
		var d engine.Disposition
		for key, dst := range map[string]*uint8{"sell": &d.Sell, "trade": &d.Trade, "hold": &d.Hold} {
			n, err := payloadCount(pl, key)
			if err != nil {
				return act, fmt.Errorf("%w: %v", engine.ErrInvalidDisposition, err)
			}
			*dst = n
		}
		act.Kind = engine.ActionDisposition
		act.Chain = c
		act.Disposition = d

	case ActionBuyStocks:
		raw, _ := pl["purchases"].(map[string]interface{})
		for name, v := range raw {
			c, err := engine.ParseChain(name)
			if err != nil {
				return act, fmt.Errorf("%w: %v", engine.ErrIllegalMove, err)
			}
			n, err := toCount(v)
			if err != nil {
				return act, fmt.Errorf("%w: %s: %v", engine.ErrIllegalMove, name, err)
			}
			if int(act.Purchase[c])+int(n) > math.MaxUint8 {
				return act, fmt.Errorf("%w: %s: too many shares", engine.ErrIllegalMove, name)
			}
			act.Purchase[c] += n
		}
		act.Kind = engine.ActionBuyStocks
		act.EndGame, _ = pl["endGame"].(bool)

	case ActionEndTurn:
		act.Kind = engine.ActionEndTurn
		act.EndGame, _ = pl["endGame"].(bool)

	default:
		return act, fmt.Errorf("%w: %q", ErrUnknownAction, action.ActionType)
	}
	return act, nil
}

func payloadChain(pl map[string]interface{}, key string) (engine.ChainID, error) {
	s, _ := pl[key].(string)
	c, err := engine.ParseChain(s)
	if err != nil {
		return engine.NoChain, fmt.Errorf("%w: %v", engine.ErrIllegalMove, err)
	}
	return c, nil
}

func payloadCount(pl map[string]interface{}, key string) (uint8, error) {
	v, ok := pl[key]
	if !ok || v == nil {
		return 0, nil
	}
	n, err := toCount(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// toCount accepts JSON numbers that are whole and fit a share count.
func toCount(v interface{}) (uint8, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
	if f < 0 || f > math.MaxUint8 || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid count %v", v)
	}
	return uint8(f), nil
}

// commit applies one engine action and announces what changed. A rejected
// action leaves the state untouched. An invariant violation aborts the room.
// Assumes lock is held by caller.
func (r *Room) commit(act engine.Action, actorID uuid.UUID, source string) error {
	pre := r.Engine
	if err := r.Engine.Apply(act); err != nil {
		if errors.Is(err, engine.ErrInvariantViolation) {
			r.abort(err)
		}
		return err
	}
	r.applied++
	r.log.WithFields(logrus.Fields{
		"player": actorID,
		"action": act.Kind.String(),
		"source": source,
		"phase":  r.Engine.Phase.String(),
	}).Debug("action applied")
	r.emitEventsForAction(&pre, act, actorID, source)
	return nil
}

// emitEventsForAction diffs the state around one accepted action and fires
// the matching public events. Assumes lock is held by caller.
func (r *Room) emitEventsForAction(pre *engine.GameState, act engine.Action, actorID uuid.UUID, source string) {
	g := &r.Engine
	p := r.getPlayerByID(actorID)
	var user *EventUser
	if p != nil {
		user = eventUser(p)
	}
	emit := func(t GameEventType, payload map[string]interface{}) {
		payload["source"] = source
		r.logAction(actorID, string(t), payload)
		r.fireEvent(GameEvent{Type: t, User: user, Payload: payload})
	}

	switch act.Kind {
	case engine.ActionPlaceTile:
		la := g.LastAction
		payload := map[string]interface{}{"tile": act.Tile.String(), "outcome": la.Outcome.String()}
		if la.Outcome == engine.OutcomeChainGrown && la.Chain.Valid() {
			payload["chain"] = la.Chain.String()
		}
		emit(EventTilePlaced, payload)
		if la.Outcome == engine.OutcomeMerging {
			r.emitMergerStarted(emit)
			if !g.Merger.AwaitingSurvivor {
				r.emitSurvivorChosen(emit)
			}
		}

	case engine.ActionFoundChain:
		payload := map[string]interface{}{
			"chain": act.Chain.String(),
			"tile":  pre.PendingTile.String(),
			"size":  g.Chains[act.Chain].Size,
		}
		payload["founderShare"] = g.Players[act.Player].Shares[act.Chain] > pre.Players[act.Player].Shares[act.Chain]
		emit(EventChainFounded, payload)

	case engine.ActionChooseSurvivor:
		r.emitSurvivorChosen(emit)

	case engine.ActionDisposition:
		emit(EventDisposition, map[string]interface{}{
			"chain": act.Chain.String(),
			"sell":  act.Disposition.Sell,
			"trade": act.Disposition.Trade,
			"hold":  act.Disposition.Hold,
		})

	case engine.ActionBuyStocks:
		cost := 0
		for c, n := range act.Purchase {
			cost += int(n) * pre.Price(engine.ChainID(c))
		}
		emit(EventStocksBought, map[string]interface{}{
			"purchases": chainCounts(act.Purchase),
			"cost":      cost,
			"endGame":   act.EndGame,
		})

	case engine.ActionEndTurn:
		emit(EventTurnPassed, map[string]interface{}{"endGame": act.EndGame})
	}

	mergerWasLive := pre.Merger.Active || act.Kind == engine.ActionPlaceTile && g.LastAction.Outcome == engine.OutcomeMerging
	if mergerWasLive && !g.Merger.Active && g.Merger.Survivor.Valid() {
		emit(EventMergerCompleted, map[string]interface{}{
			"survivor": g.Merger.Survivor.String(),
			"size":     g.Chains[g.Merger.Survivor].Size,
		})
	}
}

func (r *Room) emitMergerStarted(emit func(GameEventType, map[string]interface{})) {
	m := &r.Engine.Merger
	chains := make([]string, 0, m.NumChains)
	for i := uint8(0); i < m.NumChains; i++ {
		chains = append(chains, m.Chains[i].String())
	}
	payload := map[string]interface{}{
		"tile":             m.Tile.String(),
		"chains":           chains,
		"awaitingSurvivor": m.AwaitingSurvivor,
	}
	if m.AwaitingSurvivor {
		cands := make([]string, 0, m.NumCandidates)
		for i := uint8(0); i < m.NumCandidates; i++ {
			cands = append(cands, m.Candidates[i].String())
		}
		payload["candidates"] = cands
	}
	emit(EventMergerStarted, payload)
}

func (r *Room) emitSurvivorChosen(emit func(GameEventType, map[string]interface{})) {
	mv := r.mergerView()
	if mv == nil {
		return
	}
	emit(EventSurvivorChosen, map[string]interface{}{
		"survivor": mv.Survivor,
		"defunct":  mv.Defunct,
	})
}
