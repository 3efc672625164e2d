// internal/game/connection.go
package game

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/linanqiu/acquire-game-sub002/service/internal/session"
)

// HandleDisconnect records a dropped transport for a player. After the game
// is over a disconnect counts as leaving; the return value reports whether
// the room can now be torn down.
func (r *Room) HandleDisconnect(playerID uuid.UUID) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	p := r.getPlayerByID(playerID)
	if p == nil || p.Bot || r.left[playerID] {
		return r.teardownReady()
	}
	if r.GameOver || !r.Started {
		return r.leave(playerID)
	}

	st, err := r.Sessions.Disconnected(playerID)
	if err != nil {
		r.log.WithError(err).WithField("player", playerID).Warn("disconnect signal ignored")
		return false
	}
	p.Connected = false
	r.log.WithField("player", playerID).Infof("player disconnected (%s)", st.Status)
	r.announceConnection(p.ID, st)
	r.broadcastSyncStateToAll()
	return false
}

// HandleReconnect records a fresh transport for a player who was away and
// resyncs them. A player at manual rejoin is told so and must send
// action_rejoin.
func (r *Room) HandleReconnect(playerID uuid.UUID) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	p := r.getPlayerByID(playerID)
	if p == nil || p.Bot || r.left[playerID] {
		return ErrNotSeated
	}
	if _, ok := r.Sessions.State(playerID); !ok {
		return ErrNotSeated
	}
	st, err := r.Sessions.Connected(playerID)
	if err != nil {
		switch st.Status {
		case session.StatusConnected:
			// Second socket for a live seat: resync it.
			r.sendSyncState(playerID)
			return nil
		case session.StatusManualRejoin:
			r.fireEventToPlayer(playerID, GameEvent{
				Type:    EventPlayerConnection,
				User:    eventUser(p),
				Payload: connectionPayload(st),
			})
		}
		return err
	}
	p.Connected = true
	r.log.WithField("player", playerID).Info("player reconnected")
	r.announceConnection(p.ID, st)
	r.sendSyncState(playerID)
	return nil
}

// Rejoin is the explicit action out of manual rejoin. The attempt runs
// without the room lock held.
func (r *Room) Rejoin(ctx context.Context, playerID uuid.UUID) (session.State, error) {
	r.Mu.Lock()
	p := r.getPlayerByID(playerID)
	seated := p != nil && !p.Bot && !r.left[playerID]
	aborted := r.Aborted
	r.Mu.Unlock()
	if !seated {
		return session.State{}, ErrNotSeated
	}
	if aborted {
		return session.State{}, ErrRoomAborted
	}

	st, err := r.Sessions.Rejoin(ctx, playerID)

	r.Mu.Lock()
	defer r.Mu.Unlock()
	if err != nil && !errors.Is(err, session.ErrRejoinFailed) {
		return st, err
	}
	p.Connected = st.Status == session.StatusConnected
	r.announceConnection(playerID, st)
	if p.Connected {
		r.log.WithField("player", playerID).Info("player rejoined")
		r.sendSyncState(playerID)
	}
	return st, err
}

// onSessionStatus receives transitions made by the background retry loop.
// The callback runs after the manager has released its lock, so a
// transition superseded in the meantime is dropped.
func (r *Room) onSessionStatus(playerID uuid.UUID, st session.State) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	p := r.getPlayerByID(playerID)
	if p == nil || !r.sessionStateIs(playerID, st) {
		return
	}
	p.Connected = st.Status == session.StatusConnected
	r.announceConnection(playerID, st)
}

// onSessionResync pushes the full state after an automatic reconnect.
func (r *Room) onSessionResync(playerID uuid.UUID) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if !r.Sessions.IsConnected(playerID) {
		return
	}
	r.sendSyncState(playerID)
}

// sessionStateIs reports whether st is still the player's current session
// state. Assumes lock is held by caller.
func (r *Room) sessionStateIs(playerID uuid.UUID, st session.State) bool {
	cur, ok := r.Sessions.State(playerID)
	return ok && cur.Status == st.Status && cur.Attempt == st.Attempt
}

// announceConnection assumes lock is held by caller.
func (r *Room) announceConnection(playerID uuid.UUID, st session.State) {
	payload := connectionPayload(st)
	r.logAction(playerID, string(EventPlayerConnection), payload)
	var user *EventUser
	if p := r.getPlayerByID(playerID); p != nil {
		user = eventUser(p)
	}
	r.fireEvent(GameEvent{Type: EventPlayerConnection, User: user, Payload: payload})
}

func connectionPayload(st session.State) map[string]interface{} {
	payload := map[string]interface{}{"status": st.Status.String()}
	if st.Status == session.StatusReconnecting {
		payload["attempt"] = st.Attempt
		payload["deadline"] = st.Deadline.UnixMilli()
	}
	return payload
}
