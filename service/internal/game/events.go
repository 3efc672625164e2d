// internal/game/events.go
package game

import (
	"github.com/google/uuid"
)

// GameEventType represents the type of a room event sent over the websocket.
type GameEventType string

const (
	EventPlayerJoined     GameEventType = "player_joined"     // Public: a seat was taken.
	EventPlayerLeft       GameEventType = "player_left"       // Public: a seat was given up.
	EventPlayerConnection GameEventType = "player_connection" // Public: connection status with attempt count.
	EventGameStart        GameEventType = "game_start"        // Public: pool shuffled, hands dealt.
	EventGamePlayerTurn   GameEventType = "game_player_turn"  // Public: whose turn it is.

	EventTilePlaced      GameEventType = "player_place_tile"    // Public: tile and placement outcome.
	EventChainFounded    GameEventType = "player_found_chain"   // Public: new chain and founder share.
	EventMergerStarted   GameEventType = "game_merger_started"  // Public: chains joined, candidates if tied.
	EventSurvivorChosen  GameEventType = "game_merger_survivor" // Public: survivor fixed, bonuses paid.
	EventDisposition     GameEventType = "player_disposition"   // Public: sell/trade/hold for one defunct chain.
	EventMergerCompleted GameEventType = "game_merger_complete" // Public: defunct chains folded into survivor.
	EventStocksBought    GameEventType = "player_buy_stocks"    // Public: shares bought this turn.
	EventTurnPassed      GameEventType = "player_end_turn"      // Public: turn ended without buying.
	EventPlayerTimeout   GameEventType = "player_timeout"       // Public: fallback action played for an idle player.
	EventGameEnd         GameEventType = "game_end"             // Public: final standings.
	EventGameAborted     GameEventType = "game_aborted"         // Public: room stopped on a corrupt state.

	EventPrivateSyncState      GameEventType = "private_sync_state"      // Private: full state for one player.
	EventPrivateActionRejected GameEventType = "private_action_rejected" // Private: typed rejection reason.
)

// EventUser identifies a user within a GameEvent payload.
type EventUser struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username,omitempty"`
}

// GameEvent is the envelope for everything the room sends to clients.
type GameEvent struct {
	Type    GameEventType          `json:"type"`
	User    *EventUser             `json:"user,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	State   *PlayerView            `json:"state,omitempty"` // sync events only
}
