// internal/models/models.go
package models

import (
	"github.com/google/uuid"
)

// User is an authenticated account as carried in a connection token.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// Player is a seat in a room. Bots have no User connection and are driven by
// the room's scheduler.
type Player struct {
	ID        uuid.UUID `json:"id"`
	User      *User     `json:"user,omitempty"`
	Connected bool      `json:"connected"`
	Bot       bool      `json:"bot"`
	Strategy  string    `json:"strategy,omitempty"` // bot strategy name
}

// Name returns the display name for the player.
func (p *Player) Name() string {
	if p.User != nil && p.User.Username != "" {
		return p.User.Username
	}
	if p.Bot {
		return "bot-" + p.ID.String()[:8]
	}
	return p.ID.String()
}

// GameAction is an inbound client message: {"actionType": ..., "payload": {...}}.
type GameAction struct {
	ActionType string                 `json:"actionType"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}
