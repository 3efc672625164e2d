// internal/game/house_rules.go
package game

import (
	engine "github.com/linanqiu/acquire-game-sub002/engine"
)

// HouseRules captures the room configuration chosen before the game starts.
type HouseRules struct {
	// TurnTimerSec is how long a human may idle on a decision before the
	// fallback action is played (0 => no limit).
	TurnTimerSec int `json:"turnTimerSec"`

	// Seed fixes the tile pool order (0 => derived from the clock at start).
	Seed uint64 `json:"seed"`

	MaxPlayers   int   `json:"maxPlayers"`
	StartingCash int   `json:"startingCash"`
	SafeSize     uint8 `json:"safeSize"`
	EndGameSize  uint8 `json:"endGameSize"`

	// StarterTiles draws one tile per player onto the board to pick who goes first.
	StarterTiles bool `json:"starterTiles"`
	// ReplaceDeadTiles discards tiles that would merge two safe chains at turn end.
	ReplaceDeadTiles bool `json:"replaceDeadTiles"`
}

// DefaultHouseRules returns the standard rules with a 60 second turn timer.
func DefaultHouseRules() HouseRules {
	er := engine.DefaultHouseRules()
	return HouseRules{
		TurnTimerSec:     60,
		MaxPlayers:       engine.MaxPlayers,
		StartingCash:     er.StartingCash,
		SafeSize:         er.SafeSize,
		EndGameSize:      er.EndGameSize,
		StarterTiles:     er.StarterTiles,
		ReplaceDeadTiles: er.ReplaceDeadTiles,
	}
}

// engineRules maps the room's rules onto the engine's.
func (h HouseRules) engineRules() engine.HouseRules {
	er := engine.DefaultHouseRules()
	if h.StartingCash > 0 {
		er.StartingCash = h.StartingCash
	}
	if h.SafeSize > 0 {
		er.SafeSize = h.SafeSize
	}
	if h.EndGameSize > 0 {
		er.EndGameSize = h.EndGameSize
	}
	er.StarterTiles = h.StarterTiles
	er.ReplaceDeadTiles = h.ReplaceDeadTiles
	return er
}

// seatLimit clamps MaxPlayers to what the engine supports.
func (h HouseRules) seatLimit() int {
	if h.MaxPlayers < engine.MinPlayers || h.MaxPlayers > engine.MaxPlayers {
		return engine.MaxPlayers
	}
	return h.MaxPlayers
}
