package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Tiles
// ---------------------------------------------------------------------------

// Tile identifies one board cell. Index = row*BoardCols + col, so tiles sort
// row-major starting at 1A.
type Tile uint8

// NoTile represents the absence of a tile.
const NoTile Tile = 0xFF

// NewTile constructs a Tile from a zero-based column and row.
func NewTile(col, row uint8) Tile { return Tile(row*BoardCols + col) }

// Col returns the zero-based column.
func (t Tile) Col() uint8 { return uint8(t) % BoardCols }

// Row returns the zero-based row (0 = A).
func (t Tile) Row() uint8 { return uint8(t) / BoardCols }

// Valid reports whether t names a cell on the board.
func (t Tile) Valid() bool { return t < NumTiles }

// String renders the tile as "<column><row letter>", e.g. "1A" or "12I".
func (t Tile) String() string {
	if !t.Valid() {
		return "--"
	}
	return strconv.Itoa(int(t.Col())+1) + string(rune('A'+t.Row()))
}

// ParseTile parses the "<column><row letter>" form produced by String.
func ParseTile(s string) (Tile, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if len(s) < 2 || len(s) > 3 {
		return NoTile, fmt.Errorf("malformed tile %q", s)
	}
	row := s[len(s)-1]
	col, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || col < 1 || col > BoardCols || row < 'A' || row >= 'A'+BoardRows {
		return NoTile, fmt.Errorf("malformed tile %q", s)
	}
	return NewTile(uint8(col-1), row-'A'), nil
}

// Neighbors returns the orthogonally adjacent tiles and how many are valid.
func (t Tile) Neighbors() (out [4]Tile, n uint8) {
	col, row := t.Col(), t.Row()
	if row > 0 {
		out[n] = t - BoardCols
		n++
	}
	if col > 0 {
		out[n] = t - 1
		n++
	}
	if col < BoardCols-1 {
		out[n] = t + 1
		n++
	}
	if row < BoardRows-1 {
		out[n] = t + BoardCols
		n++
	}
	return out, n
}

// ---------------------------------------------------------------------------
// Chains
// ---------------------------------------------------------------------------

// ChainID names one of the seven hotel chains. The numeric order is the
// canonical order used to break ties deterministically.
type ChainID uint8

const (
	ChainTower ChainID = iota
	ChainLuxor
	ChainAmerican
	ChainWorldwide
	ChainFestival
	ChainImperial
	ChainContinental
)

// NoChain represents the absence of a chain.
const NoChain ChainID = 0xFF

var chainNames = [NumChains]string{
	"Tower", "Luxor", "American", "Worldwide", "Festival", "Imperial", "Continental",
}

func (c ChainID) String() string {
	if c >= NumChains {
		return "none"
	}
	return chainNames[c]
}

// Valid reports whether c is one of the seven chains.
func (c ChainID) Valid() bool { return c < NumChains }

// ParseChain resolves a chain name, case-insensitively.
func ParseChain(s string) (ChainID, error) {
	for i, name := range chainNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return ChainID(i), nil
		}
	}
	return NoChain, fmt.Errorf("unknown chain %q", s)
}

// PriceTier groups chains sharing a price schedule.
type PriceTier uint8

const (
	TierBudget   PriceTier = 0 // Tower, Luxor
	TierStandard PriceTier = 1 // American, Worldwide, Festival
	TierPremium  PriceTier = 2 // Imperial, Continental
)

// Tier returns the chain's price tier.
func (c ChainID) Tier() PriceTier {
	switch c {
	case ChainTower, ChainLuxor:
		return TierBudget
	case ChainImperial, ChainContinental:
		return TierPremium
	default:
		return TierStandard
	}
}

// ---------------------------------------------------------------------------
// Board cells
// ---------------------------------------------------------------------------

// Cell is the content of one board position: empty, an unincorporated
// tile, or a tile belonging to a chain (cellChainBase + ChainID).
type Cell uint8

const (
	CellEmpty Cell = 0
	CellLoose Cell = 1

	cellChainBase Cell = 2
)

func chainCell(c ChainID) Cell { return cellChainBase + Cell(c) }

// Chain returns the chain this cell belongs to, if any.
func (c Cell) Chain() (ChainID, bool) {
	if c < cellChainBase {
		return NoChain, false
	}
	return ChainID(c - cellChainBase), true
}

// Occupied reports whether a tile has been placed on the cell.
func (c Cell) Occupied() bool { return c != CellEmpty }

// ---------------------------------------------------------------------------
// Phases
// ---------------------------------------------------------------------------

// Phase is the state machine position of a game.
type Phase uint8

const (
	PhaseLobby Phase = iota
	PhasePlaceTile
	PhaseFoundingChain
	PhaseMerging
	PhaseBuyingStocks
	PhaseGameOver
)

var phaseNames = [...]string{
	"LOBBY", "PLACE_TILE", "FOUNDING_CHAIN", "MERGING", "BUYING_STOCKS", "GAME_OVER",
}

func (p Phase) String() string {
	if int(p) >= len(phaseNames) {
		return "UNKNOWN"
	}
	return phaseNames[p]
}

// PlaceOutcome classifies what a tile placement did to the board.
type PlaceOutcome uint8

const (
	OutcomeTilePlayed    PlaceOutcome = iota // isolated, no chain touched
	OutcomeChainGrown                        // absorbed into exactly one chain
	OutcomeFoundingChain                     // formed a new group; a chain must be named
	OutcomeMerging                           // linked two or more chains
)

var outcomeNames = [...]string{"tile_played", "chain_grown", "founding_chain", "merging"}

func (o PlaceOutcome) String() string {
	if int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// ---------------------------------------------------------------------------
// Merger bookkeeping
// ---------------------------------------------------------------------------

// Obligation is a stock-disposition decision a shareholder owes for one
// defunct chain. Price and Shares are frozen at merger time.
type Obligation struct {
	Player   uint8
	Defunct  ChainID
	Survivor ChainID
	Shares   uint8
	Price    int
}

// Disposition splits a player's defunct shares into sold, traded (2:1 for
// survivor shares) and held.
type Disposition struct {
	Sell  uint8
	Trade uint8
	Hold  uint8
}

// Total returns the number of shares the disposition accounts for.
func (d Disposition) Total() int { return int(d.Sell) + int(d.Trade) + int(d.Hold) }

// Purchase lists how many shares of each chain to buy.
type Purchase [NumChains]uint8

// Total returns the number of shares requested.
func (p Purchase) Total() int {
	n := 0
	for _, c := range p {
		n += int(c)
	}
	return n
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

// ActionKind tags the variant carried by an Action.
type ActionKind uint8

const (
	ActionPlaceTile ActionKind = iota
	ActionFoundChain
	ActionChooseSurvivor
	ActionDisposition
	ActionBuyStocks
	ActionEndTurn
)

var actionNames = [...]string{
	"place_tile", "found_chain", "choose_survivor", "submit_disposition", "buy_stocks", "end_turn",
}

func (k ActionKind) String() string {
	if int(k) >= len(actionNames) {
		return "unknown"
	}
	return actionNames[k]
}

// Action is a single player decision. Humans, bots and the turn timer all
// submit decisions in this form.
type Action struct {
	Kind        ActionKind
	Player      uint8
	Tile        Tile        // ActionPlaceTile
	Chain       ChainID     // ActionFoundChain, ActionChooseSurvivor, ActionDisposition
	Disposition Disposition // ActionDisposition
	Purchase    Purchase    // ActionBuyStocks
	EndGame     bool        // ActionBuyStocks, ActionEndTurn
}

// LastActionInfo is a public summary of the most recent accepted action.
type LastActionInfo struct {
	Kind    ActionKind
	Player  uint8
	Tile    Tile
	Chain   ChainID
	Outcome PlaceOutcome
}
