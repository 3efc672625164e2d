// internal/game/sync_state.go
package game

import (
	"github.com/google/uuid"

	engine "github.com/linanqiu/acquire-game-sub002/engine"
	"github.com/linanqiu/acquire-game-sub002/service/internal/session"
)

// ChainView is the public state of one chain.
type ChainView struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Size   int    `json:"size"`
	Bank   int    `json:"bank"`
	Price  int    `json:"price"`
	Safe   bool   `json:"safe"`
	Tier   int    `json:"tier"`
}

// ObligationView is a pending disposition owed by the viewing player.
type ObligationView struct {
	Defunct      string `json:"defunct"`
	Survivor     string `json:"survivor"`
	Shares       int    `json:"shares"`
	Price        int    `json:"price"`
	MaxTradeable int    `json:"maxTradeable"`
	Current      bool   `json:"current"` // head of the resolution queue
}

// MergerView describes the merger in progress, or the last one.
type MergerView struct {
	Active           bool             `json:"active"`
	AwaitingSurvivor bool             `json:"awaitingSurvivor"`
	Tile             string           `json:"tile"`
	MakerID          uuid.UUID        `json:"makerId"`
	Chains           []string         `json:"chains"`
	Candidates       []string         `json:"candidates,omitempty"`
	Survivor         string           `json:"survivor,omitempty"`
	Defunct          []DefunctView    `json:"defunct,omitempty"`
	Pending          []PendingSummary `json:"pending,omitempty"`
}

// DefunctView is one absorbed chain with its frozen size and price.
type DefunctView struct {
	Chain   string            `json:"chain"`
	Size    int               `json:"size"`
	Price   int               `json:"price"`
	Bonuses map[uuid.UUID]int `json:"bonuses,omitempty"`
}

// PendingSummary names who still owes a disposition, without their share counts.
type PendingSummary struct {
	PlayerID uuid.UUID `json:"playerId"`
	Defunct  string    `json:"defunct"`
}

// PlayerStateView is one seat as seen by the viewer.
type PlayerStateView struct {
	PlayerID      uuid.UUID        `json:"playerId"`
	Username      string           `json:"username"`
	Bot           bool             `json:"bot"`
	Left          bool             `json:"left,omitempty"`
	Connection    session.State    `json:"connection"`
	Cash          int              `json:"cash"`
	Shares        map[string]uint8 `json:"shares"`
	HandSize      int              `json:"handSize"`
	IsCurrentTurn bool             `json:"isCurrentTurn"`

	// Populated only for the viewer's own seat.
	Hand          []string         `json:"hand,omitempty"`
	PlayableTiles []string         `json:"playableTiles,omitempty"`
	Obligations   []ObligationView `json:"obligations,omitempty"`
	Affordable    map[string]uint8 `json:"affordable,omitempty"` // buying phase: max shares per chain
	CanDeclareEnd bool             `json:"canDeclareEnd,omitempty"`
}

// LastActionView summarizes the most recent accepted action.
type LastActionView struct {
	Kind     string    `json:"kind"`
	PlayerID uuid.UUID `json:"playerId"`
	Tile     string    `json:"tile,omitempty"`
	Chain    string    `json:"chain,omitempty"`
	Outcome  string    `json:"outcome,omitempty"`
}

// PlayerView is the full state one player may see. Other players' hands
// and merger share counts stay hidden; everything else is public.
type PlayerView struct {
	GameID          uuid.UUID                `json:"gameId"`
	RoomID          uuid.UUID                `json:"roomId"`
	Phase           string                   `json:"phase"`
	Started         bool                     `json:"started"`
	GameOver        bool                     `json:"gameOver"`
	Aborted         bool                     `json:"aborted,omitempty"`
	DecisionID      int                      `json:"decisionId"`
	TurnNumber      int                      `json:"turnNumber"`
	CurrentPlayerID uuid.UUID                `json:"currentPlayerId"`
	ActingPlayerID  uuid.UUID                `json:"actingPlayerId"`
	PoolSize        int                      `json:"poolSize"`
	Board           []string                 `json:"board"` // one string per row; '.' empty, '#' loose, chain initial otherwise
	Chains          []ChainView              `json:"chains"`
	Players         []PlayerStateView        `json:"players"`
	Merger          *MergerView              `json:"merger,omitempty"`
	LastAction      *LastActionView          `json:"lastAction,omitempty"`
	Results         []map[string]interface{} `json:"results,omitempty"`
	HouseRules      HouseRules               `json:"houseRules"`
}

// GetPlayerView builds the state visible to forUser. Pass uuid.Nil for the
// public view. Assumes lock is held by caller.
func (r *Room) GetPlayerView(forUser uuid.UUID) PlayerView {
	g := &r.Engine
	v := PlayerView{
		GameID:     r.GameID,
		RoomID:     r.ID,
		Phase:      engine.PhaseLobby.String(),
		Started:    r.Started,
		GameOver:   r.GameOver,
		Aborted:    r.Aborted,
		DecisionID: r.DecisionID,
		HouseRules: r.HouseRules,
	}

	if r.Started {
		v.Phase = g.Phase.String()
		v.TurnNumber = int(g.TurnNumber)
		v.PoolSize = int(g.PoolLen)
		if !g.IsGameOver() {
			v.CurrentPlayerID = r.EngineToPlayer[g.CurrentPlayer]
			v.ActingPlayerID = r.EngineToPlayer[g.ActingPlayer()]
		}
		v.Board = boardRows(g)
		v.Merger = r.mergerView()
		v.LastAction = r.lastActionView()
		if results, ok := g.FinalResults(); ok {
			for _, res := range results {
				pid := r.EngineToPlayer[res.Player]
				name := ""
				if p := r.getPlayerByID(pid); p != nil {
					name = p.Name()
				}
				v.Results = append(v.Results, resultPayload(pid, name, res))
			}
		}
	}

	v.Chains = make([]ChainView, engine.NumChains)
	for c := engine.ChainID(0); c < engine.NumChains; c++ {
		cs := g.Chains[c]
		bank := int(cs.Bank)
		if !r.Started {
			bank = engine.BankSharesPerChain
		}
		v.Chains[c] = ChainView{
			Name:   c.String(),
			Active: cs.Active,
			Size:   int(cs.Size),
			Bank:   bank,
			Price:  g.Price(c),
			Safe:   g.IsSafe(c),
			Tier:   int(c.Tier()),
		}
	}

	v.Players = make([]PlayerStateView, 0, len(r.Players))
	for _, p := range r.Players {
		ps := PlayerStateView{
			PlayerID: p.ID,
			Username: p.Name(),
			Bot:      p.Bot,
			Left:     r.left[p.ID],
			Shares:   map[string]uint8{},
		}
		if st, ok := r.Sessions.State(p.ID); ok {
			ps.Connection = st
		} else if !p.Bot {
			ps.Connection = session.State{Status: session.StatusDisconnected}
		}

		idx, seated := r.seatOf(p.ID)
		if !seated {
			v.Players = append(v.Players, ps)
			continue
		}
		eng := &g.Players[idx]
		ps.Cash = eng.Cash
		ps.Shares = chainCounts(eng.Shares)
		ps.HandSize = int(eng.HandLen)
		ps.IsCurrentTurn = !g.IsGameOver() && g.ActingPlayer() == idx

		if p.ID == forUser {
			for _, t := range eng.HandTiles() {
				ps.Hand = append(ps.Hand, t.String())
			}
			if g.Phase == engine.PhasePlaceTile && g.CurrentPlayer == idx {
				for _, t := range g.PlayableTiles(idx) {
					ps.PlayableTiles = append(ps.PlayableTiles, t.String())
				}
			}
			head, hasHead := g.CurrentObligation()
			for _, o := range g.ObligationsFor(idx) {
				ps.Obligations = append(ps.Obligations, ObligationView{
					Defunct:      o.Defunct.String(),
					Survivor:     o.Survivor.String(),
					Shares:       int(o.Shares),
					Price:        o.Price,
					MaxTradeable: int(g.MaxTradeable(o)),
					Current:      hasHead && head == o,
				})
			}
			if g.Phase == engine.PhaseBuyingStocks && g.CurrentPlayer == idx {
				ps.Affordable = make(map[string]uint8)
				for _, c := range g.ActiveChains() {
					if n := g.Affordable(idx, c); n > 0 {
						ps.Affordable[c.String()] = n
					}
				}
			}
			ps.CanDeclareEnd = g.CurrentPlayer == idx && g.CanDeclareEnd()
		}
		v.Players = append(v.Players, ps)
	}
	return v
}

// publicView is the state with every hand hidden. Assumes lock is held by caller.
func (r *Room) publicView() PlayerView {
	return r.GetPlayerView(uuid.Nil)
}

func (r *Room) mergerView() *MergerView {
	m := &r.Engine.Merger
	if m.NumChains == 0 {
		return nil
	}
	mv := &MergerView{
		Active:           m.Active,
		AwaitingSurvivor: m.AwaitingSurvivor,
		Tile:             m.Tile.String(),
		MakerID:          r.EngineToPlayer[m.Maker],
	}
	for i := uint8(0); i < m.NumChains; i++ {
		mv.Chains = append(mv.Chains, m.Chains[i].String())
	}
	if m.AwaitingSurvivor {
		for i := uint8(0); i < m.NumCandidates; i++ {
			mv.Candidates = append(mv.Candidates, m.Candidates[i].String())
		}
	}
	if m.Survivor.Valid() {
		mv.Survivor = m.Survivor.String()
	}
	for i := uint8(0); i < m.NumDefunct; i++ {
		d := m.Defunct[i]
		dv := DefunctView{Chain: d.Chain.String(), Size: int(d.Size), Price: d.Price}
		for p := uint8(0); p < r.Engine.NumPlayers; p++ {
			if d.Bonuses[p] > 0 {
				if dv.Bonuses == nil {
					dv.Bonuses = make(map[uuid.UUID]int)
				}
				dv.Bonuses[r.EngineToPlayer[p]] = d.Bonuses[p]
			}
		}
		mv.Defunct = append(mv.Defunct, dv)
	}
	for _, o := range r.Engine.PendingObligations() {
		mv.Pending = append(mv.Pending, PendingSummary{PlayerID: r.EngineToPlayer[o.Player], Defunct: o.Defunct.String()})
	}
	return mv
}

func (r *Room) lastActionView() *LastActionView {
	if r.applied == 0 {
		return nil
	}
	la := r.Engine.LastAction
	v := &LastActionView{Kind: la.Kind.String(), PlayerID: r.EngineToPlayer[la.Player]}
	if la.Tile.Valid() {
		v.Tile = la.Tile.String()
	}
	if la.Chain.Valid() {
		v.Chain = la.Chain.String()
	}
	if la.Kind == engine.ActionPlaceTile {
		v.Outcome = la.Outcome.String()
	}
	return v
}

// boardRows renders the board as BoardRows strings of BoardCols characters.
func boardRows(g *engine.GameState) []string {
	rows := make([]string, engine.BoardRows)
	line := make([]byte, engine.BoardCols)
	for row := uint8(0); row < engine.BoardRows; row++ {
		for col := uint8(0); col < engine.BoardCols; col++ {
			cell := g.Board[engine.NewTile(col, row)]
			switch c, ok := cell.Chain(); {
			case ok:
				line[col] = c.String()[0]
			case cell.Occupied():
				line[col] = '#'
			default:
				line[col] = '.'
			}
		}
		rows[row] = string(line)
	}
	return rows
}

// chainCounts keys non-zero per-chain counts by chain name.
func chainCounts(counts [engine.NumChains]uint8) map[string]uint8 {
	out := make(map[string]uint8)
	for c, n := range counts {
		if n > 0 {
			out[engine.ChainID(c).String()] = n
		}
	}
	return out
}

// sendSyncState pushes the player's private view. Assumes lock is held by caller.
func (r *Room) sendSyncState(playerID uuid.UUID) {
	view := r.GetPlayerView(playerID)
	r.fireEventToPlayer(playerID, GameEvent{Type: EventPrivateSyncState, State: &view})
}

// broadcastSyncStateToAll resyncs every connected human. Assumes lock is held by caller.
func (r *Room) broadcastSyncStateToAll() {
	for _, p := range r.Players {
		if p.Bot || r.left[p.ID] || !r.Sessions.IsConnected(p.ID) {
			continue
		}
		r.sendSyncState(p.ID)
	}
}
