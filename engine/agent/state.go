// Package agent implements bot players. A bot observes the public game state
// and returns an engine.Action, the same value a human decision is turned
// into, so bots and humans share one submission path.
package agent

import (
	"fmt"

	engine "github.com/linanqiu/acquire-game-sub002/engine"
)

// AgentState is one bot's memory. It is a flat value type and can be copied
// with =.
type AgentState struct {
	PlayerID uint8
	Strategy Strategy

	// Largest holding of each chain among the other players, refreshed by
	// Update. Used to judge whether a majority is within reach.
	RivalShares [engine.NumChains]uint8

	// Turn number at the last Update.
	LastSeenTurn uint16
	// Mergers observed since the bot joined.
	MergersSeen uint16

	lastMergeTile engine.Tile
}

// NewAgentState returns a bot for the given seat.
func NewAgentState(playerID uint8, strategy Strategy) AgentState {
	return AgentState{PlayerID: playerID, Strategy: strategy, lastMergeTile: engine.NoTile}
}

// Update refreshes the bot's view of the table from the public state.
func (a *AgentState) Update(g *engine.GameState) {
	a.RivalShares = [engine.NumChains]uint8{}
	for p := uint8(0); p < g.NumPlayers; p++ {
		if p == a.PlayerID {
			continue
		}
		for c := 0; c < engine.NumChains; c++ {
			if s := g.Players[p].Shares[c]; s > a.RivalShares[c] {
				a.RivalShares[c] = s
			}
		}
	}
	if g.Merger.Tile != engine.NoTile && g.Merger.NumChains > 0 && g.Merger.Tile != a.lastMergeTile {
		a.lastMergeTile = g.Merger.Tile
		a.MergersSeen++
	}
	a.LastSeenTurn = g.TurnNumber
}

// Decide returns the bot's action for the current decision. It is an error
// to ask a bot to act when it is not the acting player.
func (a *AgentState) Decide(g *engine.GameState) (engine.Action, error) {
	if g.IsGameOver() {
		return engine.Action{}, fmt.Errorf("game is over")
	}
	if g.ActingPlayer() != a.PlayerID {
		return engine.Action{}, fmt.Errorf("player %d is not acting (acting: %d)", a.PlayerID, g.ActingPlayer())
	}
	a.Update(g)

	act := engine.Action{Player: a.PlayerID, Tile: engine.NoTile, Chain: engine.NoChain}
	switch g.Phase {
	case engine.PhasePlaceTile:
		if a.shouldEnd(g) {
			act.Kind = engine.ActionEndTurn
			act.EndGame = true
			return act, nil
		}
		t, ok := a.chooseTile(g)
		if !ok {
			act.Kind = engine.ActionEndTurn
			return act, nil
		}
		act.Kind = engine.ActionPlaceTile
		act.Tile = t
		return act, nil

	case engine.PhaseFoundingChain:
		c, ok := a.chooseFounding(g)
		if !ok {
			return act, fmt.Errorf("no chain available to found")
		}
		act.Kind = engine.ActionFoundChain
		act.Chain = c
		return act, nil

	case engine.PhaseMerging:
		if g.Merger.AwaitingSurvivor {
			act.Kind = engine.ActionChooseSurvivor
			act.Chain = a.chooseSurvivor(g)
			return act, nil
		}
		o, ok := g.CurrentObligation()
		if !ok {
			return act, fmt.Errorf("merging without a pending obligation")
		}
		act.Kind = engine.ActionDisposition
		act.Chain = o.Defunct
		act.Disposition = a.chooseDisposition(g, o)
		return act, nil

	case engine.PhaseBuyingStocks:
		buy := a.choosePurchase(g)
		act.Kind = engine.ActionBuyStocks
		act.Purchase = buy
		act.EndGame = a.shouldEnd(g)
		if buy.Total() == 0 {
			act.Kind = engine.ActionEndTurn
		}
		return act, nil
	}
	return act, fmt.Errorf("no decision in phase %s", g.Phase)
}

// shouldEnd declares the end when allowed and the bot is ranked first.
func (a *AgentState) shouldEnd(g *engine.GameState) bool {
	if !g.CanDeclareEnd() {
		return false
	}
	for _, r := range g.ProjectedResults() {
		if r.Player == a.PlayerID {
			return r.Rank == 1
		}
	}
	return false
}

// chooseTile scores each playable tile by simulating its placement on a copy
// of the state.
func (a *AgentState) chooseTile(g *engine.GameState) (engine.Tile, bool) {
	best, bestScore := engine.NoTile, -1
	for _, t := range g.PlayableTiles(a.PlayerID) {
		score := a.scoreTile(g, t)
		if score > bestScore || (score == bestScore && t < best) {
			best, bestScore = t, score
		}
	}
	return best, best != engine.NoTile
}

func (a *AgentState) scoreTile(g *engine.GameState, t engine.Tile) int {
	sim := *g
	out, err := sim.PlaceTile(a.PlayerID, t)
	if err != nil {
		return -1
	}
	me := &sim.Players[a.PlayerID]
	switch out {
	case engine.OutcomeFoundingChain:
		return scoreFound
	case engine.OutcomeChainGrown:
		if me.Shares[sim.LastAction.Chain] > 0 {
			return scoreGrowOwn
		}
		return scoreGrowOther
	case engine.OutcomeMerging:
		if sim.Merger.AwaitingSurvivor {
			if err := sim.ChooseMergerSurvivor(a.PlayerID, a.chooseSurvivor(&sim)); err != nil {
				return scoreLone
			}
		}
		bonus := 0
		for i := uint8(0); i < sim.Merger.NumDefunct; i++ {
			bonus += sim.Merger.Defunct[i].Bonuses[a.PlayerID]
		}
		if bonus > 0 {
			return scoreMergeOwn + bonus/1000
		}
		return scoreLone
	}
	return scoreLone
}

// chooseFounding prefers a chain the bot already holds shares of, then the
// strategy's founding order.
func (a *AgentState) chooseFounding(g *engine.GameState) (engine.ChainID, bool) {
	me := &g.Players[a.PlayerID]
	order := a.Strategy.foundingOrder()
	best := engine.NoChain
	for _, c := range order {
		if g.Chains[c].Active {
			continue
		}
		if best == engine.NoChain {
			best = c
		}
		if me.Shares[c] > 0 && me.Shares[c] > me.Shares[best] {
			best = c
		}
	}
	return best, best != engine.NoChain
}

// chooseSurvivor keeps the tied chain the bot holds most of.
func (a *AgentState) chooseSurvivor(g *engine.GameState) engine.ChainID {
	m := &g.Merger
	me := &g.Players[a.PlayerID]
	best := m.Candidates[0]
	for i := uint8(1); i < m.NumCandidates; i++ {
		if c := m.Candidates[i]; me.Shares[c] > me.Shares[best] {
			best = c
		}
	}
	return best
}

// chooseDisposition trades as much as the survivor bank allows, then sells.
// Cautious bots hold the remainder instead of selling when the defunct chain
// could plausibly return.
func (a *AgentState) chooseDisposition(g *engine.GameState, o engine.Obligation) engine.Disposition {
	trade := g.MaxTradeable(o)
	rest := o.Shares - trade
	if a.Strategy == StrategyCautious && rest > 0 && len(g.AvailableChains()) > 1 {
		return engine.Disposition{Trade: trade, Hold: rest}
	}
	return engine.Disposition{Trade: trade, Sell: rest}
}

// choosePurchase buys shares one at a time, each time picking the affordable
// chain where an extra share best improves the bot's position against the
// largest rival holding.
func (a *AgentState) choosePurchase(g *engine.GameState) engine.Purchase {
	var buy engine.Purchase
	me := &g.Players[a.PlayerID]
	budget := me.Cash - a.Strategy.cashReserve()
	limit := int(g.Rules.MaxPurchase)
	if limit == 0 {
		limit = 3
	}

	for buy.Total() < limit {
		best, bestScore := engine.NoChain, 0
		for _, c := range g.ActiveChains() {
			price := g.Price(c)
			if price == 0 || price > budget || g.Chains[c].Bank <= buy[c] || (g.IsSafe(c) && a.Strategy == StrategyCautious) {
				continue
			}
			mine := int(me.Shares[c]) + int(buy[c])
			rival := int(a.RivalShares[c])
			score := 10
			switch {
			case mine <= rival && mine+1 > rival:
				score = 30 // takes the majority
			case mine > rival:
				score = 20 - (mine - rival) // protect a lead, less so when large
			}
			if score > bestScore {
				best, bestScore = c, score
			}
		}
		if best == engine.NoChain {
			break
		}
		buy[best]++
		budget -= g.Price(best)
	}
	return buy
}
