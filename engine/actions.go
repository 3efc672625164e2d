package engine

import "fmt"

// Apply validates and applies one action. A rejected action leaves the state
// untouched. A non-nil error wrapping ErrInvariantViolation means the state
// is corrupt and must be discarded.
func (g *GameState) Apply(a Action) error {
	var err error
	switch a.Kind {
	case ActionPlaceTile:
		_, err = g.PlaceTile(a.Player, a.Tile)
	case ActionFoundChain:
		err = g.FoundChain(a.Player, a.Chain)
	case ActionChooseSurvivor:
		err = g.ChooseMergerSurvivor(a.Player, a.Chain)
	case ActionDisposition:
		err = g.SubmitDisposition(a.Player, a.Chain, a.Disposition)
	case ActionBuyStocks:
		err = g.BuyStocks(a.Player, a.Purchase, a.EndGame)
	case ActionEndTurn:
		err = g.EndTurn(a.Player, a.EndGame)
	default:
		return illegalf("unhandled action kind %d", a.Kind)
	}
	if err != nil {
		return err
	}
	return g.CheckInvariants()
}

// requireTurn checks the phase and that player is the current player.
func (g *GameState) requireTurn(player uint8, phase Phase) error {
	if g.Phase == PhaseGameOver {
		return illegalf("game is over")
	}
	if g.Phase != phase {
		return illegalf("expected phase %s, game is in %s", phase, g.Phase)
	}
	if player >= g.NumPlayers {
		return illegalf("unknown player %d", player)
	}
	if player != g.CurrentPlayer {
		return illegalf("not player %d's turn", player)
	}
	return nil
}

// PlaceTile puts a tile from the current player's hand on the board and
// reports what it did.
func (g *GameState) PlaceTile(player uint8, t Tile) (PlaceOutcome, error) {
	if err := g.requireTurn(player, PhasePlaceTile); err != nil {
		return 0, err
	}
	p := &g.Players[player]
	hi := p.handIndex(t)
	if hi < 0 {
		return 0, illegalf("tile %s is not in player %d's hand", t, player)
	}
	switch g.StatusOf(t) {
	case TileDead:
		return 0, illegalf("tile %s would merge two safe chains", t)
	case TileBlocked:
		return 0, illegalf("tile %s would found a chain but all %d are active", t, NumChains)
	case TileOccupied:
		return 0, invariantf("tile %s in hand is already on the board", t)
	}

	nb := g.inspect(t)
	p.removeTile(hi)
	g.Board[t] = CellLoose
	g.LastAction = LastActionInfo{Kind: ActionPlaceTile, Player: player, Tile: t, Chain: NoChain}

	var outcome PlaceOutcome
	switch {
	case nb.numChains == 0 && !nb.loose:
		outcome = OutcomeTilePlayed
		g.Phase = PhaseBuyingStocks
	case nb.numChains == 0:
		outcome = OutcomeFoundingChain
		g.PendingTile = t
		g.Phase = PhaseFoundingChain
	case nb.numChains == 1:
		outcome = OutcomeChainGrown
		c := nb.chains[0]
		g.Chains[c].Size += g.labelGroup(t, c)
		g.LastAction.Chain = c
		g.Phase = PhaseBuyingStocks
	default:
		outcome = OutcomeMerging
		g.startMerger(t, nb)
	}
	g.LastAction.Outcome = outcome
	return outcome, nil
}

// FoundChain names the chain formed by the pending tile. The founder gets one
// free share while the bank has any.
func (g *GameState) FoundChain(player uint8, c ChainID) error {
	if err := g.requireTurn(player, PhaseFoundingChain); err != nil {
		return err
	}
	if !c.Valid() {
		return illegalf("unknown chain %d", c)
	}
	if g.Chains[c].Active {
		return illegalf("chain %s is already on the board", c)
	}
	if g.PendingTile == NoTile {
		return invariantf("founding phase without a pending tile")
	}

	ch := &g.Chains[c]
	ch.Active = true
	ch.Size = g.labelGroup(g.PendingTile, c)
	if ch.Bank > 0 {
		ch.Bank--
		g.Players[player].Shares[c]++
	}
	g.LastAction = LastActionInfo{Kind: ActionFoundChain, Player: player, Tile: g.PendingTile, Chain: c}
	g.PendingTile = NoTile
	g.Phase = PhaseBuyingStocks
	return nil
}

// BuyStocks buys up to MaxPurchase shares of active chains at current prices
// and ends the turn.
func (g *GameState) BuyStocks(player uint8, buy Purchase, endGame bool) error {
	if err := g.requireTurn(player, PhaseBuyingStocks); err != nil {
		return err
	}
	if n := buy.Total(); n > g.Rules.maxPurchase() {
		return illegalf("cannot buy %d shares, limit is %d", n, g.Rules.maxPurchase())
	}
	cost := 0
	for c := ChainID(0); c < NumChains; c++ {
		n := buy[c]
		if n == 0 {
			continue
		}
		if !g.Chains[c].Active {
			return illegalf("chain %s is not on the board", c)
		}
		if n > g.Chains[c].Bank {
			return illegalf("bank has %d shares of %s, requested %d", g.Chains[c].Bank, c, n)
		}
		cost += int(n) * g.Price(c)
	}
	p := &g.Players[player]
	if cost > p.Cash {
		return fmt.Errorf("%w: purchase costs %d, player %d has %d", ErrInsufficientFunds, cost, player, p.Cash)
	}
	if endGame && !g.CanDeclareEnd() {
		return illegalf("end conditions are not met")
	}

	for c := ChainID(0); c < NumChains; c++ {
		g.Chains[c].Bank -= buy[c]
		p.Shares[c] += buy[c]
	}
	p.Cash -= cost
	g.LastAction = LastActionInfo{Kind: ActionBuyStocks, Player: player, Tile: NoTile, Chain: NoChain}
	g.finishTurn(endGame)
	return nil
}

// EndTurn ends the turn without buying. During PLACE_TILE it either declares
// the end of the game or passes a player who holds no playable tile on to
// BUYING_STOCKS.
func (g *GameState) EndTurn(player uint8, endGame bool) error {
	if g.Phase == PhasePlaceTile {
		if err := g.requireTurn(player, PhasePlaceTile); err != nil {
			return err
		}
		if endGame {
			if !g.CanDeclareEnd() {
				return illegalf("end conditions are not met")
			}
			g.LastAction = LastActionInfo{Kind: ActionEndTurn, Player: player, Tile: NoTile, Chain: NoChain}
			g.finishTurn(true)
			return nil
		}
		if g.HasPlayableTile(player) {
			return illegalf("player %d must place a tile", player)
		}
		g.LastAction = LastActionInfo{Kind: ActionEndTurn, Player: player, Tile: NoTile, Chain: NoChain}
		g.Phase = PhaseBuyingStocks
		return nil
	}
	if err := g.requireTurn(player, PhaseBuyingStocks); err != nil {
		return err
	}
	if endGame && !g.CanDeclareEnd() {
		return illegalf("end conditions are not met")
	}
	g.LastAction = LastActionInfo{Kind: ActionEndTurn, Player: player, Tile: NoTile, Chain: NoChain}
	g.finishTurn(endGame)
	return nil
}

// CanDeclareEnd reports whether the acting player may end the game: some
// chain has reached the end-game size, or every chain on the board is safe.
func (g *GameState) CanDeclareEnd() bool {
	active := 0
	allSafe := true
	for c := ChainID(0); c < NumChains; c++ {
		ch := &g.Chains[c]
		if !ch.Active {
			continue
		}
		active++
		if ch.Size >= g.Rules.endGameSize() {
			return true
		}
		if ch.Size < g.Rules.safeSize() {
			allSafe = false
		}
	}
	return active > 0 && allSafe
}

// boardSettled reports whether every active chain is safe and at least one
// has reached the end-game size.
func (g *GameState) boardSettled() bool {
	large := false
	for c := ChainID(0); c < NumChains; c++ {
		ch := &g.Chains[c]
		if !ch.Active {
			continue
		}
		if ch.Size < g.Rules.safeSize() {
			return false
		}
		if ch.Size >= g.Rules.endGameSize() {
			large = true
		}
	}
	return large
}

// finishTurn refills the current player's hand and either ends the game or
// passes the turn.
func (g *GameState) finishTurn(declareEnd bool) {
	if declareEnd {
		g.endGame()
		return
	}

	p := &g.Players[g.CurrentPlayer]
	if g.Rules.ReplaceDeadTiles {
		for i := 0; i < int(p.HandLen); {
			if g.StatusOf(p.Hand[i]) == TileDead {
				p.removeTile(i)
				continue
			}
			i++
		}
	}
	for p.HandLen < g.Rules.handSize() && g.PoolLen > 0 {
		p.Hand[p.HandLen] = g.draw()
		p.HandLen++
	}

	if g.PoolLen == 0 || !g.anyPlayable() || g.boardSettled() {
		g.endGame()
		return
	}

	g.CurrentPlayer = g.NextPlayer(g.CurrentPlayer)
	g.TurnNumber++
	g.Phase = PhasePlaceTile
}

// endGame enters GAME_OVER and scores the game exactly once.
func (g *GameState) endGame() {
	g.Phase = PhaseGameOver
	if !g.HasResults {
		g.Results = g.computeResults()
		g.HasResults = true
	}
}
