package engine

// DefaultAction returns the deterministic fallback decision for the acting
// player, used when a turn times out:
//   - PLACE_TILE: lowest playable tile, or pass when none is playable;
//   - FOUNDING_CHAIN: first available chain in canonical order;
//   - survivor choice: first tied candidate;
//   - disposition: hold everything;
//   - BUYING_STOCKS: buy nothing.
//
// ok is false when nobody can act (lobby or game over).
func (g *GameState) DefaultAction() (a Action, ok bool) {
	a.Player = g.ActingPlayer()
	a.Tile = NoTile
	a.Chain = NoChain

	switch g.Phase {
	case PhasePlaceTile:
		best := NoTile
		for _, t := range g.PlayableTiles(a.Player) {
			if t < best {
				best = t
			}
		}
		if best == NoTile {
			a.Kind = ActionEndTurn
			return a, true
		}
		a.Kind = ActionPlaceTile
		a.Tile = best
		return a, true

	case PhaseFoundingChain:
		avail := g.AvailableChains()
		if len(avail) == 0 {
			return a, false
		}
		a.Kind = ActionFoundChain
		a.Chain = avail[0]
		return a, true

	case PhaseMerging:
		if g.Merger.AwaitingSurvivor {
			a.Kind = ActionChooseSurvivor
			a.Chain = g.Merger.Candidates[0]
			return a, true
		}
		o, found := g.CurrentObligation()
		if !found {
			return a, false
		}
		a.Kind = ActionDisposition
		a.Player = o.Player
		a.Chain = o.Defunct
		a.Disposition = Disposition{Hold: o.Shares}
		return a, true

	case PhaseBuyingStocks:
		a.Kind = ActionEndTurn
		return a, true
	}
	return a, false
}

// MaxTradeable returns the largest even number of defunct shares that can be
// traded under obligation o given the survivor's bank.
func (g *GameState) MaxTradeable(o Obligation) uint8 {
	limit := 2 * int(g.Chains[o.Survivor].Bank)
	n := int(o.Shares)
	if n > limit {
		n = limit
	}
	return uint8(n &^ 1)
}

// Affordable returns how many shares of c the player could buy right now,
// bounded by the bank, cash and the per-turn limit.
func (g *GameState) Affordable(player uint8, c ChainID) uint8 {
	price := g.Price(c)
	if price == 0 {
		return 0
	}
	n := g.Players[player].Cash / price
	if b := int(g.Chains[c].Bank); n > b {
		n = b
	}
	if m := g.Rules.maxPurchase(); n > m {
		n = m
	}
	return uint8(n)
}
