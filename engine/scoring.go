package engine

import "sort"

// PlayerResult is one player's final standing.
type PlayerResult struct {
	Player     uint8
	Cash       int
	StockValue int // shares of active chains at final price
	Bonus      int // end-of-game majority/minority bonuses
	Total      int
	Rank       uint8 // competition ranking: 1,1,3
	Winner     bool

	// Shares of chains that are not on the board at the end; worth nothing.
	WorthlessShares [NumChains]uint8
}

// computeResults values every player's holdings: cash, plus shares of active
// chains at their final price, plus final bonuses for every active chain.
func (g *GameState) computeResults() [MaxPlayers]PlayerResult {
	var res [MaxPlayers]PlayerResult
	for p := uint8(0); p < g.NumPlayers; p++ {
		res[p].Player = p
		res[p].Cash = g.Players[p].Cash
	}
	for c := ChainID(0); c < NumChains; c++ {
		ch := &g.Chains[c]
		if !ch.Active {
			for p := uint8(0); p < g.NumPlayers; p++ {
				res[p].WorthlessShares[c] = g.Players[p].Shares[c]
			}
			continue
		}
		price := SharePrice(c, ch.Size)
		bonuses := g.holderBonuses(c, ch.Size)
		for p := uint8(0); p < g.NumPlayers; p++ {
			res[p].StockValue += int(g.Players[p].Shares[c]) * price
			res[p].Bonus += bonuses[p]
		}
	}

	totals := make([]int, g.NumPlayers)
	for p := uint8(0); p < g.NumPlayers; p++ {
		res[p].Total = res[p].Cash + res[p].StockValue + res[p].Bonus
		totals[p] = res[p].Total
	}
	ranks := CompetitionRanks(totals)
	for p := uint8(0); p < g.NumPlayers; p++ {
		res[p].Rank = ranks[p]
		res[p].Winner = ranks[p] == 1
	}
	return res
}

// CompetitionRanks ranks totals descending; equal totals share a rank and the
// next distinct total skips past them ([32000, 32000, 19000] -> [1, 1, 3]).
func CompetitionRanks(totals []int) []uint8 {
	order := make([]int, len(totals))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return totals[order[a]] > totals[order[b]] })

	ranks := make([]uint8, len(totals))
	for pos, idx := range order {
		if pos > 0 && totals[idx] == totals[order[pos-1]] {
			ranks[idx] = ranks[order[pos-1]]
			continue
		}
		ranks[idx] = uint8(pos + 1)
	}
	return ranks
}

// FinalResults returns the stored results in seat order. ok is false until
// the game is over.
func (g *GameState) FinalResults() (res []PlayerResult, ok bool) {
	if !g.HasResults {
		return nil, false
	}
	return append([]PlayerResult(nil), g.Results[:g.NumPlayers]...), true
}

// ProjectedResults scores the current position as if the game ended now.
func (g *GameState) ProjectedResults() []PlayerResult {
	res := g.computeResults()
	return append([]PlayerResult(nil), res[:g.NumPlayers]...)
}

// Winners returns every player ranked first. Empty until the game is over.
func (g *GameState) Winners() []uint8 {
	var out []uint8
	if !g.HasResults {
		return out
	}
	for p := uint8(0); p < g.NumPlayers; p++ {
		if g.Results[p].Winner {
			out = append(out, p)
		}
	}
	return out
}
