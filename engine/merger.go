package engine

// startMerger records the chains joined by tile t and, when one chain is
// strictly largest, resolves the survivor immediately.
func (g *GameState) startMerger(t Tile, nb neighborhood) {
	m := &g.Merger
	*m = MergerState{Active: true, Tile: t, Maker: g.CurrentPlayer, Survivor: NoChain}

	m.NumChains = nb.numChains
	copy(m.Chains[:], nb.chains[:nb.numChains])
	// Insertion sort: size descending, canonical order on ties.
	for i := 1; i < int(m.NumChains); i++ {
		for j := i; j > 0 && g.mergeLess(m.Chains[j], m.Chains[j-1]); j-- {
			m.Chains[j], m.Chains[j-1] = m.Chains[j-1], m.Chains[j]
		}
	}

	largest := g.Chains[m.Chains[0]].Size
	for i := uint8(0); i < m.NumChains; i++ {
		if g.Chains[m.Chains[i]].Size == largest {
			m.Candidates[m.NumCandidates] = m.Chains[i]
			m.NumCandidates++
		}
	}

	g.Phase = PhaseMerging
	if m.NumCandidates > 1 {
		m.AwaitingSurvivor = true
		return
	}
	g.resolveSurvivor(m.Chains[0])
}

// mergeLess orders chains for resolution: larger first, then canonical order.
func (g *GameState) mergeLess(a, b ChainID) bool {
	sa, sb := g.Chains[a].Size, g.Chains[b].Size
	if sa != sb {
		return sa > sb
	}
	return a < b
}

// ChooseMergerSurvivor picks the surviving chain when several merging chains
// are tied for largest. Only the player who placed the merging tile decides.
func (g *GameState) ChooseMergerSurvivor(player uint8, c ChainID) error {
	if g.Phase == PhaseGameOver {
		return illegalf("game is over")
	}
	m := &g.Merger
	if g.Phase != PhaseMerging || !m.Active || !m.AwaitingSurvivor {
		return illegalf("no merger survivor choice is pending")
	}
	if player != m.Maker {
		return illegalf("player %d did not place the merging tile", player)
	}
	found := false
	for i := uint8(0); i < m.NumCandidates; i++ {
		if m.Candidates[i] == c {
			found = true
			break
		}
	}
	if !found {
		return illegalf("chain %s is not tied for largest", c)
	}
	m.AwaitingSurvivor = false
	g.LastAction = LastActionInfo{Kind: ActionChooseSurvivor, Player: player, Tile: m.Tile, Chain: c}
	g.resolveSurvivor(c)
	return nil
}

// resolveSurvivor fixes the survivor, pays bonuses for every defunct chain
// and queues the disposition obligations.
func (g *GameState) resolveSurvivor(survivor ChainID) {
	m := &g.Merger
	m.Survivor = survivor
	m.NumDefunct = 0
	for i := uint8(0); i < m.NumChains; i++ {
		c := m.Chains[i]
		if c == survivor {
			continue
		}
		size := g.Chains[c].Size
		info := DefunctInfo{Chain: c, Size: size, Price: SharePrice(c, size)}
		info.Bonuses = g.holderBonuses(c, size)
		for p := uint8(0); p < g.NumPlayers; p++ {
			g.Players[p].Cash += info.Bonuses[p]
		}
		m.Defunct[m.NumDefunct] = info
		m.NumDefunct++
	}

	m.QueueLen, m.QueueHead = 0, 0
	for d := uint8(0); d < m.NumDefunct; d++ {
		info := &m.Defunct[d]
		for i := uint8(0); i < g.NumPlayers; i++ {
			p := (m.Maker + i) % g.NumPlayers
			held := g.Players[p].Shares[info.Chain]
			if held == 0 {
				continue
			}
			m.Queue[m.QueueLen] = Obligation{
				Player:   p,
				Defunct:  info.Chain,
				Survivor: survivor,
				Shares:   held,
				Price:    info.Price,
			}
			m.QueueLen++
		}
	}

	if m.QueueLen == 0 {
		g.completeMerger()
	}
}

// completeMerger folds the defunct chains and the merging tile into the
// survivor, retires the defunct chains and moves on to stock purchase.
func (g *GameState) completeMerger() {
	m := &g.Merger
	s := m.Survivor
	for d := uint8(0); d < m.NumDefunct; d++ {
		c := m.Defunct[d].Chain
		g.relabel(c, s)
		g.Chains[s].Size += g.Chains[c].Size
		g.Chains[c].Active = false
		g.Chains[c].Size = 0
	}
	g.Chains[s].Size += g.labelGroup(m.Tile, s)
	m.Active = false
	g.Phase = PhaseBuyingStocks
}

// holderBonuses computes majority and minority bonuses for chain c at the
// given size from the current holdings.
func (g *GameState) holderBonuses(c ChainID, size uint8) [MaxPlayers]int {
	var holdings [MaxPlayers]uint8
	for p := uint8(0); p < g.NumPlayers; p++ {
		holdings[p] = g.Players[p].Shares[c]
	}
	return splitBonuses(holdings, g.NumPlayers, MajorityBonus(c, size), MinorityBonus(c, size))
}

// splitBonuses distributes majority and minority bonuses:
//   - a lone shareholder takes both;
//   - players tied for first share majority+minority and nobody gets second;
//   - otherwise first takes majority and players tied for second share minority.
//
// Every split is rounded up to the nearest 100.
func splitBonuses(holdings [MaxPlayers]uint8, n uint8, majority, minority int) [MaxPlayers]int {
	var out [MaxPlayers]int
	var first, second uint8
	for p := uint8(0); p < n; p++ {
		if holdings[p] > first {
			first = holdings[p]
		}
	}
	if first == 0 {
		return out
	}
	for p := uint8(0); p < n; p++ {
		if holdings[p] < first && holdings[p] > second {
			second = holdings[p]
		}
	}

	var numFirst, numSecond int
	for p := uint8(0); p < n; p++ {
		switch holdings[p] {
		case first:
			numFirst++
		case second:
			if second > 0 {
				numSecond++
			}
		}
	}

	if numFirst > 1 || second == 0 {
		each := splitRoundUp(majority+minority, numFirst)
		for p := uint8(0); p < n; p++ {
			if holdings[p] == first {
				out[p] = each
			}
		}
		return out
	}

	minEach := splitRoundUp(minority, numSecond)
	for p := uint8(0); p < n; p++ {
		switch holdings[p] {
		case first:
			out[p] = majority
		case second:
			out[p] = minEach
		}
	}
	return out
}

// splitRoundUp divides total among k players, rounding each share up to the
// nearest 100.
func splitRoundUp(total, k int) int {
	if k <= 0 {
		return 0
	}
	return (total + 100*k - 1) / (100 * k) * 100
}
