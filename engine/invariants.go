package engine

// CheckInvariants verifies the conservation and consistency rules every
// accepted transition must preserve. Any failure wraps ErrInvariantViolation.
func (g *GameState) CheckInvariants() error {
	var cells [NumChains]int
	for t := range g.Board {
		if c, ok := g.Board[t].Chain(); ok {
			if !c.Valid() {
				return invariantf("cell %s labelled with unknown chain %d", Tile(t), c)
			}
			cells[c]++
		}
	}

	for c := ChainID(0); c < NumChains; c++ {
		ch := &g.Chains[c]
		held := int(ch.Bank)
		for p := uint8(0); p < g.NumPlayers; p++ {
			held += int(g.Players[p].Shares[c])
		}
		if held != BankSharesPerChain {
			return invariantf("%s has %d shares in circulation, want %d", c, held, BankSharesPerChain)
		}
		if !ch.Active && (ch.Size != 0 || cells[c] != 0) {
			return invariantf("inactive chain %s occupies %d cells", c, cells[c])
		}
		if int(ch.Size) != cells[c] {
			return invariantf("%s size %d but %d cells on board", c, ch.Size, cells[c])
		}
	}

	for p := uint8(0); p < g.NumPlayers; p++ {
		pl := &g.Players[p]
		if pl.Cash < 0 {
			return invariantf("player %d has negative cash %d", p, pl.Cash)
		}
		if pl.HandLen > MaxHandSize {
			return invariantf("player %d holds %d tiles", p, pl.HandLen)
		}
	}

	if g.Merger.Active {
		m := &g.Merger
		for i := m.QueueHead; i < m.QueueLen; i++ {
			o := m.Queue[i]
			if !g.Chains[o.Defunct].Active || o.Survivor != m.Survivor {
				return invariantf("obligation for %s does not match merger into %s", o.Defunct, m.Survivor)
			}
		}
	}
	return nil
}
