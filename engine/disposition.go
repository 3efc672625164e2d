package engine

import "fmt"

// SubmitDisposition resolves the player's obligation for a defunct chain.
// Obligations are resolved strictly in queue order: one defunct chain at a
// time, shareholders in seat order starting from the merge maker.
func (g *GameState) SubmitDisposition(player uint8, defunct ChainID, d Disposition) error {
	if g.Phase == PhaseGameOver {
		return illegalf("game is over")
	}
	m := &g.Merger
	idx := -1
	if g.Phase == PhaseMerging && m.Active && !m.AwaitingSurvivor {
		for i := m.QueueHead; i < m.QueueLen; i++ {
			if m.Queue[i].Player == player && m.Queue[i].Defunct == defunct {
				idx = int(i)
				break
			}
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: player %d owes nothing for %s", ErrNoPendingObligation, player, defunct)
	}
	if idx != int(m.QueueHead) {
		head := m.Queue[m.QueueHead]
		return illegalf("waiting on player %d for %s", head.Player, head.Defunct)
	}

	o := m.Queue[idx]
	if err := g.validateDisposition(o, d); err != nil {
		return err
	}

	p := &g.Players[player]
	if p.Shares[o.Defunct] < o.Shares {
		return invariantf("player %d holds %d %s shares, obligation recorded %d",
			player, p.Shares[o.Defunct], o.Defunct, o.Shares)
	}
	returned := d.Sell + d.Trade
	received := d.Trade / 2

	p.Cash += int(d.Sell) * o.Price
	p.Shares[o.Defunct] -= returned
	g.Chains[o.Defunct].Bank += returned
	p.Shares[o.Survivor] += received
	g.Chains[o.Survivor].Bank -= received

	g.LastAction = LastActionInfo{Kind: ActionDisposition, Player: player, Tile: NoTile, Chain: o.Defunct}
	m.QueueHead++
	if m.QueueHead == m.QueueLen {
		g.completeMerger()
	}
	return nil
}

func (g *GameState) validateDisposition(o Obligation, d Disposition) error {
	if d.Total() != int(o.Shares) {
		return fmt.Errorf("%w: disposition covers %d shares, player holds %d",
			ErrInvalidDisposition, d.Total(), o.Shares)
	}
	if d.Trade%2 != 0 {
		return fmt.Errorf("%w: trade count %d is odd", ErrInvalidDisposition, d.Trade)
	}
	if bank := g.Chains[o.Survivor].Bank; d.Trade/2 > bank {
		return fmt.Errorf("%w: trading %d needs %d %s shares, bank has %d",
			ErrInvalidDisposition, d.Trade, d.Trade/2, o.Survivor, bank)
	}
	return nil
}

// CurrentObligation returns the obligation at the head of the queue.
func (g *GameState) CurrentObligation() (Obligation, bool) {
	m := &g.Merger
	if g.Phase != PhaseMerging || !m.Active || m.AwaitingSurvivor || m.QueueHead >= m.QueueLen {
		return Obligation{}, false
	}
	return m.Queue[m.QueueHead], true
}
