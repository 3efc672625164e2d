package engine

import "testing"

// newTestGame returns an n-player game already in PLACE_TILE with an empty
// board and empty hands, so tests can lay out positions by hand.
func newTestGame(t *testing.T, n int) GameState {
	t.Helper()
	g := NewGame(42, DefaultHouseRules())
	for i := 0; i < n; i++ {
		if _, err := g.AddPlayer(false); err != nil {
			t.Fatalf("AddPlayer: %v", err)
		}
	}
	g.Phase = PhasePlaceTile
	g.TurnNumber = 1
	return g
}

func tileOf(t *testing.T, s string) Tile {
	t.Helper()
	tile, err := ParseTile(s)
	if err != nil {
		t.Fatalf("ParseTile(%q): %v", s, err)
	}
	return tile
}

// setChain lays the given tiles on the board as an active chain.
func setChain(t *testing.T, g *GameState, c ChainID, tiles ...string) {
	t.Helper()
	for _, s := range tiles {
		g.Board[tileOf(t, s)] = chainCell(c)
	}
	g.Chains[c].Active = true
	g.Chains[c].Size += uint8(len(tiles))
}

// setLoose lays unincorporated tiles on the board.
func setLoose(t *testing.T, g *GameState, tiles ...string) {
	t.Helper()
	for _, s := range tiles {
		g.Board[tileOf(t, s)] = CellLoose
	}
}

// giveTiles appends tiles to a player's hand.
func giveTiles(t *testing.T, g *GameState, p uint8, tiles ...string) {
	t.Helper()
	for _, s := range tiles {
		pl := &g.Players[p]
		pl.Hand[pl.HandLen] = tileOf(t, s)
		pl.HandLen++
	}
}

// grantShares moves n shares of c from the bank to player p.
func grantShares(g *GameState, p uint8, c ChainID, n uint8) {
	g.Chains[c].Bank -= n
	g.Players[p].Shares[c] += n
}

// syncPool rebuilds the draw pool from tiles neither on the board nor in a hand.
func syncPool(g *GameState) {
	var used [NumTiles]bool
	for i := range g.Board {
		used[i] = g.Board[i].Occupied()
	}
	for p := uint8(0); p < g.NumPlayers; p++ {
		for i := uint8(0); i < g.Players[p].HandLen; i++ {
			used[g.Players[p].Hand[i]] = true
		}
	}
	g.PoolLen = 0
	for i := 0; i < NumTiles; i++ {
		if !used[i] {
			g.Pool[g.PoolLen] = Tile(i)
			g.PoolLen++
		}
	}
}

func mustInvariants(t *testing.T, g *GameState) {
	t.Helper()
	if err := g.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}
