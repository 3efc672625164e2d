package engine

// neighborhood summarises what surrounds an empty cell.
type neighborhood struct {
	chains    [maxMergeChains]ChainID // distinct adjacent chains
	numChains uint8
	loose     bool // an adjacent unincorporated tile exists
}

// inspect looks at the four neighbours of t.
func (g *GameState) inspect(t Tile) neighborhood {
	var nb neighborhood
	adj, n := t.Neighbors()
	for i := uint8(0); i < n; i++ {
		cell := g.Board[adj[i]]
		if cell == CellLoose {
			nb.loose = true
			continue
		}
		c, ok := cell.Chain()
		if !ok {
			continue
		}
		dup := false
		for j := uint8(0); j < nb.numChains; j++ {
			if nb.chains[j] == c {
				dup = true
				break
			}
		}
		if !dup {
			nb.chains[nb.numChains] = c
			nb.numChains++
		}
	}
	return nb
}

// TileStatus classifies whether a tile in hand can be placed now.
type TileStatus uint8

const (
	TilePlayable TileStatus = iota
	// TileDead would merge two or more safe chains; it never becomes playable.
	TileDead
	// TileBlocked would found an eighth chain; it may become playable later.
	TileBlocked
	// TileOccupied is already on the board.
	TileOccupied
)

// StatusOf classifies t against the current board.
func (g *GameState) StatusOf(t Tile) TileStatus {
	if !t.Valid() || g.Board[t].Occupied() {
		return TileOccupied
	}
	nb := g.inspect(t)
	safe := 0
	for i := uint8(0); i < nb.numChains; i++ {
		if g.IsSafe(nb.chains[i]) {
			safe++
		}
	}
	if safe >= 2 {
		return TileDead
	}
	if nb.numChains == 0 && nb.loose && len(g.AvailableChains()) == 0 {
		return TileBlocked
	}
	return TilePlayable
}

// PlayableTiles returns the tiles in a player's hand that can be placed now.
func (g *GameState) PlayableTiles(player uint8) []Tile {
	if player >= g.NumPlayers {
		return nil
	}
	p := &g.Players[player]
	var out []Tile
	for i := uint8(0); i < p.HandLen; i++ {
		if g.StatusOf(p.Hand[i]) == TilePlayable {
			out = append(out, p.Hand[i])
		}
	}
	return out
}

// HasPlayableTile reports whether the player can place any tile.
func (g *GameState) HasPlayableTile(player uint8) bool {
	p := &g.Players[player]
	for i := uint8(0); i < p.HandLen; i++ {
		if g.StatusOf(p.Hand[i]) == TilePlayable {
			return true
		}
	}
	return false
}

// anyPlayable reports whether any seated player can place a tile.
func (g *GameState) anyPlayable() bool {
	for p := uint8(0); p < g.NumPlayers; p++ {
		if g.HasPlayableTile(p) {
			return true
		}
	}
	return false
}

// labelGroup assigns chain c to start and to every unincorporated tile
// connected to it, returning the number of cells labelled. start must hold
// a loose tile.
func (g *GameState) labelGroup(start Tile, c ChainID) uint8 {
	var stack [NumTiles]Tile
	top := 0
	label := chainCell(c)

	g.Board[start] = label
	stack[top] = start
	top++
	var n uint8 = 1

	for top > 0 {
		top--
		cur := stack[top]
		adj, k := cur.Neighbors()
		for i := uint8(0); i < k; i++ {
			if g.Board[adj[i]] != CellLoose {
				continue
			}
			g.Board[adj[i]] = label
			stack[top] = adj[i]
			top++
			n++
		}
	}
	return n
}

// relabel moves every cell of chain from to chain to.
func (g *GameState) relabel(from, to ChainID) {
	src, dst := chainCell(from), chainCell(to)
	for t := range g.Board {
		if g.Board[t] == src {
			g.Board[t] = dst
		}
	}
}
