// Package engine implements the rules of a tile-laying hotel chain game:
// placing tiles, founding chains, resolving mergers, trading stock and
// scoring.
//
// GameState is a flat value type. Copying it is a complete snapshot, which
// the service layer uses for persistence and reconnect resync. The engine
// never blocks, logs or allocates on the action path.
package engine

const (
	BoardCols = 12
	BoardRows = 9
	NumTiles  = BoardCols * BoardRows

	NumChains          = 7
	BankSharesPerChain = 25

	MinPlayers  = 2
	MaxPlayers  = 6
	MaxHandSize = 6

	// A tile has four neighbours, so at most four chains meet in a merger.
	maxMergeChains = 4
	maxObligations = (maxMergeChains - 1) * MaxPlayers
)

// PlayerState holds one player's holdings and hand.
type PlayerState struct {
	Cash    int
	Shares  [NumChains]uint8
	Hand    [MaxHandSize]Tile
	HandLen uint8
	Bot     bool
}

// HasTile reports whether t is in the player's hand.
func (p *PlayerState) HasTile(t Tile) bool {
	return p.handIndex(t) >= 0
}

func (p *PlayerState) handIndex(t Tile) int {
	for i := uint8(0); i < p.HandLen; i++ {
		if p.Hand[i] == t {
			return int(i)
		}
	}
	return -1
}

// removeTile deletes the tile at index i, keeping the hand order.
func (p *PlayerState) removeTile(i int) {
	copy(p.Hand[i:p.HandLen], p.Hand[i+1:p.HandLen])
	p.HandLen--
	p.Hand[p.HandLen] = NoTile
}

// HandTiles returns the hand as a slice (allocates).
func (p *PlayerState) HandTiles() []Tile {
	out := make([]Tile, p.HandLen)
	copy(out, p.Hand[:p.HandLen])
	return out
}

// ChainState is the live state of one chain. Inactive chains have no cells.
type ChainState struct {
	Active bool
	Size   uint8
	Bank   uint8
}

// DefunctInfo records one absorbed chain with its size and price frozen at
// merger time, plus the bonuses paid for it.
type DefunctInfo struct {
	Chain   ChainID
	Size    uint8
	Price   int
	Bonuses [MaxPlayers]int
}

// MergerState tracks a merger from tile placement until every obligation is
// resolved. After completion it is kept (Active = false) as a record of the
// last merger.
type MergerState struct {
	Active           bool
	AwaitingSurvivor bool
	Tile             Tile
	Maker            uint8

	Chains    [maxMergeChains]ChainID // largest first
	NumChains uint8

	Candidates    [maxMergeChains]ChainID // tied for largest
	NumCandidates uint8

	Survivor   ChainID
	Defunct    [maxMergeChains - 1]DefunctInfo // resolution order
	NumDefunct uint8

	Queue     [maxObligations]Obligation
	QueueLen  uint8
	QueueHead uint8
}

// GameState holds the complete, self-contained state of one game.
type GameState struct {
	Players    [MaxPlayers]PlayerState
	NumPlayers uint8

	Board  [NumTiles]Cell
	Chains [NumChains]ChainState

	Pool    [NumTiles]Tile // draw from the end
	PoolLen uint8

	Phase         Phase
	CurrentPlayer uint8
	TurnNumber    uint16
	PendingTile   Tile // tile awaiting a chain name during FOUNDING_CHAIN
	Merger        MergerState
	LastAction    LastActionInfo

	Results    [MaxPlayers]PlayerResult
	HasResults bool

	Seed  uint64
	RNG   uint64
	Rules HouseRules
}

// ---------------------------------------------------------------------------
// xorshift64 RNG
// ---------------------------------------------------------------------------

func (g *GameState) nextRand() uint64 {
	x := g.RNG
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	g.RNG = x
	return x
}

// randN returns a random number in [0, n).
func (g *GameState) randN(n uint64) uint64 {
	return g.nextRand() % n
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// NewGame initializes a lobby with the given seed and rules. The seed fully
// determines the tile draw order.
func NewGame(seed uint64, rules HouseRules) GameState {
	var g GameState
	g.Seed = seed
	g.RNG = seed
	if g.RNG == 0 {
		g.RNG = 1 // xorshift can't start at 0
	}
	g.Rules = rules
	g.Phase = PhaseLobby
	g.PendingTile = NoTile
	g.Merger.Survivor = NoChain
	for c := range g.Chains {
		g.Chains[c].Bank = BankSharesPerChain
	}
	for t := 0; t < NumTiles; t++ {
		g.Pool[t] = Tile(t)
	}
	g.PoolLen = NumTiles
	return g
}

// AddPlayer seats a new player in the lobby and returns its index.
func (g *GameState) AddPlayer(bot bool) (uint8, error) {
	if g.Phase != PhaseLobby {
		return 0, illegalf("players can only join in the lobby")
	}
	if g.NumPlayers >= MaxPlayers {
		return 0, illegalf("game is full (%d players)", MaxPlayers)
	}
	idx := g.NumPlayers
	p := &g.Players[idx]
	p.Cash = g.Rules.StartingCash
	p.Bot = bot
	for i := range p.Hand {
		p.Hand[i] = NoTile
	}
	g.NumPlayers++
	return idx, nil
}

// Start shuffles the tile pool, optionally places one starter tile per
// player to pick the first player, deals hands and enters PLACE_TILE.
func (g *GameState) Start() error {
	if g.Phase != PhaseLobby {
		return illegalf("game already started")
	}
	if g.NumPlayers < MinPlayers {
		return illegalf("need at least %d players, have %d", MinPlayers, g.NumPlayers)
	}

	// Fisher-Yates shuffle.
	for i := int(g.PoolLen) - 1; i > 0; i-- {
		j := int(g.randN(uint64(i + 1)))
		g.Pool[i], g.Pool[j] = g.Pool[j], g.Pool[i]
	}

	g.CurrentPlayer = 0
	if g.Rules.StarterTiles {
		lowest := NoTile
		for p := uint8(0); p < g.NumPlayers; p++ {
			t := g.draw()
			g.Board[t] = CellLoose
			if t < lowest {
				lowest = t
				g.CurrentPlayer = p
			}
		}
	}

	hand := g.Rules.handSize()
	for c := uint8(0); c < hand; c++ {
		for p := uint8(0); p < g.NumPlayers; p++ {
			g.Players[p].Hand[c] = g.draw()
			g.Players[p].HandLen++
		}
	}

	g.Phase = PhasePlaceTile
	g.TurnNumber = 1
	return nil
}

// draw pops the next tile from the pool. Callers check PoolLen first.
func (g *GameState) draw() Tile {
	g.PoolLen--
	t := g.Pool[g.PoolLen]
	g.Pool[g.PoolLen] = NoTile
	return t
}

// ---------------------------------------------------------------------------
// Query methods
// ---------------------------------------------------------------------------

// IsGameOver returns true once the game has reached GAME_OVER.
func (g *GameState) IsGameOver() bool { return g.Phase == PhaseGameOver }

// ActingPlayer returns the index of the player who must act next.
// During a merger the obligation at the head of the queue, or the merge
// maker while a survivor must be chosen, takes priority.
func (g *GameState) ActingPlayer() uint8 {
	if g.Phase == PhaseMerging && g.Merger.Active {
		if g.Merger.AwaitingSurvivor {
			return g.Merger.Maker
		}
		if g.Merger.QueueHead < g.Merger.QueueLen {
			return g.Merger.Queue[g.Merger.QueueHead].Player
		}
	}
	return g.CurrentPlayer
}

// NextPlayer returns the next player after current in seat order.
func (g *GameState) NextPlayer(current uint8) uint8 {
	return (current + 1) % g.NumPlayers
}

// Price returns the current share price of a chain, 0 if inactive.
func (g *GameState) Price(c ChainID) int {
	if !c.Valid() || !g.Chains[c].Active {
		return 0
	}
	return SharePrice(c, g.Chains[c].Size)
}

// IsSafe reports whether a chain has reached the safe size.
func (g *GameState) IsSafe(c ChainID) bool {
	return c.Valid() && g.Chains[c].Active && g.Chains[c].Size >= g.Rules.safeSize()
}

// ActiveChains returns the chains currently on the board.
func (g *GameState) ActiveChains() []ChainID {
	var out []ChainID
	for c := ChainID(0); c < NumChains; c++ {
		if g.Chains[c].Active {
			out = append(out, c)
		}
	}
	return out
}

// AvailableChains returns the chains that can be founded.
func (g *GameState) AvailableChains() []ChainID {
	var out []ChainID
	for c := ChainID(0); c < NumChains; c++ {
		if !g.Chains[c].Active {
			out = append(out, c)
		}
	}
	return out
}

// PendingObligations returns the unresolved obligations in resolution order.
func (g *GameState) PendingObligations() []Obligation {
	m := &g.Merger
	if !m.Active || m.QueueHead >= m.QueueLen {
		return nil
	}
	out := make([]Obligation, 0, m.QueueLen-m.QueueHead)
	return append(out, m.Queue[m.QueueHead:m.QueueLen]...)
}

// ObligationsFor returns the unresolved obligations owed by one player.
func (g *GameState) ObligationsFor(player uint8) []Obligation {
	var out []Obligation
	for _, o := range g.PendingObligations() {
		if o.Player == player {
			out = append(out, o)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Snapshot (Save / Restore)
// ---------------------------------------------------------------------------

// Snapshot is a complete value-copy of GameState.
type Snapshot GameState

// Save returns a snapshot of the current game state.
func (g *GameState) Save() Snapshot { return Snapshot(*g) }

// Restore replaces the game state with the given snapshot.
func (g *GameState) Restore(s Snapshot) { *g = GameState(s) }
