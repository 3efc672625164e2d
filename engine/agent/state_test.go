package agent

import (
	"testing"

	engine "github.com/linanqiu/acquire-game-sub002/engine"
)

// newStartedGame creates a started game with n seats. Uses the given seed for
// reproducibility.
func newStartedGame(t *testing.T, seed uint64, n int) engine.GameState {
	t.Helper()
	g := engine.NewGame(seed, engine.DefaultHouseRules())
	for i := 0; i < n; i++ {
		if _, err := g.AddPlayer(true); err != nil {
			t.Fatalf("AddPlayer: %v", err)
		}
	}
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return g
}

func mustTile(t *testing.T, s string) engine.Tile {
	t.Helper()
	tile, err := engine.ParseTile(s)
	if err != nil {
		t.Fatalf("ParseTile(%q): %v", s, err)
	}
	return tile
}

// TestBotsPlayFullGame verifies bots only ever submit legal actions and the
// game reaches GAME_OVER, for every strategy mix.
func TestBotsPlayFullGame(t *testing.T) {
	for seed := uint64(1); seed <= 12; seed++ {
		n := 2 + int(seed%5)
		g := newStartedGame(t, seed, n)
		bots := make([]AgentState, n)
		for i := range bots {
			bots[i] = NewAgentState(uint8(i), Strategy(i%3))
		}
		steps := 0
		for !g.IsGameOver() {
			acting := g.ActingPlayer()
			act, err := bots[acting].Decide(&g)
			if err != nil {
				t.Fatalf("seed %d step %d: Decide: %v", seed, steps, err)
			}
			if err := g.Apply(act); err != nil {
				t.Fatalf("seed %d step %d: bot %d (%s) submitted %+v in %s: %v",
					seed, steps, acting, bots[acting].Strategy, act, g.Phase, err)
			}
			steps++
			if steps > 5000 {
				t.Fatalf("seed %d: game did not terminate", seed)
			}
		}
		if len(g.Winners()) == 0 {
			t.Errorf("seed %d: no winners", seed)
		}
	}
}

// TestDecideRefusesWhenNotActing verifies a bot cannot act out of turn.
func TestDecideRefusesWhenNotActing(t *testing.T) {
	g := newStartedGame(t, 3, 2)
	other := g.NextPlayer(g.ActingPlayer())
	a := NewAgentState(other, StrategyBalanced)
	if _, err := a.Decide(&g); err == nil {
		t.Fatal("expected error for non-acting bot")
	}
}

// TestFoundingPreference verifies strategies pick different chains.
func TestFoundingPreference(t *testing.T) {
	g := engine.NewGame(1, engine.DefaultHouseRules())
	g.AddPlayer(true)
	g.AddPlayer(true)

	cautious := NewAgentState(0, StrategyCautious)
	if c, ok := cautious.chooseFounding(&g); !ok || c != engine.ChainTower {
		t.Errorf("cautious founded %s", c)
	}
	bold := NewAgentState(0, StrategyAggressive)
	if c, ok := bold.chooseFounding(&g); !ok || c != engine.ChainContinental {
		t.Errorf("aggressive founded %s", c)
	}

	// Held-over shares of a defunct chain win over the default order.
	g.Players[0].Shares[engine.ChainWorldwide] = 3
	g.Chains[engine.ChainWorldwide].Bank = 22
	if c, _ := bold.chooseFounding(&g); c != engine.ChainWorldwide {
		t.Errorf("expected Worldwide refound, got %s", c)
	}
}

// TestDispositionAlwaysValid verifies the disposition covers every share and
// respects the survivor bank.
func TestDispositionAlwaysValid(t *testing.T) {
	g := engine.NewGame(1, engine.DefaultHouseRules())
	g.AddPlayer(true)
	g.AddPlayer(true)
	g.Chains[engine.ChainLuxor].Bank = 2

	o := engine.Obligation{Player: 0, Defunct: engine.ChainTower, Survivor: engine.ChainLuxor, Shares: 7, Price: 300}
	for _, s := range []Strategy{StrategyCautious, StrategyBalanced, StrategyAggressive} {
		a := NewAgentState(0, s)
		d := a.chooseDisposition(&g, o)
		if d.Total() != int(o.Shares) || d.Trade%2 != 0 || d.Trade/2 > 2 {
			t.Errorf("%s: invalid disposition %+v", s, d)
		}
		if d.Trade != 4 {
			t.Errorf("%s: expected to trade 4, got %d", s, d.Trade)
		}
	}
}

// TestPrefersMergeWithBonus verifies the bot plays the tile that pays it a bonus.
func TestPrefersMergeWithBonus(t *testing.T) {
	g := newStartedGame(t, 11, 2)
	// Clear the board and build Tower (1A-2A) and Festival (4A-6A) through
	// normal play so that 3A merges them.
	g.Board = [engine.NumTiles]engine.Cell{}
	me := g.CurrentPlayer
	other := g.NextPlayer(me)
	for _, s := range []string{"1A", "4A", "5A"} {
		g.Board[mustTile(t, s)] = engine.CellLoose
	}
	setHand := func(p uint8, tiles ...string) {
		g.Players[p].HandLen = 0
		for _, s := range tiles {
			g.Players[p].Hand[g.Players[p].HandLen] = mustTile(t, s)
			g.Players[p].HandLen++
		}
	}
	setHand(me, "2A", "9I", "3A")
	setHand(other, "6A", "12I")

	steps := []engine.Action{
		{Kind: engine.ActionPlaceTile, Player: me, Tile: mustTile(t, "2A")},
		{Kind: engine.ActionFoundChain, Player: me, Chain: engine.ChainTower},
		{Kind: engine.ActionEndTurn, Player: me},
		{Kind: engine.ActionPlaceTile, Player: other, Tile: mustTile(t, "6A")},
		{Kind: engine.ActionFoundChain, Player: other, Chain: engine.ChainFestival},
		{Kind: engine.ActionEndTurn, Player: other},
	}
	for _, act := range steps {
		if err := g.Apply(act); err != nil {
			t.Fatalf("Apply(%s): %v", act.Kind, err)
		}
	}
	// Drop whatever the refill drew.
	setHand(me, "9I", "3A")

	a := NewAgentState(me, StrategyBalanced)
	act, err := a.Decide(&g)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if act.Kind != engine.ActionPlaceTile || act.Tile != mustTile(t, "3A") {
		t.Errorf("expected merge tile 3A, got %s %s", act.Kind, act.Tile)
	}
}

// TestBuysToTakeMajority verifies purchases target a reachable majority.
func TestBuysToTakeMajority(t *testing.T) {
	g := engine.NewGame(1, engine.DefaultHouseRules())
	g.AddPlayer(true)
	g.AddPlayer(true)
	g.Chains[engine.ChainAmerican] = engine.ChainState{Active: true, Size: 3, Bank: 19}
	g.Chains[engine.ChainLuxor] = engine.ChainState{Active: true, Size: 3, Bank: 15}
	g.Players[0].Shares[engine.ChainAmerican] = 3
	g.Players[1].Shares[engine.ChainAmerican] = 3
	g.Players[1].Shares[engine.ChainLuxor] = 10

	a := NewAgentState(0, StrategyBalanced)
	a.Update(&g)
	buy := a.choosePurchase(&g)
	if buy[engine.ChainAmerican] == 0 {
		t.Errorf("expected American purchase, got %v", buy)
	}
	if buy.Total() > 3 {
		t.Errorf("bought %d shares", buy.Total())
	}
}
