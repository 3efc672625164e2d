package engine

import (
	"errors"
	"testing"
)

// mergerBoard lays out American (4 tiles, 500/share) on 1A-4A and Tower
// (6 tiles) on 6A-11A, with 5A in player 0's hand linking them.
func mergerBoard(t *testing.T, players int) GameState {
	t.Helper()
	g := newTestGame(t, players)
	setChain(t, &g, ChainAmerican, "1A", "2A", "3A", "4A")
	setChain(t, &g, ChainTower, "6A", "7A", "8A", "9A", "10A", "11A")
	giveTiles(t, &g, 0, "5A")
	syncPool(&g)
	return g
}

// TestMergerLargestSurvivesAutomatically verifies no choice is asked for when
// one chain is strictly largest.
func TestMergerLargestSurvivesAutomatically(t *testing.T) {
	g := mergerBoard(t, 2)
	grantShares(&g, 1, ChainAmerican, 2)

	out, err := g.PlaceTile(0, tileOf(t, "5A"))
	if err != nil || out != OutcomeMerging {
		t.Fatalf("PlaceTile = %s, %v", out, err)
	}
	if g.Merger.AwaitingSurvivor {
		t.Fatal("engine asked for a survivor with a strict largest chain")
	}
	if g.Merger.Survivor != ChainTower {
		t.Fatalf("survivor = %s, want Tower", g.Merger.Survivor)
	}
	if g.ActingPlayer() != 1 {
		t.Errorf("acting player = %d, want obligation holder 1", g.ActingPlayer())
	}
	// Defunct cells keep their label until every obligation is resolved.
	if c, _ := g.Board[tileOf(t, "1A")].Chain(); c != ChainAmerican {
		t.Error("defunct cells relabelled before obligations were resolved")
	}
	mustInvariants(t, &g)
}

// TestMergerTieBlocksOnChoice verifies the engine waits for the merge maker.
func TestMergerTieBlocksOnChoice(t *testing.T) {
	g := newTestGame(t, 3)
	setChain(t, &g, ChainLuxor, "1A", "2A", "3A")
	setChain(t, &g, ChainFestival, "5A", "6A", "7A")
	giveTiles(t, &g, 0, "4A")
	syncPool(&g)
	grantShares(&g, 2, ChainLuxor, 3)

	if _, err := g.PlaceTile(0, tileOf(t, "4A")); err != nil {
		t.Fatalf("PlaceTile: %v", err)
	}
	if g.Phase != PhaseMerging || !g.Merger.AwaitingSurvivor {
		t.Fatalf("expected pending survivor choice, phase %s", g.Phase)
	}
	if g.Merger.Survivor != NoChain {
		t.Fatal("engine picked a survivor by itself")
	}
	if err := g.SubmitDisposition(2, ChainLuxor, Disposition{Hold: 3}); !errors.Is(err, ErrNoPendingObligation) {
		t.Errorf("disposition before choice: expected ErrNoPendingObligation, got %v", err)
	}
	if err := g.ChooseMergerSurvivor(1, ChainLuxor); !errors.Is(err, ErrIllegalMove) {
		t.Errorf("non-maker choice: expected ErrIllegalMove, got %v", err)
	}
	if err := g.ChooseMergerSurvivor(0, ChainTower); !errors.Is(err, ErrIllegalMove) {
		t.Errorf("non-candidate choice: expected ErrIllegalMove, got %v", err)
	}
	if err := g.ChooseMergerSurvivor(0, ChainFestival); err != nil {
		t.Fatalf("ChooseMergerSurvivor: %v", err)
	}
	o, ok := g.CurrentObligation()
	if !ok || o.Player != 2 || o.Defunct != ChainLuxor || o.Survivor != ChainFestival || o.Shares != 3 {
		t.Fatalf("unexpected obligation %+v (%v)", o, ok)
	}
	if err := g.SubmitDisposition(2, ChainLuxor, Disposition{Hold: 3}); err != nil {
		t.Fatalf("SubmitDisposition: %v", err)
	}
	if g.Phase != PhaseBuyingStocks {
		t.Fatalf("expected BUYING_STOCKS, got %s", g.Phase)
	}
	if g.Chains[ChainLuxor].Active || g.Chains[ChainFestival].Size != 7 {
		t.Errorf("merge not applied: Luxor %+v Festival %+v", g.Chains[ChainLuxor], g.Chains[ChainFestival])
	}
	// Held shares stay with the player for a later re-founding.
	if g.Players[2].Shares[ChainLuxor] != 3 {
		t.Errorf("held shares = %d", g.Players[2].Shares[ChainLuxor])
	}
	mustInvariants(t, &g)
}

// TestMergerNoShareholders verifies a merger with nothing to dispose completes at once.
func TestMergerNoShareholders(t *testing.T) {
	g := mergerBoard(t, 2)
	if _, err := g.PlaceTile(0, tileOf(t, "5A")); err != nil {
		t.Fatalf("PlaceTile: %v", err)
	}
	if g.Phase != PhaseBuyingStocks || g.Merger.Active {
		t.Fatalf("expected completed merger, phase %s", g.Phase)
	}
	if g.Chains[ChainTower].Size != 11 || g.Chains[ChainAmerican].Active {
		t.Errorf("Tower %+v American %+v", g.Chains[ChainTower], g.Chains[ChainAmerican])
	}
	if g.Chains[ChainAmerican].Bank != BankSharesPerChain {
		t.Errorf("American bank = %d", g.Chains[ChainAmerican].Bank)
	}
	mustInvariants(t, &g)
}

// TestMergerObligationOrder verifies seat order starting from the merge maker
// and largest defunct chain first.
func TestMergerObligationOrder(t *testing.T) {
	g := newTestGame(t, 4)
	g.CurrentPlayer = 2
	setChain(t, &g, ChainImperial, "5A", "5B", "5C", "5D", "5E") // survivor
	setChain(t, &g, ChainTower, "6F", "7F", "8F")                // 3, defunct second
	setChain(t, &g, ChainLuxor, "1F", "2F", "3F", "4F")          // 4, defunct first
	// 5F touches Imperial (5E), Luxor (4F) and Tower (6F).
	giveTiles(t, &g, 2, "5F")
	syncPool(&g)
	grantShares(&g, 0, ChainLuxor, 2)
	grantShares(&g, 3, ChainLuxor, 1)
	grantShares(&g, 1, ChainTower, 4)
	grantShares(&g, 2, ChainTower, 1)

	if _, err := g.PlaceTile(2, tileOf(t, "5F")); err != nil {
		t.Fatalf("PlaceTile: %v", err)
	}
	got := g.PendingObligations()
	want := []struct {
		p uint8
		c ChainID
	}{
		{3, ChainLuxor}, {0, ChainLuxor},
		{2, ChainTower}, {1, ChainTower},
	}
	if len(got) != len(want) {
		t.Fatalf("queue length %d, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Player != w.p || got[i].Defunct != w.c {
			t.Errorf("obligation %d = player %d %s, want player %d %s",
				i, got[i].Player, got[i].Defunct, w.p, w.c)
		}
	}

	// Out-of-order submission is refused even though the obligation exists.
	if err := g.SubmitDisposition(1, ChainTower, Disposition{Sell: 4}); !errors.Is(err, ErrIllegalMove) {
		t.Errorf("out of order: expected ErrIllegalMove, got %v", err)
	}
	if err := g.SubmitDisposition(1, ChainLuxor, Disposition{Sell: 1}); !errors.Is(err, ErrNoPendingObligation) {
		t.Errorf("no holding: expected ErrNoPendingObligation, got %v", err)
	}

	steps := []Action{
		{Kind: ActionDisposition, Player: 3, Chain: ChainLuxor, Disposition: Disposition{Sell: 1}},
		{Kind: ActionDisposition, Player: 0, Chain: ChainLuxor, Disposition: Disposition{Trade: 2}},
		{Kind: ActionDisposition, Player: 2, Chain: ChainTower, Disposition: Disposition{Hold: 1}},
	}
	for _, a := range steps {
		if err := g.Apply(a); err != nil {
			t.Fatalf("Apply(%+v): %v", a, err)
		}
		if g.Phase != PhaseMerging {
			t.Fatalf("merger ended early after player %d", a.Player)
		}
	}
	if err := g.Apply(Action{Kind: ActionDisposition, Player: 1, Chain: ChainTower, Disposition: Disposition{Sell: 4}}); err != nil {
		t.Fatalf("last disposition: %v", err)
	}
	if g.Phase != PhaseBuyingStocks || g.CurrentPlayer != 2 {
		t.Fatalf("expected merge maker to buy, phase %s player %d", g.Phase, g.CurrentPlayer)
	}
	if g.Chains[ChainImperial].Size != 5+4+3+1 {
		t.Errorf("Imperial size = %d", g.Chains[ChainImperial].Size)
	}
	if g.Players[0].Shares[ChainImperial] != 1 {
		t.Errorf("trade did not grant Imperial share")
	}
	mustInvariants(t, &g)
}

// TestDispositionScenario checks the sell/trade/hold case: six shares at 500
// merging into a chain with ten bank shares.
func TestDispositionScenario(t *testing.T) {
	g := mergerBoard(t, 2)
	grantShares(&g, 0, ChainAmerican, 6)
	grantShares(&g, 1, ChainTower, 15)

	if _, err := g.PlaceTile(0, tileOf(t, "5A")); err != nil {
		t.Fatalf("PlaceTile: %v", err)
	}
	o, ok := g.CurrentObligation()
	if !ok || o.Price != 500 || o.Shares != 6 {
		t.Fatalf("unexpected obligation %+v", o)
	}
	if g.Chains[ChainTower].Bank != 10 {
		t.Fatalf("Tower bank = %d", g.Chains[ChainTower].Bank)
	}
	cashAfterBonus := g.Players[0].Cash

	before := g
	if err := g.SubmitDisposition(0, ChainAmerican, Disposition{Sell: 3, Trade: 4}); !errors.Is(err, ErrInvalidDisposition) {
		t.Fatalf("3+4 of 6: expected ErrInvalidDisposition, got %v", err)
	}
	if g != before {
		t.Fatal("rejected disposition mutated state")
	}

	if err := g.SubmitDisposition(0, ChainAmerican, Disposition{Sell: 3, Trade: 2, Hold: 1}); err != nil {
		t.Fatalf("SubmitDisposition: %v", err)
	}
	if got := g.Players[0].Cash - cashAfterBonus; got != 1500 {
		t.Errorf("sale paid %d, want 1500", got)
	}
	if g.Players[0].Shares[ChainTower] != 1 {
		t.Errorf("survivor shares = %d, want 1", g.Players[0].Shares[ChainTower])
	}
	if g.Chains[ChainTower].Bank != 9 {
		t.Errorf("Tower bank = %d, want 9", g.Chains[ChainTower].Bank)
	}
	if g.Players[0].Shares[ChainAmerican] != 1 || g.Chains[ChainAmerican].Bank != 24 {
		t.Errorf("American: held %d bank %d", g.Players[0].Shares[ChainAmerican], g.Chains[ChainAmerican].Bank)
	}
	mustInvariants(t, &g)
}

// TestDispositionValidation covers odd trades and survivor bank limits.
func TestDispositionValidation(t *testing.T) {
	g := mergerBoard(t, 2)
	grantShares(&g, 0, ChainAmerican, 6)
	grantShares(&g, 1, ChainTower, 24) // one Tower share left in the bank

	if _, err := g.PlaceTile(0, tileOf(t, "5A")); err != nil {
		t.Fatalf("PlaceTile: %v", err)
	}
	before := g
	cases := []Disposition{
		{Sell: 3, Trade: 3}, // odd trade
		{Trade: 4, Hold: 2}, // needs 2 Tower shares, bank has 1
		{Sell: 1, Hold: 1},  // too few
		{Sell: 6, Trade: 2}, // too many
	}
	for _, d := range cases {
		if err := g.SubmitDisposition(0, ChainAmerican, d); !errors.Is(err, ErrInvalidDisposition) {
			t.Errorf("%+v: expected ErrInvalidDisposition, got %v", d, err)
		}
	}
	if g != before {
		t.Fatal("rejected dispositions mutated state")
	}
	if g.MaxTradeable(g.Merger.Queue[0]) != 2 {
		t.Errorf("MaxTradeable = %d, want 2", g.MaxTradeable(g.Merger.Queue[0]))
	}
	if err := g.SubmitDisposition(0, ChainAmerican, Disposition{Trade: 2, Hold: 4}); err != nil {
		t.Fatalf("valid disposition: %v", err)
	}
}

// TestMergerBonusesPaid verifies bonuses use the defunct chain's pre-merger size.
func TestMergerBonusesPaid(t *testing.T) {
	g := mergerBoard(t, 3)
	grantShares(&g, 1, ChainAmerican, 5)
	grantShares(&g, 2, ChainAmerican, 3)

	if _, err := g.PlaceTile(0, tileOf(t, "5A")); err != nil {
		t.Fatalf("PlaceTile: %v", err)
	}
	// American at 4 tiles: majority 5000, minority 2500.
	if g.Players[1].Cash != 6000+5000 || g.Players[2].Cash != 6000+2500 {
		t.Errorf("cash after bonuses: %d %d", g.Players[1].Cash, g.Players[2].Cash)
	}
	info := g.Merger.Defunct[0]
	if info.Chain != ChainAmerican || info.Size != 4 || info.Bonuses[1] != 5000 {
		t.Errorf("defunct record %+v", info)
	}
}

// TestSplitBonuses covers every tie shape and the round-up rule.
func TestSplitBonuses(t *testing.T) {
	cases := []struct {
		name     string
		holdings [MaxPlayers]uint8
		n        uint8
		maj, min int
		want     [MaxPlayers]int
	}{
		{"none", [MaxPlayers]uint8{}, 3, 5000, 2500, [MaxPlayers]int{}},
		{"sole holder takes both", [MaxPlayers]uint8{0, 4}, 3, 5000, 2500, [MaxPlayers]int{0, 7500}},
		{"clear first and second", [MaxPlayers]uint8{5, 3, 1}, 3, 5000, 2500, [MaxPlayers]int{5000, 2500}},
		{"tie for first", [MaxPlayers]uint8{4, 4, 1}, 3, 5000, 2500, [MaxPlayers]int{3800, 3800}},
		{"three-way tie for first", [MaxPlayers]uint8{2, 2, 2}, 3, 3000, 1500, [MaxPlayers]int{1500, 1500, 1500}},
		{"tie for second", [MaxPlayers]uint8{6, 2, 2, 1}, 4, 6000, 3000, [MaxPlayers]int{6000, 1500, 1500}},
		{"tie for second rounds up", [MaxPlayers]uint8{6, 2, 2}, 3, 5000, 2500, [MaxPlayers]int{5000, 1300, 1300}},
	}
	for _, tc := range cases {
		got := splitBonuses(tc.holdings, tc.n, tc.maj, tc.min)
		if got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
