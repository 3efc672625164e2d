package engine

import "testing"

// TestCompetitionRanks verifies equal totals share a rank and the next rank skips.
func TestCompetitionRanks(t *testing.T) {
	cases := []struct {
		totals []int
		want   []uint8
	}{
		{[]int{32000, 32000, 19000}, []uint8{1, 1, 3}},
		{[]int{32000, 32000, 32000, 1000}, []uint8{1, 1, 1, 4}},
		{[]int{100, 300, 200}, []uint8{3, 1, 2}},
		{[]int{5, 9, 9, 5}, []uint8{3, 1, 1, 3}},
	}
	for _, tc := range cases {
		got := CompetitionRanks(tc.totals)
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Errorf("CompetitionRanks(%v) = %v, want %v", tc.totals, got, tc.want)
				break
			}
		}
	}
}

// TestThreeWayTieWinners verifies every first-ranked player wins and the next is 4th.
func TestThreeWayTieWinners(t *testing.T) {
	g := newTestGame(t, 4)
	for p := uint8(0); p < 3; p++ {
		g.Players[p].Cash = 32000
	}
	g.Players[3].Cash = 20000
	g.endGame()

	w := g.Winners()
	if len(w) != 3 {
		t.Fatalf("expected 3 winners, got %v", w)
	}
	if g.Results[3].Rank != 4 || g.Results[3].Winner {
		t.Errorf("fourth player result %+v", g.Results[3])
	}
}

// TestDefunctHoldingsWorthNothing verifies shares of a chain not on the board
// contribute zero and are reported as worthless.
func TestDefunctHoldingsWorthNothing(t *testing.T) {
	g := newTestGame(t, 2)
	grantShares(&g, 0, ChainLuxor, 10) // Luxor not on the board
	setChain(t, &g, ChainAmerican, "1A", "2A")
	grantShares(&g, 1, ChainAmerican, 2)
	g.endGame()

	res, ok := g.FinalResults()
	if !ok {
		t.Fatal("no results after endGame")
	}
	if res[0].Total != 6000 || res[0].StockValue != 0 || res[0].Bonus != 0 {
		t.Errorf("defunct holdings counted: %+v", res[0])
	}
	if res[0].WorthlessShares[ChainLuxor] != 10 {
		t.Errorf("worthless shares not reported: %v", res[0].WorthlessShares)
	}
	// American at 2 tiles: 300/share, sole holder gets 3000 + 1500.
	if want := 6000 + 600 + 4500; res[1].Total != want {
		t.Errorf("player 1 total = %d, want %d", res[1].Total, want)
	}
	if res[1].Rank != 1 || res[0].Rank != 2 {
		t.Errorf("ranks %d %d", res[0].Rank, res[1].Rank)
	}
}

// TestScoringRunsOnce verifies results are frozen at the first GAME_OVER.
func TestScoringRunsOnce(t *testing.T) {
	g := newTestGame(t, 2)
	g.endGame()
	first := g.Results
	g.Players[0].Cash = 999999
	g.endGame()
	if g.Results != first {
		t.Error("results recomputed")
	}
}

// TestProjectedResultsMidGame verifies projection does not end the game.
func TestProjectedResultsMidGame(t *testing.T) {
	g := newTestGame(t, 3)
	setChain(t, &g, ChainTower, "1A", "2A", "3A")
	grantShares(&g, 2, ChainTower, 4)
	res := g.ProjectedResults()
	if len(res) != 3 || g.IsGameOver() || g.HasResults {
		t.Fatalf("projection changed state or returned %d results", len(res))
	}
	if res[2].Rank != 1 {
		t.Errorf("expected player 2 to lead, got %+v", res)
	}
	if _, ok := g.FinalResults(); ok {
		t.Error("FinalResults available before game over")
	}
}
