package engine

// HouseRules holds configurable game rule settings.
type HouseRules struct {
	StartingCash     int
	HandSize         uint8 // 1..MaxHandSize
	MaxPurchase      uint8 // shares per turn
	SafeSize         uint8 // a chain at or above this size cannot be absorbed
	EndGameSize      uint8 // any chain at or above this size allows declaring the end
	StarterTiles     bool  // each player places one tile at start; lowest tile goes first
	ReplaceDeadTiles bool
}

// DefaultHouseRules returns the standard rules.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		StartingCash:     6000,
		HandSize:         MaxHandSize,
		MaxPurchase:      3,
		SafeSize:         11,
		EndGameSize:      41,
		StarterTiles:     true,
		ReplaceDeadTiles: true,
	}
}

// handSize returns the effective hand size, treating 0 as MaxHandSize.
func (r *HouseRules) handSize() uint8 {
	if r.HandSize == 0 || r.HandSize > MaxHandSize {
		return MaxHandSize
	}
	return r.HandSize
}

// SharePrice returns the per-share price of a chain of the given size.
// Chains smaller than two tiles have no price.
func SharePrice(c ChainID, size uint8) int {
	var base int
	switch {
	case size < 2:
		return 0
	case size <= 5:
		base = int(size) * 100
	case size <= 10:
		base = 600
	case size <= 20:
		base = 700
	case size <= 30:
		base = 800
	case size <= 40:
		base = 900
	default:
		base = 1000
	}
	return base + int(c.Tier())*100
}

// MajorityBonus is paid to the largest shareholder of a chain.
func MajorityBonus(c ChainID, size uint8) int { return 10 * SharePrice(c, size) }

// MinorityBonus is paid to the second largest shareholder of a chain.
func MinorityBonus(c ChainID, size uint8) int { return 5 * SharePrice(c, size) }

func (r *HouseRules) safeSize() uint8 {
	if r.SafeSize == 0 {
		return 11
	}
	return r.SafeSize
}

func (r *HouseRules) endGameSize() uint8 {
	if r.EndGameSize == 0 {
		return 41
	}
	return r.EndGameSize
}

func (r *HouseRules) maxPurchase() int {
	if r.MaxPurchase == 0 {
		return 3
	}
	return int(r.MaxPurchase)
}
