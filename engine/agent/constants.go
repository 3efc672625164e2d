package agent

import engine "github.com/linanqiu/acquire-game-sub002/engine"

// Strategy selects how a bot weighs risk.
type Strategy uint8

const (
	StrategyCautious   Strategy = iota // 0: keeps a cash reserve, founds cheap chains
	StrategyBalanced                   // 1: default
	StrategyAggressive                 // 2: spends down, founds premium chains
)

var strategyNames = [...]string{"cautious", "balanced", "aggressive"}

func (s Strategy) String() string {
	if int(s) >= len(strategyNames) {
		return "unknown"
	}
	return strategyNames[s]
}

// ParseStrategy maps a name to a Strategy, defaulting to balanced.
func ParseStrategy(name string) Strategy {
	for i, n := range strategyNames {
		if n == name {
			return Strategy(i)
		}
	}
	return StrategyBalanced
}

// cashReserve is the cash a bot keeps back when buying shares.
func (s Strategy) cashReserve() int {
	switch s {
	case StrategyCautious:
		return 2000
	case StrategyAggressive:
		return 0
	default:
		return 800
	}
}

// foundingOrder lists chains in the order a bot prefers to found them.
func (s Strategy) foundingOrder() [engine.NumChains]engine.ChainID {
	if s == StrategyCautious {
		return [engine.NumChains]engine.ChainID{
			engine.ChainTower, engine.ChainLuxor,
			engine.ChainAmerican, engine.ChainWorldwide, engine.ChainFestival,
			engine.ChainImperial, engine.ChainContinental,
		}
	}
	return [engine.NumChains]engine.ChainID{
		engine.ChainContinental, engine.ChainImperial,
		engine.ChainFestival, engine.ChainWorldwide, engine.ChainAmerican,
		engine.ChainLuxor, engine.ChainTower,
	}
}

// Placement scores. Higher is better; ties go to the lowest tile.
const (
	scoreLone      = 0
	scoreGrowOther = 1
	scoreFound     = 4
	scoreGrowOwn   = 5
	scoreMergeOwn  = 8
)
