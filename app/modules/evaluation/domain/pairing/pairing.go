// Package pairing generates battle pairs for a group according to its
// strategy.
package pairing

import (
	"fmt"
	"math/rand/v2"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
)

// Pair is one scheduled matchup. The A/B slot assignment is fixed at
// generation time and never re-randomized.
type Pair struct {
	AssetA evaluationtypes.AssetID
	AssetB evaluationtypes.AssetID
}

// DefaultRandomPairsFactor sizes a RANDOM_PAIRS group when no explicit battle
// count is requested: factor * len(assets) battles.
const DefaultRandomPairsFactor = 2

// Validate checks the inputs for a strategy before anything is written.
// assetIDs must already be deduplicated by the caller.
func Validate(strategy evaluationtypes.BattleStrategy, assetIDs []evaluationtypes.AssetID, battleCount int) error {
	if !strategy.Valid() {
		return fmt.Errorf("unknown battle strategy %q", strategy)
	}
	if len(assetIDs) < 2 {
		return fmt.Errorf("strategy %s requires at least 2 distinct assets, got %d", strategy, len(assetIDs))
	}
	seen := make(map[evaluationtypes.AssetID]struct{}, len(assetIDs))
	for _, id := range assetIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate asset %q in pairing input", id)
		}
		seen[id] = struct{}{}
	}
	if strategy == evaluationtypes.StrategyRandomPairs && battleCount < 0 {
		return fmt.Errorf("battle count must not be negative, got %d", battleCount)
	}
	return nil
}

// Generate produces the battle pairs for the strategy. For ROUND_ROBIN the
// battleCount argument is ignored and every unordered pair appears exactly
// once; for RANDOM_PAIRS it is the target number of battles (0 means the
// default of DefaultRandomPairsFactor per asset).
func Generate(strategy evaluationtypes.BattleStrategy, assetIDs []evaluationtypes.AssetID, battleCount int) ([]Pair, error) {
	if err := Validate(strategy, assetIDs, battleCount); err != nil {
		return nil, err
	}
	switch strategy {
	case evaluationtypes.StrategyRoundRobin:
		return roundRobin(assetIDs), nil
	default:
		return randomPairs(assetIDs, battleCount), nil
	}
}

// roundRobin schedules every unordered pair exactly once: n*(n-1)/2 battles.
// Pairs, not brackets, so no byes are needed.
func roundRobin(assetIDs []evaluationtypes.AssetID) []Pair {
	n := len(assetIDs)
	pairs := make([]Pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, Pair{AssetA: assetIDs[i], AssetB: assetIDs[j]})
		}
	}
	return pairs
}

// randomPairs samples distinct-asset pairs with replacement. Repeating the
// previous unordered pair back to back is avoided when possible; that is a
// match-quality heuristic, not an invariant.
func randomPairs(assetIDs []evaluationtypes.AssetID, battleCount int) []Pair {
	if battleCount == 0 {
		battleCount = DefaultRandomPairsFactor * len(assetIDs)
	}

	pairs := make([]Pair, 0, battleCount)
	var prev Pair
	for len(pairs) < battleCount {
		i := rand.IntN(len(assetIDs))
		j := rand.IntN(len(assetIDs) - 1)
		if j >= i {
			j++
		}
		p := Pair{AssetA: assetIDs[i], AssetB: assetIDs[j]}
		if len(pairs) > 0 && len(assetIDs) > 2 && sameUnordered(p, prev) {
			continue
		}
		pairs = append(pairs, p)
		prev = p
	}
	return pairs
}

func sameUnordered(a, b Pair) bool {
	return (a.AssetA == b.AssetA && a.AssetB == b.AssetB) ||
		(a.AssetA == b.AssetB && a.AssetB == b.AssetA)
}
