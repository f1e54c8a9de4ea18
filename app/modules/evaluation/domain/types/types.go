// Package evaluationtypes holds the shared value types of the evaluation
// module: identifiers, enums, and the Glicko rating payloads persisted as
// jsonb.
package evaluationtypes

import "github.com/google/uuid"

// ModuleID identifies an evaluation module (one leaderboard each).
type ModuleID uuid.UUID

// EvaluatorID identifies a judging evaluator (LLM or human).
type EvaluatorID uuid.UUID

// BattleID identifies a single pairwise battle.
type BattleID uuid.UUID

// BattleGroupID identifies a scheduled batch of battles.
type BattleGroupID uuid.UUID

// AssetID identifies a candidate asset competing on a leaderboard. Assets are
// owned by an external asset service, so the ID is opaque here.
type AssetID string

func (id ModuleID) String() string      { return uuid.UUID(id).String() }
func (id EvaluatorID) String() string   { return uuid.UUID(id).String() }
func (id BattleID) String() string      { return uuid.UUID(id).String() }
func (id BattleGroupID) String() string { return uuid.UUID(id).String() }

// NewModuleID returns a fresh random ModuleID.
func NewModuleID() ModuleID { return ModuleID(uuid.New()) }

// NewEvaluatorID returns a fresh random EvaluatorID.
func NewEvaluatorID() EvaluatorID { return EvaluatorID(uuid.New()) }

// NewBattleID returns a fresh random BattleID.
func NewBattleID() BattleID { return BattleID(uuid.New()) }

// NewBattleGroupID returns a fresh random BattleGroupID.
func NewBattleGroupID() BattleGroupID { return BattleGroupID(uuid.New()) }

// EvaluatorType distinguishes the judging capability behind an evaluator.
type EvaluatorType string

const (
	EvaluatorTypeLLM   EvaluatorType = "LLM"
	EvaluatorTypeHuman EvaluatorType = "HUMAN"
)

// BattleResult is the judged outcome of a battle. An unset (empty) result
// means the battle is still pending.
type BattleResult string

const (
	BattleResultAWin BattleResult = "A_WIN"
	BattleResultBWin BattleResult = "B_WIN"
	BattleResultDraw BattleResult = "DRAW"
)

// Valid reports whether r is one of the three judged outcomes.
func (r BattleResult) Valid() bool {
	switch r {
	case BattleResultAWin, BattleResultBWin, BattleResultDraw:
		return true
	}
	return false
}

// BattleStrategy selects how a battle group pairs its assets.
type BattleStrategy string

const (
	StrategyRoundRobin  BattleStrategy = "ROUND_ROBIN"
	StrategyRandomPairs BattleStrategy = "RANDOM_PAIRS"
)

// Valid reports whether s names a known pairing strategy.
func (s BattleStrategy) Valid() bool {
	return s == StrategyRoundRobin || s == StrategyRandomPairs
}

// BattleGroupStatus is derived from the group's counters; it is never set
// independently.
type BattleGroupStatus string

const (
	GroupStatusPending    BattleGroupStatus = "PENDING"
	GroupStatusInProgress BattleGroupStatus = "IN_PROGRESS"
	GroupStatusCompleted  BattleGroupStatus = "COMPLETED"
	GroupStatusFailed     BattleGroupStatus = "FAILED"
)

// Terminal reports whether the status admits no further battle resolutions.
func (s BattleGroupStatus) Terminal() bool {
	return s == GroupStatusCompleted || s == GroupStatusFailed
}

// GlickoRating is one rating track entry: the public-scale rating, its
// deviation, and the volatility.
type GlickoRating struct {
	Rating float64 `json:"rating"`
	RD     float64 `json:"rd"`
	Vol    float64 `json:"vol"`
}

// GlickoConfig seeds new rating tracks for a module and carries the tau
// constraint used by the update algorithm.
type GlickoConfig struct {
	Rating float64 `json:"rating" yaml:"rating"`
	RD     float64 `json:"rd" yaml:"rd"`
	Vol    float64 `json:"vol" yaml:"vol"`
	Tau    float64 `json:"tau" yaml:"tau"`
}

// DefaultGlickoConfig matches the conventional Glicko-2 starting values.
var DefaultGlickoConfig = GlickoConfig{Rating: 1500, RD: 350, Vol: 0.06, Tau: 0.5}

// Seed returns the rating a brand-new track starts from.
func (c GlickoConfig) Seed() GlickoRating {
	return GlickoRating{Rating: c.Rating, RD: c.RD, Vol: c.Vol}
}

// DefaultEvaluatorKey is the reserved track key credited when a battle is
// resolved without an evaluator attached.
const DefaultEvaluatorKey = "default"

// ScoresByEvaluator maps an evaluator key (an EvaluatorID string or the
// reserved "default" key) to that evaluator's independent rating track.
// Stored as jsonb on the leaderboard score row.
type ScoresByEvaluator map[string]GlickoRating

// Track returns the rating track for key, falling back to seed when the key
// has never been written.
func (s ScoresByEvaluator) Track(key string, seed GlickoRating) GlickoRating {
	if r, ok := s[key]; ok {
		return r
	}
	return seed
}

// EvaluatorKey normalizes an optional evaluator ID into a track key.
func EvaluatorKey(id *EvaluatorID) string {
	if id == nil {
		return DefaultEvaluatorKey
	}
	return id.String()
}
