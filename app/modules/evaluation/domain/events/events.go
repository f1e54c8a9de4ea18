// Package evaluationevents defines the topics and payloads the evaluation
// module publishes after commits. Consumers (UI push, notification fan-out)
// live outside this module.
package evaluationevents

import (
	"time"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
)

const (
	// BattleResolvedTopic fires once per battle, after the resolving
	// transaction has committed.
	BattleResolvedTopic = "evaluation.battle.resolved"

	// BattleGroupCompletedTopic fires when a group's derived status turns
	// terminal (COMPLETED or FAILED).
	BattleGroupCompletedTopic = "evaluation.battlegroup.completed"
)

// BattleResolvedPayloadV1 describes a battle that just received its result,
// including the rating movement on both sides.
type BattleResolvedPayloadV1 struct {
	ModuleID      evaluationtypes.ModuleID       `json:"module_id"`
	BattleID      evaluationtypes.BattleID       `json:"battle_id"`
	BattleGroupID *evaluationtypes.BattleGroupID `json:"battle_group_id,omitempty"`
	EvaluatorID   *evaluationtypes.EvaluatorID   `json:"evaluator_id,omitempty"`
	AssetA        evaluationtypes.AssetID        `json:"asset_a"`
	AssetB        evaluationtypes.AssetID        `json:"asset_b"`
	Result        evaluationtypes.BattleResult   `json:"result"`
	WinnerID      *evaluationtypes.AssetID       `json:"winner_id,omitempty"`
	RatingABefore float64                        `json:"rating_a_before"`
	RatingAAfter  float64                        `json:"rating_a_after"`
	RatingBBefore float64                        `json:"rating_b_before"`
	RatingBAfter  float64                        `json:"rating_b_after"`
	CompletedAt   time.Time                      `json:"completed_at"`
}

// BattleGroupCompletedPayloadV1 describes a group reaching a terminal status.
type BattleGroupCompletedPayloadV1 struct {
	ModuleID         evaluationtypes.ModuleID          `json:"module_id"`
	BattleGroupID    evaluationtypes.BattleGroupID     `json:"battle_group_id"`
	Status           evaluationtypes.BattleGroupStatus `json:"status"`
	TotalBattles     int                               `json:"total_battles"`
	CompletedBattles int                               `json:"completed_battles"`
	FailedBattles    int                               `json:"failed_battles"`
	CompletedAt      time.Time                         `json:"completed_at"`
}
