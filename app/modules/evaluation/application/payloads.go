package evaluationservice

import (
	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
)

// OperationFailurePayload is the generic business-failure payload for
// operations without richer failure data.
type OperationFailurePayload struct {
	Reason string `json:"reason"`
}

// ModuleListPayload is one page of evaluation modules.
type ModuleListPayload struct {
	Modules []evaluationdb.EvaluationModule `json:"modules"`
	Total   int                             `json:"total"`
}

// EvaluatorListPayload is one page of evaluators.
type EvaluatorListPayload struct {
	Evaluators []evaluationdb.Evaluator `json:"evaluators"`
	Total      int                      `json:"total"`
}

// BattleGroupCreatedPayload is the result of scheduling a battle batch.
type BattleGroupCreatedPayload struct {
	Group   *evaluationdb.BattleGroup       `json:"group"`
	Battles []evaluationdb.EvaluationBattle `json:"battles"`
}

// BattleGroupListPayload is one page of battle groups.
type BattleGroupListPayload struct {
	Groups []evaluationdb.BattleGroup `json:"groups"`
	Total  int                        `json:"total"`
}

// BattleListPayload is a set of battles, with Total set for paged listings.
type BattleListPayload struct {
	Battles []evaluationdb.EvaluationBattle `json:"battles"`
	Total   int                             `json:"total"`
}

// BattleResolvedPayload is the result of resolving one battle.
type BattleResolvedPayload struct {
	Battle *evaluationdb.EvaluationBattle `json:"battle"`
	Group  *evaluationdb.BattleGroup      `json:"group,omitempty"`
}

// GroupEvaluationPayload summarizes one auto-evaluation sweep of a group.
type GroupEvaluationPayload struct {
	GroupID  evaluationtypes.BattleGroupID `json:"group_id"`
	Pending  int                           `json:"pending"`
	Enqueued int                           `json:"enqueued"`
	Judged   int                           `json:"judged"`
	Failed   int                           `json:"failed"`
}

// LeaderboardPagePayload is one sorted leaderboard page.
type LeaderboardPagePayload struct {
	Rows  []evaluationdb.LeaderboardRow `json:"rows"`
	Total int                           `json:"total"`
}

// RatingTrendsPayload is the rating trajectories of the requested assets.
type RatingTrendsPayload struct {
	Trends []RatingTrend `json:"trends"`
}
