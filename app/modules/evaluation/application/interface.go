package evaluationservice

import (
	"context"
	"time"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
	"github.com/inf-monkeys/arena/internal/results"
)

// CreateModuleInput carries the fields for a new evaluation module.
type CreateModuleInput struct {
	DisplayName        string
	Description        string
	EvaluationCriteria string
	GlickoConfig       *evaluationtypes.GlickoConfig
	ParticipantAssets  []evaluationtypes.AssetID
}

// CreateEvaluatorInput carries the fields for a new evaluator.
type CreateEvaluatorInput struct {
	Name            string
	Type            evaluationtypes.EvaluatorType
	LLMModelName    string
	EvaluationFocus string
	HumanUserID     string
	Config          map[string]any
}

// CreateBattleGroupInput carries the scheduling request for a battle batch.
type CreateBattleGroupInput struct {
	ModuleID     evaluationtypes.ModuleID
	AssetIDs     []evaluationtypes.AssetID
	Strategy     evaluationtypes.BattleStrategy
	BattleCount  int
	Description  string
	EvaluatorID  *evaluationtypes.EvaluatorID
	AutoEvaluate bool
}

// ResolveBattleInput carries one judged verdict for a pending battle.
type ResolveBattleInput struct {
	BattleID    evaluationtypes.BattleID
	Result      evaluationtypes.BattleResult
	Reason      string
	EvaluatorID *evaluationtypes.EvaluatorID
}

// RatingTrendPoint is one completed battle's effect on an asset's rating.
type RatingTrendPoint struct {
	BattleID    evaluationtypes.BattleID `json:"battle_id"`
	Rating      float64                  `json:"rating"`
	CompletedAt time.Time                `json:"completed_at"`
}

// RatingTrend is the rating trajectory of one asset on one evaluator track.
type RatingTrend struct {
	AssetID evaluationtypes.AssetID `json:"asset_id"`
	Points  []RatingTrendPoint      `json:"points"`
}

// JudgeRequest describes one battle for an automated judge.
type JudgeRequest struct {
	AssetA             evaluationtypes.AssetID
	AssetB             evaluationtypes.AssetID
	EvaluationCriteria string
	EvaluationFocus    string
	Model              string
}

// JudgeVerdict is an automated judge's decision on one battle.
type JudgeVerdict struct {
	Result evaluationtypes.BattleResult
	Reason string
}

// Judge renders verdicts for battles. Implemented by the LLM judge; a human
// evaluator submits verdicts through ResolveBattle instead.
type Judge interface {
	Judge(ctx context.Context, req JudgeRequest) (JudgeVerdict, error)
}

// BattleQueue enqueues battles for background judging.
type BattleQueue interface {
	EnqueueBattleJudging(ctx context.Context, battleID evaluationtypes.BattleID) error
}

// Service is the public surface of the evaluation module.
type Service interface {
	// Modules.
	CreateModule(ctx context.Context, input CreateModuleInput) (results.OperationResult, error)
	GetModule(ctx context.Context, id evaluationtypes.ModuleID) (results.OperationResult, error)
	ListModules(ctx context.Context, page, limit int, search string) (results.OperationResult, error)
	AddParticipants(ctx context.Context, id evaluationtypes.ModuleID, assetIDs []evaluationtypes.AssetID) (results.OperationResult, error)

	// Evaluators.
	CreateEvaluator(ctx context.Context, input CreateEvaluatorInput) (results.OperationResult, error)
	GetEvaluator(ctx context.Context, id evaluationtypes.EvaluatorID) (results.OperationResult, error)
	ListEvaluators(ctx context.Context, page, limit int, search string) (results.OperationResult, error)
	LinkEvaluator(ctx context.Context, moduleID evaluationtypes.ModuleID, evaluatorID evaluationtypes.EvaluatorID, weight float64) (results.OperationResult, error)
	ListModuleEvaluators(ctx context.Context, moduleID evaluationtypes.ModuleID, activeOnly bool) (results.OperationResult, error)

	// Battle scheduling and resolution.
	CreateBattleGroup(ctx context.Context, input CreateBattleGroupInput) (results.OperationResult, error)
	GetBattleGroup(ctx context.Context, id evaluationtypes.BattleGroupID) (results.OperationResult, error)
	ListBattleGroups(ctx context.Context, moduleID evaluationtypes.ModuleID, page, limit int) (results.OperationResult, error)
	GetBattle(ctx context.Context, id evaluationtypes.BattleID) (results.OperationResult, error)
	ListGroupBattles(ctx context.Context, groupID evaluationtypes.BattleGroupID, pendingOnly bool) (results.OperationResult, error)
	ListModuleBattles(ctx context.Context, moduleID evaluationtypes.ModuleID, page, limit int) (results.OperationResult, error)
	ResolveBattle(ctx context.Context, input ResolveBattleInput) (results.OperationResult, error)
	ReportBattleFailure(ctx context.Context, battleID evaluationtypes.BattleID, reason string) (results.OperationResult, error)
	AutoEvaluateBattle(ctx context.Context, battleID evaluationtypes.BattleID) (results.OperationResult, error)
	AutoEvaluateBattleGroup(ctx context.Context, groupID evaluationtypes.BattleGroupID) (results.OperationResult, error)

	// Leaderboard and analytics.
	GetLeaderboard(ctx context.Context, moduleID evaluationtypes.ModuleID, query evaluationdb.LeaderboardQuery) (results.OperationResult, error)
	GetLeaderboardStats(ctx context.Context, moduleID evaluationtypes.ModuleID, evaluatorKey string) (results.OperationResult, error)
	GetAssetHistory(ctx context.Context, moduleID evaluationtypes.ModuleID, assetID evaluationtypes.AssetID, evaluatorID *evaluationtypes.EvaluatorID, limit int) (results.OperationResult, error)
	GetRecentBattles(ctx context.Context, moduleID evaluationtypes.ModuleID, since time.Time, limit int) (results.OperationResult, error)
	GetRatingTrends(ctx context.Context, moduleID evaluationtypes.ModuleID, assetIDs []evaluationtypes.AssetID, evaluatorID *evaluationtypes.EvaluatorID, limit int) (results.OperationResult, error)
	RenderRatingTrendChart(ctx context.Context, moduleID evaluationtypes.ModuleID, assetIDs []evaluationtypes.AssetID, evaluatorID *evaluationtypes.EvaluatorID, limit int) ([]byte, error)
	ExportLeaderboard(ctx context.Context, moduleID evaluationtypes.ModuleID, evaluatorKey string) ([]byte, error)
}

var _ Service = (*EvaluationService)(nil)
