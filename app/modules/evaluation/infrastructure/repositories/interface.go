package evaluationdb

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
)

// LeaderboardSort names the supported leaderboard sort keys.
type LeaderboardSort string

const (
	SortByRating  LeaderboardSort = "rating"
	SortByBattles LeaderboardSort = "battles"
	SortByWins    LeaderboardSort = "wins"
	SortByWinRate LeaderboardSort = "winRate"
)

// LeaderboardQuery carries the filter/sort/pagination knobs for a
// leaderboard page.
type LeaderboardQuery struct {
	// EvaluatorKey selects which rating track sorts and reports; empty means
	// the reserved "default" track.
	EvaluatorKey string
	Page         int
	Limit        int
	SortBy       LeaderboardSort
	Ascending    bool
	MinBattles   int
	Search       string
}

// LeaderboardRow is one leaderboard entry joined with battle-derived
// statistics (both A-side and B-side perspectives summed, completed battles
// only).
type LeaderboardRow struct {
	AssetID      evaluationtypes.AssetID           `bun:"asset_id"`
	Scores       evaluationtypes.ScoresByEvaluator `bun:"scores_by_evaluator,type:jsonb"`
	GamesPlayed  int                               `bun:"games_played"`
	TotalBattles int                               `bun:"total_battles"`
	Wins         int                               `bun:"wins"`
	Losses       int                               `bun:"losses"`
	Draws        int                               `bun:"draws"`
	CreatedAt    time.Time                         `bun:"created_at"`
	UpdatedAt    time.Time                         `bun:"updated_at"`
}

// MostActiveBattler is the asset with the highest combined A+B participation
// count among completed battles.
type MostActiveBattler struct {
	AssetID     evaluationtypes.AssetID `bun:"asset_id"`
	BattleCount int                     `bun:"battle_count"`
}

// LeaderboardStats summarizes a module's leaderboard for one rating track.
type LeaderboardStats struct {
	TotalParticipants int
	TotalBattles      int
	AverageRating     float64
	HighestRating     float64
	LowestRating      float64
	MostActive        *MostActiveBattler
	LastUpdated       time.Time
}

// Repository is the persistence surface of the evaluation module. Every
// method takes a bun.IDB so operations compose inside a caller-owned
// transaction.
type Repository interface {
	// Modules.
	CreateModule(ctx context.Context, db bun.IDB, module *EvaluationModule) error
	GetModule(ctx context.Context, db bun.IDB, id evaluationtypes.ModuleID) (*EvaluationModule, error)
	ListModules(ctx context.Context, db bun.IDB, page, limit int, search string) ([]EvaluationModule, int, error)
	AddParticipants(ctx context.Context, db bun.IDB, id evaluationtypes.ModuleID, assetIDs []evaluationtypes.AssetID) error

	// Evaluators.
	CreateEvaluator(ctx context.Context, db bun.IDB, evaluator *Evaluator) error
	GetEvaluator(ctx context.Context, db bun.IDB, id evaluationtypes.EvaluatorID) (*Evaluator, error)
	ListEvaluators(ctx context.Context, db bun.IDB, page, limit int, search string) ([]Evaluator, int, error)
	LinkEvaluator(ctx context.Context, db bun.IDB, link *ModuleEvaluator) error
	ListModuleEvaluators(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, activeOnly bool) ([]Evaluator, error)

	// Battle groups and battles.
	InsertBattleGroup(ctx context.Context, db bun.IDB, group *BattleGroup) error
	InsertBattles(ctx context.Context, db bun.IDB, battles []*EvaluationBattle) error
	GetBattleGroup(ctx context.Context, db bun.IDB, id evaluationtypes.BattleGroupID) (*BattleGroup, error)
	ListBattleGroups(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, page, limit int) ([]BattleGroup, int, error)
	GetBattle(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*EvaluationBattle, error)
	ListGroupBattles(ctx context.Context, db bun.IDB, groupID evaluationtypes.BattleGroupID, pendingOnly bool) ([]EvaluationBattle, error)
	ListModuleBattles(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, page, limit int) ([]EvaluationBattle, int, error)
	MarkBattleResolved(ctx context.Context, db bun.IDB, battle *EvaluationBattle) error
	MarkBattleFailed(ctx context.Context, db bun.IDB, battleID evaluationtypes.BattleID, reason string) error
	BumpGroupCounters(ctx context.Context, db bun.IDB, groupID evaluationtypes.BattleGroupID, completedDelta, failedDelta int, failureThreshold float64) (*BattleGroup, error)

	// Leaderboard scores.
	LockScorePair(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, assetA, assetB evaluationtypes.AssetID) (scoreA, scoreB *LeaderboardScore, err error)
	UpdateScore(ctx context.Context, db bun.IDB, score *LeaderboardScore) error

	// Leaderboard reads.
	LeaderboardPage(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, q LeaderboardQuery) ([]LeaderboardRow, int, error)
	LeaderboardStats(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, evaluatorKey string) (*LeaderboardStats, error)
	RecentBattles(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, since time.Time, limit int) ([]EvaluationBattle, error)
	AssetBattleHistory(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, assetID evaluationtypes.AssetID, evaluatorID *evaluationtypes.EvaluatorID, limit int) ([]EvaluationBattle, error)
	CountCompletedBattles(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID) (int, error)
}

// Impl is the bun-backed Repository.
type Impl struct{}

var _ Repository = (*Impl)(nil)

// New returns the bun-backed repository.
func New() *Impl { return &Impl{} }
