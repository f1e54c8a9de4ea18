package evaluationdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
)

// EvaluationModule owns one leaderboard and the Glicko seed for its rating
// tracks.
type EvaluationModule struct {
	bun.BaseModel `bun:"table:evaluation_modules,alias:em"`

	ID                  evaluationtypes.ModuleID     `bun:"id,pk,type:uuid"`
	DisplayName         string                       `bun:"display_name,notnull"`
	Description         string                       `bun:"description"`
	EvaluationCriteria  string                       `bun:"evaluation_criteria"`
	GlickoConfig        evaluationtypes.GlickoConfig `bun:"glicko_config,type:jsonb,notnull"`
	ParticipantAssetIDs []evaluationtypes.AssetID    `bun:"participant_asset_ids,type:jsonb,notnull,default:'[]'"`
	IsActive            bool                         `bun:"is_active,notnull,default:true"`
	CreatedAt           time.Time                    `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt           time.Time                    `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

var _ bun.BeforeInsertHook = (*EvaluationModule)(nil)

func (m *EvaluationModule) BeforeInsert(ctx context.Context, _ *bun.InsertQuery) error {
	if uuid.UUID(m.ID) == uuid.Nil {
		m.ID = evaluationtypes.NewModuleID()
	}
	if m.GlickoConfig == (evaluationtypes.GlickoConfig{}) {
		m.GlickoConfig = evaluationtypes.DefaultGlickoConfig
	}
	if m.ParticipantAssetIDs == nil {
		m.ParticipantAssetIDs = []evaluationtypes.AssetID{}
	}
	return nil
}

// Evaluator is a judging capability. Exactly one of the LLM / human field
// sets is meaningful, selected by Type.
type Evaluator struct {
	bun.BaseModel `bun:"table:evaluators,alias:ev"`

	ID              evaluationtypes.EvaluatorID   `bun:"id,pk,type:uuid"`
	Name            string                        `bun:"name,notnull"`
	Type            evaluationtypes.EvaluatorType `bun:"type,notnull"`
	LLMModelName    string                        `bun:"llm_model_name"`
	EvaluationFocus string                        `bun:"evaluation_focus"`
	HumanUserID     string                        `bun:"human_user_id"`
	IsActive        bool                          `bun:"is_active,notnull,default:true"`
	Config          map[string]any                `bun:"config,type:jsonb"`
	CreatedAt       time.Time                     `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time                     `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

var _ bun.BeforeInsertHook = (*Evaluator)(nil)

func (e *Evaluator) BeforeInsert(ctx context.Context, _ *bun.InsertQuery) error {
	if uuid.UUID(e.ID) == uuid.Nil {
		e.ID = evaluationtypes.NewEvaluatorID()
	}
	return nil
}

// ModuleEvaluator links an evaluator to a module. Weight is reserved for
// future consensus scoring; unique per (module, evaluator).
type ModuleEvaluator struct {
	bun.BaseModel `bun:"table:module_evaluators,alias:me"`

	ID          int64                       `bun:"id,pk,autoincrement"`
	ModuleID    evaluationtypes.ModuleID    `bun:"evaluation_module_id,type:uuid,notnull"`
	EvaluatorID evaluationtypes.EvaluatorID `bun:"evaluator_id,type:uuid,notnull"`
	Weight      float64                     `bun:"weight,notnull,default:1"`
	IsActive    bool                        `bun:"is_active,notnull,default:true"`
	CreatedAt   time.Time                   `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// BattleGroup is a scheduled batch of battles. Status is always the derived
// value of the counters; it is persisted only so listings can filter without
// recomputing, and every counter write re-derives it in the same transaction.
type BattleGroup struct {
	bun.BaseModel `bun:"table:battle_groups,alias:bg"`

	ID               evaluationtypes.BattleGroupID     `bun:"id,pk,type:uuid"`
	ModuleID         evaluationtypes.ModuleID          `bun:"evaluation_module_id,type:uuid,notnull"`
	AssetIDs         []evaluationtypes.AssetID         `bun:"asset_ids,type:jsonb,notnull"`
	Strategy         evaluationtypes.BattleStrategy    `bun:"strategy,notnull"`
	TotalBattles     int                               `bun:"total_battles,notnull"`
	CompletedBattles int                               `bun:"completed_battles,notnull,default:0"`
	FailedBattles    int                               `bun:"failed_battles,notnull,default:0"`
	Status           evaluationtypes.BattleGroupStatus `bun:"status,notnull,default:'PENDING'"`
	Description      string                            `bun:"description"`
	StartedAt        *time.Time                        `bun:"started_at"`
	CompletedAt      *time.Time                        `bun:"completed_at"`
	CreatedAt        time.Time                         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time                         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

var _ bun.BeforeInsertHook = (*BattleGroup)(nil)

func (g *BattleGroup) BeforeInsert(ctx context.Context, _ *bun.InsertQuery) error {
	if uuid.UUID(g.ID) == uuid.Nil {
		g.ID = evaluationtypes.NewBattleGroupID()
	}
	if g.Status == "" {
		g.Status = evaluationtypes.GroupStatusPending
	}
	return nil
}

// EvaluationBattle is one pairwise comparison. A battle is pending until
// Result is set; Result, CompletedAt and the four rating snapshots are
// written together and never change afterwards.
type EvaluationBattle struct {
	bun.BaseModel `bun:"table:evaluation_battles,alias:eb"`

	ID            evaluationtypes.BattleID       `bun:"id,pk,type:uuid"`
	ModuleID      evaluationtypes.ModuleID       `bun:"evaluation_module_id,type:uuid,notnull"`
	BattleGroupID *evaluationtypes.BattleGroupID `bun:"battle_group_id,type:uuid"`
	AssetAID      evaluationtypes.AssetID        `bun:"asset_a_id,notnull"`
	AssetBID      evaluationtypes.AssetID        `bun:"asset_b_id,notnull"`
	EvaluatorID   *evaluationtypes.EvaluatorID   `bun:"evaluator_id,type:uuid"`
	Result        *evaluationtypes.BattleResult  `bun:"result"`
	WinnerID      *evaluationtypes.AssetID       `bun:"winner_id"`
	Reason        string                         `bun:"reason"`

	AssetARatingBefore *float64 `bun:"asset_a_rating_before"`
	AssetARatingAfter  *float64 `bun:"asset_a_rating_after"`
	AssetBRatingBefore *float64 `bun:"asset_b_rating_before"`
	AssetBRatingAfter  *float64 `bun:"asset_b_rating_after"`

	CompletedAt   *time.Time `bun:"completed_at"`
	FailedAt      *time.Time `bun:"failed_at"`
	FailureReason string     `bun:"failure_reason"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

var _ bun.BeforeInsertHook = (*EvaluationBattle)(nil)

func (b *EvaluationBattle) BeforeInsert(ctx context.Context, _ *bun.InsertQuery) error {
	if uuid.UUID(b.ID) == uuid.Nil {
		b.ID = evaluationtypes.NewBattleID()
	}
	return nil
}

// Resolved reports whether the battle already carries a result.
func (b *EvaluationBattle) Resolved() bool { return b.Result != nil }

// Failed reports whether the battle was marked failed.
func (b *EvaluationBattle) Failed() bool { return b.FailedAt != nil }

// Settled reports whether the battle can no longer change: it was either
// resolved or marked failed.
func (b *EvaluationBattle) Settled() bool { return b.Resolved() || b.Failed() }

// LeaderboardScore is the per-(module, asset) rating state, one independent
// Glicko track per evaluator key. This is the only continuously mutated row
// in the module and the only contended shared resource.
type LeaderboardScore struct {
	bun.BaseModel `bun:"table:leaderboard_scores,alias:ls"`

	ID                int64                             `bun:"id,pk,autoincrement"`
	ModuleID          evaluationtypes.ModuleID          `bun:"evaluation_module_id,type:uuid,notnull"`
	AssetID           evaluationtypes.AssetID           `bun:"asset_id,notnull"`
	ScoresByEvaluator evaluationtypes.ScoresByEvaluator `bun:"scores_by_evaluator,type:jsonb,notnull,default:'{}'"`
	GamesPlayed       int                               `bun:"games_played,notnull,default:0"`
	CreatedAt         time.Time                         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time                         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
