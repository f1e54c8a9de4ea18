package evaluationdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
)

// InsertBattleGroup inserts the group row. Callers insert the group and its
// battles inside one transaction so a group is never visible with partial
// battles.
func (r *Impl) InsertBattleGroup(ctx context.Context, db bun.IDB, group *BattleGroup) error {
	if _, err := db.NewInsert().Model(group).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert battle group: %w", err)
	}
	return nil
}

// InsertBattles bulk-inserts pending battle rows.
func (r *Impl) InsertBattles(ctx context.Context, db bun.IDB, battles []*EvaluationBattle) error {
	if len(battles) == 0 {
		return nil
	}
	if _, err := db.NewInsert().Model(&battles).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert battles: %w", err)
	}
	return nil
}

// GetBattleGroup fetches a group by ID.
func (r *Impl) GetBattleGroup(ctx context.Context, db bun.IDB, id evaluationtypes.BattleGroupID) (*BattleGroup, error) {
	group := new(BattleGroup)
	err := db.NewSelect().Model(group).Where("bg.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get battle group: %w", err)
	}
	return group, nil
}

// ListBattleGroups returns one page of a module's groups, newest first.
func (r *Impl) ListBattleGroups(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, page, limit int) ([]BattleGroup, int, error) {
	var groups []BattleGroup
	total, err := db.NewSelect().
		Model(&groups).
		Where("bg.evaluation_module_id = ?", moduleID).
		Order("bg.created_at DESC").
		Offset(pageOffset(page, limit)).
		Limit(limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list battle groups: %w", err)
	}
	return groups, total, nil
}

// GetBattle fetches a battle by ID.
func (r *Impl) GetBattle(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*EvaluationBattle, error) {
	battle := new(EvaluationBattle)
	err := db.NewSelect().Model(battle).Where("eb.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get battle: %w", err)
	}
	return battle, nil
}

// ListGroupBattles returns a group's battles in creation order, optionally
// only the ones still awaiting a result.
func (r *Impl) ListGroupBattles(ctx context.Context, db bun.IDB, groupID evaluationtypes.BattleGroupID, pendingOnly bool) ([]EvaluationBattle, error) {
	var battles []EvaluationBattle
	q := db.NewSelect().Model(&battles).Where("eb.battle_group_id = ?", groupID)
	if pendingOnly {
		q = q.Where("eb.result IS NULL").Where("eb.failed_at IS NULL")
	}
	if err := q.Order("eb.created_at ASC").Order("eb.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list group battles: %w", err)
	}
	return battles, nil
}

// ListModuleBattles returns one page of a module's battles, newest first.
func (r *Impl) ListModuleBattles(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, page, limit int) ([]EvaluationBattle, int, error) {
	var battles []EvaluationBattle
	total, err := db.NewSelect().
		Model(&battles).
		Where("eb.evaluation_module_id = ?", moduleID).
		Order("eb.created_at DESC").
		Offset(pageOffset(page, limit)).
		Limit(limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list module battles: %w", err)
	}
	return battles, total, nil
}

// MarkBattleResolved writes the battle's result, winner, reason, evaluator,
// rating snapshots and completion time. The WHERE result IS NULL guard makes
// double resolution lose the race instead of overwriting: zero affected rows
// is reported as ErrAlreadyResolved.
func (r *Impl) MarkBattleResolved(ctx context.Context, db bun.IDB, battle *EvaluationBattle) error {
	res, err := db.NewUpdate().
		Model(battle).
		Column(
			"result", "winner_id", "reason", "evaluator_id",
			"asset_a_rating_before", "asset_a_rating_after",
			"asset_b_rating_before", "asset_b_rating_after",
			"completed_at",
		).
		Set("updated_at = current_timestamp").
		Where("eb.id = ?", battle.ID).
		Where("eb.result IS NULL").
		Where("eb.failed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark battle resolved: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

// MarkBattleFailed marks a pending battle as failed. Same guard discipline
// as MarkBattleResolved: a settled battle stays settled.
func (r *Impl) MarkBattleFailed(ctx context.Context, db bun.IDB, battleID evaluationtypes.BattleID, reason string) error {
	now := time.Now().UTC()
	res, err := db.NewUpdate().
		Model((*EvaluationBattle)(nil)).
		Set("failed_at = ?", now).
		Set("failure_reason = ?", reason).
		Set("updated_at = current_timestamp").
		Where("eb.id = ?", battleID).
		Where("eb.result IS NULL").
		Where("eb.failed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark battle failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

// BumpGroupCounters locks the group row, applies the counter deltas,
// re-derives the status and maintains startedAt/completedAt, all inside the
// caller's transaction. Returns the updated group.
func (r *Impl) BumpGroupCounters(ctx context.Context, db bun.IDB, groupID evaluationtypes.BattleGroupID, completedDelta, failedDelta int, failureThreshold float64) (*BattleGroup, error) {
	group := new(BattleGroup)
	err := db.NewSelect().Model(group).Where("bg.id = ?", groupID).For("UPDATE").Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock battle group: %w", err)
	}

	group.CompletedBattles += completedDelta
	group.FailedBattles += failedDelta
	if group.CompletedBattles+group.FailedBattles > group.TotalBattles {
		return nil, fmt.Errorf("battle group %s counters exceed total (%d completed, %d failed, %d total)",
			groupID, group.CompletedBattles, group.FailedBattles, group.TotalBattles)
	}

	now := time.Now().UTC()
	if group.StartedAt == nil {
		group.StartedAt = &now
	}
	group.Status = evaluationtypes.DeriveGroupStatus(group.CompletedBattles, group.FailedBattles, group.TotalBattles, failureThreshold)
	if group.Status.Terminal() && group.CompletedAt == nil {
		group.CompletedAt = &now
	}

	_, err = db.NewUpdate().
		Model(group).
		Column("completed_battles", "failed_battles", "status", "started_at", "completed_at").
		Set("updated_at = current_timestamp").
		Where("bg.id = ?", group.ID).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update battle group counters: %w", err)
	}
	return group, nil
}

// RecentBattles returns completed battles since the given time, newest first.
func (r *Impl) RecentBattles(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, since time.Time, limit int) ([]EvaluationBattle, error) {
	var battles []EvaluationBattle
	err := db.NewSelect().
		Model(&battles).
		Where("eb.evaluation_module_id = ?", moduleID).
		Where("eb.result IS NOT NULL").
		Where("eb.completed_at >= ?", since).
		Order("eb.completed_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent battles: %w", err)
	}
	return battles, nil
}

// AssetBattleHistory returns the completed battles an asset took part in,
// newest first, optionally restricted to one evaluator.
func (r *Impl) AssetBattleHistory(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, assetID evaluationtypes.AssetID, evaluatorID *evaluationtypes.EvaluatorID, limit int) ([]EvaluationBattle, error) {
	var battles []EvaluationBattle
	q := db.NewSelect().
		Model(&battles).
		Where("eb.evaluation_module_id = ?", moduleID).
		Where("(eb.asset_a_id = ? OR eb.asset_b_id = ?)", assetID, assetID).
		Where("eb.result IS NOT NULL")
	if evaluatorID != nil {
		q = q.Where("eb.evaluator_id = ?", *evaluatorID)
	}
	err := q.Order("eb.completed_at DESC").Limit(limit).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list asset battle history: %w", err)
	}
	return battles, nil
}

// CountCompletedBattles counts a module's battles with a non-null result.
func (r *Impl) CountCompletedBattles(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID) (int, error) {
	count, err := db.NewSelect().
		Model((*EvaluationBattle)(nil)).
		Where("eb.evaluation_module_id = ?", moduleID).
		Where("eb.result IS NOT NULL").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed battles: %w", err)
	}
	return count, nil
}
