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

// LockScorePair locks both participants' score rows FOR UPDATE, creating
// rows that do not exist yet. Rows are always locked in ascending asset-ID
// order regardless of argument order, so two transactions touching the same
// pair cannot deadlock on each other. A unique-key race on creation means a
// concurrent transaction inserted the same row first; that surfaces as
// ErrConcurrencyConflict and the whole transaction should be retried.
func (r *Impl) LockScorePair(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, assetA, assetB evaluationtypes.AssetID) (*LeaderboardScore, *LeaderboardScore, error) {
	first, second := assetA, assetB
	if second < first {
		first, second = second, first
	}

	firstScore, err := r.lockOrCreateScore(ctx, db, moduleID, first)
	if err != nil {
		return nil, nil, err
	}
	secondScore, err := r.lockOrCreateScore(ctx, db, moduleID, second)
	if err != nil {
		return nil, nil, err
	}

	if first == assetA {
		return firstScore, secondScore, nil
	}
	return secondScore, firstScore, nil
}

func (r *Impl) lockOrCreateScore(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, assetID evaluationtypes.AssetID) (*LeaderboardScore, error) {
	score := new(LeaderboardScore)
	err := db.NewSelect().
		Model(score).
		Where("ls.evaluation_module_id = ?", moduleID).
		Where("ls.asset_id = ?", assetID).
		For("UPDATE").
		Scan(ctx)
	if err == nil {
		return score, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to lock leaderboard score: %w", err)
	}

	fresh := &LeaderboardScore{
		ModuleID:          moduleID,
		AssetID:           assetID,
		ScoresByEvaluator: evaluationtypes.ScoresByEvaluator{},
	}
	if _, err := db.NewInsert().Model(fresh).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConcurrencyConflict
		}
		return nil, fmt.Errorf("failed to create leaderboard score: %w", err)
	}

	// Re-read under lock so the new row stays covered for the rest of the
	// transaction.
	locked := new(LeaderboardScore)
	err = db.NewSelect().
		Model(locked).
		Where("ls.evaluation_module_id = ?", moduleID).
		Where("ls.asset_id = ?", assetID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to lock created leaderboard score: %w", err)
	}
	return locked, nil
}

// UpdateScore writes the rating tracks and games-played counter back.
func (r *Impl) UpdateScore(ctx context.Context, db bun.IDB, score *LeaderboardScore) error {
	_, err := db.NewUpdate().
		Model(score).
		Column("scores_by_evaluator", "games_played").
		Set("updated_at = current_timestamp").
		Where("ls.id = ?", score.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update leaderboard score: %w", err)
	}
	return nil
}

// battleStats builds the per-asset win/loss/draw aggregate over a module's
// completed battles. Each battle contributes two rows, one from each
// participant's perspective, via UNION ALL.
func battleStats(db bun.IDB, moduleID evaluationtypes.ModuleID) *bun.SelectQuery {
	aSide := db.NewSelect().
		Model((*EvaluationBattle)(nil)).
		ColumnExpr("eb.asset_a_id AS asset_id").
		ColumnExpr("CASE eb.result WHEN 'A_WIN' THEN 'win' WHEN 'B_WIN' THEN 'loss' ELSE 'draw' END AS outcome").
		Where("eb.evaluation_module_id = ?", moduleID).
		Where("eb.result IS NOT NULL")

	bSide := db.NewSelect().
		Model((*EvaluationBattle)(nil)).
		ColumnExpr("eb.asset_b_id AS asset_id").
		ColumnExpr("CASE eb.result WHEN 'B_WIN' THEN 'win' WHEN 'A_WIN' THEN 'loss' ELSE 'draw' END AS outcome").
		Where("eb.evaluation_module_id = ?", moduleID).
		Where("eb.result IS NOT NULL")

	return db.NewSelect().
		ColumnExpr("p.asset_id").
		ColumnExpr("count(*) AS total_battles").
		ColumnExpr("count(*) FILTER (WHERE p.outcome = 'win') AS wins").
		ColumnExpr("count(*) FILTER (WHERE p.outcome = 'loss') AS losses").
		ColumnExpr("count(*) FILTER (WHERE p.outcome = 'draw') AS draws").
		TableExpr("(?) AS p", aSide.UnionAll(bSide)).
		GroupExpr("p.asset_id")
}

// ratingExpr extracts one track's rating from the jsonb score map, 0 when
// the track does not exist yet.
const ratingExpr = "COALESCE((ls.scores_by_evaluator -> ? ->> 'rating')::double precision, 0)"

// LeaderboardPage returns one sorted page of a module's leaderboard joined
// with battle statistics.
func (r *Impl) LeaderboardPage(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, q LeaderboardQuery) ([]LeaderboardRow, int, error) {
	key := q.EvaluatorKey
	if key == "" {
		key = evaluationtypes.DefaultEvaluatorKey
	}

	var rows []LeaderboardRow
	sel := db.NewSelect().
		ColumnExpr("ls.asset_id").
		ColumnExpr("ls.scores_by_evaluator").
		ColumnExpr("ls.games_played").
		ColumnExpr("COALESCE(bs.total_battles, 0) AS total_battles").
		ColumnExpr("COALESCE(bs.wins, 0) AS wins").
		ColumnExpr("COALESCE(bs.losses, 0) AS losses").
		ColumnExpr("COALESCE(bs.draws, 0) AS draws").
		ColumnExpr("ls.created_at").
		ColumnExpr("ls.updated_at").
		TableExpr("leaderboard_scores AS ls").
		Join("LEFT JOIN (?) AS bs ON bs.asset_id = ls.asset_id", battleStats(db, moduleID)).
		Where("ls.evaluation_module_id = ?", moduleID)

	if q.Search != "" {
		sel = sel.Where("ls.asset_id ILIKE ?", "%"+q.Search+"%")
	}
	if q.MinBattles > 0 {
		sel = sel.Where("COALESCE(bs.total_battles, 0) >= ?", q.MinBattles)
	}

	dir := "DESC"
	if q.Ascending {
		dir = "ASC"
	}
	switch q.SortBy {
	case SortByBattles:
		sel = sel.OrderExpr("COALESCE(bs.total_battles, 0) "+dir).OrderExpr(ratingExpr+" DESC", key)
	case SortByWins:
		sel = sel.OrderExpr("COALESCE(bs.wins, 0) "+dir).OrderExpr(ratingExpr+" DESC", key)
	case SortByWinRate:
		sel = sel.
			OrderExpr("CASE WHEN COALESCE(bs.total_battles, 0) = 0 THEN 0 ELSE COALESCE(bs.wins, 0)::double precision / bs.total_battles END "+dir).
			OrderExpr(ratingExpr+" DESC", key)
	default:
		sel = sel.OrderExpr(ratingExpr+" "+dir, key)
	}
	sel = sel.OrderExpr("ls.created_at ASC")

	total, err := sel.
		Offset(pageOffset(q.Page, q.Limit)).
		Limit(q.Limit).
		ScanAndCount(ctx, &rows)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query leaderboard page: %w", err)
	}
	return rows, total, nil
}

// LeaderboardStats aggregates a module's leaderboard for one rating track.
func (r *Impl) LeaderboardStats(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, evaluatorKey string) (*LeaderboardStats, error) {
	key := evaluatorKey
	if key == "" {
		key = evaluationtypes.DefaultEvaluatorKey
	}

	var agg struct {
		Participants int        `bun:"participants"`
		AvgRating    float64    `bun:"avg_rating"`
		HighRating   float64    `bun:"high_rating"`
		LowRating    float64    `bun:"low_rating"`
		LastUpdated  *time.Time `bun:"last_updated"`
	}
	err := db.NewSelect().
		Model((*LeaderboardScore)(nil)).
		ColumnExpr("count(*) AS participants").
		ColumnExpr("COALESCE(avg((ls.scores_by_evaluator -> ? ->> 'rating')::double precision), 0) AS avg_rating", key).
		ColumnExpr("COALESCE(max((ls.scores_by_evaluator -> ? ->> 'rating')::double precision), 0) AS high_rating", key).
		ColumnExpr("COALESCE(min((ls.scores_by_evaluator -> ? ->> 'rating')::double precision), 0) AS low_rating", key).
		ColumnExpr("max(ls.updated_at) AS last_updated").
		Where("ls.evaluation_module_id = ?", moduleID).
		Scan(ctx, &agg)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate leaderboard stats: %w", err)
	}

	totalBattles, err := r.CountCompletedBattles(ctx, db, moduleID)
	if err != nil {
		return nil, err
	}

	stats := &LeaderboardStats{
		TotalParticipants: agg.Participants,
		TotalBattles:      totalBattles,
		AverageRating:     agg.AvgRating,
		HighestRating:     agg.HighRating,
		LowestRating:      agg.LowRating,
	}
	if agg.LastUpdated != nil {
		stats.LastUpdated = *agg.LastUpdated
	}

	mostActive := new(MostActiveBattler)
	err = db.NewSelect().
		ColumnExpr("bs.asset_id").
		ColumnExpr("bs.total_battles AS battle_count").
		TableExpr("(?) AS bs", battleStats(db, moduleID)).
		OrderExpr("bs.total_battles DESC").
		OrderExpr("bs.asset_id ASC").
		Limit(1).
		Scan(ctx, mostActive)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to find most active battler: %w", err)
		}
	} else {
		stats.MostActive = mostActive
	}
	return stats, nil
}
