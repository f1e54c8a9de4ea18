package evaluationservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
	"github.com/inf-monkeys/arena/internal/results"
)

// GetLeaderboard returns one sorted page of a module's leaderboard.
func (s *EvaluationService) GetLeaderboard(ctx context.Context, moduleID evaluationtypes.ModuleID, query evaluationdb.LeaderboardQuery) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "GetLeaderboard", moduleID, func(ctx context.Context) (results.OperationResult, error) {
		if _, err := s.repo.GetModule(ctx, s.db, moduleID); err != nil {
			if errors.Is(err, evaluationdb.ErrNotFound) {
				return results.FailureResult(&OperationFailurePayload{Reason: "module not found"}),
					fmt.Errorf("%w: module %s", ErrNotFound, moduleID)
			}
			return results.OperationResult{}, err
		}

		query.Limit = normalizeLimit(query.Limit)
		if query.SortBy == "" {
			query.SortBy = evaluationdb.SortByRating
		}

		dbStart := time.Now()
		rows, total, err := s.repo.LeaderboardPage(ctx, s.db, moduleID, query)
		s.metrics.RecordDBQueryDuration(ctx, time.Since(dbStart))
		if err != nil {
			return results.OperationResult{}, err
		}
		return results.SuccessResult(&LeaderboardPagePayload{Rows: rows, Total: total}), nil
	})
}

// GetLeaderboardStats returns the aggregate statistics of one rating track.
func (s *EvaluationService) GetLeaderboardStats(ctx context.Context, moduleID evaluationtypes.ModuleID, evaluatorKey string) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "GetLeaderboardStats", moduleID, func(ctx context.Context) (results.OperationResult, error) {
		if _, err := s.repo.GetModule(ctx, s.db, moduleID); err != nil {
			if errors.Is(err, evaluationdb.ErrNotFound) {
				return results.FailureResult(&OperationFailurePayload{Reason: "module not found"}),
					fmt.Errorf("%w: module %s", ErrNotFound, moduleID)
			}
			return results.OperationResult{}, err
		}

		stats, err := s.repo.LeaderboardStats(ctx, s.db, moduleID, evaluatorKey)
		if err != nil {
			return results.OperationResult{}, err
		}
		return results.SuccessResult(stats), nil
	})
}

// ListModuleBattles returns one page of a module's battles, newest first.
func (s *EvaluationService) ListModuleBattles(ctx context.Context, moduleID evaluationtypes.ModuleID, page, limit int) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "ListModuleBattles", moduleID, func(ctx context.Context) (results.OperationResult, error) {
		battles, total, err := s.repo.ListModuleBattles(ctx, s.db, moduleID, page, normalizeLimit(limit))
		if err != nil {
			return results.OperationResult{}, err
		}
		return results.SuccessResult(&BattleListPayload{Battles: battles, Total: total}), nil
	})
}

// GetRecentBattles returns completed battles since the given time.
func (s *EvaluationService) GetRecentBattles(ctx context.Context, moduleID evaluationtypes.ModuleID, since time.Time, limit int) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "GetRecentBattles", moduleID, func(ctx context.Context) (results.OperationResult, error) {
		battles, err := s.repo.RecentBattles(ctx, s.db, moduleID, since, normalizeLimit(limit))
		if err != nil {
			return results.OperationResult{}, err
		}
		return results.SuccessResult(&BattleListPayload{Battles: battles, Total: len(battles)}), nil
	})
}

// GetAssetHistory returns the completed battles an asset took part in.
func (s *EvaluationService) GetAssetHistory(ctx context.Context, moduleID evaluationtypes.ModuleID, assetID evaluationtypes.AssetID, evaluatorID *evaluationtypes.EvaluatorID, limit int) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "GetAssetHistory", moduleID, func(ctx context.Context) (results.OperationResult, error) {
		if assetID == "" {
			return results.FailureResult(&OperationFailurePayload{Reason: "asset ID is required"}),
				fmt.Errorf("%w: asset ID is required", ErrValidation)
		}
		battles, err := s.repo.AssetBattleHistory(ctx, s.db, moduleID, assetID, evaluatorID, normalizeLimit(limit))
		if err != nil {
			return results.OperationResult{}, err
		}
		return results.SuccessResult(&BattleListPayload{Battles: battles, Total: len(battles)}), nil
	})
}

// GetRatingTrends reconstructs the rating trajectory of each requested asset
// from the snapshots stored on its completed battles, oldest first.
func (s *EvaluationService) GetRatingTrends(ctx context.Context, moduleID evaluationtypes.ModuleID, assetIDs []evaluationtypes.AssetID, evaluatorID *evaluationtypes.EvaluatorID, limit int) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "GetRatingTrends", moduleID, func(ctx context.Context) (results.OperationResult, error) {
		assets := dedupAssets(assetIDs)
		if len(assets) == 0 {
			return results.FailureResult(&OperationFailurePayload{Reason: "no assets given"}),
				fmt.Errorf("%w: no assets given", ErrValidation)
		}

		trends, err := s.ratingTrends(ctx, moduleID, assets, evaluatorID, limit)
		if err != nil {
			return results.OperationResult{}, err
		}
		return results.SuccessResult(&RatingTrendsPayload{Trends: trends}), nil
	})
}

func (s *EvaluationService) ratingTrends(ctx context.Context, moduleID evaluationtypes.ModuleID, assetIDs []evaluationtypes.AssetID, evaluatorID *evaluationtypes.EvaluatorID, limit int) ([]RatingTrend, error) {
	trends := make([]RatingTrend, 0, len(assetIDs))
	for _, assetID := range assetIDs {
		battles, err := s.repo.AssetBattleHistory(ctx, s.db, moduleID, assetID, evaluatorID, normalizeLimit(limit))
		if err != nil {
			return nil, err
		}

		trend := RatingTrend{AssetID: assetID, Points: make([]RatingTrendPoint, 0, len(battles))}
		// History comes newest first; walk it backwards for a chronological
		// trajectory.
		for i := len(battles) - 1; i >= 0; i-- {
			b := battles[i]
			var after *float64
			switch {
			case b.AssetAID == assetID:
				after = b.AssetARatingAfter
			case b.AssetBID == assetID:
				after = b.AssetBRatingAfter
			}
			if after == nil || b.CompletedAt == nil {
				continue
			}
			trend.Points = append(trend.Points, RatingTrendPoint{
				BattleID:    b.ID,
				Rating:      *after,
				CompletedAt: *b.CompletedAt,
			})
		}
		trends = append(trends, trend)
	}
	return trends, nil
}
