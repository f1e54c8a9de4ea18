package evaluationservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	evaluationevents "github.com/inf-monkeys/arena/app/modules/evaluation/domain/events"
	"github.com/inf-monkeys/arena/app/modules/evaluation/domain/glicko"
	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
	"github.com/inf-monkeys/arena/internal/attr"
	"github.com/inf-monkeys/arena/internal/results"
)

// ResolveBattle applies a judged verdict to a pending battle. One
// transaction locks both score rows in deterministic order, updates the
// ratings from the same pre-battle snapshot, writes the battle result behind
// its settle guard, and bumps the group counters. Events fire only after the
// commit.
func (s *EvaluationService) ResolveBattle(ctx context.Context, input ResolveBattleInput) (results.OperationResult, error) {
	battle, err := s.repo.GetBattle(ctx, s.db, input.BattleID)
	if err != nil {
		if errors.Is(err, evaluationdb.ErrNotFound) {
			return results.FailureResult(&OperationFailurePayload{Reason: "battle not found"}),
				fmt.Errorf("ResolveBattle: %w: battle %s", ErrNotFound, input.BattleID)
		}
		return results.OperationResult{}, fmt.Errorf("ResolveBattle: %w", err)
	}

	return s.withTelemetry(ctx, "ResolveBattle", battle.ModuleID, func(ctx context.Context) (results.OperationResult, error) {
		if !input.Result.Valid() {
			return results.FailureResult(&OperationFailurePayload{Reason: "invalid battle result"}),
				fmt.Errorf("%w: invalid battle result %q", ErrValidation, input.Result)
		}
		if battle.Settled() {
			return results.FailureResult(&OperationFailurePayload{Reason: "battle already settled"}),
				fmt.Errorf("%w: battle %s already settled", ErrConsistency, input.BattleID)
		}

		module, err := s.repo.GetModule(ctx, s.db, battle.ModuleID)
		if err != nil {
			return results.OperationResult{}, err
		}

		evaluatorID := battle.EvaluatorID
		if input.EvaluatorID != nil {
			evaluatorID = input.EvaluatorID
		}
		key := evaluationtypes.EvaluatorKey(evaluatorID)
		seed := module.GlickoConfig.Seed()

		var (
			resolved *evaluationdb.EvaluationBattle
			group    *evaluationdb.BattleGroup
		)
		err = s.runInTxWithRetry(ctx, "ResolveBattle", func(ctx context.Context, tx bun.Tx) error {
			group = nil

			scoreA, scoreB, err := s.repo.LockScorePair(ctx, tx, battle.ModuleID, battle.AssetAID, battle.AssetBID)
			if err != nil {
				return err
			}

			ratingA := scoreA.ScoresByEvaluator.Track(key, seed)
			ratingB := scoreB.ScoresByEvaluator.Track(key, seed)
			newA, newB := glicko.Update(ratingA, ratingB, input.Result, module.GlickoConfig.Tau)

			now := time.Now().UTC()
			update := *battle
			update.Result = &input.Result
			update.Reason = input.Reason
			update.EvaluatorID = evaluatorID
			update.WinnerID = winnerOf(input.Result, battle.AssetAID, battle.AssetBID)
			update.AssetARatingBefore = &ratingA.Rating
			update.AssetARatingAfter = &newA.Rating
			update.AssetBRatingBefore = &ratingB.Rating
			update.AssetBRatingAfter = &newB.Rating
			update.CompletedAt = &now

			if err := s.repo.MarkBattleResolved(ctx, tx, &update); err != nil {
				return err
			}

			if scoreA.ScoresByEvaluator == nil {
				scoreA.ScoresByEvaluator = evaluationtypes.ScoresByEvaluator{}
			}
			if scoreB.ScoresByEvaluator == nil {
				scoreB.ScoresByEvaluator = evaluationtypes.ScoresByEvaluator{}
			}
			scoreA.ScoresByEvaluator[key] = newA
			scoreB.ScoresByEvaluator[key] = newB
			scoreA.GamesPlayed++
			scoreB.GamesPlayed++
			if err := s.repo.UpdateScore(ctx, tx, scoreA); err != nil {
				return err
			}
			if err := s.repo.UpdateScore(ctx, tx, scoreB); err != nil {
				return err
			}

			if battle.BattleGroupID != nil {
				group, err = s.repo.BumpGroupCounters(ctx, tx, *battle.BattleGroupID, 1, 0, evaluationtypes.DefaultFailureThreshold)
				if err != nil {
					return err
				}
			}
			resolved = &update
			return nil
		})
		if err != nil {
			if errors.Is(err, evaluationdb.ErrAlreadyResolved) {
				return results.FailureResult(&OperationFailurePayload{Reason: "battle already settled"}),
					fmt.Errorf("%w: battle %s already settled", ErrConsistency, input.BattleID)
			}
			return results.OperationResult{}, err
		}

		s.metrics.RecordBattleResolved(ctx, input.Result)
		s.logger.InfoContext(ctx, "Battle resolved",
			attr.ExtractCorrelationID(ctx),
			attr.String("battle_id", battle.ID.String()),
			attr.String("result", string(input.Result)),
			attr.Float64("rating_a_after", *resolved.AssetARatingAfter),
			attr.Float64("rating_b_after", *resolved.AssetBRatingAfter),
		)

		s.publishEvent(ctx, evaluationevents.BattleResolvedTopic, &evaluationevents.BattleResolvedPayloadV1{
			ModuleID:      battle.ModuleID,
			BattleID:      battle.ID,
			BattleGroupID: battle.BattleGroupID,
			EvaluatorID:   evaluatorID,
			AssetA:        battle.AssetAID,
			AssetB:        battle.AssetBID,
			Result:        input.Result,
			WinnerID:      resolved.WinnerID,
			RatingABefore: *resolved.AssetARatingBefore,
			RatingAAfter:  *resolved.AssetARatingAfter,
			RatingBBefore: *resolved.AssetBRatingBefore,
			RatingBAfter:  *resolved.AssetBRatingAfter,
			CompletedAt:   *resolved.CompletedAt,
		})
		s.publishGroupCompletion(ctx, group)

		return results.SuccessResult(&BattleResolvedPayload{Battle: resolved, Group: group}), nil
	})
}

// ReportBattleFailure marks a pending battle as failed (judge error, timeout,
// manual abort). No ratings move; the group's failed counter advances and the
// derived status may flip to FAILED.
func (s *EvaluationService) ReportBattleFailure(ctx context.Context, battleID evaluationtypes.BattleID, reason string) (results.OperationResult, error) {
	battle, err := s.repo.GetBattle(ctx, s.db, battleID)
	if err != nil {
		if errors.Is(err, evaluationdb.ErrNotFound) {
			return results.FailureResult(&OperationFailurePayload{Reason: "battle not found"}),
				fmt.Errorf("ReportBattleFailure: %w: battle %s", ErrNotFound, battleID)
		}
		return results.OperationResult{}, fmt.Errorf("ReportBattleFailure: %w", err)
	}

	return s.withTelemetry(ctx, "ReportBattleFailure", battle.ModuleID, func(ctx context.Context) (results.OperationResult, error) {
		if battle.Settled() {
			return results.FailureResult(&OperationFailurePayload{Reason: "battle already settled"}),
				fmt.Errorf("%w: battle %s already settled", ErrConsistency, battleID)
		}

		var group *evaluationdb.BattleGroup
		err := s.runInTxWithRetry(ctx, "ReportBattleFailure", func(ctx context.Context, tx bun.Tx) error {
			group = nil
			if err := s.repo.MarkBattleFailed(ctx, tx, battleID, reason); err != nil {
				return err
			}
			if battle.BattleGroupID != nil {
				var err error
				group, err = s.repo.BumpGroupCounters(ctx, tx, *battle.BattleGroupID, 0, 1, evaluationtypes.DefaultFailureThreshold)
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, evaluationdb.ErrAlreadyResolved) {
				return results.FailureResult(&OperationFailurePayload{Reason: "battle already settled"}),
					fmt.Errorf("%w: battle %s already settled", ErrConsistency, battleID)
			}
			return results.OperationResult{}, err
		}

		s.metrics.RecordBattleFailed(ctx)
		s.logger.WarnContext(ctx, "Battle marked failed",
			attr.ExtractCorrelationID(ctx),
			attr.String("battle_id", battleID.String()),
			attr.String("reason", reason),
		)
		s.publishGroupCompletion(ctx, group)

		return results.SuccessResult(&BattleResolvedPayload{Battle: battle, Group: group}), nil
	})
}

// publishGroupCompletion publishes the terminal-group event when the bumped
// group just reached COMPLETED or FAILED.
func (s *EvaluationService) publishGroupCompletion(ctx context.Context, group *evaluationdb.BattleGroup) {
	if group == nil || !group.Status.Terminal() || group.CompletedAt == nil {
		return
	}
	s.publishEvent(ctx, evaluationevents.BattleGroupCompletedTopic, &evaluationevents.BattleGroupCompletedPayloadV1{
		ModuleID:         group.ModuleID,
		BattleGroupID:    group.ID,
		Status:           group.Status,
		TotalBattles:     group.TotalBattles,
		CompletedBattles: group.CompletedBattles,
		FailedBattles:    group.FailedBattles,
		CompletedAt:      *group.CompletedAt,
	})
}

func winnerOf(result evaluationtypes.BattleResult, assetA, assetB evaluationtypes.AssetID) *evaluationtypes.AssetID {
	switch result {
	case evaluationtypes.BattleResultAWin:
		return &assetA
	case evaluationtypes.BattleResultBWin:
		return &assetB
	}
	return nil
}
