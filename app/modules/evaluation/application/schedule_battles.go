package evaluationservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/inf-monkeys/arena/app/modules/evaluation/domain/pairing"
	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
	"github.com/inf-monkeys/arena/internal/attr"
	"github.com/inf-monkeys/arena/internal/results"
)

// CreateBattleGroup schedules a batch of battles. Pair generation happens
// before anything is written; the group and all its battles are inserted in
// one transaction so the group is never visible half-scheduled.
func (s *EvaluationService) CreateBattleGroup(ctx context.Context, input CreateBattleGroupInput) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "CreateBattleGroup", input.ModuleID, func(ctx context.Context) (results.OperationResult, error) {
		module, err := s.repo.GetModule(ctx, s.db, input.ModuleID)
		if err != nil {
			if errors.Is(err, evaluationdb.ErrNotFound) {
				return results.FailureResult(&OperationFailurePayload{Reason: "module not found"}),
					fmt.Errorf("%w: module %s", ErrNotFound, input.ModuleID)
			}
			return results.OperationResult{}, err
		}
		if !module.IsActive {
			return results.FailureResult(&OperationFailurePayload{Reason: "module is inactive"}),
				fmt.Errorf("%w: module %s is inactive", ErrValidation, input.ModuleID)
		}

		assets := dedupAssets(input.AssetIDs)
		if len(assets) == 0 {
			assets = module.ParticipantAssetIDs
		} else {
			participants := make(map[evaluationtypes.AssetID]struct{}, len(module.ParticipantAssetIDs))
			for _, id := range module.ParticipantAssetIDs {
				participants[id] = struct{}{}
			}
			for _, id := range assets {
				if _, ok := participants[id]; !ok {
					return results.FailureResult(&OperationFailurePayload{Reason: fmt.Sprintf("asset %s is not a module participant", id)}),
						fmt.Errorf("%w: asset %s is not a participant of module %s", ErrValidation, id, input.ModuleID)
				}
			}
		}

		if input.EvaluatorID != nil {
			if _, err := s.repo.GetEvaluator(ctx, s.db, *input.EvaluatorID); err != nil {
				if errors.Is(err, evaluationdb.ErrNotFound) {
					return results.FailureResult(&OperationFailurePayload{Reason: "evaluator not found"}),
						fmt.Errorf("%w: evaluator %s", ErrNotFound, *input.EvaluatorID)
				}
				return results.OperationResult{}, err
			}
		}

		pairs, err := pairing.Generate(input.Strategy, assets, input.BattleCount)
		if err != nil {
			return results.FailureResult(&OperationFailurePayload{Reason: err.Error()}),
				fmt.Errorf("%w: %v", ErrValidation, err)
		}

		group := &evaluationdb.BattleGroup{
			ModuleID:     input.ModuleID,
			AssetIDs:     assets,
			Strategy:     input.Strategy,
			TotalBattles: len(pairs),
			Status:       evaluationtypes.GroupStatusPending,
			Description:  input.Description,
		}
		battles := make([]*evaluationdb.EvaluationBattle, 0, len(pairs))

		err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := s.repo.InsertBattleGroup(ctx, tx, group); err != nil {
				return err
			}
			for _, pair := range pairs {
				battles = append(battles, &evaluationdb.EvaluationBattle{
					ModuleID:      input.ModuleID,
					BattleGroupID: &group.ID,
					AssetAID:      pair.AssetA,
					AssetBID:      pair.AssetB,
					EvaluatorID:   input.EvaluatorID,
				})
			}
			return s.repo.InsertBattles(ctx, tx, battles)
		})
		if err != nil {
			return results.OperationResult{}, err
		}

		s.logger.InfoContext(ctx, "Battle group scheduled",
			attr.ExtractCorrelationID(ctx),
			attr.String("battle_group_id", group.ID.String()),
			attr.String("strategy", string(group.Strategy)),
			attr.Int("total_battles", group.TotalBattles),
		)

		if input.AutoEvaluate && s.queue != nil {
			for _, battle := range battles {
				if err := s.queue.EnqueueBattleJudging(ctx, battle.ID); err != nil {
					s.logger.ErrorContext(ctx, "Failed to enqueue battle for judging",
						attr.ExtractCorrelationID(ctx),
						attr.String("battle_id", battle.ID.String()),
						attr.Error(err),
					)
				}
			}
		}

		payload := &BattleGroupCreatedPayload{Group: group}
		for _, b := range battles {
			payload.Battles = append(payload.Battles, *b)
		}
		return results.SuccessResult(payload), nil
	})
}

// GetBattleGroup fetches one group.
func (s *EvaluationService) GetBattleGroup(ctx context.Context, id evaluationtypes.BattleGroupID) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "GetBattleGroup", evaluationtypes.ModuleID{}, func(ctx context.Context) (results.OperationResult, error) {
		group, err := s.repo.GetBattleGroup(ctx, s.db, id)
		if err != nil {
			if errors.Is(err, evaluationdb.ErrNotFound) {
				return results.FailureResult(&OperationFailurePayload{Reason: "battle group not found"}),
					fmt.Errorf("%w: battle group %s", ErrNotFound, id)
			}
			return results.OperationResult{}, err
		}
		return results.SuccessResult(group), nil
	})
}

// ListBattleGroups returns one page of a module's groups.
func (s *EvaluationService) ListBattleGroups(ctx context.Context, moduleID evaluationtypes.ModuleID, page, limit int) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "ListBattleGroups", moduleID, func(ctx context.Context) (results.OperationResult, error) {
		groups, total, err := s.repo.ListBattleGroups(ctx, s.db, moduleID, page, normalizeLimit(limit))
		if err != nil {
			return results.OperationResult{}, err
		}
		return results.SuccessResult(&BattleGroupListPayload{Groups: groups, Total: total}), nil
	})
}

// GetBattle fetches one battle.
func (s *EvaluationService) GetBattle(ctx context.Context, id evaluationtypes.BattleID) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "GetBattle", evaluationtypes.ModuleID{}, func(ctx context.Context) (results.OperationResult, error) {
		battle, err := s.repo.GetBattle(ctx, s.db, id)
		if err != nil {
			if errors.Is(err, evaluationdb.ErrNotFound) {
				return results.FailureResult(&OperationFailurePayload{Reason: "battle not found"}),
					fmt.Errorf("%w: battle %s", ErrNotFound, id)
			}
			return results.OperationResult{}, err
		}
		return results.SuccessResult(battle), nil
	})
}

// ListGroupBattles returns a group's battles, optionally only pending ones.
func (s *EvaluationService) ListGroupBattles(ctx context.Context, groupID evaluationtypes.BattleGroupID, pendingOnly bool) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "ListGroupBattles", evaluationtypes.ModuleID{}, func(ctx context.Context) (results.OperationResult, error) {
		if _, err := s.repo.GetBattleGroup(ctx, s.db, groupID); err != nil {
			if errors.Is(err, evaluationdb.ErrNotFound) {
				return results.FailureResult(&OperationFailurePayload{Reason: "battle group not found"}),
					fmt.Errorf("%w: battle group %s", ErrNotFound, groupID)
			}
			return results.OperationResult{}, err
		}
		battles, err := s.repo.ListGroupBattles(ctx, s.db, groupID, pendingOnly)
		if err != nil {
			return results.OperationResult{}, err
		}
		return results.SuccessResult(&BattleListPayload{Battles: battles, Total: len(battles)}), nil
	})
}
