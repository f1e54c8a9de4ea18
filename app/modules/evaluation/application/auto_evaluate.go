package evaluationservice

import (
	"context"
	"errors"
	"fmt"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
	"github.com/inf-monkeys/arena/internal/attr"
	"github.com/inf-monkeys/arena/internal/results"
)

// AutoEvaluateBattle asks the configured judge for a verdict on a pending
// battle and resolves it. The judge call happens outside any transaction; a
// judge failure marks the battle failed instead of leaving it pending
// forever.
func (s *EvaluationService) AutoEvaluateBattle(ctx context.Context, battleID evaluationtypes.BattleID) (results.OperationResult, error) {
	battle, err := s.repo.GetBattle(ctx, s.db, battleID)
	if err != nil {
		if errors.Is(err, evaluationdb.ErrNotFound) {
			return results.FailureResult(&OperationFailurePayload{Reason: "battle not found"}),
				fmt.Errorf("AutoEvaluateBattle: %w: battle %s", ErrNotFound, battleID)
		}
		return results.OperationResult{}, fmt.Errorf("AutoEvaluateBattle: %w", err)
	}

	return s.withTelemetry(ctx, "AutoEvaluateBattle", battle.ModuleID, func(ctx context.Context) (results.OperationResult, error) {
		if s.judge == nil {
			return results.FailureResult(&OperationFailurePayload{Reason: "no judge configured"}),
				fmt.Errorf("%w: no judge configured", ErrEvaluator)
		}
		if battle.Settled() {
			return results.FailureResult(&OperationFailurePayload{Reason: "battle already settled"}),
				fmt.Errorf("%w: battle %s already settled", ErrConsistency, battleID)
		}

		module, err := s.repo.GetModule(ctx, s.db, battle.ModuleID)
		if err != nil {
			return results.OperationResult{}, err
		}

		evaluator, err := s.pickLLMEvaluator(ctx, battle, module)
		if err != nil {
			return results.FailureResult(&OperationFailurePayload{Reason: err.Error()}),
				fmt.Errorf("%w: %v", ErrEvaluator, err)
		}

		verdict, err := s.judge.Judge(ctx, JudgeRequest{
			AssetA:             battle.AssetAID,
			AssetB:             battle.AssetBID,
			EvaluationCriteria: module.EvaluationCriteria,
			EvaluationFocus:    evaluator.EvaluationFocus,
			Model:              evaluator.LLMModelName,
		})
		if err != nil {
			s.metrics.RecordJudgeError(ctx, evaluator.LLMModelName)
			s.logger.ErrorContext(ctx, "Judge failed, marking battle failed",
				attr.ExtractCorrelationID(ctx),
				attr.String("battle_id", battleID.String()),
				attr.String("model", evaluator.LLMModelName),
				attr.Error(err),
			)
			if _, failErr := s.ReportBattleFailure(ctx, battleID, fmt.Sprintf("judge error: %v", err)); failErr != nil {
				s.logger.ErrorContext(ctx, "Failed to mark battle failed after judge error",
					attr.ExtractCorrelationID(ctx),
					attr.String("battle_id", battleID.String()),
					attr.Error(failErr),
				)
			}
			return results.FailureResult(&OperationFailurePayload{Reason: "judge failed"}),
				fmt.Errorf("%w: %v", ErrEvaluator, err)
		}
		s.metrics.RecordJudgeVerdict(ctx, evaluator.LLMModelName, verdict.Result)

		return s.ResolveBattle(ctx, ResolveBattleInput{
			BattleID:    battleID,
			Result:      verdict.Result,
			Reason:      verdict.Reason,
			EvaluatorID: &evaluator.ID,
		})
	})
}

// AutoEvaluateBattleGroup drives every pending battle of a group through the
// judge. With a queue configured the battles are enqueued for background
// judging; otherwise each one is judged synchronously, and individual judge
// failures do not stop the rest of the group.
func (s *EvaluationService) AutoEvaluateBattleGroup(ctx context.Context, groupID evaluationtypes.BattleGroupID) (results.OperationResult, error) {
	group, err := s.repo.GetBattleGroup(ctx, s.db, groupID)
	if err != nil {
		if errors.Is(err, evaluationdb.ErrNotFound) {
			return results.FailureResult(&OperationFailurePayload{Reason: "battle group not found"}),
				fmt.Errorf("AutoEvaluateBattleGroup: %w: group %s", ErrNotFound, groupID)
		}
		return results.OperationResult{}, fmt.Errorf("AutoEvaluateBattleGroup: %w", err)
	}

	return s.withTelemetry(ctx, "AutoEvaluateBattleGroup", group.ModuleID, func(ctx context.Context) (results.OperationResult, error) {
		if s.judge == nil && s.queue == nil {
			return results.FailureResult(&OperationFailurePayload{Reason: "no judge configured"}),
				fmt.Errorf("%w: no judge configured", ErrEvaluator)
		}

		pending, err := s.repo.ListGroupBattles(ctx, s.db, groupID, true)
		if err != nil {
			return results.OperationResult{}, err
		}

		payload := &GroupEvaluationPayload{GroupID: groupID, Pending: len(pending)}
		for i := range pending {
			battleID := pending[i].ID
			if s.queue != nil {
				if err := s.queue.EnqueueBattleJudging(ctx, battleID); err != nil {
					s.logger.ErrorContext(ctx, "Failed to enqueue battle for judging",
						attr.ExtractCorrelationID(ctx),
						attr.String("battle_id", battleID.String()),
						attr.Error(err),
					)
					payload.Failed++
					continue
				}
				payload.Enqueued++
				continue
			}

			res, err := s.AutoEvaluateBattle(ctx, battleID)
			if err != nil || res.IsFailure() {
				payload.Failed++
				continue
			}
			payload.Judged++
		}

		return results.SuccessResult(payload), nil
	})
}

// pickLLMEvaluator resolves which LLM evaluator judges the battle: the one
// pinned on the battle when it is an LLM, otherwise the first active LLM
// evaluator linked to the module.
func (s *EvaluationService) pickLLMEvaluator(ctx context.Context, battle *evaluationdb.EvaluationBattle, module *evaluationdb.EvaluationModule) (*evaluationdb.Evaluator, error) {
	if battle.EvaluatorID != nil {
		evaluator, err := s.repo.GetEvaluator(ctx, s.db, *battle.EvaluatorID)
		if err != nil {
			return nil, fmt.Errorf("battle evaluator %s not found", *battle.EvaluatorID)
		}
		if evaluator.Type != evaluationtypes.EvaluatorTypeLLM {
			return nil, fmt.Errorf("evaluator %s is not an LLM evaluator", evaluator.ID)
		}
		return evaluator, nil
	}

	evaluators, err := s.repo.ListModuleEvaluators(ctx, s.db, module.ID, true)
	if err != nil {
		return nil, err
	}
	for i := range evaluators {
		if evaluators[i].Type == evaluationtypes.EvaluatorTypeLLM {
			return &evaluators[i], nil
		}
	}
	return nil, fmt.Errorf("module %s has no active LLM evaluator", module.ID)
}
