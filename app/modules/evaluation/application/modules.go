package evaluationservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
	"github.com/inf-monkeys/arena/internal/attr"
	"github.com/inf-monkeys/arena/internal/results"
)

// CreateModule creates an evaluation module with its Glicko seed
// configuration and optional initial participants.
func (s *EvaluationService) CreateModule(ctx context.Context, input CreateModuleInput) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "CreateModule", evaluationtypes.ModuleID{}, func(ctx context.Context) (results.OperationResult, error) {
		if strings.TrimSpace(input.DisplayName) == "" {
			return results.FailureResult(&OperationFailurePayload{Reason: "display name is required"}),
				fmt.Errorf("%w: display name is required", ErrValidation)
		}

		cfg := evaluationtypes.DefaultGlickoConfig
		if input.GlickoConfig != nil {
			cfg = *input.GlickoConfig
			if cfg.Rating <= 0 || cfg.RD <= 0 || cfg.Vol <= 0 {
				return results.FailureResult(&OperationFailurePayload{Reason: "glicko config values must be positive"}),
					fmt.Errorf("%w: glicko config values must be positive", ErrValidation)
			}
			if cfg.Tau <= 0 {
				cfg.Tau = evaluationtypes.DefaultGlickoConfig.Tau
			}
		}

		module := &evaluationdb.EvaluationModule{
			DisplayName:         input.DisplayName,
			Description:         input.Description,
			EvaluationCriteria:  input.EvaluationCriteria,
			GlickoConfig:        cfg,
			ParticipantAssetIDs: dedupAssets(input.ParticipantAssets),
			IsActive:            true,
		}

		dbStart := time.Now()
		err := s.repo.CreateModule(ctx, s.db, module)
		s.metrics.RecordDBQueryDuration(ctx, time.Since(dbStart))
		if err != nil {
			return results.OperationResult{}, err
		}

		s.logger.InfoContext(ctx, "Evaluation module created",
			attr.ExtractCorrelationID(ctx),
			attr.String("module_id", module.ID.String()),
			attr.Int("participants", len(module.ParticipantAssetIDs)),
		)
		return results.SuccessResult(module), nil
	})
}

// GetModule fetches one module.
func (s *EvaluationService) GetModule(ctx context.Context, id evaluationtypes.ModuleID) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "GetModule", id, func(ctx context.Context) (results.OperationResult, error) {
		module, err := s.repo.GetModule(ctx, s.db, id)
		if err != nil {
			if errors.Is(err, evaluationdb.ErrNotFound) {
				return results.FailureResult(&OperationFailurePayload{Reason: "module not found"}),
					fmt.Errorf("%w: module %s", ErrNotFound, id)
			}
			return results.OperationResult{}, err
		}
		return results.SuccessResult(module), nil
	})
}

// ListModules returns one page of modules, optionally filtered by a search
// term against the display name.
func (s *EvaluationService) ListModules(ctx context.Context, page, limit int, search string) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "ListModules", evaluationtypes.ModuleID{}, func(ctx context.Context) (results.OperationResult, error) {
		modules, total, err := s.repo.ListModules(ctx, s.db, page, normalizeLimit(limit), search)
		if err != nil {
			return results.OperationResult{}, err
		}
		return results.SuccessResult(&ModuleListPayload{Modules: modules, Total: total}), nil
	})
}

// AddParticipants adds assets to a module's participant set. Already-present
// assets are ignored.
func (s *EvaluationService) AddParticipants(ctx context.Context, id evaluationtypes.ModuleID, assetIDs []evaluationtypes.AssetID) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "AddParticipants", id, func(ctx context.Context) (results.OperationResult, error) {
		assets := dedupAssets(assetIDs)
		if len(assets) == 0 {
			return results.FailureResult(&OperationFailurePayload{Reason: "no assets given"}),
				fmt.Errorf("%w: no assets given", ErrValidation)
		}

		err := s.runInTxWithRetry(ctx, "AddParticipants", func(ctx context.Context, tx bun.Tx) error {
			return s.repo.AddParticipants(ctx, tx, id, assets)
		})
		if err != nil {
			if errors.Is(err, evaluationdb.ErrNotFound) {
				return results.FailureResult(&OperationFailurePayload{Reason: "module not found"}),
					fmt.Errorf("%w: module %s", ErrNotFound, id)
			}
			return results.OperationResult{}, err
		}

		module, err := s.repo.GetModule(ctx, s.db, id)
		if err != nil {
			return results.OperationResult{}, err
		}
		return results.SuccessResult(module), nil
	})
}

// CreateEvaluator registers a judging capability.
func (s *EvaluationService) CreateEvaluator(ctx context.Context, input CreateEvaluatorInput) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "CreateEvaluator", evaluationtypes.ModuleID{}, func(ctx context.Context) (results.OperationResult, error) {
		if strings.TrimSpace(input.Name) == "" {
			return results.FailureResult(&OperationFailurePayload{Reason: "evaluator name is required"}),
				fmt.Errorf("%w: evaluator name is required", ErrValidation)
		}
		switch input.Type {
		case evaluationtypes.EvaluatorTypeLLM:
			if strings.TrimSpace(input.LLMModelName) == "" {
				return results.FailureResult(&OperationFailurePayload{Reason: "LLM evaluator requires a model name"}),
					fmt.Errorf("%w: LLM evaluator requires a model name", ErrValidation)
			}
		case evaluationtypes.EvaluatorTypeHuman:
			if strings.TrimSpace(input.HumanUserID) == "" {
				return results.FailureResult(&OperationFailurePayload{Reason: "human evaluator requires a user ID"}),
					fmt.Errorf("%w: human evaluator requires a user ID", ErrValidation)
			}
		default:
			return results.FailureResult(&OperationFailurePayload{Reason: "unknown evaluator type"}),
				fmt.Errorf("%w: unknown evaluator type %q", ErrValidation, input.Type)
		}

		evaluator := &evaluationdb.Evaluator{
			Name:            input.Name,
			Type:            input.Type,
			LLMModelName:    input.LLMModelName,
			EvaluationFocus: input.EvaluationFocus,
			HumanUserID:     input.HumanUserID,
			Config:          input.Config,
			IsActive:        true,
		}
		if err := s.repo.CreateEvaluator(ctx, s.db, evaluator); err != nil {
			return results.OperationResult{}, err
		}
		return results.SuccessResult(evaluator), nil
	})
}

// GetEvaluator fetches one evaluator.
func (s *EvaluationService) GetEvaluator(ctx context.Context, id evaluationtypes.EvaluatorID) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "GetEvaluator", evaluationtypes.ModuleID{}, func(ctx context.Context) (results.OperationResult, error) {
		evaluator, err := s.repo.GetEvaluator(ctx, s.db, id)
		if err != nil {
			if errors.Is(err, evaluationdb.ErrNotFound) {
				return results.FailureResult(&OperationFailurePayload{Reason: "evaluator not found"}),
					fmt.Errorf("%w: evaluator %s", ErrNotFound, id)
			}
			return results.OperationResult{}, err
		}
		return results.SuccessResult(evaluator), nil
	})
}

// ListEvaluators returns one page of evaluators.
func (s *EvaluationService) ListEvaluators(ctx context.Context, page, limit int, search string) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "ListEvaluators", evaluationtypes.ModuleID{}, func(ctx context.Context) (results.OperationResult, error) {
		evaluators, total, err := s.repo.ListEvaluators(ctx, s.db, page, normalizeLimit(limit), search)
		if err != nil {
			return results.OperationResult{}, err
		}
		return results.SuccessResult(&EvaluatorListPayload{Evaluators: evaluators, Total: total}), nil
	})
}

// LinkEvaluator attaches an evaluator to a module. Linking the same pair
// twice is a business failure, not an error.
func (s *EvaluationService) LinkEvaluator(ctx context.Context, moduleID evaluationtypes.ModuleID, evaluatorID evaluationtypes.EvaluatorID, weight float64) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "LinkEvaluator", moduleID, func(ctx context.Context) (results.OperationResult, error) {
		if weight < 0 || weight > 1 {
			return results.FailureResult(&OperationFailurePayload{Reason: "weight must be between 0 and 1"}),
				fmt.Errorf("%w: weight %v out of range", ErrValidation, weight)
		}
		if _, err := s.repo.GetModule(ctx, s.db, moduleID); err != nil {
			if errors.Is(err, evaluationdb.ErrNotFound) {
				return results.FailureResult(&OperationFailurePayload{Reason: "module not found"}),
					fmt.Errorf("%w: module %s", ErrNotFound, moduleID)
			}
			return results.OperationResult{}, err
		}
		if _, err := s.repo.GetEvaluator(ctx, s.db, evaluatorID); err != nil {
			if errors.Is(err, evaluationdb.ErrNotFound) {
				return results.FailureResult(&OperationFailurePayload{Reason: "evaluator not found"}),
					fmt.Errorf("%w: evaluator %s", ErrNotFound, evaluatorID)
			}
			return results.OperationResult{}, err
		}

		if weight == 0 {
			weight = 1
		}
		link := &evaluationdb.ModuleEvaluator{
			ModuleID:    moduleID,
			EvaluatorID: evaluatorID,
			Weight:      weight,
			IsActive:    true,
		}
		if err := s.repo.LinkEvaluator(ctx, s.db, link); err != nil {
			if errors.Is(err, evaluationdb.ErrDuplicateLink) {
				return results.FailureResult(&OperationFailurePayload{Reason: "evaluator already linked"}), nil
			}
			return results.OperationResult{}, err
		}
		return results.SuccessResult(link), nil
	})
}

// ListModuleEvaluators returns the evaluators linked to a module.
func (s *EvaluationService) ListModuleEvaluators(ctx context.Context, moduleID evaluationtypes.ModuleID, activeOnly bool) (results.OperationResult, error) {
	return s.withTelemetry(ctx, "ListModuleEvaluators", moduleID, func(ctx context.Context) (results.OperationResult, error) {
		evaluators, err := s.repo.ListModuleEvaluators(ctx, s.db, moduleID, activeOnly)
		if err != nil {
			return results.OperationResult{}, err
		}
		return results.SuccessResult(&EvaluatorListPayload{Evaluators: evaluators, Total: len(evaluators)}), nil
	})
}

func dedupAssets(assetIDs []evaluationtypes.AssetID) []evaluationtypes.AssetID {
	out := make([]evaluationtypes.AssetID, 0, len(assetIDs))
	seen := make(map[evaluationtypes.AssetID]struct{}, len(assetIDs))
	for _, id := range assetIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

const defaultPageLimit = 20

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	return limit
}
