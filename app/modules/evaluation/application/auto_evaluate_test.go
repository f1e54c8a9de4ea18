package evaluationservice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
)

func TestAutoEvaluateBattle(t *testing.T) {
	ctx := context.Background()
	moduleID := evaluationtypes.NewModuleID()

	llmEvaluator := &evaluationdb.Evaluator{
		ID:              evaluationtypes.NewEvaluatorID(),
		Name:            "GPT Judge",
		Type:            evaluationtypes.EvaluatorTypeLLM,
		LLMModelName:    "gpt-4o-mini",
		EvaluationFocus: "clarity",
		IsActive:        true,
	}

	t.Run("no judge configured", func(t *testing.T) {
		battle := pendingBattle(moduleID, nil)
		repo := NewFakeRepository()
		repo.GetBattleFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error) {
			return battle, nil
		}
		s := newTestService(repo, nil, nil, nil)

		result, err := s.AutoEvaluateBattle(ctx, battle.ID)
		assert.ErrorIs(t, err, ErrEvaluator)
		assert.True(t, result.IsFailure())
	})

	t.Run("pinned llm evaluator judges and resolves", func(t *testing.T) {
		battle := pendingBattle(moduleID, nil)
		battle.EvaluatorID = &llmEvaluator.ID
		repo := NewFakeRepository()
		repo.GetBattleFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error) {
			return battle, nil
		}
		repo.GetModuleFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.ModuleID) (*evaluationdb.EvaluationModule, error) {
			return &evaluationdb.EvaluationModule{
				ID:                  id,
				EvaluationCriteria:  "prefer concise answers",
				GlickoConfig:        evaluationtypes.DefaultGlickoConfig,
				ParticipantAssetIDs: []evaluationtypes.AssetID{"asset-a", "asset-b"},
				IsActive:            true,
			}, nil
		}
		repo.GetEvaluatorFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.EvaluatorID) (*evaluationdb.Evaluator, error) {
			return llmEvaluator, nil
		}
		judge := &FakeJudge{JudgeFunc: func(ctx context.Context, req JudgeRequest) (JudgeVerdict, error) {
			return JudgeVerdict{Result: evaluationtypes.BattleResultBWin, Reason: "B covered more cases"}, nil
		}}
		s := newTestService(repo, nil, judge, nil)

		result, err := s.AutoEvaluateBattle(ctx, battle.ID)
		require.NoError(t, err)
		require.True(t, result.IsSuccess())

		require.Len(t, judge.Calls, 1)
		assert.Equal(t, "prefer concise answers", judge.Calls[0].EvaluationCriteria)
		assert.Equal(t, "clarity", judge.Calls[0].EvaluationFocus)
		assert.Equal(t, "gpt-4o-mini", judge.Calls[0].Model)

		payload := result.Success.(*BattleResolvedPayload)
		require.NotNil(t, payload.Battle.Result)
		assert.Equal(t, evaluationtypes.BattleResultBWin, *payload.Battle.Result)
		require.NotNil(t, payload.Battle.EvaluatorID)
		assert.Equal(t, llmEvaluator.ID, *payload.Battle.EvaluatorID)
	})

	t.Run("falls back to first active llm on the module", func(t *testing.T) {
		battle := pendingBattle(moduleID, nil)
		repo := NewFakeRepository()
		repo.GetBattleFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error) {
			return battle, nil
		}
		repo.GetModuleFunc = activeModuleWith("asset-a", "asset-b")
		repo.ListModuleEvaluatorsFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.ModuleID, activeOnly bool) ([]evaluationdb.Evaluator, error) {
			assert.True(t, activeOnly)
			return []evaluationdb.Evaluator{
				{ID: evaluationtypes.NewEvaluatorID(), Type: evaluationtypes.EvaluatorTypeHuman, HumanUserID: "user-1"},
				*llmEvaluator,
			}, nil
		}
		judge := &FakeJudge{}
		s := newTestService(repo, nil, judge, nil)

		result, err := s.AutoEvaluateBattle(ctx, battle.ID)
		require.NoError(t, err)
		assert.True(t, result.IsSuccess())
		require.Len(t, judge.Calls, 1)
		assert.Equal(t, "gpt-4o-mini", judge.Calls[0].Model)
	})

	t.Run("no llm evaluator available", func(t *testing.T) {
		battle := pendingBattle(moduleID, nil)
		repo := NewFakeRepository()
		repo.GetBattleFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error) {
			return battle, nil
		}
		repo.GetModuleFunc = activeModuleWith("asset-a", "asset-b")
		s := newTestService(repo, nil, &FakeJudge{}, nil)

		result, err := s.AutoEvaluateBattle(ctx, battle.ID)
		assert.ErrorIs(t, err, ErrEvaluator)
		assert.True(t, result.IsFailure())
	})

	t.Run("judge error marks the battle failed", func(t *testing.T) {
		battle := pendingBattle(moduleID, nil)
		battle.EvaluatorID = &llmEvaluator.ID
		repo := NewFakeRepository()
		repo.GetBattleFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error) {
			return battle, nil
		}
		repo.GetModuleFunc = activeModuleWith("asset-a", "asset-b")
		repo.GetEvaluatorFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.EvaluatorID) (*evaluationdb.Evaluator, error) {
			return llmEvaluator, nil
		}
		var failedReason string
		repo.MarkBattleFailedFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID, reason string) error {
			failedReason = reason
			return nil
		}
		judge := &FakeJudge{JudgeFunc: func(ctx context.Context, req JudgeRequest) (JudgeVerdict, error) {
			return JudgeVerdict{}, errors.New("model overloaded")
		}}
		s := newTestService(repo, nil, judge, nil)

		result, err := s.AutoEvaluateBattle(ctx, battle.ID)
		assert.ErrorIs(t, err, ErrEvaluator)
		assert.True(t, result.IsFailure())
		assert.Contains(t, failedReason, "model overloaded")
	})

	t.Run("settled battle is rejected before judging", func(t *testing.T) {
		battle := pendingBattle(moduleID, nil)
		done := evaluationtypes.BattleResultDraw
		battle.Result = &done
		repo := NewFakeRepository()
		repo.GetBattleFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error) {
			return battle, nil
		}
		judge := &FakeJudge{}
		s := newTestService(repo, nil, judge, nil)

		_, err := s.AutoEvaluateBattle(ctx, battle.ID)
		assert.ErrorIs(t, err, ErrConsistency)
		assert.Empty(t, judge.Calls)
	})
}

func TestAutoEvaluateBattleGroup(t *testing.T) {
	ctx := context.Background()
	moduleID := evaluationtypes.NewModuleID()
	groupID := evaluationtypes.NewBattleGroupID()

	group := &evaluationdb.BattleGroup{
		ID:       groupID,
		ModuleID: moduleID,
		Status:   evaluationtypes.GroupStatusPending,
	}

	pendingBattles := func() []evaluationdb.EvaluationBattle {
		return []evaluationdb.EvaluationBattle{
			*pendingBattle(moduleID, &groupID),
			*pendingBattle(moduleID, &groupID),
			*pendingBattle(moduleID, &groupID),
		}
	}

	t.Run("queue configured enqueues every pending battle", func(t *testing.T) {
		repo := NewFakeRepository()
		repo.GetBattleGroupFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleGroupID) (*evaluationdb.BattleGroup, error) {
			return group, nil
		}
		battles := pendingBattles()
		repo.ListGroupBattlesFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleGroupID, pendingOnly bool) ([]evaluationdb.EvaluationBattle, error) {
			assert.True(t, pendingOnly)
			return battles, nil
		}
		queue := &FakeQueue{}
		s := newTestService(repo, nil, nil, queue)

		result, err := s.AutoEvaluateBattleGroup(ctx, groupID)
		require.NoError(t, err)
		require.True(t, result.IsSuccess())

		payload := result.Success.(*GroupEvaluationPayload)
		assert.Equal(t, 3, payload.Pending)
		assert.Equal(t, 3, payload.Enqueued)
		assert.Equal(t, 0, payload.Failed)
		assert.Len(t, queue.Enqueued, 3)
	})

	t.Run("enqueue errors are counted, not fatal", func(t *testing.T) {
		repo := NewFakeRepository()
		repo.GetBattleGroupFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleGroupID) (*evaluationdb.BattleGroup, error) {
			return group, nil
		}
		battles := pendingBattles()
		repo.ListGroupBattlesFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleGroupID, pendingOnly bool) ([]evaluationdb.EvaluationBattle, error) {
			return battles, nil
		}
		queue := &FakeQueue{}
		calls := 0
		queue.EnqueueFunc = func(ctx context.Context, battleID evaluationtypes.BattleID) error {
			calls++
			if calls == 2 {
				return assert.AnError
			}
			return nil
		}
		s := newTestService(repo, nil, nil, queue)

		result, err := s.AutoEvaluateBattleGroup(ctx, groupID)
		require.NoError(t, err)

		payload := result.Success.(*GroupEvaluationPayload)
		assert.Equal(t, 2, payload.Enqueued)
		assert.Equal(t, 1, payload.Failed)
	})

	t.Run("no judge and no queue", func(t *testing.T) {
		repo := NewFakeRepository()
		repo.GetBattleGroupFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleGroupID) (*evaluationdb.BattleGroup, error) {
			return group, nil
		}
		s := newTestService(repo, nil, nil, nil)

		result, err := s.AutoEvaluateBattleGroup(ctx, groupID)
		assert.ErrorIs(t, err, ErrEvaluator)
		assert.True(t, result.IsFailure())
	})

	t.Run("group not found", func(t *testing.T) {
		repo := NewFakeRepository()
		s := newTestService(repo, nil, nil, &FakeQueue{})

		_, err := s.AutoEvaluateBattleGroup(ctx, groupID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
