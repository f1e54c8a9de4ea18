package evaluationservice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	evaluationevents "github.com/inf-monkeys/arena/app/modules/evaluation/domain/events"
	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
)

func pendingBattle(moduleID evaluationtypes.ModuleID, groupID *evaluationtypes.BattleGroupID) *evaluationdb.EvaluationBattle {
	return &evaluationdb.EvaluationBattle{
		ID:            evaluationtypes.NewBattleID(),
		ModuleID:      moduleID,
		BattleGroupID: groupID,
		AssetAID:      "asset-a",
		AssetBID:      "asset-b",
	}
}

func TestResolveBattle(t *testing.T) {
	ctx := context.Background()
	moduleID := evaluationtypes.NewModuleID()
	groupID := evaluationtypes.NewBattleGroupID()

	t.Run("a win moves ratings and bumps the group", func(t *testing.T) {
		battle := pendingBattle(moduleID, &groupID)
		repo := NewFakeRepository()
		repo.GetBattleFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error) {
			return battle, nil
		}
		repo.GetModuleFunc = activeModuleWith("asset-a", "asset-b")

		var updatedScores []*evaluationdb.LeaderboardScore
		repo.UpdateScoreFunc = func(ctx context.Context, db bun.IDB, score *evaluationdb.LeaderboardScore) error {
			updatedScores = append(updatedScores, score)
			return nil
		}

		bus := &FakeEventBus{}
		s := newTestService(repo, bus, nil, nil)

		result, err := s.ResolveBattle(ctx, ResolveBattleInput{
			BattleID: battle.ID,
			Result:   evaluationtypes.BattleResultAWin,
			Reason:   "A was sharper",
		})
		require.NoError(t, err)
		require.True(t, result.IsSuccess())

		payload := result.Success.(*BattleResolvedPayload)
		resolved := payload.Battle
		require.NotNil(t, resolved.Result)
		assert.Equal(t, evaluationtypes.BattleResultAWin, *resolved.Result)
		require.NotNil(t, resolved.WinnerID)
		assert.Equal(t, evaluationtypes.AssetID("asset-a"), *resolved.WinnerID)
		assert.NotNil(t, resolved.CompletedAt)

		// Both snapshots start from the module seed.
		assert.Equal(t, 1500.0, *resolved.AssetARatingBefore)
		assert.Equal(t, 1500.0, *resolved.AssetBRatingBefore)
		assert.Greater(t, *resolved.AssetARatingAfter, 1500.0)
		assert.Less(t, *resolved.AssetBRatingAfter, 1500.0)

		require.Len(t, updatedScores, 2)
		for _, score := range updatedScores {
			assert.Equal(t, 1, score.GamesPlayed)
			_, ok := score.ScoresByEvaluator[evaluationtypes.DefaultEvaluatorKey]
			assert.True(t, ok, "untracked battles credit the default track")
		}

		assert.Equal(t, []string{evaluationevents.BattleResolvedTopic}, bus.Published)
		assert.Equal(t, []string{
			"GetBattle", "GetModule", "LockScorePair",
			"MarkBattleResolved", "UpdateScore", "UpdateScore", "BumpGroupCounters",
		}, repo.Trace())
	})

	t.Run("evaluator override selects the rating track", func(t *testing.T) {
		battle := pendingBattle(moduleID, nil)
		evaluatorID := evaluationtypes.NewEvaluatorID()
		repo := NewFakeRepository()
		repo.GetBattleFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error) {
			return battle, nil
		}
		repo.GetModuleFunc = activeModuleWith("asset-a", "asset-b")

		var tracks []string
		repo.UpdateScoreFunc = func(ctx context.Context, db bun.IDB, score *evaluationdb.LeaderboardScore) error {
			for key := range score.ScoresByEvaluator {
				tracks = append(tracks, key)
			}
			return nil
		}
		s := newTestService(repo, nil, nil, nil)

		result, err := s.ResolveBattle(ctx, ResolveBattleInput{
			BattleID:    battle.ID,
			Result:      evaluationtypes.BattleResultDraw,
			EvaluatorID: &evaluatorID,
		})
		require.NoError(t, err)
		require.True(t, result.IsSuccess())
		require.Len(t, tracks, 2)
		assert.Equal(t, evaluatorID.String(), tracks[0])
		assert.Equal(t, evaluatorID.String(), tracks[1])
	})

	t.Run("invalid result", func(t *testing.T) {
		battle := pendingBattle(moduleID, nil)
		repo := NewFakeRepository()
		repo.GetBattleFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error) {
			return battle, nil
		}
		s := newTestService(repo, nil, nil, nil)

		result, err := s.ResolveBattle(ctx, ResolveBattleInput{BattleID: battle.ID, Result: "A_WINS_BIG"})
		assert.ErrorIs(t, err, ErrValidation)
		assert.True(t, result.IsFailure())
	})

	t.Run("battle not found", func(t *testing.T) {
		repo := NewFakeRepository()
		s := newTestService(repo, nil, nil, nil)

		result, err := s.ResolveBattle(ctx, ResolveBattleInput{
			BattleID: evaluationtypes.NewBattleID(),
			Result:   evaluationtypes.BattleResultAWin,
		})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.True(t, result.IsFailure())
	})

	t.Run("already resolved battle", func(t *testing.T) {
		battle := pendingBattle(moduleID, nil)
		done := evaluationtypes.BattleResultAWin
		battle.Result = &done
		repo := NewFakeRepository()
		repo.GetBattleFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error) {
			return battle, nil
		}
		s := newTestService(repo, nil, nil, nil)

		result, err := s.ResolveBattle(ctx, ResolveBattleInput{BattleID: battle.ID, Result: evaluationtypes.BattleResultBWin})
		assert.ErrorIs(t, err, ErrConsistency)
		assert.True(t, result.IsFailure())
	})

	t.Run("guarded update lost the race", func(t *testing.T) {
		battle := pendingBattle(moduleID, nil)
		repo := NewFakeRepository()
		repo.GetBattleFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error) {
			return battle, nil
		}
		repo.GetModuleFunc = activeModuleWith("asset-a", "asset-b")
		repo.MarkBattleResolvedFunc = func(ctx context.Context, db bun.IDB, b *evaluationdb.EvaluationBattle) error {
			return evaluationdb.ErrAlreadyResolved
		}
		s := newTestService(repo, nil, nil, nil)

		result, err := s.ResolveBattle(ctx, ResolveBattleInput{BattleID: battle.ID, Result: evaluationtypes.BattleResultAWin})
		assert.ErrorIs(t, err, ErrConsistency)
		assert.True(t, result.IsFailure())
	})

	t.Run("conflict retries then succeeds", func(t *testing.T) {
		battle := pendingBattle(moduleID, nil)
		repo := NewFakeRepository()
		repo.GetBattleFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error) {
			return battle, nil
		}
		repo.GetModuleFunc = activeModuleWith("asset-a", "asset-b")

		attempts := 0
		repo.LockScorePairFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.ModuleID, a, b evaluationtypes.AssetID) (*evaluationdb.LeaderboardScore, *evaluationdb.LeaderboardScore, error) {
			attempts++
			if attempts < 3 {
				return nil, nil, evaluationdb.ErrConcurrencyConflict
			}
			return &evaluationdb.LeaderboardScore{ModuleID: id, AssetID: a, ScoresByEvaluator: evaluationtypes.ScoresByEvaluator{}},
				&evaluationdb.LeaderboardScore{ModuleID: id, AssetID: b, ScoresByEvaluator: evaluationtypes.ScoresByEvaluator{}},
				nil
		}
		s := newTestService(repo, nil, nil, nil)

		result, err := s.ResolveBattle(ctx, ResolveBattleInput{BattleID: battle.ID, Result: evaluationtypes.BattleResultAWin})
		require.NoError(t, err)
		assert.True(t, result.IsSuccess())
		assert.Equal(t, 3, attempts)
	})

	t.Run("retries exhausted surfaces concurrency error", func(t *testing.T) {
		battle := pendingBattle(moduleID, nil)
		repo := NewFakeRepository()
		repo.GetBattleFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error) {
			return battle, nil
		}
		repo.GetModuleFunc = activeModuleWith("asset-a", "asset-b")
		repo.LockScorePairFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.ModuleID, a, b evaluationtypes.AssetID) (*evaluationdb.LeaderboardScore, *evaluationdb.LeaderboardScore, error) {
			return nil, nil, evaluationdb.ErrConcurrencyConflict
		}
		s := newTestService(repo, nil, nil, nil)

		_, err := s.ResolveBattle(ctx, ResolveBattleInput{BattleID: battle.ID, Result: evaluationtypes.BattleResultAWin})
		assert.ErrorIs(t, err, ErrConcurrency)
	})

	t.Run("terminal group publishes completion", func(t *testing.T) {
		battle := pendingBattle(moduleID, &groupID)
		repo := NewFakeRepository()
		repo.GetBattleFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error) {
			return battle, nil
		}
		repo.GetModuleFunc = activeModuleWith("asset-a", "asset-b")
		repo.BumpGroupCountersFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleGroupID, completedDelta, failedDelta int, threshold float64) (*evaluationdb.BattleGroup, error) {
			now := time.Now().UTC()
			return &evaluationdb.BattleGroup{
				ID:               id,
				ModuleID:         moduleID,
				TotalBattles:     1,
				CompletedBattles: 1,
				Status:           evaluationtypes.GroupStatusCompleted,
				CompletedAt:      &now,
			}, nil
		}
		bus := &FakeEventBus{}
		s := newTestService(repo, bus, nil, nil)

		_, err := s.ResolveBattle(ctx, ResolveBattleInput{BattleID: battle.ID, Result: evaluationtypes.BattleResultAWin})
		require.NoError(t, err)
		assert.Equal(t, []string{
			evaluationevents.BattleResolvedTopic,
			evaluationevents.BattleGroupCompletedTopic,
		}, bus.Published)
	})
}

func TestReportBattleFailure(t *testing.T) {
	ctx := context.Background()
	moduleID := evaluationtypes.NewModuleID()
	groupID := evaluationtypes.NewBattleGroupID()

	t.Run("marks failed and bumps failed counter", func(t *testing.T) {
		battle := pendingBattle(moduleID, &groupID)
		repo := NewFakeRepository()
		repo.GetBattleFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error) {
			return battle, nil
		}
		var completedDelta, failedDelta int
		repo.BumpGroupCountersFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleGroupID, c, f int, threshold float64) (*evaluationdb.BattleGroup, error) {
			completedDelta, failedDelta = c, f
			return &evaluationdb.BattleGroup{ID: id, Status: evaluationtypes.GroupStatusInProgress}, nil
		}
		s := newTestService(repo, nil, nil, nil)

		result, err := s.ReportBattleFailure(ctx, battle.ID, "judge timeout")
		require.NoError(t, err)
		assert.True(t, result.IsSuccess())
		assert.Equal(t, 0, completedDelta)
		assert.Equal(t, 1, failedDelta)
	})

	t.Run("settled battle cannot fail", func(t *testing.T) {
		battle := pendingBattle(moduleID, nil)
		now := time.Now().UTC()
		battle.FailedAt = &now
		repo := NewFakeRepository()
		repo.GetBattleFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error) {
			return battle, nil
		}
		s := newTestService(repo, nil, nil, nil)

		result, err := s.ReportBattleFailure(ctx, battle.ID, "again")
		assert.ErrorIs(t, err, ErrConsistency)
		assert.True(t, result.IsFailure())
	})
}
