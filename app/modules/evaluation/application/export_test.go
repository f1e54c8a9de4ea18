package evaluationservice

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/xuri/excelize/v2"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
)

func TestExportLeaderboard(t *testing.T) {
	ctx := context.Background()
	moduleID := evaluationtypes.NewModuleID()

	t.Run("writes one row per entry", func(t *testing.T) {
		repo := NewFakeRepository()
		repo.GetModuleFunc = activeModuleWith("alpha", "beta")
		repo.LeaderboardPageFunc = func(ctx context.Context, db bun.IDB, id evaluationtypes.ModuleID, q evaluationdb.LeaderboardQuery) ([]evaluationdb.LeaderboardRow, int, error) {
			if q.Page > 1 {
				return nil, 2, nil
			}
			return []evaluationdb.LeaderboardRow{
				{
					AssetID: "alpha",
					Scores: evaluationtypes.ScoresByEvaluator{
						evaluationtypes.DefaultEvaluatorKey: {Rating: 1620, RD: 120, Vol: 0.059},
					},
					GamesPlayed:  10,
					TotalBattles: 10,
					Wins:         7,
					Losses:       2,
					Draws:        1,
				},
				{AssetID: "beta", GamesPlayed: 4, TotalBattles: 4, Wins: 1, Losses: 3},
			}, 2, nil
		}
		s := newTestService(repo, nil, nil, nil)

		data, err := s.ExportLeaderboard(ctx, moduleID, "")
		require.NoError(t, err)

		f, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer f.Close()

		rows, err := f.GetRows("Leaderboard")
		require.NoError(t, err)
		require.Len(t, rows, 3, "header plus two entries")
		assert.Equal(t, "Asset ID", rows[0][1])
		assert.Equal(t, "alpha", rows[1][1])
		assert.Equal(t, "1620", rows[1][2])
		// Unscored assets export their seed rating.
		assert.Equal(t, "beta", rows[2][1])
		assert.Equal(t, "1500", rows[2][2])
	})

	t.Run("module not found", func(t *testing.T) {
		repo := NewFakeRepository()
		s := newTestService(repo, nil, nil, nil)

		_, err := s.ExportLeaderboard(ctx, moduleID, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
