package evaluationservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
)

// exportPageSize is how many leaderboard rows are pulled per page while
// streaming the export.
const exportPageSize = 500

// ExportLeaderboard renders the full leaderboard of one rating track as an
// XLSX workbook.
func (s *EvaluationService) ExportLeaderboard(ctx context.Context, moduleID evaluationtypes.ModuleID, evaluatorKey string) ([]byte, error) {
	module, err := s.repo.GetModule(ctx, s.db, moduleID)
	if err != nil {
		if errors.Is(err, evaluationdb.ErrNotFound) {
			return nil, fmt.Errorf("ExportLeaderboard: %w: module %s", ErrNotFound, moduleID)
		}
		return nil, fmt.Errorf("ExportLeaderboard: %w", err)
	}

	key := evaluatorKey
	if key == "" {
		key = evaluationtypes.DefaultEvaluatorKey
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Leaderboard"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Rank", "Asset ID", "Rating", "RD", "Volatility", "Games Played", "Battles", "Wins", "Losses", "Draws", "Win Rate"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("ExportLeaderboard: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("ExportLeaderboard: %w", err)
		}
	}

	seed := module.GlickoConfig.Seed()
	rank := 0
	for page := 1; ; page++ {
		rows, total, err := s.repo.LeaderboardPage(ctx, s.db, moduleID, evaluationdb.LeaderboardQuery{
			EvaluatorKey: key,
			Page:         page,
			Limit:        exportPageSize,
			SortBy:       evaluationdb.SortByRating,
		})
		if err != nil {
			return nil, fmt.Errorf("ExportLeaderboard: %w", err)
		}

		for _, row := range rows {
			rank++
			rating := row.Scores.Track(key, seed)
			winRate := 0.0
			if row.TotalBattles > 0 {
				winRate = float64(row.Wins) / float64(row.TotalBattles)
			}
			values := []any{
				rank,
				string(row.AssetID),
				rating.Rating,
				rating.RD,
				rating.Vol,
				row.GamesPlayed,
				row.TotalBattles,
				row.Wins,
				row.Losses,
				row.Draws,
				winRate,
			}
			for i, v := range values {
				cell, err := excelize.CoordinatesToCellName(i+1, rank+1)
				if err != nil {
					return nil, fmt.Errorf("ExportLeaderboard: %w", err)
				}
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return nil, fmt.Errorf("ExportLeaderboard: %w", err)
				}
			}
		}

		if rank >= total || len(rows) == 0 {
			break
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("ExportLeaderboard: %w", err)
	}
	return buf.Bytes(), nil
}
