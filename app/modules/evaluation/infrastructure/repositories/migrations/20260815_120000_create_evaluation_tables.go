package evaluationmigrations

import (
	"context"
	"fmt"

	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating evaluation tables...")

		models := []any{
			(*evaluationdb.EvaluationModule)(nil),
			(*evaluationdb.Evaluator)(nil),
			(*evaluationdb.ModuleEvaluator)(nil),
			(*evaluationdb.BattleGroup)(nil),
			(*evaluationdb.EvaluationBattle)(nil),
			(*evaluationdb.LeaderboardScore)(nil),
		}
		for _, model := range models {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return err
			}
		}

		// One score row per (module, asset); the unique key is what turns a
		// concurrent create-on-first-sight race into a retriable conflict.
		_, err := db.NewRaw("CREATE UNIQUE INDEX IF NOT EXISTS idx_leaderboard_scores_module_asset ON leaderboard_scores (evaluation_module_id, asset_id)").Exec(ctx)
		if err != nil {
			return err
		}
		_, err = db.NewRaw("CREATE UNIQUE INDEX IF NOT EXISTS idx_module_evaluators_module_evaluator ON module_evaluators (evaluation_module_id, evaluator_id)").Exec(ctx)
		if err != nil {
			return err
		}
		_, err = db.NewRaw("CREATE INDEX IF NOT EXISTS idx_evaluation_battles_group ON evaluation_battles (battle_group_id)").Exec(ctx)
		if err != nil {
			return err
		}
		_, err = db.NewRaw("CREATE INDEX IF NOT EXISTS idx_evaluation_battles_module ON evaluation_battles (evaluation_module_id)").Exec(ctx)
		if err != nil {
			return err
		}
		_, err = db.NewRaw("CREATE INDEX IF NOT EXISTS idx_evaluation_battles_module_completed ON evaluation_battles (evaluation_module_id, completed_at DESC) WHERE result IS NOT NULL").Exec(ctx)
		if err != nil {
			return err
		}
		_, err = db.NewRaw("CREATE INDEX IF NOT EXISTS idx_battle_groups_module ON battle_groups (evaluation_module_id)").Exec(ctx)
		if err != nil {
			return err
		}

		fmt.Println("Evaluation tables created successfully!")
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping evaluation tables...")

		models := []any{
			(*evaluationdb.LeaderboardScore)(nil),
			(*evaluationdb.EvaluationBattle)(nil),
			(*evaluationdb.BattleGroup)(nil),
			(*evaluationdb.ModuleEvaluator)(nil),
			(*evaluationdb.Evaluator)(nil),
			(*evaluationdb.EvaluationModule)(nil),
		}
		for _, model := range models {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return err
			}
		}

		fmt.Println("Evaluation tables dropped successfully!")
		return nil
	})
}
