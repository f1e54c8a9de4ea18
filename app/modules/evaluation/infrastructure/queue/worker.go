package evaluationqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	evaluationservice "github.com/inf-monkeys/arena/app/modules/evaluation/application"
	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	"github.com/inf-monkeys/arena/internal/attr"
)

// battleJudgeWorker runs the automated judge for one battle. Errors are
// returned to River for retry with its default backoff; battles the judge
// itself gave up on are already marked failed by the service and do not come
// back here.
type battleJudgeWorker struct {
	river.WorkerDefaults[BattleJudgeJob]
	service *Service
}

func (w *battleJudgeWorker) Work(ctx context.Context, job *river.Job[BattleJudgeJob]) error {
	id, err := uuid.Parse(job.Args.BattleID)
	if err != nil {
		return fmt.Errorf("invalid battle ID %q: %w", job.Args.BattleID, err)
	}
	battleID := evaluationtypes.BattleID(id)

	w.service.logger.InfoContext(ctx, "Judging battle",
		attr.String("battle_id", battleID.String()),
		attr.Int("attempt", job.Attempt),
	)

	result, err := w.service.evalSvc.AutoEvaluateBattle(ctx, battleID)
	if err != nil {
		// Business failures are final; retrying cannot change them. The
		// judge path has already marked the battle failed where needed.
		if errors.Is(err, evaluationservice.ErrConsistency) ||
			errors.Is(err, evaluationservice.ErrNotFound) ||
			errors.Is(err, evaluationservice.ErrValidation) ||
			errors.Is(err, evaluationservice.ErrEvaluator) {
			w.service.logger.WarnContext(ctx, "Battle judging cancelled",
				attr.String("battle_id", battleID.String()),
				attr.Error(err),
			)
			return river.JobCancel(err)
		}
		return err
	}
	if result.IsFailure() {
		w.service.logger.WarnContext(ctx, "Battle judging skipped",
			attr.String("battle_id", battleID.String()),
			attr.Any("failure", result.Failure),
		)
	}
	return nil
}
