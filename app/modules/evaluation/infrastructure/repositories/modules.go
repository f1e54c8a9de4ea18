package evaluationdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
)

// CreateModule inserts a new evaluation module row.
func (r *Impl) CreateModule(ctx context.Context, db bun.IDB, module *EvaluationModule) error {
	if _, err := db.NewInsert().Model(module).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert evaluation module: %w", err)
	}
	return nil
}

// GetModule fetches a module by ID.
func (r *Impl) GetModule(ctx context.Context, db bun.IDB, id evaluationtypes.ModuleID) (*EvaluationModule, error) {
	module := new(EvaluationModule)
	err := db.NewSelect().Model(module).Where("em.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get evaluation module: %w", err)
	}
	return module, nil
}

// ListModules returns one page of modules plus the total count.
func (r *Impl) ListModules(ctx context.Context, db bun.IDB, page, limit int, search string) ([]EvaluationModule, int, error) {
	var modules []EvaluationModule
	q := db.NewSelect().Model(&modules).Where("em.is_active = ?", true)
	if search != "" {
		q = q.Where("em.display_name ILIKE ?", "%"+search+"%")
	}
	total, err := q.Order("em.created_at DESC").
		Offset(pageOffset(page, limit)).
		Limit(limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list evaluation modules: %w", err)
	}
	return modules, total, nil
}

// AddParticipants merges the given asset IDs into the module's participant
// list, deduplicated, preserving existing order.
func (r *Impl) AddParticipants(ctx context.Context, db bun.IDB, id evaluationtypes.ModuleID, assetIDs []evaluationtypes.AssetID) error {
	module := new(EvaluationModule)
	err := db.NewSelect().Model(module).Where("em.id = ?", id).For("UPDATE").Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load module for participant merge: %w", err)
	}

	existing := make(map[evaluationtypes.AssetID]struct{}, len(module.ParticipantAssetIDs))
	for _, a := range module.ParticipantAssetIDs {
		existing[a] = struct{}{}
	}
	merged := module.ParticipantAssetIDs
	for _, a := range assetIDs {
		if _, ok := existing[a]; ok {
			continue
		}
		existing[a] = struct{}{}
		merged = append(merged, a)
	}
	if len(merged) == len(module.ParticipantAssetIDs) {
		return nil
	}

	_, err = db.NewUpdate().
		Model((*EvaluationModule)(nil)).
		Set("participant_asset_ids = ?", merged).
		Set("updated_at = current_timestamp").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update module participants: %w", err)
	}
	return nil
}

// CreateEvaluator inserts a new evaluator row.
func (r *Impl) CreateEvaluator(ctx context.Context, db bun.IDB, evaluator *Evaluator) error {
	if _, err := db.NewInsert().Model(evaluator).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert evaluator: %w", err)
	}
	return nil
}

// GetEvaluator fetches an evaluator by ID.
func (r *Impl) GetEvaluator(ctx context.Context, db bun.IDB, id evaluationtypes.EvaluatorID) (*Evaluator, error) {
	evaluator := new(Evaluator)
	err := db.NewSelect().Model(evaluator).Where("ev.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get evaluator: %w", err)
	}
	return evaluator, nil
}

// ListEvaluators returns one page of evaluators plus the total count.
func (r *Impl) ListEvaluators(ctx context.Context, db bun.IDB, page, limit int, search string) ([]Evaluator, int, error) {
	var evaluators []Evaluator
	q := db.NewSelect().Model(&evaluators)
	if search != "" {
		q = q.Where("ev.name ILIKE ?", "%"+search+"%")
	}
	total, err := q.Order("ev.created_at DESC").
		Offset(pageOffset(page, limit)).
		Limit(limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list evaluators: %w", err)
	}
	return evaluators, total, nil
}

// LinkEvaluator attaches an evaluator to a module. The unique index on
// (module, evaluator) rejects duplicates.
func (r *Impl) LinkEvaluator(ctx context.Context, db bun.IDB, link *ModuleEvaluator) error {
	if _, err := db.NewInsert().Model(link).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateLink
		}
		return fmt.Errorf("failed to link evaluator to module: %w", err)
	}
	return nil
}

// ListModuleEvaluators returns the evaluators linked to a module, optionally
// only the active links.
func (r *Impl) ListModuleEvaluators(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, activeOnly bool) ([]Evaluator, error) {
	var evaluators []Evaluator
	q := db.NewSelect().
		Model(&evaluators).
		Join("JOIN module_evaluators AS me ON me.evaluator_id = ev.id").
		Where("me.evaluation_module_id = ?", moduleID)
	if activeOnly {
		q = q.Where("me.is_active = ?", true).Where("ev.is_active = ?", true)
	}
	if err := q.Order("me.created_at ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list module evaluators: %w", err)
	}
	return evaluators, nil
}

func pageOffset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
