package evaluationhandlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
	"github.com/inf-monkeys/arena/internal/attr"
	"github.com/inf-monkeys/arena/internal/results"
)

// GetLeaderboard handles GET /modules/{moduleID}/leaderboard.
func (h *EvaluationHandlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := h.moduleIDParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	query := evaluationdb.LeaderboardQuery{
		EvaluatorKey: q.Get("evaluator"),
		Page:         queryInt(r, "page", 1),
		Limit:        queryInt(r, "limit", 0),
		SortBy:       evaluationdb.LeaderboardSort(q.Get("sortBy")),
		Ascending:    q.Get("order") == "asc",
		MinBattles:   queryInt(r, "minBattles", 0),
		Search:       q.Get("search"),
	}

	result, err := h.service.GetLeaderboard(r.Context(), moduleID, query)
	h.writeResult(w, r, result, err, http.StatusOK)
}

// GetLeaderboardStats handles GET /modules/{moduleID}/leaderboard/stats.
func (h *EvaluationHandlers) GetLeaderboardStats(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := h.moduleIDParam(w, r)
	if !ok {
		return
	}
	result, err := h.service.GetLeaderboardStats(r.Context(), moduleID, r.URL.Query().Get("evaluator"))
	h.writeResult(w, r, result, err, http.StatusOK)
}

// ExportLeaderboard handles GET /modules/{moduleID}/leaderboard/export,
// streaming the standings as an xlsx workbook.
func (h *EvaluationHandlers) ExportLeaderboard(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := h.moduleIDParam(w, r)
	if !ok {
		return
	}
	data, err := h.service.ExportLeaderboard(r.Context(), moduleID, r.URL.Query().Get("evaluator"))
	if err != nil {
		h.writeResult(w, r, results.OperationResult{}, err, http.StatusOK)
		return
	}

	filename := fmt.Sprintf("leaderboard-%s.xlsx", moduleID.String())
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write(data); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to write export", attr.Error(err))
	}
}

// GetAssetHistory handles GET /modules/{moduleID}/assets/{assetID}/history.
func (h *EvaluationHandlers) GetAssetHistory(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := h.moduleIDParam(w, r)
	if !ok {
		return
	}
	assetID := evaluationtypes.AssetID(chi.URLParam(r, "assetID"))
	evaluatorID, ok := h.evaluatorFilter(w, r)
	if !ok {
		return
	}

	result, err := h.service.GetAssetHistory(r.Context(), moduleID, assetID, evaluatorID, queryInt(r, "limit", 0))
	h.writeResult(w, r, result, err, http.StatusOK)
}

// GetRatingTrends handles GET /modules/{moduleID}/trends. Assets come in as a
// comma-separated "assets" query parameter.
func (h *EvaluationHandlers) GetRatingTrends(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := h.moduleIDParam(w, r)
	if !ok {
		return
	}
	assetIDs := splitAssets(r.URL.Query().Get("assets"))
	evaluatorID, ok := h.evaluatorFilter(w, r)
	if !ok {
		return
	}

	result, err := h.service.GetRatingTrends(r.Context(), moduleID, assetIDs, evaluatorID, queryInt(r, "limit", 0))
	h.writeResult(w, r, result, err, http.StatusOK)
}

// RenderRatingTrendChart handles GET /modules/{moduleID}/trends/chart,
// returning a PNG of the selected assets' rating trajectories.
func (h *EvaluationHandlers) RenderRatingTrendChart(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := h.moduleIDParam(w, r)
	if !ok {
		return
	}
	assetIDs := splitAssets(r.URL.Query().Get("assets"))
	evaluatorID, ok := h.evaluatorFilter(w, r)
	if !ok {
		return
	}

	png, err := h.service.RenderRatingTrendChart(r.Context(), moduleID, assetIDs, evaluatorID, queryInt(r, "limit", 0))
	if err != nil {
		h.writeResult(w, r, results.OperationResult{}, err, http.StatusOK)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(png); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to write chart", attr.Error(err))
	}
}

func (h *EvaluationHandlers) evaluatorFilter(w http.ResponseWriter, r *http.Request) (*evaluationtypes.EvaluatorID, bool) {
	raw := r.URL.Query().Get("evaluator")
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid evaluator ID"})
		return nil, false
	}
	evaluatorID := evaluationtypes.EvaluatorID(id)
	return &evaluatorID, true
}

func splitAssets(raw string) []evaluationtypes.AssetID {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]evaluationtypes.AssetID, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			ids = append(ids, evaluationtypes.AssetID(p))
		}
	}
	return ids
}
