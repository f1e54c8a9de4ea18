package evaluationhandlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	evaluationservice "github.com/inf-monkeys/arena/app/modules/evaluation/application"
	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
)

type createBattleGroupRequest struct {
	AssetIDs     []string `json:"asset_ids,omitempty"`
	Strategy     string   `json:"strategy,omitempty"`
	BattleCount  int      `json:"battle_count,omitempty"`
	Description  string   `json:"description,omitempty"`
	EvaluatorID  string   `json:"evaluator_id,omitempty"`
	AutoEvaluate bool     `json:"auto_evaluate,omitempty"`
}

// CreateBattleGroup handles POST /modules/{moduleID}/battle-groups.
func (h *EvaluationHandlers) CreateBattleGroup(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := h.moduleIDParam(w, r)
	if !ok {
		return
	}
	var req createBattleGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	input := evaluationservice.CreateBattleGroupInput{
		ModuleID:     moduleID,
		AssetIDs:     toAssetIDs(req.AssetIDs),
		Strategy:     evaluationtypes.BattleStrategy(strings.ToUpper(req.Strategy)),
		BattleCount:  req.BattleCount,
		Description:  req.Description,
		AutoEvaluate: req.AutoEvaluate,
	}
	if req.EvaluatorID != "" {
		id, err := uuid.Parse(req.EvaluatorID)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid evaluator ID"})
			return
		}
		evaluatorID := evaluationtypes.EvaluatorID(id)
		input.EvaluatorID = &evaluatorID
	}

	result, err := h.service.CreateBattleGroup(r.Context(), input)
	h.writeResult(w, r, result, err, http.StatusCreated)
}

// GetBattleGroup handles GET /battle-groups/{groupID}.
func (h *EvaluationHandlers) GetBattleGroup(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "groupID")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid battle group ID"})
		return
	}
	result, svcErr := h.service.GetBattleGroup(r.Context(), evaluationtypes.BattleGroupID(id))
	h.writeResult(w, r, result, svcErr, http.StatusOK)
}

// ListBattleGroups handles GET /modules/{moduleID}/battle-groups.
func (h *EvaluationHandlers) ListBattleGroups(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := h.moduleIDParam(w, r)
	if !ok {
		return
	}
	result, err := h.service.ListBattleGroups(r.Context(), moduleID, queryInt(r, "page", 1), queryInt(r, "limit", 0))
	h.writeResult(w, r, result, err, http.StatusOK)
}

// ListGroupBattles handles GET /battle-groups/{groupID}/battles.
func (h *EvaluationHandlers) ListGroupBattles(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "groupID")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid battle group ID"})
		return
	}
	pendingOnly := r.URL.Query().Get("pending") == "true"

	result, svcErr := h.service.ListGroupBattles(r.Context(), evaluationtypes.BattleGroupID(id), pendingOnly)
	h.writeResult(w, r, result, svcErr, http.StatusOK)
}

// GetBattle handles GET /battles/{battleID}.
func (h *EvaluationHandlers) GetBattle(w http.ResponseWriter, r *http.Request) {
	battleID, ok := h.battleIDParam(w, r)
	if !ok {
		return
	}
	result, err := h.service.GetBattle(r.Context(), battleID)
	h.writeResult(w, r, result, err, http.StatusOK)
}

// ListModuleBattles handles GET /modules/{moduleID}/battles.
func (h *EvaluationHandlers) ListModuleBattles(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := h.moduleIDParam(w, r)
	if !ok {
		return
	}
	result, err := h.service.ListModuleBattles(r.Context(), moduleID, queryInt(r, "page", 1), queryInt(r, "limit", 0))
	h.writeResult(w, r, result, err, http.StatusOK)
}

// GetRecentBattles handles GET /modules/{moduleID}/battles/recent.
func (h *EvaluationHandlers) GetRecentBattles(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := h.moduleIDParam(w, r)
	if !ok {
		return
	}
	since := time.Now().AddDate(0, 0, -7)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid since timestamp, want RFC3339"})
			return
		}
		since = parsed
	}

	result, err := h.service.GetRecentBattles(r.Context(), moduleID, since, queryInt(r, "limit", 0))
	h.writeResult(w, r, result, err, http.StatusOK)
}

type resolveBattleRequest struct {
	Result      string `json:"result"`
	Reason      string `json:"reason,omitempty"`
	EvaluatorID string `json:"evaluator_id,omitempty"`
}

// ResolveBattle handles POST /battles/{battleID}/resolve.
func (h *EvaluationHandlers) ResolveBattle(w http.ResponseWriter, r *http.Request) {
	battleID, ok := h.battleIDParam(w, r)
	if !ok {
		return
	}
	var req resolveBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	input := evaluationservice.ResolveBattleInput{
		BattleID: battleID,
		Result:   evaluationtypes.BattleResult(strings.ToUpper(req.Result)),
		Reason:   req.Reason,
	}
	if req.EvaluatorID != "" {
		id, err := uuid.Parse(req.EvaluatorID)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid evaluator ID"})
			return
		}
		evaluatorID := evaluationtypes.EvaluatorID(id)
		input.EvaluatorID = &evaluatorID
	}

	result, err := h.service.ResolveBattle(r.Context(), input)
	h.writeResult(w, r, result, err, http.StatusOK)
}

type failBattleRequest struct {
	Reason string `json:"reason"`
}

// ReportBattleFailure handles POST /battles/{battleID}/fail.
func (h *EvaluationHandlers) ReportBattleFailure(w http.ResponseWriter, r *http.Request) {
	battleID, ok := h.battleIDParam(w, r)
	if !ok {
		return
	}
	var req failBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	result, err := h.service.ReportBattleFailure(r.Context(), battleID, req.Reason)
	h.writeResult(w, r, result, err, http.StatusOK)
}

// AutoEvaluateBattle handles POST /battles/{battleID}/auto-evaluate. The
// battle is judged synchronously; batch judging goes through the queue.
func (h *EvaluationHandlers) AutoEvaluateBattle(w http.ResponseWriter, r *http.Request) {
	battleID, ok := h.battleIDParam(w, r)
	if !ok {
		return
	}
	result, err := h.service.AutoEvaluateBattle(r.Context(), battleID)
	h.writeResult(w, r, result, err, http.StatusOK)
}

// AutoEvaluateBattleGroup handles POST /battle-groups/{groupID}/auto-evaluate.
func (h *EvaluationHandlers) AutoEvaluateBattleGroup(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "groupID")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid battle group ID"})
		return
	}
	result, svcErr := h.service.AutoEvaluateBattleGroup(r.Context(), evaluationtypes.BattleGroupID(id))
	h.writeResult(w, r, result, svcErr, http.StatusAccepted)
}

func (h *EvaluationHandlers) battleIDParam(w http.ResponseWriter, r *http.Request) (evaluationtypes.BattleID, bool) {
	id, err := parseUUIDParam(r, "battleID")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid battle ID"})
		return evaluationtypes.BattleID{}, false
	}
	return evaluationtypes.BattleID(id), true
}
