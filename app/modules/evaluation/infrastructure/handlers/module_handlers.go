package evaluationhandlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	evaluationservice "github.com/inf-monkeys/arena/app/modules/evaluation/application"
	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
)

type createModuleRequest struct {
	DisplayName        string                        `json:"display_name"`
	Description        string                        `json:"description"`
	EvaluationCriteria string                        `json:"evaluation_criteria"`
	GlickoConfig       *evaluationtypes.GlickoConfig `json:"glicko_config,omitempty"`
	ParticipantAssets  []string                      `json:"participant_assets,omitempty"`
}

// CreateModule handles POST /modules.
func (h *EvaluationHandlers) CreateModule(w http.ResponseWriter, r *http.Request) {
	var req createModuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	result, err := h.service.CreateModule(r.Context(), evaluationservice.CreateModuleInput{
		DisplayName:        req.DisplayName,
		Description:        req.Description,
		EvaluationCriteria: req.EvaluationCriteria,
		GlickoConfig:       req.GlickoConfig,
		ParticipantAssets:  toAssetIDs(req.ParticipantAssets),
	})
	h.writeResult(w, r, result, err, http.StatusCreated)
}

// GetModule handles GET /modules/{moduleID}.
func (h *EvaluationHandlers) GetModule(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := h.moduleIDParam(w, r)
	if !ok {
		return
	}
	result, err := h.service.GetModule(r.Context(), moduleID)
	h.writeResult(w, r, result, err, http.StatusOK)
}

// ListModules handles GET /modules.
func (h *EvaluationHandlers) ListModules(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 0)
	search := r.URL.Query().Get("search")

	result, err := h.service.ListModules(r.Context(), page, limit, search)
	h.writeResult(w, r, result, err, http.StatusOK)
}

type addParticipantsRequest struct {
	AssetIDs []string `json:"asset_ids"`
}

// AddParticipants handles POST /modules/{moduleID}/participants.
func (h *EvaluationHandlers) AddParticipants(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := h.moduleIDParam(w, r)
	if !ok {
		return
	}
	var req addParticipantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	result, err := h.service.AddParticipants(r.Context(), moduleID, toAssetIDs(req.AssetIDs))
	h.writeResult(w, r, result, err, http.StatusOK)
}

type createEvaluatorRequest struct {
	Name            string         `json:"name"`
	Type            string         `json:"type"`
	LLMModelName    string         `json:"llm_model_name,omitempty"`
	EvaluationFocus string         `json:"evaluation_focus,omitempty"`
	HumanUserID     string         `json:"human_user_id,omitempty"`
	Config          map[string]any `json:"config,omitempty"`
}

// CreateEvaluator handles POST /evaluators.
func (h *EvaluationHandlers) CreateEvaluator(w http.ResponseWriter, r *http.Request) {
	var req createEvaluatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	result, err := h.service.CreateEvaluator(r.Context(), evaluationservice.CreateEvaluatorInput{
		Name:            req.Name,
		Type:            evaluationtypes.EvaluatorType(strings.ToUpper(req.Type)),
		LLMModelName:    req.LLMModelName,
		EvaluationFocus: req.EvaluationFocus,
		HumanUserID:     req.HumanUserID,
		Config:          req.Config,
	})
	h.writeResult(w, r, result, err, http.StatusCreated)
}

// GetEvaluator handles GET /evaluators/{evaluatorID}.
func (h *EvaluationHandlers) GetEvaluator(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "evaluatorID")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid evaluator ID"})
		return
	}
	result, svcErr := h.service.GetEvaluator(r.Context(), evaluationtypes.EvaluatorID(id))
	h.writeResult(w, r, result, svcErr, http.StatusOK)
}

// ListEvaluators handles GET /evaluators.
func (h *EvaluationHandlers) ListEvaluators(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 0)
	search := r.URL.Query().Get("search")

	result, err := h.service.ListEvaluators(r.Context(), page, limit, search)
	h.writeResult(w, r, result, err, http.StatusOK)
}

type linkEvaluatorRequest struct {
	Weight float64 `json:"weight"`
}

// LinkEvaluator handles POST /modules/{moduleID}/evaluators/{evaluatorID}.
func (h *EvaluationHandlers) LinkEvaluator(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := h.moduleIDParam(w, r)
	if !ok {
		return
	}
	evaluatorID, err := parseUUIDParam(r, "evaluatorID")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid evaluator ID"})
		return
	}

	var req linkEvaluatorRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
	}

	result, svcErr := h.service.LinkEvaluator(r.Context(), moduleID, evaluationtypes.EvaluatorID(evaluatorID), req.Weight)
	h.writeResult(w, r, result, svcErr, http.StatusCreated)
}

// ListModuleEvaluators handles GET /modules/{moduleID}/evaluators.
func (h *EvaluationHandlers) ListModuleEvaluators(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := h.moduleIDParam(w, r)
	if !ok {
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"

	result, err := h.service.ListModuleEvaluators(r.Context(), moduleID, activeOnly)
	h.writeResult(w, r, result, err, http.StatusOK)
}

func (h *EvaluationHandlers) moduleIDParam(w http.ResponseWriter, r *http.Request) (evaluationtypes.ModuleID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "moduleID"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid module ID"})
		return evaluationtypes.ModuleID{}, false
	}
	return evaluationtypes.ModuleID(id), true
}

func toAssetIDs(raw []string) []evaluationtypes.AssetID {
	if len(raw) == 0 {
		return nil
	}
	ids := make([]evaluationtypes.AssetID, 0, len(raw))
	for _, s := range raw {
		ids = append(ids, evaluationtypes.AssetID(s))
	}
	return ids
}
