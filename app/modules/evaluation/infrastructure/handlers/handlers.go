// Package evaluationhandlers exposes the evaluation service over HTTP.
package evaluationhandlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	evaluationservice "github.com/inf-monkeys/arena/app/modules/evaluation/application"
	"github.com/inf-monkeys/arena/internal/attr"
	"github.com/inf-monkeys/arena/internal/results"

	"log/slog"
)

// EvaluationHandlers handles the evaluation module's HTTP routes.
type EvaluationHandlers struct {
	service evaluationservice.Service
	logger  *slog.Logger
}

// NewEvaluationHandlers creates the handler set.
func NewEvaluationHandlers(service evaluationservice.Service, logger *slog.Logger) *EvaluationHandlers {
	return &EvaluationHandlers{service: service, logger: logger}
}

// RegisterRoutes mounts the evaluation routes on the given router.
func (h *EvaluationHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/evaluation", func(r chi.Router) {
		r.Use(correlationMiddleware)

		r.Post("/modules", h.CreateModule)
		r.Get("/modules", h.ListModules)
		r.Get("/modules/{moduleID}", h.GetModule)
		r.Post("/modules/{moduleID}/participants", h.AddParticipants)

		r.Post("/evaluators", h.CreateEvaluator)
		r.Get("/evaluators", h.ListEvaluators)
		r.Get("/evaluators/{evaluatorID}", h.GetEvaluator)
		r.Post("/modules/{moduleID}/evaluators/{evaluatorID}", h.LinkEvaluator)
		r.Get("/modules/{moduleID}/evaluators", h.ListModuleEvaluators)

		r.Post("/modules/{moduleID}/battle-groups", h.CreateBattleGroup)
		r.Get("/modules/{moduleID}/battle-groups", h.ListBattleGroups)
		r.Get("/battle-groups/{groupID}", h.GetBattleGroup)
		r.Get("/battle-groups/{groupID}/battles", h.ListGroupBattles)
		r.Post("/battle-groups/{groupID}/auto-evaluate", h.AutoEvaluateBattleGroup)
		r.Get("/battles/{battleID}", h.GetBattle)
		r.Get("/modules/{moduleID}/battles", h.ListModuleBattles)
		r.Get("/modules/{moduleID}/battles/recent", h.GetRecentBattles)
		r.Post("/battles/{battleID}/resolve", h.ResolveBattle)
		r.Post("/battles/{battleID}/fail", h.ReportBattleFailure)
		r.Post("/battles/{battleID}/auto-evaluate", h.AutoEvaluateBattle)

		r.Get("/modules/{moduleID}/leaderboard", h.GetLeaderboard)
		r.Get("/modules/{moduleID}/leaderboard/stats", h.GetLeaderboardStats)
		r.Get("/modules/{moduleID}/leaderboard/export", h.ExportLeaderboard)
		r.Get("/modules/{moduleID}/assets/{assetID}/history", h.GetAssetHistory)
		r.Get("/modules/{moduleID}/trends", h.GetRatingTrends)
		r.Get("/modules/{moduleID}/trends/chart", h.RenderRatingTrendChart)
	})
}

// correlationMiddleware stashes the caller's correlation ID (or a fresh one)
// in the request context.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		ctx := attr.WithCorrelationID(r.Context(), correlationID)
		w.Header().Set("X-Correlation-ID", correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *EvaluationHandlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", attr.Error(err))
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeResult translates a service result into an HTTP response. Business
// failures ride on the error taxonomy; infrastructure errors stay opaque.
func (h *EvaluationHandlers) writeResult(w http.ResponseWriter, r *http.Request, result results.OperationResult, err error, successStatus int) {
	if err != nil {
		status := http.StatusInternalServerError
		msg := "internal error"
		switch {
		case errors.Is(err, evaluationservice.ErrValidation):
			status, msg = http.StatusBadRequest, err.Error()
		case errors.Is(err, evaluationservice.ErrNotFound):
			status, msg = http.StatusNotFound, err.Error()
		case errors.Is(err, evaluationservice.ErrConsistency):
			status, msg = http.StatusConflict, err.Error()
		case errors.Is(err, evaluationservice.ErrConcurrency):
			status, msg = http.StatusConflict, "conflicting concurrent update, retry"
		case errors.Is(err, evaluationservice.ErrEvaluator):
			status, msg = http.StatusBadGateway, err.Error()
		default:
			h.logger.ErrorContext(r.Context(), "Handler error",
				attr.ExtractCorrelationID(r.Context()),
				attr.Error(err),
			)
		}
		h.writeJSON(w, status, errorBody{Error: msg})
		return
	}
	if result.IsFailure() {
		h.writeJSON(w, http.StatusUnprocessableEntity, result.Failure)
		return
	}
	h.writeJSON(w, successStatus, result.Success)
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
