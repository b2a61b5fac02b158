package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/worksheetlab/server/internal/auth"
	"github.com/worksheetlab/server/internal/service"
)

// UsageHandler exposes the caller's current-window quota usage.
type UsageHandler struct {
	quota  *service.QuotaService
	logger *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(quota *service.QuotaService, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{quota: quota, logger: logger}
}

// RegisterRoutes registers the usage route on the provided mux.
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/usage", h.HandleGetUsage)
}

type usageEntry struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
	Bonus int `json:"bonus"`
}

type usageResponse struct {
	Generations usageEntry `json:"generations"`
	Downloads   usageEntry `json:"downloads"`
	PlanID      string     `json:"plan_id"`
	IsFree      bool       `json:"is_free"`
	WindowStart time.Time  `json:"window_start"`
}

// HandleGetUsage returns usage counts, limits, and remaining bonuses.
func (h *UsageHandler) HandleGetUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}

	report, err := h.quota.GetUsage(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, usageResponse{
		Generations: usageEntry{
			Used:  report.Generations.Count,
			Limit: report.Plan.MonthlyGenerations,
			Bonus: report.Generations.Bonus,
		},
		Downloads: usageEntry{
			Used:  report.Downloads.Count,
			Limit: report.Plan.MonthlyPDFs,
			Bonus: report.Downloads.Bonus,
		},
		PlanID:      report.Plan.ID,
		IsFree:      report.Plan.IsFree,
		WindowStart: report.WindowStart,
	})
}
