package audit_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"summit-ticketing/internal/audit"
	"summit-ticketing/internal/errs"
	"summit-ticketing/internal/logger"
	"summit-ticketing/internal/models"
	"summit-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Recorder *audit.Recorder
	Logger   *logger.Logger
}

func NewHandler(recorder *audit.Recorder, log *logger.Logger) *Handler {
	return &Handler{Recorder: recorder, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/audit-logs", h.ListAuditLogs)
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := models.AuditLogFilters{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		ActorID:    q.Get("user_id"),
	}
	if raw := q.Get("start_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid start_date", "expected RFC3339 timestamp"))
			return
		}
		filters.StartDate = t
	}
	if raw := q.Get("end_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid end_date", "expected RFC3339 timestamp"))
			return
		}
		filters.EndDate = t
	}

	page := models.Page{
		Number: intParam(q.Get("page"), 1),
		Limit:  intParam(q.Get("limit"), 20),
	}

	list, err := h.Recorder.Query(r.Context(), filters, page)
	if err != nil {
		status := errs.HTTPStatus(err)
		if status >= 500 {
			h.Logger.Error("API", fmt.Sprintf("ListAuditLogs: %v", err))
		}
		writeJSON(w, status, utils.ReasonResponse("Request failed", err.Error(), errs.ReasonOf(err)))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Audit logs listed", list))
}

func writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
