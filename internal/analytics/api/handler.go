package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"summit-ticketing/internal/analytics"
	"summit-ticketing/internal/errs"
	"summit-ticketing/internal/export"
	"summit-ticketing/internal/logger"
	"summit-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service  *analytics.Service
	Exporter *export.Exporter
	Logger   *logger.Logger
}

func NewHandler(service *analytics.Service, exporter *export.Exporter, log *logger.Logger) *Handler {
	return &Handler{Service: service, Exporter: exporter, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/summary", h.Summary)
		r.Get("/promo-codes", h.PromoStats)
	})
	r.Get("/attendees/export", h.ExportAttendees)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var from, to time.Time
	if raw := q.Get("dateFrom"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid dateFrom", "expected RFC3339 timestamp"))
			return
		}
		from = t
	}
	if raw := q.Get("dateTo"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid dateTo", "expected RFC3339 timestamp"))
			return
		}
		to = t
	}

	summary, err := h.Service.GetSummary(r.Context(), from, to)
	if err != nil {
		h.writeError(w, "Summary", err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Analytics summary", summary))
}

func (h *Handler) PromoStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.GetPromoStats(r.Context())
	if err != nil {
		h.writeError(w, "PromoStats", err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Promo code stats", stats))
}

func (h *Handler) ExportAttendees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := export.Filters{
		Status:        q.Get("status"),
		PaymentStatus: q.Get("payment_status"),
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="attendees.csv"`)

	if err := h.Exporter.WriteCSV(r.Context(), w, filters); err != nil {
		// Headers may already be out; log instead of rewriting the response.
		h.Logger.Error("API", fmt.Sprintf("ExportAttendees: %v", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := errs.HTTPStatus(err)
	if status >= 500 {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	}
	writeJSON(w, status, utils.ReasonResponse("Request failed", err.Error(), errs.ReasonOf(err)))
}

func writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
