package promo_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"summit-ticketing/internal/analytics"
	"summit-ticketing/internal/errs"
	"summit-ticketing/internal/logger"
	"summit-ticketing/internal/models"
	"summit-ticketing/internal/promo"
	"summit-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service   *promo.Service
	Analytics *analytics.Service
	Logger    *logger.Logger
}

func NewHandler(service *promo.Service, stats *analytics.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Analytics: stats, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/promo-codes", func(r chi.Router) {
		r.Post("/validate", h.ValidatePromo)
		r.Get("/{promoId}/usage", h.PromoUsage)
	})
}

// ValidatePromo is read-only: it reports whether the code would apply right
// now, without consuming a redemption.
func (h *Handler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	var req models.ValidatePromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}
	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", "code is required"))
		return
	}

	result, err := h.Service.Validate(r.Context(), req.Code, req.TicketTypeIDs, time.Now())
	if err != nil {
		h.writeError(w, "ValidatePromo", err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Promo code checked", result))
}

func (h *Handler) PromoUsage(w http.ResponseWriter, r *http.Request) {
	promoID := chi.URLParam(r, "promoId")

	usage, err := h.Analytics.GetPromoUsage(r.Context(), promoID)
	if err != nil {
		h.writeError(w, "PromoUsage", err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Promo usage", usage))
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
