package reconcile_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"summit-ticketing/internal/auth"
	"summit-ticketing/internal/errs"
	"summit-ticketing/internal/logger"
	"summit-ticketing/internal/models"
	"summit-ticketing/internal/reconcile"
	"summit-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *reconcile.Service
	Logger  *logger.Logger
}

func NewHandler(service *reconcile.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Patch("/payments/{transactionId}/reconcile", h.Reconcile)
	r.Get("/purchases/{purchaseId}/transactions", h.ListForPurchase)
	r.Post("/payments/gateway-events", h.IngestGatewayEvent)
}

// Reconcile is the manual override for transactions the gateway reported
// wrong or never reported at all.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")

	var req models.ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	actorID := auth.UserID(r.Context())
	txn, err := h.Service.Reconcile(r.Context(), actorID, transactionID, req.Status, req.Notes)
	if err != nil {
		h.writeError(w, "Reconcile", err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("Reconcile: transaction %s set to %s by %s", transactionID, req.Status, actorID))
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Transaction reconciled", txn))
}

func (h *Handler) ListForPurchase(w http.ResponseWriter, r *http.Request) {
	purchaseID := chi.URLParam(r, "purchaseId")

	txns, err := h.Service.ListForPurchase(r.Context(), purchaseID)
	if err != nil {
		h.writeError(w, "ListForPurchase", err)
		return
	}
	if txns == nil {
		txns = []models.PaymentTransaction{}
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Transactions listed", txns))
}

// IngestGatewayEvent accepts a gateway report over HTTP. It shares the
// Kafka consumer's sink, so duplicate deliveries collapse the same way.
func (h *Handler) IngestGatewayEvent(w http.ResponseWriter, r *http.Request) {
	var event models.GatewayEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	txn, err := h.Service.RecordTransaction(r.Context(), event.PurchaseID, event.GatewayRef, event.Amount, event.Status)
	if err != nil {
		h.writeError(w, "IngestGatewayEvent", err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Gateway event recorded", txn))
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
