package purchase_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"summit-ticketing/internal/auth"
	"summit-ticketing/internal/errs"
	"summit-ticketing/internal/logger"
	"summit-ticketing/internal/models"
	"summit-ticketing/internal/purchase"
	"summit-ticketing/internal/qr"
	"summit-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
)

// AttendeeStore is the lookup the QR endpoint needs beyond the purchase
// service surface.
type AttendeeStore interface {
	GetAttendeeByID(ctx context.Context, id string) (*models.Attendee, error)
}

type Handler struct {
	Service   *purchase.Service
	Attendees AttendeeStore
	QR        *qr.Generator
	Logger    *logger.Logger
}

func NewHandler(service *purchase.Service, attendees AttendeeStore, qrGen *qr.Generator, log *logger.Logger) *Handler {
	return &Handler{Service: service, Attendees: attendees, QR: qrGen, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/purchases", func(r chi.Router) {
		r.Post("/", h.CreatePurchase)
		r.Get("/", h.ListPurchases)
		r.Get("/{purchaseId}", h.GetPurchase)
	})
	r.Get("/attendees/{attendeeId}/qr", h.AttendeeQR)
}

// RegisterAdminRoutes holds the status override, which is an administrative
// action and mounts behind the admin check.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Patch("/purchases/{purchaseId}/status", h.UpdateStatus)
}

func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreatePurchase: failed to decode request body: %v", err))
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	actorID := auth.UserID(r.Context())
	created, err := h.Service.Create(r.Context(), actorID, req)
	if err != nil {
		h.writeError(w, "CreatePurchase", err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("CreatePurchase: purchase %s created", created.ID))
	writeJSON(w, http.StatusCreated, utils.SuccessResponse("Purchase created", created))
}

func (h *Handler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	purchaseID := chi.URLParam(r, "purchaseId")

	found, err := h.Service.Get(r.Context(), purchaseID)
	if err != nil {
		h.writeError(w, "GetPurchase", err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Purchase found", found))
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	purchaseID := chi.URLParam(r, "purchaseId")

	var req struct {
		Status models.PurchaseStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	actorID := auth.UserID(r.Context())
	updated, err := h.Service.Transition(r.Context(), actorID, purchaseID, req.Status)
	if err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("UpdateStatus: purchase %s -> %s", purchaseID, req.Status))
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Purchase status updated", updated))
}

func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := models.PurchaseListFilters{
		Status:        q.Get("status"),
		PaymentStatus: q.Get("paymentStatus"),
		TicketType:    q.Get("ticketType"),
		SearchTerm:    q.Get("searchTerm"),
	}
	if from := q.Get("dateFrom"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid dateFrom", "expected RFC3339 timestamp"))
			return
		}
		filters.DateFrom = t
	}
	if to := q.Get("dateTo"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid dateTo", "expected RFC3339 timestamp"))
			return
		}
		filters.DateTo = t
	}

	page := models.Page{
		Number: intParam(q.Get("page"), 1),
		Limit:  intParam(q.Get("limit"), 20),
	}

	list, err := h.Service.List(r.Context(), filters, page)
	if err != nil {
		h.writeError(w, "ListPurchases", err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Purchases listed", list))
}

func (h *Handler) AttendeeQR(w http.ResponseWriter, r *http.Request) {
	attendeeID := chi.URLParam(r, "attendeeId")

	attendee, err := h.Attendees.GetAttendeeByID(r.Context(), attendeeID)
	if err != nil {
		h.writeError(w, "AttendeeQR", err)
		return
	}

	png, err := h.QR.GenerateAttendeeQR(*attendee)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("AttendeeQR: generate for %s: %v", attendeeID, err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to generate QR code", err.Error()))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("AttendeeQR: write response: %v", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := errs.HTTPStatus(err)
	if status >= 500 {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	}
	resp := utils.ReasonResponse("Request failed", err.Error(), errs.ReasonOf(err))
	if cid := errs.CorrelationOf(err); cid != "" {
		resp.Error = "unexpected internal error, correlation id " + cid
	}
	writeJSON(w, status, resp)
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
