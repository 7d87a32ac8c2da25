package purchase

import (
	"context"
	"fmt"
	"time"

	"summit-ticketing/internal/errs"
	"summit-ticketing/internal/logger"
	"summit-ticketing/internal/models"

	"github.com/google/uuid"
)

type DBLayer interface {
	CreatePurchase(ctx context.Context, purchase *models.Purchase, items []models.PurchaseItem, attendees []models.Attendee) error
	GetPurchaseByID(ctx context.Context, id string) (*models.Purchase, error)
	UpdateStatus(ctx context.Context, id string, status models.PurchaseStatus, paymentStatus models.PaymentState) error
	ListPurchases(ctx context.Context, filters models.PurchaseListFilters, page models.Page) ([]models.Purchase, int, error)
	UpdatePaymentStatus(ctx context.Context, id string, paymentStatus models.PaymentState) error
	GetPurchaser(ctx context.Context, id string) (*models.Purchaser, error)
}

type PromoValidator interface {
	Validate(ctx context.Context, code string, ticketTypeIDs []string, now time.Time) (*models.PromoValidation, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, entityType, entityID string, before, after any) error
}

type EventPublisher interface {
	PublishPurchaseCreated(purchase models.Purchase) error
	PublishPurchaseStatusChanged(purchase models.Purchase) error
}

type Notifier interface {
	PurchaseConfirmed(purchase models.Purchase)
}

// Service owns the purchase lifecycle: checkout, the status state machine
// and listing. Handlers stay stateless; every correctness property lives in
// the store.
type Service struct {
	DB           DBLayer
	Promo        PromoValidator
	Audit        AuditRecorder
	Events       EventPublisher
	Notify       Notifier
	Logger       *logger.Logger
	StoreTimeout time.Duration
}

func NewService(db DBLayer, promo PromoValidator, audit AuditRecorder, events EventPublisher, notify Notifier, log *logger.Logger, storeTimeout time.Duration) *Service {
	return &Service{
		DB:           db,
		Promo:        promo,
		Audit:        audit,
		Events:       events,
		Notify:       notify,
		Logger:       log,
		StoreTimeout: storeTimeout,
	}
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.StoreTimeout)
}

// Create validates the request, computes totals and the promo discount, and
// commits the pending purchase together with the promo redemption. All
// validation happens before any write.
func (s *Service) Create(ctx context.Context, actorID string, req models.CreatePurchaseRequest) (*models.Purchase, error) {
	if req.PurchaserID == "" {
		return nil, errs.Validation("purchaser_id", "purchaser_id is required")
	}
	if len(req.Items) == 0 {
		return nil, errs.Validation("items", "at least one item is required")
	}

	var total float64
	ticketTypeIDs := make([]string, 0, len(req.Items))
	typeNames := make(map[string]string, len(req.Items))
	for i, item := range req.Items {
		if item.TicketTypeID == "" {
			return nil, errs.Validation("items", fmt.Sprintf("item %d: ticket_type_id is required", i))
		}
		if item.Quantity <= 0 {
			return nil, errs.Validation("items", fmt.Sprintf("item %d: quantity must be positive", i))
		}
		if item.UnitPrice < 0 {
			return nil, errs.Validation("items", fmt.Sprintf("item %d: unit_price must not be negative", i))
		}
		total += float64(item.Quantity) * item.UnitPrice
		ticketTypeIDs = append(ticketTypeIDs, item.TicketTypeID)
		typeNames[item.TicketTypeID] = item.TicketTypeName
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if _, err := s.DB.GetPurchaser(ctx, req.PurchaserID); err != nil {
		return nil, wrapStore("load purchaser", err)
	}

	var discount float64
	if req.PromoCode != "" {
		validation, err := s.Promo.Validate(ctx, req.PromoCode, ticketTypeIDs, time.Now())
		if err != nil {
			return nil, wrapStore("validate promo code", err)
		}
		if !validation.Valid {
			return nil, errs.Conflict(validation.Reason, validation.Message)
		}
		discount = validation.PromoCode.DiscountFor(total)
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	now := time.Now()
	purchase := &models.Purchase{
		ID:             uuid.NewString(),
		PurchaserID:    req.PurchaserID,
		TotalAmount:    total,
		DiscountAmount: discount,
		FinalAmount:    total - discount,
		Currency:       currency,
		Status:         models.PurchasePending,
		PaymentStatus:  models.PaymentUnpaid,
		PromoCode:      req.PromoCode,
		CreatedAt:      now,
	}

	items := make([]models.PurchaseItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, models.PurchaseItem{
			ID:             uuid.NewString(),
			PurchaseID:     purchase.ID,
			TicketTypeID:   item.TicketTypeID,
			TicketTypeName: item.TicketTypeName,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			TotalPrice:     float64(item.Quantity) * item.UnitPrice,
		})
	}

	attendees := make([]models.Attendee, 0, len(req.Attendees))
	for i, att := range req.Attendees {
		if att.FullName == "" || att.Email == "" {
			return nil, errs.Validation("attendees", fmt.Sprintf("attendee %d: full_name and email are required", i))
		}
		attendees = append(attendees, models.Attendee{
			ID:             uuid.NewString(),
			PurchaseID:     purchase.ID,
			FullName:       att.FullName,
			Email:          att.Email,
			Role:           att.Role,
			Organization:   att.Organization,
			TicketTypeID:   att.TicketTypeID,
			TicketTypeName: typeNames[att.TicketTypeID],
			Nationality:    att.Nationality,
			PassportName:   att.PassportName,
			VisaLetter:     att.VisaLetter,
			CreatedAt:      now,
		})
	}

	if err := s.DB.CreatePurchase(ctx, purchase, items, attendees); err != nil {
		if errs.IsConflict(err) {
			return nil, err
		}
		return nil, wrapStore("create purchase", err)
	}
	purchase.Items = items
	purchase.Attendees = attendees

	s.recordAudit(ctx, actorID, "purchase.created", purchase.ID, nil, map[string]any{
		"status":       string(purchase.Status),
		"final_amount": purchase.FinalAmount,
		"promo_code":   purchase.PromoCode,
	})
	if err := s.Events.PublishPurchaseCreated(*purchase); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("publish purchase created %s: %v", purchase.ID, err))
	}
	if s.Notify != nil {
		s.Notify.PurchaseConfirmed(*purchase)
	}

	return purchase, nil
}

// Transition applies one edge of the state machine. Re-issuing the current
// status is a no-op; any edge outside the table fails with
// INVALID_TRANSITION and leaves state untouched.
func (s *Service) Transition(ctx context.Context, actorID, id string, newStatus models.PurchaseStatus) (*models.Purchase, error) {
	if !KnownStatus(newStatus) {
		return nil, errs.Validation("status", fmt.Sprintf("unknown status %q", newStatus))
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	purchase, err := s.DB.GetPurchaseByID(ctx, id)
	if err != nil {
		return nil, wrapStore("load purchase", err)
	}

	if purchase.Status == newStatus {
		return purchase, nil
	}
	if !CanTransition(purchase.Status, newStatus) {
		return nil, errs.Conflict(errs.ReasonInvalidTransition,
			fmt.Sprintf("cannot transition purchase from %s to %s", purchase.Status, newStatus))
	}

	var paymentStatus models.PaymentState
	switch newStatus {
	case models.PurchasePaid:
		paymentStatus = models.PaymentPaid
	case models.PurchaseRefunded:
		paymentStatus = models.PaymentRefunded
	}

	before := purchase.Status
	if err := s.DB.UpdateStatus(ctx, id, newStatus, paymentStatus); err != nil {
		return nil, wrapStore("update purchase status", err)
	}
	purchase.Status = newStatus
	if paymentStatus != "" {
		purchase.PaymentStatus = paymentStatus
	}

	s.recordAudit(ctx, actorID, "purchase.status_changed", id,
		map[string]any{"status": string(before)},
		map[string]any{"status": string(newStatus)})
	if err := s.Events.PublishPurchaseStatusChanged(*purchase); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("publish status change %s: %v", id, err))
	}

	return purchase, nil
}

// MarkPaymentFailed records a failed gateway report on the purchase without
// touching the FSM status; the purchase stays pending and can be retried.
func (s *Service) MarkPaymentFailed(ctx context.Context, actorID, id string) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.DB.UpdatePaymentStatus(ctx, id, models.PaymentFailed); err != nil {
		return wrapStore("update payment status", err)
	}
	s.recordAudit(ctx, actorID, "purchase.payment_failed", id, nil,
		map[string]any{"payment_status": string(models.PaymentFailed)})
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Purchase, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	purchase, err := s.DB.GetPurchaseByID(ctx, id)
	if err != nil {
		return nil, wrapStore("load purchase", err)
	}
	return purchase, nil
}

func (s *Service) List(ctx context.Context, filters models.PurchaseListFilters, page models.Page) (*models.PurchaseList, error) {
	if page.Limit <= 0 {
		page.Limit = 20
	}
	if page.Limit > 100 {
		page.Limit = 100
	}
	if page.Number < 1 {
		page.Number = 1
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	items, total, err := s.DB.ListPurchases(ctx, filters, page)
	if err != nil {
		return nil, wrapStore("list purchases", err)
	}
	if items == nil {
		items = []models.Purchase{}
	}
	return &models.PurchaseList{Items: items, Total: total, Page: page.Number, Limit: page.Limit}, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, before, after any) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, actorID, action, "purchase", entityID, before, after); err != nil {
		s.Logger.Error("AUDIT", fmt.Sprintf("record %s for purchase %s: %v", action, entityID, err))
	}
}

// wrapStore keeps typed errors intact and classifies everything else as a
// retryable store failure or an unexpected one.
func wrapStore(op string, err error) error {
	switch errs.KindOf(err) {
	case errs.KindNotFound, errs.KindConflict, errs.KindValidation, errs.KindTransient:
		return err
	}
	return errs.Transient(op, err)
}
