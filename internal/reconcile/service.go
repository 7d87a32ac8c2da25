package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"summit-ticketing/internal/errs"
	"summit-ticketing/internal/logger"
	"summit-ticketing/internal/models"

	"github.com/google/uuid"
)

// GatewayActor is the actor id recorded for transitions driven by gateway
// callbacks rather than an administrator.
const GatewayActor = "payment-gateway"

type DBLayer interface {
	InsertTransaction(ctx context.Context, txn *models.PaymentTransaction) (bool, error)
	GetTransactionByID(ctx context.Context, id string) (*models.PaymentTransaction, error)
	GetTransactionByRef(ctx context.Context, gatewayRef string) (*models.PaymentTransaction, error)
	UpdateTransaction(ctx context.Context, txn *models.PaymentTransaction) error
	ListTransactionsByPurchase(ctx context.Context, purchaseID string) ([]models.PaymentTransaction, error)
}

type PurchaseStore interface {
	Get(ctx context.Context, id string) (*models.Purchase, error)
	Transition(ctx context.Context, actorID, id string, newStatus models.PurchaseStatus) (*models.Purchase, error)
	MarkPaymentFailed(ctx context.Context, actorID, id string) error
}

type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, entityType, entityID string, before, after any) error
}

// Service applies payment-gateway reports to purchases. Both entry points
// (webhook/Kafka delivery and manual admin reconciliation) are idempotent:
// duplicates are detected and answered as successful no-ops.
type Service struct {
	DB           DBLayer
	Purchases    PurchaseStore
	Audit        AuditRecorder
	Logger       *logger.Logger
	StoreTimeout time.Duration
}

func NewService(db DBLayer, purchases PurchaseStore, audit AuditRecorder, log *logger.Logger, storeTimeout time.Duration) *Service {
	return &Service{DB: db, Purchases: purchases, Audit: audit, Logger: log, StoreTimeout: storeTimeout}
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.StoreTimeout)
}

// RecordTransaction ingests one gateway report, keyed on gatewayRef. A
// duplicate delivery returns the stored row and applies nothing. On the
// first successful report the purchase moves to paid exactly once.
func (s *Service) RecordTransaction(ctx context.Context, purchaseID, gatewayRef string, amount float64, status models.TransactionStatus) (*models.PaymentTransaction, error) {
	if purchaseID == "" {
		return nil, errs.Validation("purchase_id", "purchase_id is required")
	}
	if gatewayRef == "" {
		return nil, errs.Validation("gateway_ref", "gateway_ref is required")
	}
	if !status.Known() {
		return nil, errs.Validation("status", fmt.Sprintf("unknown transaction status %q", status))
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if _, err := s.Purchases.Get(ctx, purchaseID); err != nil {
		return nil, err
	}

	txn := &models.PaymentTransaction{
		ID:         uuid.NewString(),
		PurchaseID: purchaseID,
		GatewayRef: gatewayRef,
		Amount:     amount,
		Status:     status,
		CreatedAt:  time.Now(),
	}

	inserted, err := s.DB.InsertTransaction(ctx, txn)
	if err != nil {
		return nil, errs.Transient("record transaction", err)
	}
	if !inserted {
		existing, err := s.DB.GetTransactionByRef(ctx, gatewayRef)
		if err != nil {
			return nil, errs.Transient("load existing transaction", err)
		}
		s.Logger.Info("RECONCILE", fmt.Sprintf("duplicate delivery for gateway ref %s, no-op", gatewayRef))
		return existing, nil
	}

	if err := s.applyStatus(ctx, purchaseID, status); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, GatewayActor, "transaction.recorded", txn.ID, nil, map[string]any{
		"purchase_id": purchaseID,
		"gateway_ref": gatewayRef,
		"status":      string(status),
		"amount":      amount,
	})
	return txn, nil
}

// Reconcile is the administrative override. Equal status is a no-op; a
// change appends reconciliation metadata instead of overwriting history.
func (s *Service) Reconcile(ctx context.Context, actorID, transactionID string, manualStatus models.TransactionStatus, notes string) (*models.PaymentTransaction, error) {
	if !manualStatus.Known() {
		return nil, errs.Validation("status", fmt.Sprintf("unknown transaction status %q", manualStatus))
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	txn, err := s.DB.GetTransactionByID(ctx, transactionID)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, err
		}
		return nil, errs.Transient("load transaction", err)
	}

	if txn.Status == manualStatus {
		return txn, nil
	}

	before := map[string]any{"status": string(txn.Status), "notes": txn.Notes}

	// Drive the purchase first: a rejected transition must leave the
	// transaction row untouched, so a later correct reconcile still applies.
	if err := s.applyStatus(ctx, txn.PurchaseID, manualStatus); err != nil {
		return nil, err
	}

	now := time.Now()
	stamp := fmt.Sprintf("[%s %s] %s -> %s", now.UTC().Format(time.RFC3339), actorID, txn.Status, manualStatus)
	if notes != "" {
		stamp += ": " + notes
	}
	txn.Notes = strings.TrimSpace(txn.Notes + "\n" + stamp)
	txn.Status = manualStatus
	txn.ReconciledBy = actorID
	txn.ReconciledAt = &now

	if err := s.DB.UpdateTransaction(ctx, txn); err != nil {
		return nil, errs.Transient("update transaction", err)
	}

	s.recordAudit(ctx, actorID, "transaction.reconciled", txn.ID, before, map[string]any{
		"status": string(manualStatus),
		"notes":  txn.Notes,
	})
	return txn, nil
}

func (s *Service) ListForPurchase(ctx context.Context, purchaseID string) ([]models.PaymentTransaction, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	txns, err := s.DB.ListTransactionsByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, errs.Transient("list transactions", err)
	}
	return txns, nil
}

// applyStatus drives the purchase according to the transaction outcome.
// Transition is itself a same-status no-op, so repeated success reports for
// a purchase never double-apply.
func (s *Service) applyStatus(ctx context.Context, purchaseID string, status models.TransactionStatus) error {
	switch status {
	case models.TxnSuccess:
		if _, err := s.Purchases.Transition(ctx, GatewayActor, purchaseID, models.PurchasePaid); err != nil {
			return err
		}
	case models.TxnRefunded:
		if _, err := s.Purchases.Transition(ctx, GatewayActor, purchaseID, models.PurchaseRefunded); err != nil {
			return err
		}
	case models.TxnFailed:
		if err := s.Purchases.MarkPaymentFailed(ctx, GatewayActor, purchaseID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, before, after any) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, actorID, action, "payment_transaction", entityID, before, after); err != nil {
		s.Logger.Error("AUDIT", fmt.Sprintf("record %s for transaction %s: %v", action, entityID, err))
	}
}
