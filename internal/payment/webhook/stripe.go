package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"summit-ticketing/internal/logger"
	"summit-ticketing/internal/models"

	"github.com/stripe/stripe-go/v82"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
)

var ErrUnhandledEvent = errors.New("unhandled stripe event type")

// Reconciler is the sink for translated gateway reports.
type Reconciler interface {
	RecordTransaction(ctx context.Context, purchaseID, gatewayRef string, amount float64, status models.TransactionStatus) (*models.PaymentTransaction, error)
}

// StripeHandler verifies Stripe webhook signatures and translates payment
// events into gateway reports for the reconciler. Stripe retries deliveries,
// so everything downstream must tolerate duplicates (the reconciler does,
// keyed on the payment intent id).
type StripeHandler struct {
	secret     string
	reconciler Reconciler
	logger     *logger.Logger
}

func NewStripeHandler(secret string, reconciler Reconciler, log *logger.Logger) *StripeHandler {
	return &StripeHandler{secret: secret, reconciler: reconciler, logger: log}
}

const maxBodyBytes = int64(65536)

func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusServiceUnavailable)
		return
	}

	event, err := stripewebhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.secret)
	if err != nil {
		h.logger.Warn("STRIPE", fmt.Sprintf("signature verification failed: %v", err))
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	if err := h.Process(r.Context(), event); err != nil {
		if errors.Is(err, ErrUnhandledEvent) {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.logger.Error("STRIPE", fmt.Sprintf("process event %s: %v", event.ID, err))
		// Non-2xx makes Stripe redeliver; the reconciler absorbs the retry.
		http.Error(w, "failed to process event", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Process translates one verified Stripe event into a gateway report.
func (h *StripeHandler) Process(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "payment_intent.succeeded":
		return h.fromPaymentIntent(ctx, event, models.TxnSuccess)
	case "payment_intent.payment_failed":
		return h.fromPaymentIntent(ctx, event, models.TxnFailed)
	case "charge.refunded":
		return h.fromCharge(ctx, event)
	default:
		h.logger.Debug("STRIPE", fmt.Sprintf("ignoring event type %s", event.Type))
		return ErrUnhandledEvent
	}
}

func (h *StripeHandler) fromPaymentIntent(ctx context.Context, event stripe.Event, status models.TransactionStatus) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return fmt.Errorf("unmarshal payment intent: %w", err)
	}

	purchaseID := pi.Metadata["purchase_id"]
	if purchaseID == "" {
		h.logger.Warn("STRIPE", fmt.Sprintf("payment intent %s carries no purchase_id metadata", pi.ID))
		return ErrUnhandledEvent
	}

	_, err := h.reconciler.RecordTransaction(ctx, purchaseID, pi.ID, float64(pi.Amount)/100.0, status)
	if err != nil {
		return err
	}

	h.logger.Info("STRIPE", fmt.Sprintf("recorded %s for purchase %s (intent %s)", status, purchaseID, pi.ID))
	return nil
}

func (h *StripeHandler) fromCharge(ctx context.Context, event stripe.Event) error {
	var ch stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
		return fmt.Errorf("unmarshal charge: %w", err)
	}

	purchaseID := ch.Metadata["purchase_id"]
	if purchaseID == "" && ch.PaymentIntent != nil {
		purchaseID = ch.PaymentIntent.Metadata["purchase_id"]
	}
	if purchaseID == "" {
		h.logger.Warn("STRIPE", fmt.Sprintf("charge %s carries no purchase_id metadata", ch.ID))
		return ErrUnhandledEvent
	}

	// Refund reports reference the refund id, not the original intent, so a
	// refund after a success lands as its own transaction row.
	ref := "refund_" + ch.ID
	_, err := h.reconciler.RecordTransaction(ctx, purchaseID, ref, float64(ch.AmountRefunded)/100.0, models.TxnRefunded)
	if err != nil {
		return err
	}

	h.logger.Info("STRIPE", fmt.Sprintf("recorded refund for purchase %s (charge %s)", purchaseID, ch.ID))
	return nil
}
