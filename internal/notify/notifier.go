package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"summit-ticketing/internal/logger"
	"summit-ticketing/internal/models"
)

// Notifier posts confirmation requests to the notification service.
// Delivery is best-effort: a failed notification never fails the purchase.
type Notifier struct {
	Client  *http.Client
	BaseURL string
	Logger  *logger.Logger
}

func New(baseURL string, log *logger.Logger) *Notifier {
	return &Notifier{
		Client:  &http.Client{Timeout: 10 * time.Second},
		BaseURL: baseURL,
		Logger:  log,
	}
}

type confirmationRequest struct {
	PurchaseID  string    `json:"purchase_id"`
	PurchaserID string    `json:"purchaser_id"`
	FinalAmount float64   `json:"final_amount"`
	Currency    string    `json:"currency"`
	PromoCode   string    `json:"promo_code,omitempty"`
	Attendees   int       `json:"attendees"`
	CreatedAt   time.Time `json:"created_at"`
}

func (n *Notifier) PurchaseConfirmed(ctx context.Context, purchase models.Purchase) error {
	if n.BaseURL == "" {
		return nil
	}

	body, err := json.Marshal(confirmationRequest{
		PurchaseID:  purchase.ID,
		PurchaserID: purchase.PurchaserID,
		FinalAmount: purchase.FinalAmount,
		Currency:    purchase.Currency,
		PromoCode:   purchase.PromoCode,
		Attendees:   len(purchase.Attendees),
		CreatedAt:   purchase.CreatedAt,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/internal/v1/notifications/purchase-confirmed", n.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("notification service error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}

	n.Logger.Info("NOTIFY", fmt.Sprintf("confirmation queued for purchase %s", purchase.ID))
	return nil
}

// Async dispatches confirmations in the background so checkout latency never
// depends on the notification service.
type Async struct {
	Notifier *Notifier
}

func (a Async) PurchaseConfirmed(purchase models.Purchase) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.Notifier.PurchaseConfirmed(ctx, purchase); err != nil {
			a.Notifier.Logger.Warn("NOTIFY", fmt.Sprintf("confirmation for purchase %s failed: %v", purchase.ID, err))
		}
	}()
}

// NopNotifier is used when no notification service is configured.
type NopNotifier struct{}

func (NopNotifier) PurchaseConfirmed(models.Purchase) {}
