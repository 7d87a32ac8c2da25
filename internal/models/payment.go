package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TransactionStatus string

const (
	TxnPending  TransactionStatus = "pending"
	TxnSuccess  TransactionStatus = "success"
	TxnFailed   TransactionStatus = "failed"
	TxnRefunded TransactionStatus = "refunded"
)

func (s TransactionStatus) Known() bool {
	switch s {
	case TxnPending, TxnSuccess, TxnFailed, TxnRefunded:
		return true
	}
	return false
}

// PaymentTransaction is one gateway report for a purchase. GatewayRef is
// unique so at-least-once webhook delivery collapses to a single row.
type PaymentTransaction struct {
	bun.BaseModel `bun:"table:payment_transactions,alias:t"`

	ID           string            `bun:"id,pk" json:"id"`
	PurchaseID   string            `bun:"purchase_id,notnull" json:"purchase_id"`
	GatewayRef   string            `bun:"gateway_ref,unique,notnull" json:"gateway_ref"`
	Amount       float64           `bun:"amount,notnull" json:"amount"`
	Status       TransactionStatus `bun:"status,notnull" json:"status"`
	Notes        string            `bun:"notes,nullzero" json:"notes,omitempty"`
	ReconciledBy string            `bun:"reconciled_by,nullzero" json:"reconciled_by,omitempty"`
	ReconciledAt *time.Time        `bun:"reconciled_at,nullzero" json:"reconciled_at,omitempty"`
	CreatedAt    time.Time         `bun:"created_at,notnull" json:"created_at"`
}

// GatewayEvent is the wire shape of a payment-gateway report, whether it
// arrives over Kafka or is translated from a Stripe webhook.
type GatewayEvent struct {
	PurchaseID string            `json:"purchase_id"`
	GatewayRef string            `json:"gateway_ref"`
	Amount     float64           `json:"amount"`
	Status     TransactionStatus `json:"status"`
	ReportedAt time.Time         `json:"reported_at"`
}

type ReconcileRequest struct {
	Status TransactionStatus `json:"status"`
	Notes  string            `json:"notes"`
}
