package models

import (
	"time"

	"github.com/uptrace/bun"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type PromoCode struct {
	bun.BaseModel `bun:"table:promo_codes,alias:pc"`

	ID            string       `bun:"id,pk" json:"id"`
	Code          string       `bun:"code,unique,notnull" json:"code"`
	DiscountType  DiscountType `bun:"discount_type,notnull" json:"discount_type"`
	DiscountValue float64      `bun:"discount_value,notnull" json:"discount_value"`
	// UsageLimit nil means unlimited.
	UsageLimit *int `bun:"usage_limit,nullzero" json:"usage_limit,omitempty"`
	UsedCount  int  `bun:"used_count,notnull,default:0" json:"used_count"`
	ValidFrom  time.Time `bun:"valid_from,notnull" json:"valid_from"`
	// ValidUntil nil means open-ended.
	ValidUntil *time.Time `bun:"valid_until,nullzero" json:"valid_until,omitempty"`
	// ApplicableTicketTypes nil or empty means unrestricted.
	ApplicableTicketTypes []string  `bun:"applicable_ticket_types,type:jsonb,nullzero" json:"applicable_ticket_types,omitempty"`
	// No default tag here: inserts must write the explicit value so an
	// inactive code stays inactive.
	IsActive              bool      `bun:"is_active,notnull" json:"is_active"`
	CreatedAt             time.Time `bun:"created_at,notnull" json:"created_at"`
}

// DiscountFor returns the discount this code yields on the given subtotal,
// clamped so the discount never exceeds the subtotal.
func (p *PromoCode) DiscountFor(subtotal float64) float64 {
	var discount float64
	switch p.DiscountType {
	case DiscountPercentage:
		discount = subtotal * p.DiscountValue / 100
	case DiscountFixed:
		discount = p.DiscountValue
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

type ValidatePromoRequest struct {
	Code          string   `json:"code"`
	TicketTypeIDs []string `json:"ticket_type_ids"`
}

type PromoValidation struct {
	Valid     bool       `json:"valid"`
	Reason    string     `json:"reason,omitempty"`
	Message   string     `json:"message,omitempty"`
	PromoCode *PromoCode `json:"promo_code,omitempty"`
}
