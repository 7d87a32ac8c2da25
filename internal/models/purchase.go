package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchasePaid      PurchaseStatus = "paid"
	PurchaseCancelled PurchaseStatus = "cancelled"
	PurchaseRefunded  PurchaseStatus = "refunded"
)

// PaymentState tracks what the gateway has reported for a purchase. It is
// written only by the reconciler, never by checkout.
type PaymentState string

const (
	PaymentUnpaid   PaymentState = "unpaid"
	PaymentPaid     PaymentState = "paid"
	PaymentFailed   PaymentState = "failed"
	PaymentRefunded PaymentState = "refunded"
)

type Purchaser struct {
	bun.BaseModel `bun:"table:purchasers,alias:pr"`

	ID           string    `bun:"id,pk" json:"id"`
	FullName     string    `bun:"full_name,notnull" json:"full_name"`
	Email        string    `bun:"email,unique,notnull" json:"email"`
	Organization string    `bun:"organization,nullzero" json:"organization,omitempty"`
	Country      string    `bun:"country,nullzero" json:"country,omitempty"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
}

type Purchase struct {
	bun.BaseModel `bun:"table:purchases,alias:p"`

	ID             string         `bun:"id,pk" json:"id"`
	PurchaserID    string         `bun:"purchaser_id,notnull" json:"purchaser_id"`
	TotalAmount    float64        `bun:"total_amount,notnull" json:"total_amount"`
	DiscountAmount float64        `bun:"discount_amount,notnull,default:0" json:"discount_amount"`
	FinalAmount    float64        `bun:"final_amount,notnull" json:"final_amount"`
	Currency       string         `bun:"currency,notnull" json:"currency"`
	Status         PurchaseStatus `bun:"status,notnull" json:"status"`
	PaymentStatus  PaymentState   `bun:"payment_status,notnull" json:"payment_status"`
	PromoCode      string         `bun:"promo_code,nullzero" json:"promo_code,omitempty"`
	CreatedAt      time.Time      `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero" json:"updated_at,omitempty"`

	Items        []PurchaseItem       `bun:"rel:has-many,join:id=purchase_id" json:"items,omitempty"`
	Attendees    []Attendee           `bun:"rel:has-many,join:id=purchase_id" json:"attendees,omitempty"`
	Transactions []PaymentTransaction `bun:"rel:has-many,join:id=purchase_id" json:"transactions,omitempty"`
}

type PurchaseItem struct {
	bun.BaseModel `bun:"table:purchase_items,alias:pi"`

	ID             string  `bun:"id,pk" json:"id"`
	PurchaseID     string  `bun:"purchase_id,notnull" json:"purchase_id"`
	TicketTypeID   string  `bun:"ticket_type_id,notnull" json:"ticket_type_id"`
	TicketTypeName string  `bun:"ticket_type_name,nullzero" json:"ticket_type_name,omitempty"`
	Quantity       int     `bun:"quantity,notnull" json:"quantity"`
	UnitPrice      float64 `bun:"unit_price,notnull" json:"unit_price"`
	TotalPrice     float64 `bun:"total_price,notnull" json:"total_price"`
}

// Attendee carries the ticket-type name denormalized at purchase time so
// exports survive later catalogue edits.
type Attendee struct {
	bun.BaseModel `bun:"table:attendees,alias:a"`

	ID             string    `bun:"id,pk" json:"id"`
	PurchaseID     string    `bun:"purchase_id,notnull" json:"purchase_id"`
	FullName       string    `bun:"full_name,notnull" json:"full_name"`
	Email          string    `bun:"email,notnull" json:"email"`
	Role           string    `bun:"role,nullzero" json:"role,omitempty"`
	Organization   string    `bun:"organization,nullzero" json:"organization,omitempty"`
	TicketTypeID   string    `bun:"ticket_type_id,nullzero" json:"ticket_type_id,omitempty"`
	TicketTypeName string    `bun:"ticket_type_name,nullzero" json:"ticket_type_name,omitempty"`
	Nationality    string    `bun:"nationality,nullzero" json:"nationality,omitempty"`
	PassportName   string    `bun:"passport_name,nullzero" json:"passport_name,omitempty"`
	VisaLetter     bool      `bun:"visa_letter,notnull,default:false" json:"visa_letter"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
}

// ---- request/response DTOs ----

type PurchaseItemRequest struct {
	TicketTypeID   string  `json:"ticket_type_id"`
	TicketTypeName string  `json:"ticket_type_name"`
	Quantity       int     `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
}

type AttendeeRequest struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	Organization string `json:"organization"`
	TicketTypeID string `json:"ticket_type_id"`
	Nationality  string `json:"nationality"`
	PassportName string `json:"passport_name"`
	VisaLetter   bool   `json:"visa_letter"`
}

type CreatePurchaseRequest struct {
	PurchaserID string                `json:"purchaser_id"`
	Currency    string                `json:"currency"`
	PromoCode   string                `json:"promo_code"`
	Items       []PurchaseItemRequest `json:"items"`
	Attendees   []AttendeeRequest     `json:"attendees"`
}

type PurchaseListFilters struct {
	Status        string
	PaymentStatus string
	DateFrom      time.Time
	DateTo        time.Time
	TicketType    string
	SearchTerm    string
}

type Page struct {
	Number int
	Limit  int
}

func (p Page) Offset() int {
	n := p.Number
	if n < 1 {
		n = 1
	}
	return (n - 1) * p.Limit
}

type PurchaseList struct {
	Items []Purchase `json:"items"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}
