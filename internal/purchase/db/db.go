package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"summit-ticketing/internal/errs"
	"summit-ticketing/internal/models"
	"summit-ticketing/internal/promo"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// CreatePurchase persists the purchase, its items and attendees, and when a
// promo code is attached redeems it in the same transaction. A lost
// redemption race rolls everything back, so no discounted purchase can
// survive without its usage slot.
func (d *DB) CreatePurchase(ctx context.Context, purchase *models.Purchase, items []models.PurchaseItem, attendees []models.Attendee) error {
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(purchase).Exec(ctx); err != nil {
			return err
		}
		if len(items) > 0 {
			if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
				return err
			}
		}
		if len(attendees) > 0 {
			if _, err := tx.NewInsert().Model(&attendees).Exec(ctx); err != nil {
				return err
			}
		}
		if purchase.PromoCode != "" {
			ok, err := promo.RedeemWithin(ctx, tx, purchase.PromoCode)
			if err != nil {
				return err
			}
			if !ok {
				return errs.Conflict(errs.ReasonLimitRace, "promo code usage limit reached during checkout")
			}
		}
		return nil
	})
	return err
}

func (d *DB) GetPurchaseByID(ctx context.Context, id string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := d.Bun.NewSelect().
		Model(&purchase).
		Relation("Items").
		Relation("Attendees").
		Relation("Transactions").
		Where("p.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("purchase", id)
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// UpdateStatus writes the FSM-approved status change. The caller has already
// checked the transition table; this only touches status fields.
func (d *DB) UpdateStatus(ctx context.Context, id string, status models.PurchaseStatus, paymentStatus models.PaymentState) error {
	q := d.Bun.NewUpdate().
		Model((*models.Purchase)(nil)).
		Set("status = ?", status).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", id)
	if paymentStatus != "" {
		q = q.Set("payment_status = ?", paymentStatus)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errs.NotFound("purchase", id)
	}
	return nil
}

func (d *DB) UpdatePaymentStatus(ctx context.Context, id string, paymentStatus models.PaymentState) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Purchase)(nil)).
		Set("payment_status = ?", paymentStatus).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// ListPurchases applies the filters, orders by created_at descending and
// returns one page together with the exact total count.
func (d *DB) ListPurchases(ctx context.Context, filters models.PurchaseListFilters, page models.Page) ([]models.Purchase, int, error) {
	var purchases []models.Purchase
	q := d.Bun.NewSelect().
		Model(&purchases).
		Relation("Items")

	if filters.Status != "" {
		q = q.Where("p.status = ?", filters.Status)
	}
	if filters.PaymentStatus != "" {
		q = q.Where("p.payment_status = ?", filters.PaymentStatus)
	}
	if !filters.DateFrom.IsZero() {
		q = q.Where("p.created_at >= ?", filters.DateFrom)
	}
	if !filters.DateTo.IsZero() {
		q = q.Where("p.created_at <= ?", filters.DateTo)
	}
	if filters.TicketType != "" {
		q = q.Where("EXISTS (SELECT 1 FROM purchase_items i WHERE i.purchase_id = p.id AND i.ticket_type_id = ?)", filters.TicketType)
	}
	if filters.SearchTerm != "" {
		term := "%" + strings.ToLower(filters.SearchTerm) + "%"
		q = q.Join("LEFT JOIN purchasers AS pur ON pur.id = p.purchaser_id").
			Where("(LOWER(pur.full_name) LIKE ? OR LOWER(pur.email) LIKE ? OR LOWER(p.promo_code) LIKE ? OR p.id = ?)",
				term, term, term, filters.SearchTerm)
	}

	total, err := q.Order("p.created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return purchases, total, nil
}

func (d *DB) GetAttendeeByID(ctx context.Context, id string) (*models.Attendee, error) {
	var attendee models.Attendee
	err := d.Bun.NewSelect().
		Model(&attendee).
		Where("a.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("attendee", id)
	}
	if err != nil {
		return nil, err
	}
	return &attendee, nil
}

func (d *DB) GetPurchaser(ctx context.Context, id string) (*models.Purchaser, error) {
	var purchaser models.Purchaser
	err := d.Bun.NewSelect().
		Model(&purchaser).
		Where("pr.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("purchaser", id)
	}
	if err != nil {
		return nil, err
	}
	return &purchaser, nil
}

func (d *DB) CreatePurchaser(ctx context.Context, purchaser *models.Purchaser) error {
	_, err := d.Bun.NewInsert().Model(purchaser).Exec(ctx)
	return err
}
