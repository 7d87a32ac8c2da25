package reconcile

import (
	"context"
	"database/sql"
	"errors"

	"summit-ticketing/internal/errs"
	"summit-ticketing/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// InsertTransaction writes the transaction unless its gateway_ref already
// exists. The unique index plus ON CONFLICT DO NOTHING makes at-least-once
// delivery collapse to exactly one row; the bool reports whether this call
// was the first delivery.
func (d *DB) InsertTransaction(ctx context.Context, txn *models.PaymentTransaction) (bool, error) {
	res, err := d.Bun.NewInsert().
		Model(txn).
		On("CONFLICT (gateway_ref) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (d *DB) GetTransactionByID(ctx context.Context, id string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := d.Bun.NewSelect().
		Model(&txn).
		Where("t.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("transaction", id)
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (d *DB) GetTransactionByRef(ctx context.Context, gatewayRef string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := d.Bun.NewSelect().
		Model(&txn).
		Where("t.gateway_ref = ?", gatewayRef).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("transaction", gatewayRef)
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// UpdateTransaction rewrites the mutable reconciliation fields only. The
// original gateway_ref, amount and purchase linkage never change.
func (d *DB) UpdateTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	_, err := d.Bun.NewUpdate().
		Model(txn).
		Column("status", "notes", "reconciled_by", "reconciled_at").
		Where("id = ?", txn.ID).
		Exec(ctx)
	return err
}

func (d *DB) ListTransactionsByPurchase(ctx context.Context, purchaseID string) ([]models.PaymentTransaction, error) {
	var txns []models.PaymentTransaction
	err := d.Bun.NewSelect().
		Model(&txns).
		Where("t.purchase_id = ?", purchaseID).
		Order("t.created_at DESC").
		Scan(ctx)
	return txns, err
}
