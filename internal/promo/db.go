package promo

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

func (d *DB) GetPromoByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := d.Bun.NewSelect().
		Model(&promo).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("promo code", code)
	}
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (d *DB) CreatePromo(ctx context.Context, promo *models.PromoCode) error {
	_, err := d.Bun.NewInsert().Model(promo).Exec(ctx)
	return err
}

// Redeem increments used_count with a single conditional UPDATE. The
// affected-row count is the only success signal: a concurrent checkout that
// consumed the last slot between validation and redemption makes the WHERE
// clause fail, and the caller must treat that as a lost race. Never read,
// compare and write in application code here.
func (d *DB) Redeem(ctx context.Context, code string) (bool, error) {
	return RedeemWithin(ctx, d.Bun, code)
}

// RedeemWithin runs the conditional redemption on any bun.IDB, so purchase
// creation can redeem inside its own transaction and roll both back together.
func RedeemWithin(ctx context.Context, idb bun.IDB, code string) (bool, error) {
	res, err := idb.NewUpdate().
		Model((*models.PromoCode)(nil)).
		Set("used_count = used_count + 1").
		Where("code = ?", code).
		Where("is_active = ?", true).
		Where("usage_limit IS NULL OR used_count < usage_limit").
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
