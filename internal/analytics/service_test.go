package analytics_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"summit-ticketing/internal/analytics"
	"summit-ticketing/internal/errs"
	"summit-ticketing/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Failed to open SQLite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	tables := []any{
		(*models.Purchase)(nil),
		(*models.PurchaseItem)(nil),
		(*models.PromoCode)(nil),
	}
	for _, table := range tables {
		if err := bunDB.ResetModel(ctx, table); err != nil {
			t.Fatalf("Failed to create table for %T: %v", table, err)
		}
	}

	t.Cleanup(func() { _ = bunDB.Close() })
	return bunDB
}

func insertPurchase(t *testing.T, db *bun.DB, status models.PurchaseStatus, final, discount float64, promoCode string, createdAt time.Time) string {
	t.Helper()
	p := &models.Purchase{
		ID:             uuid.NewString(),
		PurchaserID:    "buyer-1",
		TotalAmount:    final + discount,
		DiscountAmount: discount,
		FinalAmount:    final,
		Currency:       "USD",
		Status:         status,
		PaymentStatus:  models.PaymentUnpaid,
		PromoCode:      promoCode,
		CreatedAt:      createdAt,
	}
	if _, err := db.NewInsert().Model(p).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to insert purchase: %v", err)
	}
	return p.ID
}

func insertItem(t *testing.T, db *bun.DB, purchaseID, ticketType string, qty int, total float64) {
	t.Helper()
	item := &models.PurchaseItem{
		ID:             uuid.NewString(),
		PurchaseID:     purchaseID,
		TicketTypeID:   ticketType,
		TicketTypeName: ticketType,
		Quantity:       qty,
		UnitPrice:      total / float64(qty),
		TotalPrice:     total,
	}
	if _, err := db.NewInsert().Model(item).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to insert item: %v", err)
	}
}

func TestSummaryCountsOnlyPaidPurchases(t *testing.T) {
	db := setupTestDB(t)
	svc := analytics.NewService(db)
	now := time.Now()

	paid := insertPurchase(t, db, models.PurchasePaid, 90, 10, "SUMMIT10", now)
	insertItem(t, db, paid, "standard", 2, 100)

	pending := insertPurchase(t, db, models.PurchasePending, 50, 0, "", now)
	insertItem(t, db, pending, "standard", 1, 50)

	refunded := insertPurchase(t, db, models.PurchaseRefunded, 70, 0, "", now)
	insertItem(t, db, refunded, "vip", 1, 70)

	summary, err := svc.GetSummary(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}

	assert.Equal(t, 90.0, summary.Revenue, "pending and refunded purchases never count")
	assert.Equal(t, 10.0, summary.TotalDiscount)
	assert.Equal(t, 1, summary.PurchaseCount)
	assert.Equal(t, 2, summary.TicketsSold)
	if assert.Len(t, summary.ByTicketType, 1) {
		assert.Equal(t, "standard", summary.ByTicketType[0].TicketTypeID)
		assert.Equal(t, 2, summary.ByTicketType[0].TicketsSold)
		assert.Equal(t, 100.0, summary.ByTicketType[0].Revenue)
	}
}

func TestSummaryDateRange(t *testing.T) {
	db := setupTestDB(t)
	svc := analytics.NewService(db)
	now := time.Now()

	inRange := insertPurchase(t, db, models.PurchasePaid, 100, 0, "", now)
	insertItem(t, db, inRange, "standard", 1, 100)
	old := insertPurchase(t, db, models.PurchasePaid, 40, 0, "", now.Add(-72*time.Hour))
	insertItem(t, db, old, "standard", 1, 40)

	summary, err := svc.GetSummary(context.Background(), now.Add(-24*time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	assert.Equal(t, 100.0, summary.Revenue)
	assert.Equal(t, 1, summary.PurchaseCount)
}

func TestSummaryEmptyDatabase(t *testing.T) {
	db := setupTestDB(t)
	svc := analytics.NewService(db)

	summary, err := svc.GetSummary(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	assert.Equal(t, 0.0, summary.Revenue)
	assert.Equal(t, 0, summary.PurchaseCount)
	assert.Equal(t, 0, summary.TicketsSold)
	assert.NotNil(t, summary.ByTicketType)
}

func TestPromoStats(t *testing.T) {
	db := setupTestDB(t)
	svc := analytics.NewService(db)
	ctx := context.Background()
	now := time.Now()

	limit := 10
	promo := &models.PromoCode{
		ID:            uuid.NewString(),
		Code:          "SUMMIT10",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 10,
		UsageLimit:    &limit,
		UsedCount:     2,
		ValidFrom:     now.Add(-time.Hour),
		IsActive:      true,
		CreatedAt:     now,
	}
	if _, err := db.NewInsert().Model(promo).Exec(ctx); err != nil {
		t.Fatalf("Failed to insert promo: %v", err)
	}

	insertPurchase(t, db, models.PurchasePaid, 90, 10, "SUMMIT10", now)
	insertPurchase(t, db, models.PurchasePaid, 90, 10, "SUMMIT10", now)
	// A pending redeemer does not count toward usage stats.
	insertPurchase(t, db, models.PurchasePending, 90, 10, "SUMMIT10", now)

	stats, err := svc.GetPromoStats(ctx)
	if err != nil {
		t.Fatalf("GetPromoStats failed: %v", err)
	}
	if assert.Len(t, stats, 1) {
		assert.Equal(t, "SUMMIT10", stats[0].Code)
		assert.Equal(t, 2, stats[0].UsageCount)
		assert.Equal(t, 20.0, stats[0].TotalDiscount)
		assert.Equal(t, 180.0, stats[0].TotalRevenue)
		assert.Equal(t, 0.2, stats[0].RedemptionRate)
	}
}

func TestPromoStatsUnlimitedCodeHasZeroRate(t *testing.T) {
	db := setupTestDB(t)
	svc := analytics.NewService(db)
	ctx := context.Background()

	promo := &models.PromoCode{
		ID:            uuid.NewString(),
		Code:          "OPENBAR",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 5,
		ValidFrom:     time.Now().Add(-time.Hour),
		IsActive:      true,
		CreatedAt:     time.Now(),
	}
	if _, err := db.NewInsert().Model(promo).Exec(ctx); err != nil {
		t.Fatalf("Failed to insert promo: %v", err)
	}

	stats, err := svc.GetPromoStats(ctx)
	if err != nil {
		t.Fatalf("GetPromoStats failed: %v", err)
	}
	if assert.Len(t, stats, 1) {
		assert.Equal(t, 0.0, stats[0].RedemptionRate)
	}
}

func TestPromoUsageDetail(t *testing.T) {
	db := setupTestDB(t)
	svc := analytics.NewService(db)
	ctx := context.Background()
	now := time.Now()

	promo := &models.PromoCode{
		ID:            uuid.NewString(),
		Code:          "SUMMIT10",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 10,
		UsedCount:     2,
		ValidFrom:     now.Add(-time.Hour),
		IsActive:      true,
		CreatedAt:     now,
	}
	if _, err := db.NewInsert().Model(promo).Exec(ctx); err != nil {
		t.Fatalf("Failed to insert promo: %v", err)
	}
	insertPurchase(t, db, models.PurchasePaid, 90, 10, "SUMMIT10", now)
	insertPurchase(t, db, models.PurchasePending, 90, 10, "SUMMIT10", now)

	usage, err := svc.GetPromoUsage(ctx, promo.ID)
	if err != nil {
		t.Fatalf("GetPromoUsage failed: %v", err)
	}
	assert.Equal(t, 2, usage.UsageCount, "usage count comes from used_count, the redemption ledger")
	assert.Len(t, usage.Purchases, 2, "usage detail lists all redeeming purchases regardless of status")
	assert.Equal(t, 20.0, usage.TotalDiscount)
}

func TestPromoUsageUnknownID(t *testing.T) {
	db := setupTestDB(t)
	svc := analytics.NewService(db)

	_, err := svc.GetPromoUsage(context.Background(), "ghost")
	if err == nil {
		t.Fatal("Expected an error for an unknown promo id")
	}
	assert.True(t, errs.IsNotFound(err), "an unknown id is 404, not a store failure")
}
