package db_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"summit-ticketing/internal/errs"
	"summit-ticketing/internal/models"
	"summit-ticketing/internal/promo"
	purchase_db "summit-ticketing/internal/purchase/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*purchase_db.DB, *promo.DB) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Failed to open SQLite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	tables := []any{
		(*models.Purchaser)(nil),
		(*models.Purchase)(nil),
		(*models.PurchaseItem)(nil),
		(*models.Attendee)(nil),
		(*models.PromoCode)(nil),
		(*models.PaymentTransaction)(nil),
	}
	for _, table := range tables {
		if err := bunDB.ResetModel(ctx, table); err != nil {
			t.Fatalf("Failed to create table for %T: %v", table, err)
		}
	}

	t.Cleanup(func() { _ = bunDB.Close() })
	return &purchase_db.DB{Bun: bunDB}, &promo.DB{Bun: bunDB}
}

func seedPurchaser(t *testing.T, db *purchase_db.DB) *models.Purchaser {
	t.Helper()
	p := &models.Purchaser{
		ID:        uuid.NewString(),
		FullName:  "Dana Organizer",
		Email:     uuid.NewString() + "@example.com",
		Country:   "NL",
		CreatedAt: time.Now(),
	}
	if err := db.CreatePurchaser(context.Background(), p); err != nil {
		t.Fatalf("Failed to create purchaser: %v", err)
	}
	return p
}

func buildPurchase(purchaserID, promoCode string, final float64) (*models.Purchase, []models.PurchaseItem) {
	id := uuid.NewString()
	p := &models.Purchase{
		ID:            id,
		PurchaserID:   purchaserID,
		TotalAmount:   100,
		FinalAmount:   final,
		Currency:      "USD",
		Status:        models.PurchasePending,
		PaymentStatus: models.PaymentUnpaid,
		PromoCode:     promoCode,
		CreatedAt:     time.Now(),
	}
	items := []models.PurchaseItem{{
		ID:           uuid.NewString(),
		PurchaseID:   id,
		TicketTypeID: "standard",
		Quantity:     1,
		UnitPrice:    100,
		TotalPrice:   100,
	}}
	return p, items
}

func TestCreatePurchaseWithPromoRedeemsAtomically(t *testing.T) {
	db, promoDB := setupTestDB(t)
	ctx := context.Background()
	purchaser := seedPurchaser(t, db)

	limit := 2
	if err := promoDB.CreatePromo(ctx, &models.PromoCode{
		ID:            uuid.NewString(),
		Code:          "SUMMIT10",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 10,
		UsageLimit:    &limit,
		ValidFrom:     time.Now().Add(-time.Hour),
		IsActive:      true,
		CreatedAt:     time.Now(),
	}); err != nil {
		t.Fatalf("Failed to create promo: %v", err)
	}

	// Three checkouts race for two slots.
	var wg sync.WaitGroup
	errors := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, items := buildPurchase(purchaser.ID, "SUMMIT10", 90)
			errors <- db.CreatePurchase(ctx, p, items, nil)
		}()
	}
	wg.Wait()
	close(errors)

	var succeeded, lostRace int
	for err := range errors {
		switch {
		case err == nil:
			succeeded++
		case errs.IsConflict(err):
			assert.Equal(t, errs.ReasonLimitRace, errs.ReasonOf(err))
			lostRace++
		default:
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, lostRace)

	stored, err := promoDB.GetPromoByCode(ctx, "SUMMIT10")
	if err != nil {
		t.Fatalf("Failed to reload promo: %v", err)
	}
	assert.Equal(t, 2, stored.UsedCount)

	// The loser's purchase must not survive the rollback.
	count, err := db.Bun.NewSelect().Model((*models.Purchase)(nil)).Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count purchases: %v", err)
	}
	assert.Equal(t, 2, count, "a lost redemption race must roll back the purchase")

	itemCount, err := db.Bun.NewSelect().Model((*models.PurchaseItem)(nil)).Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count items: %v", err)
	}
	assert.Equal(t, 2, itemCount, "orphaned purchase items indicate a broken rollback")
}

func TestCreateAndGetPurchase(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	purchaser := seedPurchaser(t, db)

	p, items := buildPurchase(purchaser.ID, "", 100)
	attendees := []models.Attendee{{
		ID:           uuid.NewString(),
		PurchaseID:   p.ID,
		FullName:     "Alex Attendee",
		Email:        "alex@example.com",
		TicketTypeID: "standard",
		CreatedAt:    time.Now(),
	}}

	if err := db.CreatePurchase(ctx, p, items, attendees); err != nil {
		t.Fatalf("Failed to create purchase: %v", err)
	}

	got, err := db.GetPurchaseByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("Failed to load purchase: %v", err)
	}
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, models.PurchasePending, got.Status)
	assert.Len(t, got.Items, 1)
	assert.Len(t, got.Attendees, 1)
	assert.Equal(t, "Alex Attendee", got.Attendees[0].FullName)
}

func TestGetPurchaseNotFound(t *testing.T) {
	db, _ := setupTestDB(t)

	_, err := db.GetPurchaseByID(context.Background(), "missing")
	assert.True(t, errs.IsNotFound(err))
}

func TestUpdateStatusUnknownPurchase(t *testing.T) {
	db, _ := setupTestDB(t)

	err := db.UpdateStatus(context.Background(), "missing", models.PurchasePaid, models.PaymentPaid)
	assert.True(t, errs.IsNotFound(err))
}

func TestListPurchasesFiltersAndPaginates(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	purchaser := seedPurchaser(t, db)

	for i := 0; i < 3; i++ {
		p, items := buildPurchase(purchaser.ID, "", 100)
		if i == 0 {
			p.Status = models.PurchasePaid
			p.PaymentStatus = models.PaymentPaid
		}
		if err := db.CreatePurchase(ctx, p, items, nil); err != nil {
			t.Fatalf("Failed to create purchase %d: %v", i, err)
		}
	}

	paid, total, err := db.ListPurchases(ctx, models.PurchaseListFilters{Status: "paid"}, models.Page{Number: 1, Limit: 20})
	if err != nil {
		t.Fatalf("Failed to list paid purchases: %v", err)
	}
	assert.Equal(t, 1, total)
	assert.Len(t, paid, 1)
	assert.Equal(t, models.PurchasePaid, paid[0].Status)

	firstPage, total, err := db.ListPurchases(ctx, models.PurchaseListFilters{}, models.Page{Number: 1, Limit: 2})
	if err != nil {
		t.Fatalf("Failed to list first page: %v", err)
	}
	assert.Equal(t, 3, total, "total reflects all matches, not the page size")
	assert.Len(t, firstPage, 2)

	secondPage, _, err := db.ListPurchases(ctx, models.PurchaseListFilters{}, models.Page{Number: 2, Limit: 2})
	if err != nil {
		t.Fatalf("Failed to list second page: %v", err)
	}
	assert.Len(t, secondPage, 1)
}

func TestListPurchasesByTicketType(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	purchaser := seedPurchaser(t, db)

	standard, standardItems := buildPurchase(purchaser.ID, "", 100)
	if err := db.CreatePurchase(ctx, standard, standardItems, nil); err != nil {
		t.Fatalf("Failed to create purchase: %v", err)
	}

	vip := &models.Purchase{
		ID:            uuid.NewString(),
		PurchaserID:   purchaser.ID,
		TotalAmount:   250,
		FinalAmount:   250,
		Currency:      "USD",
		Status:        models.PurchasePending,
		PaymentStatus: models.PaymentUnpaid,
		CreatedAt:     time.Now(),
	}
	vipItems := []models.PurchaseItem{{
		ID:           uuid.NewString(),
		PurchaseID:   vip.ID,
		TicketTypeID: "vip",
		Quantity:     1,
		UnitPrice:    250,
		TotalPrice:   250,
	}}
	if err := db.CreatePurchase(ctx, vip, vipItems, nil); err != nil {
		t.Fatalf("Failed to create purchase: %v", err)
	}

	got, total, err := db.ListPurchases(ctx, models.PurchaseListFilters{TicketType: "vip"}, models.Page{Number: 1, Limit: 20})
	if err != nil {
		t.Fatalf("Failed to list by ticket type: %v", err)
	}
	assert.Equal(t, 1, total)
	assert.Equal(t, vip.ID, got[0].ID)
}

func TestListPurchasesSearch(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	purchaser := &models.Purchaser{
		ID:        uuid.NewString(),
		FullName:  "Grace Hopper",
		Email:     "grace@navy.mil",
		CreatedAt: time.Now(),
	}
	if err := db.CreatePurchaser(ctx, purchaser); err != nil {
		t.Fatalf("Failed to create purchaser: %v", err)
	}
	p, items := buildPurchase(purchaser.ID, "", 100)
	if err := db.CreatePurchase(ctx, p, items, nil); err != nil {
		t.Fatalf("Failed to create purchase: %v", err)
	}

	got, total, err := db.ListPurchases(ctx, models.PurchaseListFilters{SearchTerm: "hopper"}, models.Page{Number: 1, Limit: 20})
	if err != nil {
		t.Fatalf("Failed to search purchases: %v", err)
	}
	assert.Equal(t, 1, total)
	assert.Equal(t, p.ID, got[0].ID)
}
