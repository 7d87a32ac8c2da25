package purchase_test

import (
	"context"
	"testing"
	"time"

	"summit-ticketing/internal/errs"
	"summit-ticketing/internal/logger"
	"summit-ticketing/internal/models"
	"summit-ticketing/internal/purchase"

	"github.com/stretchr/testify/assert"
)

// Mock implementations for testing

type mockPurchaseDB struct {
	purchases  map[string]*models.Purchase
	purchasers map[string]*models.Purchaser
	created    int
}

func newMockPurchaseDB() *mockPurchaseDB {
	return &mockPurchaseDB{
		purchases:  make(map[string]*models.Purchase),
		purchasers: make(map[string]*models.Purchaser),
	}
}

func (m *mockPurchaseDB) CreatePurchase(_ context.Context, p *models.Purchase, items []models.PurchaseItem, attendees []models.Attendee) error {
	cp := *p
	cp.Items = items
	cp.Attendees = attendees
	m.purchases[p.ID] = &cp
	m.created++
	return nil
}

func (m *mockPurchaseDB) GetPurchaseByID(_ context.Context, id string) (*models.Purchase, error) {
	p, ok := m.purchases[id]
	if !ok {
		return nil, errs.NotFound("purchase", id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockPurchaseDB) UpdateStatus(_ context.Context, id string, status models.PurchaseStatus, paymentStatus models.PaymentState) error {
	p, ok := m.purchases[id]
	if !ok {
		return errs.NotFound("purchase", id)
	}
	p.Status = status
	if paymentStatus != "" {
		p.PaymentStatus = paymentStatus
	}
	return nil
}

func (m *mockPurchaseDB) UpdatePaymentStatus(_ context.Context, id string, paymentStatus models.PaymentState) error {
	p, ok := m.purchases[id]
	if !ok {
		return errs.NotFound("purchase", id)
	}
	p.PaymentStatus = paymentStatus
	return nil
}

func (m *mockPurchaseDB) ListPurchases(_ context.Context, _ models.PurchaseListFilters, _ models.Page) ([]models.Purchase, int, error) {
	var out []models.Purchase
	for _, p := range m.purchases {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *mockPurchaseDB) GetPurchaser(_ context.Context, id string) (*models.Purchaser, error) {
	p, ok := m.purchasers[id]
	if !ok {
		return nil, errs.NotFound("purchaser", id)
	}
	return p, nil
}

type mockValidator struct {
	result *models.PromoValidation
	err    error
}

func (m *mockValidator) Validate(_ context.Context, _ string, _ []string, _ time.Time) (*models.PromoValidation, error) {
	return m.result, m.err
}

type mockAudit struct {
	actions []string
}

func (m *mockAudit) Record(_ context.Context, _, action, _, _ string, _, _ any) error {
	m.actions = append(m.actions, action)
	return nil
}

type mockPublisher struct {
	created       int
	statusChanged int
}

func (m *mockPublisher) PublishPurchaseCreated(models.Purchase) error {
	m.created++
	return nil
}

func (m *mockPublisher) PublishPurchaseStatusChanged(models.Purchase) error {
	m.statusChanged++
	return nil
}

type mockNotifier struct{ confirmed int }

func (m *mockNotifier) PurchaseConfirmed(models.Purchase) { m.confirmed++ }

type fixture struct {
	db        *mockPurchaseDB
	validator *mockValidator
	audit     *mockAudit
	events    *mockPublisher
	notify    *mockNotifier
	svc       *purchase.Service
}

func newFixture() *fixture {
	f := &fixture{
		db:        newMockPurchaseDB(),
		validator: &mockValidator{result: &models.PromoValidation{Valid: true}},
		audit:     &mockAudit{},
		events:    &mockPublisher{},
		notify:    &mockNotifier{},
	}
	f.db.purchasers["buyer-1"] = &models.Purchaser{ID: "buyer-1", FullName: "Buyer One", Email: "b1@example.com"}
	f.svc = purchase.NewService(f.db, f.validator, f.audit, f.events, f.notify, logger.New("test"), 5*time.Second)
	return f
}

func validRequest() models.CreatePurchaseRequest {
	return models.CreatePurchaseRequest{
		PurchaserID: "buyer-1",
		Currency:    "USD",
		Items: []models.PurchaseItemRequest{
			{TicketTypeID: "standard", TicketTypeName: "Standard", Quantity: 2, UnitPrice: 50},
		},
		Attendees: []models.AttendeeRequest{
			{FullName: "Alex Attendee", Email: "alex@example.com", TicketTypeID: "standard"},
		},
	}
}

func TestCreatePurchaseComputesTotals(t *testing.T) {
	f := newFixture()

	created, err := f.svc.Create(context.Background(), "admin-1", validRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	assert.Equal(t, 100.0, created.TotalAmount)
	assert.Equal(t, 0.0, created.DiscountAmount)
	assert.Equal(t, 100.0, created.FinalAmount)
	assert.Equal(t, models.PurchasePending, created.Status)
	assert.Equal(t, models.PaymentUnpaid, created.PaymentStatus)
	assert.Equal(t, "Standard", created.Attendees[0].TicketTypeName, "attendee ticket name is denormalized from the item")
	assert.Equal(t, 1, f.events.created)
	assert.Equal(t, 1, f.notify.confirmed)
	assert.Contains(t, f.audit.actions, "purchase.created")
}

func TestCreatePurchaseAppliesPromoDiscount(t *testing.T) {
	f := newFixture()
	f.validator.result = &models.PromoValidation{
		Valid: true,
		PromoCode: &models.PromoCode{
			Code:          "SUMMIT10",
			DiscountType:  models.DiscountPercentage,
			DiscountValue: 10,
		},
	}

	req := validRequest()
	req.PromoCode = "SUMMIT10"

	created, err := f.svc.Create(context.Background(), "admin-1", req)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	assert.Equal(t, 100.0, created.TotalAmount)
	assert.Equal(t, 10.0, created.DiscountAmount)
	assert.Equal(t, 90.0, created.FinalAmount)
}

func TestCreatePurchaseRejectsInvalidPromo(t *testing.T) {
	f := newFixture()
	f.validator.result = &models.PromoValidation{
		Valid:   false,
		Reason:  errs.ReasonExpired,
		Message: "promo code has expired",
	}

	req := validRequest()
	req.PromoCode = "OLD"

	_, err := f.svc.Create(context.Background(), "admin-1", req)
	if err == nil {
		t.Fatal("Expected a conflict for an invalid promo")
	}
	assert.Equal(t, errs.ReasonExpired, errs.ReasonOf(err))
	assert.Equal(t, 0, f.db.created, "nothing may be written when the promo is invalid")
}

func TestCreatePurchaseValidation(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name   string
		mutate func(r *models.CreatePurchaseRequest)
	}{
		{"missing purchaser", func(r *models.CreatePurchaseRequest) { r.PurchaserID = "" }},
		{"no items", func(r *models.CreatePurchaseRequest) { r.Items = nil }},
		{"zero quantity", func(r *models.CreatePurchaseRequest) { r.Items[0].Quantity = 0 }},
		{"negative price", func(r *models.CreatePurchaseRequest) { r.Items[0].UnitPrice = -1 }},
		{"missing ticket type", func(r *models.CreatePurchaseRequest) { r.Items[0].TicketTypeID = "" }},
		{"attendee without email", func(r *models.CreatePurchaseRequest) { r.Attendees[0].Email = "" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			_, err := f.svc.Create(context.Background(), "admin-1", req)
			if err == nil {
				t.Fatal("Expected a validation error")
			}
			assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		})
	}
	assert.Equal(t, 0, f.db.created)
}

func TestCreatePurchaseUnknownPurchaser(t *testing.T) {
	f := newFixture()

	req := validRequest()
	req.PurchaserID = "ghost"

	_, err := f.svc.Create(context.Background(), "admin-1", req)
	assert.True(t, errs.IsNotFound(err))
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from    models.PurchaseStatus
		to      models.PurchaseStatus
		allowed bool
	}{
		{models.PurchasePending, models.PurchasePaid, true},
		{models.PurchasePending, models.PurchaseCancelled, true},
		{models.PurchasePending, models.PurchaseRefunded, false},
		{models.PurchasePaid, models.PurchaseRefunded, true},
		{models.PurchasePaid, models.PurchaseCancelled, false},
		{models.PurchasePaid, models.PurchasePending, false},
		{models.PurchaseCancelled, models.PurchasePaid, false},
		{models.PurchaseCancelled, models.PurchasePending, false},
		{models.PurchaseRefunded, models.PurchasePaid, false},
		{models.PurchaseRefunded, models.PurchasePending, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.allowed, purchase.CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	f := newFixture()
	created, err := f.svc.Create(context.Background(), "admin-1", validRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = f.svc.Transition(context.Background(), "admin-1", created.ID, models.PurchaseRefunded)
	if err == nil {
		t.Fatal("Expected INVALID_TRANSITION for pending -> refunded")
	}
	assert.Equal(t, errs.ReasonInvalidTransition, errs.ReasonOf(err))

	// State must be untouched after the rejection.
	got, err := f.svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	assert.Equal(t, models.PurchasePending, got.Status)
}

func TestTransitionLifecycle(t *testing.T) {
	f := newFixture()
	created, err := f.svc.Create(context.Background(), "admin-1", validRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	paid, err := f.svc.Transition(context.Background(), "admin-1", created.ID, models.PurchasePaid)
	if err != nil {
		t.Fatalf("pending -> paid failed: %v", err)
	}
	assert.Equal(t, models.PurchasePaid, paid.Status)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)

	refunded, err := f.svc.Transition(context.Background(), "admin-1", created.ID, models.PurchaseRefunded)
	if err != nil {
		t.Fatalf("paid -> refunded failed: %v", err)
	}
	assert.Equal(t, models.PurchaseRefunded, refunded.Status)
	assert.Equal(t, models.PaymentRefunded, refunded.PaymentStatus)

	// Terminal: no way out of refunded.
	_, err = f.svc.Transition(context.Background(), "admin-1", created.ID, models.PurchasePaid)
	assert.Equal(t, errs.ReasonInvalidTransition, errs.ReasonOf(err))

	assert.Equal(t, 2, f.events.statusChanged)
}

func TestTransitionSameStatusIsNoOp(t *testing.T) {
	f := newFixture()
	created, err := f.svc.Create(context.Background(), "admin-1", validRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := f.svc.Transition(context.Background(), "admin-1", created.ID, models.PurchasePending)
	if err != nil {
		t.Fatalf("same-status transition must succeed: %v", err)
	}
	assert.Equal(t, models.PurchasePending, got.Status)
	assert.Equal(t, 0, f.events.statusChanged, "a no-op transition publishes nothing")
}

func TestTransitionUnknownStatus(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Transition(context.Background(), "admin-1", "any", models.PurchaseStatus("shipped"))
	if err == nil {
		t.Fatal("Expected a validation error for an unknown status")
	}
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestMarkPaymentFailedKeepsStatus(t *testing.T) {
	f := newFixture()
	created, err := f.svc.Create(context.Background(), "admin-1", validRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := f.svc.MarkPaymentFailed(context.Background(), "gateway", created.ID); err != nil {
		t.Fatalf("MarkPaymentFailed failed: %v", err)
	}

	got, err := f.svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	assert.Equal(t, models.PurchasePending, got.Status, "a failed payment leaves the purchase pending for retry")
	assert.Equal(t, models.PaymentFailed, got.PaymentStatus)
}

func TestListCapsLimit(t *testing.T) {
	f := newFixture()

	list, err := f.svc.List(context.Background(), models.PurchaseListFilters{}, models.Page{Number: 1, Limit: 1000})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	assert.Equal(t, 100, list.Limit)
	assert.Equal(t, 1, list.Page)
	assert.NotNil(t, list.Items)
}
