package analytics

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"summit-ticketing/internal/errs"
	"summit-ticketing/internal/models"

	"github.com/uptrace/bun"
)

// Service computes aggregate reports over committed purchase state. Only
// purchases with status=paid count toward revenue, so a pending or refunded
// purchase can never inflate a report.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// Summary is the revenue report for a date range.
type Summary struct {
	Revenue       float64             `json:"revenue"`
	TotalDiscount float64             `json:"total_discount"`
	PurchaseCount int                 `json:"purchase_count"`
	TicketsSold   int                 `json:"tickets_sold"`
	ByTicketType  []TicketTypeMetrics `json:"by_ticket_type"`
}

type TicketTypeMetrics struct {
	TicketTypeID   string  `bun:"ticket_type_id" json:"ticket_type_id"`
	TicketTypeName string  `bun:"ticket_type_name" json:"ticket_type_name"`
	TicketsSold    int     `bun:"tickets_sold" json:"tickets_sold"`
	Revenue        float64 `bun:"revenue" json:"revenue"`
}

type PromoCodeStats struct {
	Code           string  `bun:"code" json:"code"`
	UsageCount     int     `bun:"usage_count" json:"usage_count"`
	TotalDiscount  float64 `bun:"total_discount" json:"total_discount"`
	TotalRevenue   float64 `bun:"total_revenue" json:"total_revenue"`
	RedemptionRate float64 `bun:"-" json:"redemption_rate"`
}

type PromoUsage struct {
	PromoCode     *models.PromoCode `json:"promo_code"`
	UsageCount    int               `json:"usage_count"`
	TotalDiscount float64           `json:"total_discount"`
	Purchases     []models.Purchase `json:"purchases"`
}

// GetSummary aggregates revenue over paid purchases inside the range.
// Either bound may be zero for an open end.
func (s *Service) GetSummary(ctx context.Context, from, to time.Time) (*Summary, error) {
	type totalsRaw struct {
		Revenue       float64 `bun:"revenue"`
		TotalDiscount float64 `bun:"total_discount"`
		PurchaseCount int     `bun:"purchase_count"`
	}

	var totals totalsRaw
	q := s.db.NewSelect().
		ColumnExpr("COALESCE(SUM(final_amount), 0.0) AS revenue").
		ColumnExpr("COALESCE(SUM(discount_amount), 0.0) AS total_discount").
		ColumnExpr("COUNT(*) AS purchase_count").
		TableExpr("purchases").
		Where("status = ?", models.PurchasePaid)
	q = rangeFilter(q, "created_at", from, to)
	if err := q.Scan(ctx, &totals); err != nil {
		return nil, errs.Transient("aggregate purchase totals", err)
	}

	var ticketsSold int
	tq := s.db.NewSelect().
		ColumnExpr("COALESCE(SUM(i.quantity), 0)").
		TableExpr("purchase_items AS i").
		Join("JOIN purchases AS p ON p.id = i.purchase_id").
		Where("p.status = ?", models.PurchasePaid)
	tq = rangeFilter(tq, "p.created_at", from, to)
	if err := tq.Scan(ctx, &ticketsSold); err != nil {
		return nil, errs.Transient("count tickets sold", err)
	}

	var byType []TicketTypeMetrics
	bq := s.db.NewSelect().
		ColumnExpr("i.ticket_type_id").
		ColumnExpr("MAX(i.ticket_type_name) AS ticket_type_name").
		ColumnExpr("COALESCE(SUM(i.quantity), 0) AS tickets_sold").
		ColumnExpr("COALESCE(SUM(i.total_price), 0.0) AS revenue").
		TableExpr("purchase_items AS i").
		Join("JOIN purchases AS p ON p.id = i.purchase_id").
		Where("p.status = ?", models.PurchasePaid).
		GroupExpr("i.ticket_type_id").
		OrderExpr("i.ticket_type_id")
	bq = rangeFilter(bq, "p.created_at", from, to)
	if err := bq.Scan(ctx, &byType); err != nil {
		return nil, errs.Transient("aggregate ticket types", err)
	}
	if byType == nil {
		byType = []TicketTypeMetrics{}
	}

	return &Summary{
		Revenue:       totals.Revenue,
		TotalDiscount: totals.TotalDiscount,
		PurchaseCount: totals.PurchaseCount,
		TicketsSold:   ticketsSold,
		ByTicketType:  byType,
	}, nil
}

// GetPromoStats reports per-code usage derived from paid purchases. The
// redemption rate is usage over the configured limit, 0 for unlimited codes.
func (s *Service) GetPromoStats(ctx context.Context) ([]PromoCodeStats, error) {
	type statsRaw struct {
		Code          string  `bun:"code"`
		UsageLimit    *int    `bun:"usage_limit"`
		UsageCount    int     `bun:"usage_count"`
		TotalDiscount float64 `bun:"total_discount"`
		TotalRevenue  float64 `bun:"total_revenue"`
	}

	var rows []statsRaw
	err := s.db.NewRaw(`
		SELECT
			pc.code,
			pc.usage_limit,
			COUNT(p.id) AS usage_count,
			COALESCE(SUM(p.discount_amount), 0.0) AS total_discount,
			COALESCE(SUM(p.final_amount), 0.0) AS total_revenue
		FROM promo_codes pc
		LEFT JOIN purchases p ON p.promo_code = pc.code AND p.status = ?
		GROUP BY pc.code, pc.usage_limit
		ORDER BY pc.code
	`, models.PurchasePaid).Scan(ctx, &rows)
	if err != nil {
		return nil, errs.Transient("aggregate promo stats", err)
	}

	stats := make([]PromoCodeStats, 0, len(rows))
	for _, row := range rows {
		stat := PromoCodeStats{
			Code:          row.Code,
			UsageCount:    row.UsageCount,
			TotalDiscount: row.TotalDiscount,
			TotalRevenue:  row.TotalRevenue,
		}
		if row.UsageLimit != nil && *row.UsageLimit > 0 {
			stat.RedemptionRate = float64(row.UsageCount) / float64(*row.UsageLimit)
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// GetPromoUsage returns the usage detail for one promo code, including the
// purchases that redeemed it.
func (s *Service) GetPromoUsage(ctx context.Context, promoID string) (*PromoUsage, error) {
	var promoCode models.PromoCode
	err := s.db.NewSelect().
		Model(&promoCode).
		Where("pc.id = ?", promoID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("promo code", promoID)
	}
	if err != nil {
		return nil, errs.Transient("load promo code", err)
	}

	var purchases []models.Purchase
	err = s.db.NewSelect().
		Model(&purchases).
		Where("p.promo_code = ?", promoCode.Code).
		Order("p.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, errs.Transient("list redeeming purchases", err)
	}
	if purchases == nil {
		purchases = []models.Purchase{}
	}

	var totalDiscount float64
	for _, p := range purchases {
		totalDiscount += p.DiscountAmount
	}

	return &PromoUsage{
		PromoCode:     &promoCode,
		UsageCount:    promoCode.UsedCount,
		TotalDiscount: totalDiscount,
		Purchases:     purchases,
	}, nil
}

func rangeFilter(q *bun.SelectQuery, column string, from, to time.Time) *bun.SelectQuery {
	if !from.IsZero() {
		q = q.Where(column+" >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where(column+" <= ?", to)
	}
	return q
}
