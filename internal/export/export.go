package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"summit-ticketing/internal/errs"
	"summit-ticketing/internal/logger"

	"github.com/uptrace/bun"
)

// Columns is the fixed attendee export header. Downstream registration
// tooling matches on these names, so the order is part of the contract.
var Columns = []string{
	"Name",
	"Email",
	"Role",
	"Organization",
	"Ticket Type",
	"Purchaser Name",
	"Purchaser Email",
	"Country",
	"Visa Letter",
	"Passport Name",
	"Nationality",
	"Payment Status",
	"Registration Date",
}

// Row is one attendee joined to its purchase and purchaser.
type Row struct {
	Name           string    `bun:"name"`
	Email          string    `bun:"email"`
	Role           string    `bun:"role"`
	Organization   string    `bun:"organization"`
	TicketType     string    `bun:"ticket_type"`
	PurchaserName  string    `bun:"purchaser_name"`
	PurchaserEmail string    `bun:"purchaser_email"`
	Country        string    `bun:"country"`
	VisaLetter     bool      `bun:"visa_letter"`
	PassportName   string    `bun:"passport_name"`
	Nationality    string    `bun:"nationality"`
	PaymentStatus  string    `bun:"payment_status"`
	CreatedAt      time.Time `bun:"created_at"`
}

type Exporter struct {
	Bun    *bun.DB
	Logger *logger.Logger
}

func NewExporter(db *bun.DB, log *logger.Logger) *Exporter {
	return &Exporter{Bun: db, Logger: log}
}

// Filters narrows the export; zero values mean no restriction.
type Filters struct {
	Status        string
	PaymentStatus string
}

func (e *Exporter) rows(ctx context.Context, f Filters) ([]Row, error) {
	q := e.Bun.NewSelect().
		TableExpr("attendees AS a").
		Join("JOIN purchases AS p ON p.id = a.purchase_id").
		Join("JOIN purchasers AS pur ON pur.id = p.purchaser_id").
		ColumnExpr("a.full_name AS name").
		ColumnExpr("a.email AS email").
		ColumnExpr("a.role AS role").
		ColumnExpr("a.organization AS organization").
		ColumnExpr("a.ticket_type_name AS ticket_type").
		ColumnExpr("pur.full_name AS purchaser_name").
		ColumnExpr("pur.email AS purchaser_email").
		ColumnExpr("pur.country AS country").
		ColumnExpr("a.visa_letter AS visa_letter").
		ColumnExpr("a.passport_name AS passport_name").
		ColumnExpr("a.nationality AS nationality").
		ColumnExpr("p.payment_status AS payment_status").
		ColumnExpr("a.created_at AS created_at").
		OrderExpr("a.created_at ASC")

	if f.Status != "" {
		q = q.Where("p.status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		q = q.Where("p.payment_status = ?", f.PaymentStatus)
	}

	var rows []Row
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, errs.Transient("export attendees", err)
	}
	return rows, nil
}

// WriteCSV streams the attendee export. The header row is written even when
// no attendees match.
func (e *Exporter) WriteCSV(ctx context.Context, w io.Writer, f Filters) error {
	rows, err := e.rows(ctx, f)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range rows {
		visa := "No"
		if r.VisaLetter {
			visa = "Yes"
		}
		record := []string{
			r.Name,
			r.Email,
			r.Role,
			r.Organization,
			r.TicketType,
			r.PurchaserName,
			r.PurchaserEmail,
			r.Country,
			visa,
			r.PassportName,
			r.Nationality,
			r.PaymentStatus,
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	e.Logger.Info("EXPORT", fmt.Sprintf("exported %d attendee rows", len(rows)))
	return nil
}
