package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/movenorth/booking-backend/internal/apperr"
	"github.com/movenorth/booking-backend/internal/model"
)

// InvoiceStore is the invoice persistence contract consumed by the
// reconciliation service.
type InvoiceStore interface {
	Create(ctx context.Context, inv *model.Invoice) error
	GetByExternalID(ctx context.Context, externalID string) (*model.Invoice, error)
	List(ctx context.Context) ([]model.Invoice, error)
	MarkPaid(ctx context.Context, uid string, paidAt time.Time) error
	SumPaidAll(ctx context.Context) (float64, error)
	SumPaidBetween(ctx context.Context, from, to time.Time) (float64, error)
	MonthlyRevenue(ctx context.Context, year int) (map[int]float64, error)
}

// InvoiceRepo is the MySQL implementation of InvoiceStore.
type InvoiceRepo struct{ DB *sql.DB }

func NewInvoiceRepo(db *sql.DB) *InvoiceRepo { return &InvoiceRepo{DB: db} }

const invoiceColumns = "uid,booking_uid,external_id,amount,status,issued_at,paid_at"

func (r *InvoiceRepo) Create(ctx context.Context, inv *model.Invoice) error {
	if inv.UID == "" {
		inv.UID = uuid.NewString()
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO invoices (uid, booking_uid, external_id, amount, status, issued_at) VALUES (?,?,?,?,?,?)",
		inv.UID, inv.BookingUID, inv.ExternalID, inv.Amount, inv.Status, inv.IssuedAt)
	return err
}

func (r *InvoiceRepo) GetByExternalID(ctx context.Context, externalID string) (*model.Invoice, error) {
	var (
		inv    model.Invoice
		paidAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE external_id=? LIMIT 1", externalID).
		Scan(&inv.UID, &inv.BookingUID, &inv.ExternalID, &inv.Amount, &inv.Status, &inv.IssuedAt, &paidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "invoice not found")
	}
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		inv.PaidAt = &paidAt.Time
	}
	return &inv, nil
}

func (r *InvoiceRepo) List(ctx context.Context) ([]model.Invoice, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+invoiceColumns+" FROM invoices ORDER BY issued_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		var (
			inv    model.Invoice
			paidAt sql.NullTime
		)
		if err := rows.Scan(&inv.UID, &inv.BookingUID, &inv.ExternalID, &inv.Amount,
			&inv.Status, &inv.IssuedAt, &paidAt); err != nil {
			return nil, err
		}
		if paidAt.Valid {
			inv.PaidAt = &paidAt.Time
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *InvoiceRepo) MarkPaid(ctx context.Context, uid string, paidAt time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE invoices SET status=?, paid_at=? WHERE uid=?",
		model.InvoicePaid, paidAt, uid)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.KindNotFound, "invoice not found")
	}
	return nil
}

func (r *InvoiceRepo) SumPaidAll(ctx context.Context) (float64, error) {
	var sum sql.NullFloat64
	err := r.DB.QueryRowContext(ctx,
		"SELECT SUM(amount) FROM invoices WHERE status=?", model.InvoicePaid).Scan(&sum)
	return sum.Float64, err
}

func (r *InvoiceRepo) SumPaidBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var sum sql.NullFloat64
	err := r.DB.QueryRowContext(ctx,
		"SELECT SUM(amount) FROM invoices WHERE status=? AND paid_at >= ? AND paid_at < ?",
		model.InvoicePaid, from, to).Scan(&sum)
	return sum.Float64, err
}

// MonthlyRevenue returns paid revenue keyed by month (1-12) for the
// given calendar year.
func (r *InvoiceRepo) MonthlyRevenue(ctx context.Context, year int) (map[int]float64, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT MONTH(paid_at), SUM(amount) FROM invoices WHERE status=? AND YEAR(paid_at)=? GROUP BY MONTH(paid_at)",
		model.InvoicePaid, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	revenue := make(map[int]float64)
	for rows.Next() {
		var month int
		var sum float64
		if err := rows.Scan(&month, &sum); err != nil {
			return nil, err
		}
		revenue[month] = sum
	}
	return revenue, rows.Err()
}
