package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/movenorth/booking-backend/internal/apperr"
	"github.com/movenorth/booking-backend/internal/model"
)

// UpdateBookingFields is the typed update command for contact and move
// details. Status, price and owner linkage have dedicated operations
// so lifecycle invariants cannot be bypassed through a generic write.
type UpdateBookingFields struct {
	FirstName      string
	LastName       string
	PhoneNumber    string
	PickupAddress  string
	DropoffAddress string
	MovingDate     time.Time
	Service        string
	Description    string
}

// BookingStore is the booking persistence contract consumed by
// services.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByUID(ctx context.Context, uid string) (*model.Booking, error)
	List(ctx context.Context) ([]model.Booking, error)
	ListByUser(ctx context.Context, userUID string) ([]model.Booking, error)
	UpdateFields(ctx context.Context, uid string, fields UpdateBookingFields) error
	Reschedule(ctx context.Context, uid string, movingDate time.Time) error
	UpdateStatus(ctx context.Context, uid string, status model.BookingStatus) error
	UpdateAgreedPrice(ctx context.Context, uid, price string) error
	Delete(ctx context.Context, uid string) error
	BackfillUserLinks(ctx context.Context, email, userUID string) (int64, error)
	CountAll(ctx context.Context) (int64, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error)
	MonthlyCounts(ctx context.Context, year int) (map[int]int64, error)
	MonthlyCountsForUser(ctx context.Context, userUID string, year int) (map[int]int64, error)
}

// BookingRepo is the MySQL implementation of BookingStore.
type BookingRepo struct{ DB *sql.DB }

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{DB: db} }

const bookingColumns = "uid,first_name,last_name,email,phone_number,pickup_address,dropoff_address," +
	"moving_date,service,sub_services,description,status,agreed_price,user_uid,created_at,updated_at"

func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	if b.UID == "" {
		b.UID = uuid.NewString()
	}
	sub, err := json.Marshal(b.SubServices)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO bookings (uid, first_name, last_name, email, phone_number, pickup_address, dropoff_address, moving_date, service, sub_services, description, status, agreed_price, user_uid) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
		b.UID, b.FirstName, b.LastName, strings.ToLower(strings.TrimSpace(b.Email)), b.PhoneNumber,
		b.PickupAddress, b.DropoffAddress, b.MovingDate, b.Service, string(sub),
		b.Description, b.Status, b.AgreedPrice, b.UserUID)
	return err
}

func (r *BookingRepo) GetByUID(ctx context.Context, uid string) (*model.Booking, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE uid=? LIMIT 1", uid)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "booking not found")
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *BookingRepo) List(ctx context.Context) ([]model.Booking, error) {
	return r.list(ctx, "SELECT "+bookingColumns+" FROM bookings ORDER BY created_at DESC")
}

func (r *BookingRepo) ListByUser(ctx context.Context, userUID string) ([]model.Booking, error) {
	return r.list(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE user_uid=? ORDER BY created_at DESC", userUID)
}

func (r *BookingRepo) list(ctx context.Context, query string, args ...any) ([]model.Booking, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface{ Scan(dest ...any) error }

func scanBooking(s scanner) (*model.Booking, error) {
	var (
		b       model.Booking
		sub     sql.NullString
		pickup  sql.NullString
		userUID sql.NullString
	)
	err := s.Scan(&b.UID, &b.FirstName, &b.LastName, &b.Email, &b.PhoneNumber,
		&pickup, &b.DropoffAddress, &b.MovingDate, &b.Service, &sub,
		&b.Description, &b.Status, &b.AgreedPrice, &userUID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.PickupAddress = pickup.String
	if userUID.Valid {
		b.UserUID = &userUID.String
	}
	if sub.Valid && sub.String != "" {
		if err := json.Unmarshal([]byte(sub.String), &b.SubServices); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

func (r *BookingRepo) UpdateFields(ctx context.Context, uid string, f UpdateBookingFields) error {
	return r.update(ctx,
		"UPDATE bookings SET first_name=?, last_name=?, phone_number=?, pickup_address=?, dropoff_address=?, moving_date=?, service=?, description=?, updated_at=NOW() WHERE uid=?",
		f.FirstName, f.LastName, f.PhoneNumber, f.PickupAddress, f.DropoffAddress,
		f.MovingDate, f.Service, f.Description, uid)
}

func (r *BookingRepo) Reschedule(ctx context.Context, uid string, movingDate time.Time) error {
	return r.update(ctx,
		"UPDATE bookings SET moving_date=?, updated_at=NOW() WHERE uid=?", movingDate, uid)
}

func (r *BookingRepo) UpdateStatus(ctx context.Context, uid string, status model.BookingStatus) error {
	return r.update(ctx,
		"UPDATE bookings SET status=?, updated_at=NOW() WHERE uid=?", status, uid)
}

func (r *BookingRepo) UpdateAgreedPrice(ctx context.Context, uid, price string) error {
	return r.update(ctx,
		"UPDATE bookings SET agreed_price=?, updated_at=NOW() WHERE uid=?", price, uid)
}

func (r *BookingRepo) Delete(ctx context.Context, uid string) error {
	return r.update(ctx, "DELETE FROM bookings WHERE uid=?", uid)
}

// BackfillUserLinks links bookings created before the user registered
// to the new account, matching on email where no owner is set yet.
func (r *BookingRepo) BackfillUserLinks(ctx context.Context, email, userUID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE bookings SET user_uid=?, updated_at=NOW() WHERE email=? AND user_uid IS NULL",
		userUID, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *BookingRepo) update(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.KindNotFound, "booking not found")
	}
	return nil
}

func (r *BookingRepo) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings").Scan(&n)
	return n, err
}

func (r *BookingRepo) CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE created_at >= ? AND created_at < ?", from, to).Scan(&n)
	return n, err
}

// MonthlyCounts returns booking counts keyed by month (1-12) for the
// given calendar year. Months without bookings are absent; zero-fill
// happens in the stats service.
func (r *BookingRepo) MonthlyCounts(ctx context.Context, year int) (map[int]int64, error) {
	return r.monthly(ctx,
		"SELECT MONTH(created_at), COUNT(*) FROM bookings WHERE YEAR(created_at)=? GROUP BY MONTH(created_at)",
		year)
}

func (r *BookingRepo) MonthlyCountsForUser(ctx context.Context, userUID string, year int) (map[int]int64, error) {
	return r.monthly(ctx,
		"SELECT MONTH(created_at), COUNT(*) FROM bookings WHERE user_uid=? AND YEAR(created_at)=? GROUP BY MONTH(created_at)",
		userUID, year)
}

func (r *BookingRepo) monthly(ctx context.Context, query string, args ...any) (map[int]int64, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var month int
		var n int64
		if err := rows.Scan(&month, &n); err != nil {
			return nil, err
		}
		counts[month] = n
	}
	return counts, rows.Err()
}
