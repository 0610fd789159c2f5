package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/movenorth/booking-backend/internal/apperr"
	"github.com/movenorth/booking-backend/internal/model"
	"github.com/movenorth/booking-backend/internal/service"
)

// dbTimeout bounds every handler's downstream work.
const dbTimeout = 5 * time.Second

// writeErr renders any service error through the shared kind mapping.
func writeErr(c echo.Context, err error) error {
	return c.JSON(apperr.HTTPStatus(err), echo.Map{
		"error":   apperr.KindName(err),
		"message": apperr.Message(err),
	})
}

// ----- views -----

type userView struct {
	UID        string    `json:"uid"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

func toUserView(u *model.User) userView {
	return userView{
		UID:        u.UID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Username:   u.Username,
		Email:      u.Email,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
}

type bookingView struct {
	UID            string    `json:"uid"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	PhoneNumber    string    `json:"phone_number"`
	PickupAddress  string    `json:"pickup_address,omitempty"`
	DropoffAddress string    `json:"dropoff_address"`
	MovingDate     string    `json:"moving_date"`
	Service        string    `json:"service"`
	SubServices    []string  `json:"sub_services"`
	Description    string    `json:"description,omitempty"`
	Status         string    `json:"status"`
	AgreedPrice    string    `json:"agreed_price"`
	UserUID        *string   `json:"user_uid"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toBookingView(b *model.Booking) bookingView {
	return bookingView{
		UID:            b.UID,
		FirstName:      b.FirstName,
		LastName:       b.LastName,
		Email:          b.Email,
		PhoneNumber:    b.PhoneNumber,
		PickupAddress:  b.PickupAddress,
		DropoffAddress: b.DropoffAddress,
		MovingDate:     b.MovingDate.Format(service.WireDateFormat),
		Service:        b.Service,
		SubServices:    b.SubServices,
		Description:    b.Description,
		Status:         string(b.Status),
		AgreedPrice:    b.AgreedPrice,
		UserUID:        b.UserUID,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func toBookingViews(bookings []model.Booking) []bookingView {
	out := make([]bookingView, len(bookings))
	for i := range bookings {
		out[i] = toBookingView(&bookings[i])
	}
	return out
}

type invoiceView struct {
	UID        string     `json:"uid"`
	BookingUID string     `json:"booking_uid"`
	ExternalID string     `json:"external_id"`
	Amount     float64    `json:"amount"`
	Status     string     `json:"status"`
	IssuedAt   time.Time  `json:"issued_at"`
	PaidAt     *time.Time `json:"paid_at"`
}

func toInvoiceView(inv *model.Invoice) invoiceView {
	return invoiceView{
		UID:        inv.UID,
		BookingUID: inv.BookingUID,
		ExternalID: inv.ExternalID,
		Amount:     inv.Amount,
		Status:     inv.Status,
		IssuedAt:   inv.IssuedAt,
		PaidAt:     inv.PaidAt,
	}
}
