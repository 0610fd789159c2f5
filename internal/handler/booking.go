package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/movenorth/booking-backend/internal/apperr"
	"github.com/movenorth/booking-backend/internal/middleware"
	"github.com/movenorth/booking-backend/internal/model"
	"github.com/movenorth/booking-backend/internal/service"
)

// BookingHandler exposes the booking lifecycle endpoints.
type BookingHandler struct {
	bookings *service.BookingService
}

func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// ----- DTOs -----

type createBookingReq struct {
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	Email          string   `json:"email"`
	PhoneNumber    string   `json:"phone_number"`
	PickupAddress  string   `json:"pickup_address"`
	DropoffAddress string   `json:"dropoff_address"`
	MovingDate     string   `json:"moving_date"`
	Service        string   `json:"service"`
	SubServices    []string `json:"sub_services"`
	Description    string   `json:"description"`
}

type updateBookingReq struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	PhoneNumber    string `json:"phone_number"`
	PickupAddress  string `json:"pickup_address"`
	DropoffAddress string `json:"dropoff_address"`
	MovingDate     string `json:"moving_date"`
	Service        string `json:"service"`
	Description    string `json:"description"`
}

type rescheduleReq struct {
	MovingDate string `json:"moving_date"`
}

type statusReq struct {
	Status string `json:"status"`
}

type agreedPriceReq struct {
	AgreedPrice string `json:"agreed_price"`
}

// Create is the public booking submission endpoint.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return writeErr(c, apperr.New(apperr.KindValidation, "invalid request body"))
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	booking, err := h.bookings.Create(ctx, service.CreateBookingCommand{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		PhoneNumber:    req.PhoneNumber,
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		MovingDate:     req.MovingDate,
		Service:        req.Service,
		SubServices:    req.SubServices,
		Description:    req.Description,
	})
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingView(booking))
}

// Get returns one booking by uid.
func (h *BookingHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	booking, err := h.bookings.Get(ctx, c.Param("uid"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, toBookingView(booking))
}

// List returns every booking; admin only.
func (h *BookingHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	bookings, err := h.bookings.ListAll(ctx)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, toBookingViews(bookings))
}

// ListForUser returns one user's bookings; users may only read their
// own.
func (h *BookingHandler) ListForUser(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	bookings, err := h.bookings.ListForUser(ctx, middleware.ClaimsFrom(c), c.Param("uid"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, toBookingViews(bookings))
}

// Update rewrites contact and move details.
func (h *BookingHandler) Update(c echo.Context) error {
	var req updateBookingReq
	if err := c.Bind(&req); err != nil {
		return writeErr(c, apperr.New(apperr.KindValidation, "invalid request body"))
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	booking, err := h.bookings.Update(ctx, c.Param("uid"), service.UpdateBookingCommand{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		PhoneNumber:    req.PhoneNumber,
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		MovingDate:     req.MovingDate,
		Service:        req.Service,
		Description:    req.Description,
	})
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, toBookingView(booking))
}

// Reschedule changes the moving date.
func (h *BookingHandler) Reschedule(c echo.Context) error {
	var req rescheduleReq
	if err := c.Bind(&req); err != nil {
		return writeErr(c, apperr.New(apperr.KindValidation, "invalid request body"))
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	booking, err := h.bookings.Reschedule(ctx, c.Param("uid"), req.MovingDate)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, toBookingView(booking))
}

// SetStatus is the admin status override.
func (h *BookingHandler) SetStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return writeErr(c, apperr.New(apperr.KindValidation, "invalid request body"))
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	booking, err := h.bookings.SetStatus(ctx, c.Param("uid"), model.BookingStatus(req.Status))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, toBookingView(booking))
}

// SetAgreedPrice records the price agreed with the client.
func (h *BookingHandler) SetAgreedPrice(c echo.Context) error {
	var req agreedPriceReq
	if err := c.Bind(&req); err != nil {
		return writeErr(c, apperr.New(apperr.KindValidation, "invalid request body"))
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	booking, err := h.bookings.SetAgreedPrice(ctx, c.Param("uid"), req.AgreedPrice)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, toBookingView(booking))
}

// Cancel is the owner cancellation endpoint.
func (h *BookingHandler) Cancel(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	booking, err := h.bookings.Cancel(ctx, c.Param("uid"), middleware.ClaimsFrom(c))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, toBookingView(booking))
}

// Reject is the admin rejection endpoint.
func (h *BookingHandler) Reject(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	booking, err := h.bookings.Reject(ctx, c.Param("uid"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, toBookingView(booking))
}

// Delete removes a Pending booking entirely.
func (h *BookingHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.bookings.Delete(ctx, c.Param("uid"), middleware.ClaimsFrom(c)); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
