package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/movenorth/booking-backend/internal/apperr"
	"github.com/movenorth/booking-backend/internal/middleware"
	"github.com/movenorth/booking-backend/internal/model"
	"github.com/movenorth/booking-backend/internal/service"
)

// StatsHandler serves the dashboard aggregations.
type StatsHandler struct {
	stats *service.StatsService
}

func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// year resolves the optional ?year= query, defaulting to the current
// year.
func year(c echo.Context) (int, error) {
	raw := c.QueryParam("year")
	if raw == "" {
		return time.Now().UTC().Year(), nil
	}
	y, err := strconv.Atoi(raw)
	if err != nil || y < 2000 || y > 9999 {
		return 0, apperr.New(apperr.KindValidation, "year must be a four-digit number")
	}
	return y, nil
}

// Bookings returns booking counts over the trailing 7-day windows.
func (h *StatsHandler) Bookings(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	stats, err := h.stats.BookingStats(ctx, time.Now().UTC())
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Users returns signup counts over the trailing 7-day windows.
func (h *StatsHandler) Users(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	stats, err := h.stats.UserStats(ctx, time.Now().UTC())
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Revenue returns paid revenue over the trailing 7-day windows.
func (h *StatsHandler) Revenue(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	stats, err := h.stats.RevenueStats(ctx, time.Now().UTC())
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// MonthlyBookings returns the 12-entry booking series for a year.
func (h *StatsHandler) MonthlyBookings(c echo.Context) error {
	y, err := year(c)
	if err != nil {
		return writeErr(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	series, err := h.stats.MonthlyBookings(ctx, y)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, series)
}

// MonthlyRevenue returns the 12-entry paid revenue series for a year.
func (h *StatsHandler) MonthlyRevenue(c echo.Context) error {
	y, err := year(c)
	if err != nil {
		return writeErr(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	series, err := h.stats.MonthlyRevenue(ctx, y)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, series)
}

// MonthlyCustomerBookings returns one customer's 12-entry booking
// series. Admins may query anyone; users only themselves.
func (h *StatsHandler) MonthlyCustomerBookings(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)
	target := c.Param("uid")
	if claims.User.Role != model.RoleAdmin && claims.User.UID != target {
		return writeErr(c, apperr.New(apperr.KindForbidden, "cannot read another user's stats"))
	}
	y, err := year(c)
	if err != nil {
		return writeErr(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	series, err := h.stats.MonthlyCustomerBookings(ctx, target, y)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, series)
}
