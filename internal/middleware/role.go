package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/movenorth/booking-backend/internal/service"
)

// RequireRole restricts a route to the given roles. It must run after
// Auth, which populates the claims.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := service.Authorize(ClaimsFrom(c), roles...); err != nil {
				return renderError(c, err)
			}
			return next(c)
		}
	}
}
