package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/movenorth/booking-backend/internal/utils"
)

// claimsKey is the echo context key the auth middleware stores decoded
// claims under.
const claimsKey = "auth_claims"

// ClaimsFrom returns the authenticated claims for the request, or nil
// when the route is unauthenticated.
func ClaimsFrom(c echo.Context) *utils.Claims {
	claims, _ := c.Get(claimsKey).(*utils.Claims)
	return claims
}

func setClaims(c echo.Context, claims *utils.Claims) {
	c.Set(claimsKey, claims)
}
