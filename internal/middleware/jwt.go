package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/movenorth/booking-backend/internal/apperr"
	"github.com/movenorth/booking-backend/internal/repository"
	"github.com/movenorth/booking-backend/internal/service"
	"github.com/movenorth/booking-backend/internal/utils"
)

// Auth validates the Bearer access token on protected routes and
// stores the decoded claims in the request context. Revoked tokens are
// rejected for as long as their jti remains blocklisted.
func Auth(issuer *utils.TokenIssuer, blocklist repository.Blocklist) echo.MiddlewareFunc {
	return authWith(issuer, blocklist, service.RequireAccess)
}

// AuthRefresh is the variant for the token refresh route: it accepts
// only refresh tokens.
func AuthRefresh(issuer *utils.TokenIssuer, blocklist repository.Blocklist) echo.MiddlewareFunc {
	return authWith(issuer, blocklist, service.RequireRefresh)
}

func authWith(issuer *utils.TokenIssuer, blocklist repository.Blocklist, check func(*utils.Claims) error) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := bearerToken(c)
			if err != nil {
				return renderError(c, err)
			}
			claims, err := issuer.Decode(raw)
			if err != nil {
				return renderError(c, err)
			}
			if err := check(claims); err != nil {
				return renderError(c, err)
			}
			revoked, err := blocklist.IsRevoked(c.Request().Context(), claims.ID)
			if err != nil {
				return renderError(c, err)
			}
			if revoked {
				return renderError(c, apperr.New(apperr.KindRevokedToken, "token has been revoked"))
			}
			setClaims(c, claims)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, error) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", apperr.New(apperr.KindUnauthorized, "missing bearer token")
	}
	return strings.TrimPrefix(auth, "Bearer "), nil
}

func renderError(c echo.Context, err error) error {
	return c.JSON(apperr.HTTPStatus(err), echo.Map{
		"error":   apperr.KindName(err),
		"message": apperr.Message(err),
	})
}
