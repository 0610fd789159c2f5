package service

import (
	"github.com/movenorth/booking-backend/internal/apperr"
	"github.com/movenorth/booking-backend/internal/utils"
)

// Authorize is the single role predicate used by every guarded route.
// It is transport-agnostic: the middleware extracts claims from the
// request and delegates here.
func Authorize(claims *utils.Claims, allowed ...string) error {
	if claims == nil {
		return apperr.New(apperr.KindUnauthorized, "authentication required")
	}
	for _, role := range allowed {
		if claims.User.Role == role {
			return nil
		}
	}
	return apperr.New(apperr.KindForbidden, "insufficient role")
}

// RequireAccess rejects refresh tokens presented where an access token
// is expected.
func RequireAccess(claims *utils.Claims) error {
	if claims.Refresh {
		return apperr.New(apperr.KindWrongTokenType, "access token required")
	}
	return nil
}

// RequireRefresh rejects access tokens presented where a refresh token
// is expected.
func RequireRefresh(claims *utils.Claims) error {
	if !claims.Refresh {
		return apperr.New(apperr.KindWrongTokenType, "refresh token required")
	}
	return nil
}
