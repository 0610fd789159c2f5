package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/movenorth/booking-backend/internal/apperr"
	"github.com/movenorth/booking-backend/internal/middleware"
	"github.com/movenorth/booking-backend/internal/service"
)

// AuthHandler exposes the signup/login/token endpoints.
type AuthHandler struct {
	users *service.UserService
}

func NewAuthHandler(users *service.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// ----- DTOs -----

type signupReq struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetRequestReq struct {
	Email string `json:"email"`
}

type resetConfirmReq struct {
	Password string `json:"password"`
}

// Signup creates an account and queues the verification email.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return writeErr(c, apperr.New(apperr.KindValidation, "invalid request body"))
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	user, err := h.users.Signup(ctx, service.SignupCommand{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "account created, check your email for a verification link",
		"user":    toUserView(user),
	})
}

// Login verifies credentials and returns a token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return writeErr(c, apperr.New(apperr.KindValidation, "invalid request body"))
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	result, err := h.users.Login(ctx, req.Email, req.Password)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user":          toUserView(result.User),
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
	})
}

// Logout revokes the presented token for its remaining lifetime.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.users.Logout(ctx, middleware.ClaimsFrom(c)); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Refresh exchanges a refresh token for a new access token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	access, err := h.users.RefreshAccess(ctx, middleware.ClaimsFrom(c))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"access_token": access})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	user, err := h.users.GetByUID(ctx, middleware.ClaimsFrom(c).User.UID)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, toUserView(user))
}

// VerifyEmail redeems an email verification token.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.users.VerifyEmail(ctx, c.Param("token")); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "email verified"})
}

// RequestPasswordReset queues a reset email. The response does not
// reveal whether the address has an account.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req resetRequestReq
	if err := c.Bind(&req); err != nil {
		return writeErr(c, apperr.New(apperr.KindValidation, "invalid request body"))
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.users.RequestPasswordReset(ctx, req.Email); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "reset instructions sent if the address is registered"})
}

// ConfirmPasswordReset redeems a reset token with a new password.
func (h *AuthHandler) ConfirmPasswordReset(c echo.Context) error {
	var req resetConfirmReq
	if err := c.Bind(&req); err != nil {
		return writeErr(c, apperr.New(apperr.KindValidation, "invalid request body"))
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.users.ConfirmPasswordReset(ctx, c.Param("token"), req.Password); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// ListUsers is the admin user directory.
func (h *AuthHandler) ListUsers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	users, err := h.users.List(ctx)
	if err != nil {
		return writeErr(c, err)
	}
	out := make([]userView, len(users))
	for i := range users {
		out[i] = toUserView(&users[i])
	}
	return c.JSON(http.StatusOK, out)
}
