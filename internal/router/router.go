// Package router wires handlers, auth guards and rate limiting onto
// the echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/movenorth/booking-backend/internal/config"
	"github.com/movenorth/booking-backend/internal/handler"
	"github.com/movenorth/booking-backend/internal/metrics"
	"github.com/movenorth/booking-backend/internal/middleware"
	"github.com/movenorth/booking-backend/internal/model"
	"github.com/movenorth/booking-backend/internal/repository"
	"github.com/movenorth/booking-backend/internal/utils"
)

// Deps carries everything route registration needs.
type Deps struct {
	Cfg       config.Config
	Issuer    *utils.TokenIssuer
	Blocklist repository.Blocklist
	Redis     *redis.Client

	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	Bookings *handler.BookingHandler
	Invoices *handler.InvoiceHandler
	Stats    *handler.StatsHandler
}

// Register mounts all routes under /api/v1.
func Register(e *echo.Echo, d Deps) {
	e.Use(metrics.HTTPMiddleware())

	e.GET("/healthz", d.Health.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")

	authed := middleware.Auth(d.Issuer, d.Blocklist)
	refresh := middleware.AuthRefresh(d.Issuer, d.Blocklist)
	adminOnly := middleware.RequireRole(model.RoleAdmin)
	anyRole := middleware.RequireRole(model.RoleAdmin, model.RoleUser)
	limited := middleware.RateLimit(d.Cfg.RateLimit, d.Redis)
	cached := middleware.CacheResponses(d.Cfg.Cache, d.Redis)

	// Auth.
	auth := api.Group("/auth")
	auth.POST("/signup", d.Auth.Signup, limited)
	auth.POST("/login", d.Auth.Login, limited)
	auth.GET("/verify/:token", d.Auth.VerifyEmail, limited)
	auth.POST("/password-reset-request", d.Auth.RequestPasswordReset, limited)
	auth.POST("/password-reset-confirm/:token", d.Auth.ConfirmPasswordReset, limited)
	auth.POST("/logout", d.Auth.Logout, authed)
	auth.GET("/refresh_token", d.Auth.Refresh, refresh)
	auth.GET("/me", d.Auth.Me, authed, anyRole)
	auth.GET("/users", d.Auth.ListUsers, authed, adminOnly)

	// Bookings. Creation and single-read are public so prospects can
	// submit and check a quote without an account.
	bookings := api.Group("/bookings")
	bookings.POST("", d.Bookings.Create, limited)
	bookings.GET("/:uid", d.Bookings.Get, limited)
	bookings.GET("", d.Bookings.List, authed, adminOnly)
	bookings.GET("/user/:uid", d.Bookings.ListForUser, authed, anyRole)
	bookings.PUT("/:uid", d.Bookings.Update, authed, adminOnly)
	bookings.PATCH("/:uid/reschedule", d.Bookings.Reschedule, authed, anyRole)
	bookings.PATCH("/:uid/status", d.Bookings.SetStatus, authed, adminOnly)
	bookings.PATCH("/:uid/payment", d.Bookings.SetAgreedPrice, authed, adminOnly)
	bookings.POST("/:uid/cancel", d.Bookings.Cancel, authed, anyRole)
	bookings.POST("/:uid/reject", d.Bookings.Reject, authed, adminOnly)
	bookings.DELETE("/:uid", d.Bookings.Delete, authed, anyRole)

	// Invoices. The webhook is authenticated by its signature, not a
	// bearer token.
	invoices := api.Group("/invoices")
	invoices.POST("", d.Invoices.Create, authed, adminOnly)
	invoices.GET("", d.Invoices.List, authed, adminOnly)
	invoices.POST("/webhook", d.Invoices.Webhook)

	// Dashboard stats.
	stats := api.Group("/stats", authed)
	stats.GET("/bookings", d.Stats.Bookings, adminOnly, cached)
	stats.GET("/users", d.Stats.Users, adminOnly, cached)
	stats.GET("/revenue", d.Stats.Revenue, adminOnly, cached)
	stats.GET("/bookings/monthly", d.Stats.MonthlyBookings, adminOnly, cached)
	stats.GET("/revenue/monthly", d.Stats.MonthlyRevenue, adminOnly, cached)
	stats.GET("/customers/:uid/monthly", d.Stats.MonthlyCustomerBookings, anyRole)
}
