package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/movenorth/booking-backend/internal/config"
	"github.com/movenorth/booking-backend/internal/database"
	"github.com/movenorth/booking-backend/internal/handler"
	"github.com/movenorth/booking-backend/internal/logging"
	"github.com/movenorth/booking-backend/internal/mailer"
	"github.com/movenorth/booking-backend/internal/metrics"
	"github.com/movenorth/booking-backend/internal/payment"
	"github.com/movenorth/booking-backend/internal/repository"
	"github.com/movenorth/booking-backend/internal/router"
	"github.com/movenorth/booking-backend/internal/service"
	"github.com/movenorth/booking-backend/internal/utils"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.Env)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer rdb.Close()

	publisher, err := mailer.NewPublisher(cfg.AMQPURL, cfg.EmailQueue, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect broker")
	}
	defer publisher.Close()

	metrics.Register()

	users := repository.NewUserRepo(db)
	bookings := repository.NewBookingRepo(db)
	invoices := repository.NewInvoiceRepo(db)
	blocklist := repository.NewBlocklistRepo(rdb)

	issuer := utils.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	signer := utils.NewSigner(cfg.JWTSecret, cfg.SingleUseTTL)
	gateway := payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentAPIKey)

	userSvc := service.NewUserService(users, bookings, blocklist, issuer, signer, publisher, log, cfg.BcryptCost, cfg.Domain)
	bookingSvc := service.NewBookingService(bookings, users, publisher, log)
	invoiceSvc := service.NewInvoiceService(invoices, bookings, gateway, cfg.WebhookSecret, log)
	statsSvc := service.NewStatsService(bookings, users, invoices)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())

	router.Register(e, router.Deps{
		Cfg:       cfg,
		Issuer:    issuer,
		Blocklist: blocklist,
		Redis:     rdb,
		Health:    handler.NewHealthHandler(db),
		Auth:      handler.NewAuthHandler(userSvc),
		Bookings:  handler.NewBookingHandler(bookingSvc),
		Invoices:  handler.NewInvoiceHandler(invoiceSvc),
		Stats:     handler.NewStatsHandler(statsSvc),
	})

	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
