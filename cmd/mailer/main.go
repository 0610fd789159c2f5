package main

import (
	"github.com/joho/godotenv"

	"github.com/movenorth/booking-backend/internal/config"
	"github.com/movenorth/booking-backend/internal/logging"
	"github.com/movenorth/booking-backend/internal/mailer"
	"github.com/movenorth/booking-backend/internal/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.Env)
	metrics.Register()

	consumer := mailer.NewConsumer(cfg.AMQPURL, cfg.EmailQueue, mailer.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}, log)

	log.Info().Str("queue", cfg.EmailQueue).Msg("mailer worker starting")
	if err := consumer.Run(); err != nil {
		log.Fatal().Err(err).Msg("mailer worker stopped")
	}
}
