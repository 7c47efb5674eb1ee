package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/MilkyTarot/internal/bot"
	"github.com/Alias1177/MilkyTarot/internal/config"
	"github.com/Alias1177/MilkyTarot/internal/database"
	"github.com/Alias1177/MilkyTarot/internal/logger"
	"github.com/Alias1177/MilkyTarot/internal/payment"
	"github.com/Alias1177/MilkyTarot/internal/server"
)

// Standalone Stripe webhook receiver for deployments where the bot itself
// is not reachable from the internet.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	lg := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if cfg.Payment.StripeWebhookSecret == "" {
		lg.Fatal().Msg("STRIPE_WEBHOOK_SECRET not set in environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB.DSN())
	if err != nil {
		lg.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		lg.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}

	stripeService := payment.NewStripeService(payment.StripeConfig{
		APIKey:        cfg.Payment.StripeAPIKey,
		WebhookSecret: cfg.Payment.StripeWebhookSecret,
		BotUsername:   cfg.Telegram.BotUsername,
	})
	payments := payment.NewService(stripeService, db, payment.Options{}, lg)

	notify := func(_ context.Context, out payment.Outcome) {
		if _, err := api.Send(tgbotapi.NewMessage(out.Payment.UserID, bot.CreditedText(out))); err != nil {
			lg.Warn().Err(err).Int64("user_id", out.Payment.UserID).Msg("Failed to notify user about payment")
		}
	}

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: server.NewRouter(server.Options{
			DB:            db,
			StripeWebhook: server.StripeWebhook(stripeService, db, payments, notify, lg),
		}, lg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	lg.Info().Str("addr", srv.Addr).Msg("Starting webhook server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal().Err(err).Msg("Failed to start server")
	}
	lg.Info().Msg("Webhook server stopped")
}
