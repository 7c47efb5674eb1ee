package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/Alias1177/MilkyTarot/internal/api/openai"
	"github.com/Alias1177/MilkyTarot/internal/bot"
	"github.com/Alias1177/MilkyTarot/internal/cards"
	"github.com/Alias1177/MilkyTarot/internal/config"
	"github.com/Alias1177/MilkyTarot/internal/database"
	"github.com/Alias1177/MilkyTarot/internal/llm"
	"github.com/Alias1177/MilkyTarot/internal/logger"
	"github.com/Alias1177/MilkyTarot/internal/loop"
	"github.com/Alias1177/MilkyTarot/internal/payment"
	platformhttp "github.com/Alias1177/MilkyTarot/internal/platform/http"
	"github.com/Alias1177/MilkyTarot/internal/push"
	"github.com/Alias1177/MilkyTarot/internal/scheduler"
	"github.com/Alias1177/MilkyTarot/internal/server"
	"github.com/Alias1177/MilkyTarot/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	lg := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal().Err(err).Msg("Bot stopped with error")
	}
	lg.Info().Msg("Bot stopped")
}

func run(ctx context.Context, cfg *config.Config, lg zerolog.Logger) error {
	loc, err := cfg.Push.Location()
	if err != nil {
		return err
	}

	db, err := database.Open(ctx, cfg.DB.DSN())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	deck, err := cards.Load(cfg.Cards.DeckPath, cards.DeckMain)
	if err != nil {
		return fmt.Errorf("loading cards: %w", err)
	}
	advice, err := cards.Load(cfg.Cards.AdvicePath, cards.DeckAdvice)
	if err != nil {
		return fmt.Errorf("loading advice cards: %w", err)
	}
	lg.Info().Int("cards", deck.Len()).Int("advice", advice.Len()).Msg("Decks loaded")

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	api.Debug = cfg.Telegram.Debug
	lg.Info().Str("username", api.Self.UserName).Msg("Authorized on Telegram")

	events := loop.New(cfg.Push.LoopBuffer, lg)
	sender := bot.NewCardSender(api, cfg.Cards.ImageBase, lg)
	pusher := push.New(db, deck, sender, loc, lg)

	registry := scheduler.New(loc, lg)
	registry.Configure(events)
	registry.Start()
	defer registry.Shutdown()

	res, err := registry.Rehydrate(ctx, db, pusher.Action)
	if err != nil {
		return fmt.Errorf("restoring push schedule: %w", err)
	}
	lg.Info().
		Int("scheduled", res.Scheduled).
		Int("removed", res.Removed).
		Int("failed", res.Failed).
		Str("reference_tz", loc.String()).
		Msg("Push schedule restored")

	deps := bot.Deps{
		API:       api,
		Store:     db,
		Scheduler: registry,
		Pusher:    pusher,
		Cards:     sender,
		Advice:    advice,
		Deck:      deck,
		Loop:      events,
	}

	if cfg.LLM.Enabled() {
		meanings, err := cards.LoadMeanings(cfg.Cards.MeaningsPath)
		if err != nil {
			return fmt.Errorf("loading card meanings: %w", err)
		}
		client := openai.NewClient(openai.Options{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}, lg)
		deps.Reader = llm.NewReader(client, meanings)
		lg.Info().Str("model", cfg.LLM.Model).Msg("Readings enabled")
	} else {
		lg.Warn().Msg("LLM_API_KEY not set, three-card readings disabled")
	}

	var (
		payments *payment.Service
		stripe   *payment.StripeService
	)
	if cfg.Payment.Enabled() {
		var provider payment.Provider
		switch cfg.Payment.Provider {
		case models.ProviderStripe:
			stripe = payment.NewStripeService(payment.StripeConfig{
				APIKey:        cfg.Payment.StripeAPIKey,
				WebhookSecret: cfg.Payment.StripeWebhookSecret,
				BotUsername:   cfg.Telegram.BotUsername,
			})
			provider = stripe
		default:
			provider = payment.NewYooKassa(payment.YooKassaConfig{
				ShopID:    cfg.Payment.YooKassaShopID,
				SecretKey: cfg.Payment.YooKassaSecretKey,
				ReturnURL: cfg.Payment.YooKassaReturnURL,
				BaseURL:   cfg.Payment.YooKassaBaseURL,
			}, platformhttp.NewClient(platformhttp.ClientOptions{
				Timeout:        15 * time.Second,
				RequestsPerSec: 5,
				MaxRetries:     3,
			}))
		}
		payments = payment.NewService(provider, db, payment.Options{
			Attempts: cfg.Payment.CheckAttempts,
			Interval: cfg.Payment.CheckInterval,
		}, lg)
		deps.Payments = payments
		lg.Info().Str("provider", provider.Name()).Msg("Payments enabled")
	} else {
		lg.Warn().Str("provider", cfg.Payment.Provider).Msg("Payment credentials not set, top-ups disabled")
	}

	handler := bot.NewHandler(deps, bot.Options{
		Admins:      cfg.Admins(),
		AdviceLimit: cfg.Cards.AdviceLimit,
	}, lg)

	routes := server.Options{DB: db, Jobs: registry}
	if stripe != nil && cfg.Payment.StripeWebhookSecret != "" {
		routes.StripeWebhook = server.StripeWebhook(stripe, db, payments, handler.PaymentCredited, lg)
	}
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.NewRouter(routes, lg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		lg.Info().Str("addr", srv.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := api.GetUpdatesChan(updateConfig)

	runErr := bot.NewApp(handler, events, updates, lg).Run(ctx)

	lg.Info().Msg("Shutting down")
	api.StopReceivingUpdates()
	registry.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var shutdownErr error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		shutdownErr = fmt.Errorf("http server shutdown: %w", err)
	}

	events.Close()
	handler.Wait()
	return multierr.Append(runErr, shutdownErr)
}
