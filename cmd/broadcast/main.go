package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Alias1177/MilkyTarot/internal/bot"
	"github.com/Alias1177/MilkyTarot/internal/broadcast"
	"github.com/Alias1177/MilkyTarot/internal/config"
	"github.com/Alias1177/MilkyTarot/internal/database"
	"github.com/Alias1177/MilkyTarot/internal/logger"
)

var (
	message    string
	file       string
	perSecond  float64
	markdown   bool
	onlyPushOn bool
	dryRun     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "broadcast",
		Short: "Send an announcement to every bot user",
		Long: `Send one message to every registered user, rate limited to stay
under Telegram's bot limits. The main menu keyboard is attached.`,
		RunE:         runBroadcast,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&message, "message", "m", "", "message text")
	rootCmd.Flags().StringVarP(&file, "file", "f", "", "read message text from file")
	rootCmd.Flags().Float64Var(&perSecond, "rate", 20, "messages per second")
	rootCmd.Flags().BoolVar(&markdown, "markdown", false, "send as Markdown")
	rootCmd.Flags().BoolVar(&onlyPushOn, "only-push-enabled", false, "skip users with pushes turned off")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list recipients without sending")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBroadcast(cmd *cobra.Command, _ []string) error {
	text, err := messageText()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load config")
		return err
	}
	lg := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := database.Open(ctx, cfg.DB.DSN())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	users, err := db.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to get users from database: %w", err)
	}
	lg.Info().Int("users", len(users)).Msg("Starting broadcast")

	opts := broadcast.Options{
		PerSecond:   perSecond,
		ReplyMarkup: bot.MainMenu(),
		OnlyPushOn:  onlyPushOn,
		DryRun:      dryRun,
	}
	if markdown {
		opts.ParseMode = tgbotapi.ModeMarkdown
	}

	res, err := broadcast.New(api, opts, lg).Send(ctx, users, text)
	if err != nil {
		return err
	}

	rate := 0.0
	if res.Total > 0 {
		rate = float64(res.Sent) / float64(res.Total) * 100
	}
	lg.Info().
		Int("total", res.Total).
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Float64("success_rate", rate).
		Msg("Broadcast completed")
	fmt.Fprintf(cmd.OutOrStdout(), "Broadcast completed: %d sent, %d failed, %d skipped out of %d users\n",
		res.Sent, res.Failed, res.Skipped, res.Total)
	return nil
}

func messageText() (string, error) {
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading message file: %w", err)
		}
		message = string(b)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message is empty, use --message or --file")
	}
	return message, nil
}
