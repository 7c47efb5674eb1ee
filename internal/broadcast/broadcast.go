// Package broadcast sends one announcement to every bot user.
package broadcast

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Alias1177/MilkyTarot/models"
)

// ErrEmptyMessage is returned when there is nothing to send.
var ErrEmptyMessage = errors.New("broadcast: empty message")

// Sender delivers a Telegram message.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Options tune a broadcast.
type Options struct {
	PerSecond   float64 // Telegram allows about 30 messages per second
	ParseMode   string
	ReplyMarkup any
	OnlyPushOn  bool // skip users who turned pushes off
	DryRun      bool
}

// Result summarizes a broadcast.
type Result struct {
	Total   int
	Sent    int
	Failed  int
	Skipped int
}

// Broadcaster sends messages at a bounded rate.
type Broadcaster struct {
	api     Sender
	limiter *rate.Limiter
	opts    Options
	log     zerolog.Logger
}

// New creates a Broadcaster.
func New(api Sender, opts Options, logger zerolog.Logger) *Broadcaster {
	limit := rate.Inf
	if opts.PerSecond > 0 {
		limit = rate.Limit(opts.PerSecond)
	}
	return &Broadcaster{
		api:     api,
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		log:     logger.With().Str("component", "broadcast").Logger(),
	}
}

// Send delivers text to users. Per-user failures are counted, not returned.
func (b *Broadcaster) Send(ctx context.Context, users []models.User, text string) (Result, error) {
	if text == "" {
		return Result{}, ErrEmptyMessage
	}

	res := Result{Total: len(users)}
	for i, u := range users {
		if b.opts.OnlyPushOn && !u.PushEnabled {
			res.Skipped++
			continue
		}
		if b.opts.DryRun {
			b.log.Info().Int64("user_id", u.ID).Msg("dry run, not sending")
			res.Skipped++
			continue
		}
		if err := b.limiter.Wait(ctx); err != nil {
			return res, err
		}

		msg := tgbotapi.NewMessage(u.ID, text)
		msg.ParseMode = b.opts.ParseMode
		if b.opts.ReplyMarkup != nil {
			msg.ReplyMarkup = b.opts.ReplyMarkup
		}
		if _, err := b.api.Send(msg); err != nil {
			res.Failed++
			b.log.Warn().Err(err).Int64("user_id", u.ID).Msg("Failed to send message")
			continue
		}
		res.Sent++
		b.log.Debug().Int64("user_id", u.ID).Int("n", i+1).Int("total", len(users)).Msg("Message sent")
	}
	return res, nil
}
