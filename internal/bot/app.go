package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Alias1177/MilkyTarot/internal/loop"
)

// ErrUpdatesClosed is returned by Run when Telegram stops delivering updates.
var ErrUpdatesClosed = errors.New("bot: updates channel closed")

// App owns the event loop goroutine: Telegram updates and tasks submitted
// by the scheduler and background work are handled one at a time.
type App struct {
	handler *Handler
	loop    *loop.Loop
	updates tgbotapi.UpdatesChannel
	log     zerolog.Logger
}

// NewApp creates an App.
func NewApp(handler *Handler, l *loop.Loop, updates tgbotapi.UpdatesChannel, logger zerolog.Logger) *App {
	return &App{
		handler: handler,
		loop:    l,
		updates: updates,
		log:     logger.With().Str("component", "app").Logger(),
	}
}

// Run processes updates and loop tasks until ctx is done or updates close.
func (a *App) Run(ctx context.Context) error {
	a.log.Info().Msg("event loop started")
	defer a.log.Info().Msg("event loop stopped")

	tasks := a.loop.Tasks()
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-a.updates:
			if !ok {
				return ErrUpdatesClosed
			}
			a.handle(ctx, update)
		case task, ok := <-tasks:
			if !ok {
				tasks = nil
				continue
			}
			a.loop.Exec(ctx, task)
		}
	}
}

func (a *App) handle(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			a.log.Error().Err(fmt.Errorf("panic: %v", rec)).Int("update_id", update.UpdateID).Msg("update handler panicked")
		}
	}()
	a.handler.HandleUpdate(ctx, update)
}
