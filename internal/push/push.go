// Package push implements the daily "card of the day" notification.
package push

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Alias1177/MilkyTarot/internal/cards"
	"github.com/Alias1177/MilkyTarot/internal/metrics"
	"github.com/Alias1177/MilkyTarot/internal/scheduler"
	"github.com/Alias1177/MilkyTarot/models"
)

// Status is the outcome of a single push.
type Status string

const (
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Store is the user storage a push needs.
type Store interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	RecordDraw(ctx context.Context, userID int64, title string, day time.Time) error
	TouchPush(ctx context.Context, userID int64, at time.Time) error
}

// Deliverer sends a card to a chat.
type Deliverer interface {
	DeliverCard(ctx context.Context, chatID int64, card cards.Card, caption string) error
}

// Pusher sends the card of the day.
type Pusher struct {
	store Store
	deck  *cards.Deck
	out   Deliverer
	loc   *time.Location
	now   func() time.Time
	log   zerolog.Logger
}

// New creates a Pusher. Days are counted in loc.
func New(store Store, deck *cards.Deck, out Deliverer, loc *time.Location, logger zerolog.Logger) *Pusher {
	return &Pusher{
		store: store,
		deck:  deck,
		out:   out,
		loc:   loc,
		now:   time.Now,
		log:   logger.With().Str("component", "push").Logger(),
	}
}

// Caption formats the card of the day message.
func Caption(card cards.Card) string {
	return fmt.Sprintf("Карта дня: %s\n\n%s", card.Title, card.Description)
}

// Today returns the current time in the reference timezone.
func (p *Pusher) Today() time.Time {
	return p.now().In(p.loc)
}

// CardOfDay returns the card the user drew today, drawing and storing a new one
// if there is none. A failure to store the draw is logged, the card is still returned.
func (p *Pusher) CardOfDay(ctx context.Context, u *models.User) (card cards.Card, fresh bool) {
	today := p.Today()
	if u.DrewOn(today) {
		if c, ok := p.deck.Find(u.LastCard); ok {
			return c, false
		}
	}

	card = p.deck.Random()
	if err := p.store.RecordDraw(ctx, u.ID, card.Title, today); err != nil {
		p.log.Error().Err(err).Int64("user_id", u.ID).Msg("failed to record draw")
	} else {
		u.LastCard = card.Title
		u.LastCardDate = today
		u.DrawCount++
	}
	return card, true
}

// Push sends today's card to the user if pushes are still enabled.
// Delivery failures are logged and reported as StatusFailed, not as an error.
func (p *Pusher) Push(ctx context.Context, userID int64) (Status, error) {
	log := p.log.With().Int64("user_id", userID).Logger()

	u, err := p.store.GetUser(ctx, userID)
	if err != nil {
		metrics.IncPush(string(StatusError))
		log.Error().Err(err).Msg("failed to load user for push")
		return StatusError, err
	}
	if u == nil || !u.PushEnabled {
		metrics.IncPush(string(StatusSkipped))
		log.Debug().Msg("push skipped, disabled or unknown user")
		return StatusSkipped, nil
	}

	card, _ := p.CardOfDay(ctx, u)

	status := StatusSent
	if err := p.out.DeliverCard(ctx, u.ID, card, Caption(card)); err != nil {
		status = StatusFailed
		log.Warn().Err(err).Msg("failed to deliver push")
	}

	if err := p.store.TouchPush(ctx, u.ID, p.now()); err != nil {
		log.Error().Err(err).Msg("failed to record push")
	}

	metrics.IncPush(string(status))
	log.Info().Str("card", card.Title).Str("status", string(status)).Msg("push processed")
	return status, nil
}

// Action binds a push for userID as a scheduled action run on the event loop.
// Errors are logged by Push and never reach the scheduler.
func (p *Pusher) Action(userID int64) scheduler.Action {
	return scheduler.Action{
		Async: func(ctx context.Context) error {
			_, _ = p.Push(ctx, userID)
			return nil
		},
	}
}
