package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Alias1177/MilkyTarot/internal/fish"
	"github.com/Alias1177/MilkyTarot/internal/metrics"
	"github.com/Alias1177/MilkyTarot/models"
)

var (
	// ErrUnknownPayment is returned for payment ids the bot never created.
	ErrUnknownPayment = errors.New("unknown payment")
	// ErrForeignPayment is returned when a user checks someone else's payment.
	ErrForeignPayment = errors.New("payment belongs to another user")
)

// Store persists payments and credits balances.
type Store interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, provider, providerPaymentID, status string) error
	CreditPayment(ctx context.Context, provider, providerPaymentID string) (bool, int, error)
}

// Outcome is the result of checking a payment.
type Outcome struct {
	Payment  *models.Payment
	Status   string
	Credited bool // fish were added by this check
	Balance  int  // valid when Status is succeeded
}

// Settled reports whether the payment reached a final state.
func (o Outcome) Settled() bool {
	return o.Status == models.PaymentStatusSucceeded || o.Status == models.PaymentStatusCanceled
}

// Options tunes the automatic payment check.
type Options struct {
	Attempts int
	Interval time.Duration
}

// Service creates payments and settles them against the provider.
type Service struct {
	provider Provider
	store    Store
	opts     Options
	log      zerolog.Logger
}

// NewService creates a payment service. Zero options default to 18 checks every 10 seconds.
func NewService(provider Provider, store Store, opts Options, logger zerolog.Logger) *Service {
	if opts.Attempts <= 0 {
		opts.Attempts = 18
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	return &Service{
		provider: provider,
		store:    store,
		opts:     opts,
		log:      logger.With().Str("component", "payment").Str("provider", provider.Name()).Logger(),
	}
}

// Provider returns the configured provider name.
func (s *Service) Provider() string {
	return s.provider.Name()
}

// Start creates a payment for the tariff and stores it.
func (s *Service) Start(ctx context.Context, userID int64, tariff fish.Tariff) (*models.Payment, error) {
	desc := fmt.Sprintf("Пополнение баланса: %d 🐟", tariff.Fish)
	checkout, err := s.provider.Create(ctx, CreateRequest{
		UserID:      userID,
		AmountRub:   tariff.Rub,
		Fish:        tariff.Fish,
		Description: desc,
	})
	if err != nil {
		metrics.IncPayment(s.provider.Name(), "create_failed")
		return nil, err
	}

	p := &models.Payment{
		UserID:            userID,
		Provider:          s.provider.Name(),
		ProviderPaymentID: checkout.ProviderPaymentID,
		AmountRub:         tariff.Rub,
		Fish:              tariff.Fish,
		Status:            checkout.Status,
		Description:       desc,
		ConfirmationURL:   checkout.ConfirmationURL,
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}

	metrics.IncPayment(p.Provider, models.PaymentStatusPending)
	s.log.Info().Int64("user_id", userID).Str("payment_id", p.ProviderPaymentID).Int("rub", tariff.Rub).Msg("payment created")
	return p, nil
}

// Check fetches the provider state of userID's payment and settles it.
// Fish are credited at most once however many times Check runs.
func (s *Service) Check(ctx context.Context, userID, paymentID int64) (Outcome, error) {
	p, err := s.store.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return Outcome{}, err
	}
	if p == nil || p.Provider != s.provider.Name() {
		return Outcome{}, ErrUnknownPayment
	}
	if p.UserID != userID {
		return Outcome{Payment: p}, ErrForeignPayment
	}

	if p.Credited {
		_, balance, err := s.store.CreditPayment(ctx, p.Provider, p.ProviderPaymentID)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Payment: p, Status: models.PaymentStatusSucceeded, Balance: balance}, nil
	}

	state, err := s.provider.Get(ctx, p.ProviderPaymentID)
	if err != nil {
		return Outcome{Payment: p, Status: p.Status}, err
	}
	return s.Settle(ctx, p, state)
}

// Settle applies a provider state to a stored payment.
func (s *Service) Settle(ctx context.Context, p *models.Payment, state *State) (Outcome, error) {
	out := Outcome{Payment: p, Status: state.Status}

	switch {
	case state.Status == models.PaymentStatusSucceeded && state.Paid:
		credited, balance, err := s.store.CreditPayment(ctx, p.Provider, p.ProviderPaymentID)
		if err != nil {
			return out, err
		}
		out.Credited, out.Balance = credited, balance
		if credited {
			metrics.IncPayment(p.Provider, models.PaymentStatusSucceeded)
			s.log.Info().Int64("user_id", p.UserID).Str("payment_id", p.ProviderPaymentID).Int("fish", p.Fish).Msg("payment credited")
		}
	case state.Status == models.PaymentStatusSucceeded:
		// succeeded without paid is treated as still pending
		out.Status = models.PaymentStatusPending
	case state.Status != p.Status:
		if err := s.store.UpdatePaymentStatus(ctx, p.Provider, p.ProviderPaymentID, state.Status); err != nil {
			return out, err
		}
		if state.Status == models.PaymentStatusCanceled {
			metrics.IncPayment(p.Provider, models.PaymentStatusCanceled)
		}
	}

	p.Status = out.Status
	return out, nil
}

// Watch checks the payment every interval until it settles or attempts run out,
// then calls done once. A final pending outcome means the user must check manually.
func (s *Service) Watch(ctx context.Context, userID, paymentID int64, done func(Outcome)) {
	log := s.log.With().Int64("user_id", userID).Int64("payment_id", paymentID).Logger()
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	last := Outcome{Status: models.PaymentStatusPending}
	for attempt := 0; attempt < s.opts.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		out, err := s.Check(ctx, userID, paymentID)
		if err != nil {
			if errors.Is(err, ErrUnknownPayment) || errors.Is(err, ErrForeignPayment) {
				log.Error().Err(err).Msg("stopping payment watch")
				return
			}
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("payment check failed")
			continue
		}
		last = out
		if out.Settled() {
			done(out)
			return
		}
	}

	log.Info().Msg("payment still pending after auto-check")
	done(last)
}
