package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"

	"github.com/Alias1177/MilkyTarot/internal/payment"
	"github.com/Alias1177/MilkyTarot/models"
)

const maxWebhookBody = 64 << 10

// StripeEvents verifies and decodes Stripe webhook events.
type StripeEvents interface {
	VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error)
	SessionEvent(event *stripe.Event) (*payment.State, bool, error)
}

// PaymentLookup finds a stored payment by provider id.
type PaymentLookup interface {
	GetPayment(ctx context.Context, provider, providerPaymentID string) (*models.Payment, error)
}

// Settler applies a provider state to a stored payment.
type Settler interface {
	Settle(ctx context.Context, p *models.Payment, state *payment.State) (payment.Outcome, error)
}

// Notify is told about payments credited by a webhook.
type Notify func(ctx context.Context, out payment.Outcome)

// StripeWebhook settles checkout sessions reported by Stripe. Crediting is
// idempotent, so replayed events are acknowledged without side effects.
func StripeWebhook(events StripeEvents, lookup PaymentLookup, settler Settler, notify Notify, logger zerolog.Logger) http.HandlerFunc {
	log := logger.With().Str("component", "stripe_webhook").Logger()

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			log.Warn().Err(err).Msg("failed to read webhook body")
			http.Error(w, "error reading request body", http.StatusBadRequest)
			return
		}

		signature := r.Header.Get("Stripe-Signature")
		if signature == "" {
			http.Error(w, "Stripe-Signature header required", http.StatusBadRequest)
			return
		}

		event, err := events.VerifyWebhookSignature(payload, signature)
		if err != nil {
			log.Warn().Err(err).Str("signature", maskSecret(signature)).Msg("invalid webhook signature")
			http.Error(w, "invalid signature", http.StatusBadRequest)
			return
		}

		state, ok, err := events.SessionEvent(event)
		if err != nil {
			log.Error().Err(err).Str("event_id", event.ID).Msg("failed to decode session event")
			http.Error(w, "invalid event", http.StatusBadRequest)
			return
		}
		if !ok {
			log.Debug().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("ignoring event")
			writeSuccess(w)
			return
		}

		p, err := lookup.GetPayment(ctx, models.ProviderStripe, state.ProviderPaymentID)
		if err != nil {
			log.Error().Err(err).Str("session_id", state.ProviderPaymentID).Msg("failed to load payment")
			http.Error(w, "error loading payment", http.StatusInternalServerError)
			return
		}
		if p == nil {
			log.Warn().Str("session_id", state.ProviderPaymentID).Msg("webhook for unknown payment")
			writeSuccess(w)
			return
		}

		out, err := settler.Settle(ctx, p, state)
		if err != nil {
			log.Error().Err(err).Str("session_id", state.ProviderPaymentID).Msg("failed to settle payment")
			http.Error(w, "error settling payment", http.StatusInternalServerError)
			return
		}

		log.Info().
			Str("event_id", event.ID).
			Str("session_id", state.ProviderPaymentID).
			Int64("user_id", p.UserID).
			Str("status", out.Status).
			Bool("credited", out.Credited).
			Msg("webhook processed")

		if out.Credited && notify != nil {
			notify(ctx, out)
		}
		writeSuccess(w)
	}
}

func writeSuccess(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}

// maskSecret shows the first and last 3 characters of a secret.
func maskSecret(secret string) string {
	if len(secret) < 7 {
		return "***"
	}
	return secret[:3] + "..." + secret[len(secret)-3:]
}
