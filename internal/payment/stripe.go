package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/Alias1177/MilkyTarot/models"
)

// StripeConfig holds Stripe settings
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	BotUsername   string
}

// StripeService handles Stripe payment operations
type StripeService struct {
	webhookSecret string
	successURL    string
	cancelURL     string
}

// NewStripeService creates a new Stripe payment service
func NewStripeService(cfg StripeConfig) *StripeService {
	stripe.Key = cfg.APIKey

	return &StripeService{
		webhookSecret: cfg.WebhookSecret,
		successURL:    fmt.Sprintf("https://t.me/%s?start=payment_success", cfg.BotUsername),
		cancelURL:     fmt.Sprintf("https://t.me/%s?start=payment_cancel", cfg.BotUsername),
	}
}

// Name implements Provider
func (s *StripeService) Name() string {
	return models.ProviderStripe
}

// Create opens a one-time checkout session in rubles.
func (s *StripeService) Create(_ context.Context, req CreateRequest) (*Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("rub"),
					UnitAmount: stripe.Int64(int64(req.AmountRub) * 100),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(truncate(req.Description, 128)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"user_id": strconv.FormatInt(req.UserID, 10),
			"fish":    strconv.Itoa(req.Fish),
		},
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: stripe: %w", ErrProvider, err)
	}

	return &Checkout{
		ProviderPaymentID: sess.ID,
		ConfirmationURL:   sess.URL,
		Status:            models.PaymentStatusPending,
	}, nil
}

// Get implements Provider
func (s *StripeService) Get(_ context.Context, providerPaymentID string) (*State, error) {
	sess, err := session.Get(providerPaymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: stripe: %w", ErrProvider, err)
	}
	return sessionState(sess), nil
}

func sessionState(sess *stripe.CheckoutSession) *State {
	st := &State{ProviderPaymentID: sess.ID, Status: models.PaymentStatusPending}
	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		st.Status = models.PaymentStatusSucceeded
		st.Paid = true
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		st.Status = models.PaymentStatusCanceled
	}
	return st
}

// VerifyWebhookSignature verifies the signature of a Stripe webhook event
func (s *StripeService) VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// SessionEvent extracts the checkout session state from a webhook event.
// ok is false for event types that do not settle a payment.
func (s *StripeService) SessionEvent(event *stripe.Event) (state *State, ok bool, err error) {
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed", "checkout.session.expired":
	default:
		return nil, false, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, false, fmt.Errorf("failed to parse checkout session: %w", err)
	}
	state = sessionState(&sess)
	if event.Type == "checkout.session.async_payment_failed" {
		state.Status = models.PaymentStatusCanceled
	}
	return state, true, nil
}
