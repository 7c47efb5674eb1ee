package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/Alias1177/MilkyTarot/models"
)

func TestStripeWebhook(t *testing.T) {
	svc := NewStripeService(StripeConfig{WebhookSecret: "whsec_test", BotUsername: "Milky_Tarot_Bot"})

	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"api_version": "` + stripe.APIVersion + `",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "object": "checkout.session", "payment_status": "paid", "status": "complete"}}
	}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	event, err := svc.VerifyWebhookSignature(signed.Payload, signed.Header)
	require.NoError(t, err)

	state, ok, err := svc.SessionEvent(event)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cs_1", state.ProviderPaymentID)
	assert.Equal(t, models.PaymentStatusSucceeded, state.Status)
	assert.True(t, state.Paid)

	_, err = svc.VerifyWebhookSignature(payload, "t=1,v1=bad")
	assert.Error(t, err)
}

func TestSessionStateExpired(t *testing.T) {
	st := sessionState(&stripe.CheckoutSession{ID: "cs_2", Status: stripe.CheckoutSessionStatusExpired})
	assert.Equal(t, models.PaymentStatusCanceled, st.Status)
	assert.False(t, st.Paid)
}
