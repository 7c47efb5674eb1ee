package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/Alias1177/MilkyTarot/internal/payment"
	"github.com/Alias1177/MilkyTarot/models"
)

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

type fakeJobs int

func (j fakeJobs) Len() int { return int(j) }

func TestHealthz(t *testing.T) {
	h := NewRouter(Options{DB: fakePinger{}, Jobs: fakeJobs(3)}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","jobs":3}`, rec.Body.String())
}

func TestHealthzDatabaseDown(t *testing.T) {
	h := NewRouter(Options{DB: fakePinger{err: errors.New("down")}}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsExposed(t *testing.T) {
	h := NewRouter(Options{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tarot_scheduled_jobs")
}

func TestWebhookRouteOnlyWhenConfigured(t *testing.T) {
	h := NewRouter(Options{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/stripe", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeLookup struct {
	payment *models.Payment
}

func (l fakeLookup) GetPayment(_ context.Context, _, id string) (*models.Payment, error) {
	if l.payment == nil || l.payment.ProviderPaymentID != id {
		return nil, nil
	}
	return l.payment, nil
}

type fakeSettler struct {
	calls int
	out   payment.Outcome
}

func (s *fakeSettler) Settle(_ context.Context, p *models.Payment, state *payment.State) (payment.Outcome, error) {
	s.calls++
	s.out.Payment = p
	s.out.Status = state.Status
	return s.out, nil
}

func signedEvent(t *testing.T, eventType, sessionID string) (payload []byte, header string) {
	t.Helper()
	raw := []byte(`{
		"id": "evt_1",
		"object": "event",
		"api_version": "` + stripe.APIVersion + `",
		"type": "` + eventType + `",
		"data": {"object": {"id": "` + sessionID + `", "object": "checkout.session", "payment_status": "paid", "status": "complete"}}
	}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   raw,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func TestStripeWebhookCredits(t *testing.T) {
	events := payment.NewStripeService(payment.StripeConfig{WebhookSecret: "whsec_test"})
	settler := &fakeSettler{out: payment.Outcome{Credited: true, Balance: 350}}
	lookup := fakeLookup{payment: &models.Payment{ID: 1, UserID: 7, Provider: models.ProviderStripe, ProviderPaymentID: "cs_1", Fish: 350}}

	var notified []payment.Outcome
	h := StripeWebhook(events, lookup, settler, func(_ context.Context, out payment.Outcome) {
		notified = append(notified, out)
	}, zerolog.Nop())

	payload, header := signedEvent(t, "checkout.session.completed", "cs_1")
	req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, settler.calls)
	require.Len(t, notified, 1)
	assert.Equal(t, int64(7), notified[0].Payment.UserID)
	assert.Equal(t, models.PaymentStatusSucceeded, notified[0].Status)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	events := payment.NewStripeService(payment.StripeConfig{WebhookSecret: "whsec_test"})
	settler := &fakeSettler{}
	h := StripeWebhook(events, fakeLookup{}, settler, nil, zerolog.Nop())

	payload, _ := signedEvent(t, "checkout.session.completed", "cs_1")

	req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=invalid")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/webhook/stripe", bytes.NewReader(payload))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, settler.calls)
}

func TestStripeWebhookIgnoresOtherEvents(t *testing.T) {
	events := payment.NewStripeService(payment.StripeConfig{WebhookSecret: "whsec_test"})
	settler := &fakeSettler{}
	h := StripeWebhook(events, fakeLookup{}, settler, nil, zerolog.Nop())

	for _, tc := range []struct{ typ, session string }{
		{"customer.created", "cs_1"},
		{"checkout.session.completed", "cs_unknown"},
	} {
		payload, header := signedEvent(t, tc.typ, tc.session)
		req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, tc.typ)
	}
	assert.Zero(t, settler.calls)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "***", maskSecret("short"))
	assert.Equal(t, "whs...xyz", maskSecret("whsec_abcxyz"))
}
