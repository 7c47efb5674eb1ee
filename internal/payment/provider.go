package payment

import (
	"context"
	"errors"
)

// ErrProvider wraps failures reported by a payment provider.
var ErrProvider = errors.New("payment provider error")

// CreateRequest describes a top-up to create.
type CreateRequest struct {
	UserID      int64
	AmountRub   int
	Fish        int
	Description string
}

// Checkout is a created payment awaiting confirmation by the user.
type Checkout struct {
	ProviderPaymentID string
	ConfirmationURL   string
	Status            string
}

// State is the provider's view of a payment.
type State struct {
	ProviderPaymentID string
	Status            string // models.PaymentStatus*
	Paid              bool
}

// Provider is a payment provider the bot can create and query payments with.
type Provider interface {
	Name() string
	Create(ctx context.Context, req CreateRequest) (*Checkout, error)
	Get(ctx context.Context, providerPaymentID string) (*State, error)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
