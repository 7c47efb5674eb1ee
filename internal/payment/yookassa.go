package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	platformhttp "github.com/Alias1177/MilkyTarot/internal/platform/http"
	"github.com/Alias1177/MilkyTarot/models"
)

// DefaultYooKassaURL is the YooKassa REST API base.
const DefaultYooKassaURL = "https://api.yookassa.ru/v3"

// YooKassaConfig holds YooKassa credentials
type YooKassaConfig struct {
	ShopID    string
	SecretKey string
	ReturnURL string
	BaseURL   string
}

// YooKassa creates and checks payments through the YooKassa REST API.
type YooKassa struct {
	cfg    YooKassaConfig
	client *platformhttp.Client
	newKey func() string
}

// NewYooKassa creates a YooKassa provider
func NewYooKassa(cfg YooKassaConfig, client *platformhttp.Client) *YooKassa {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultYooKassaURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &YooKassa{
		cfg:    cfg,
		client: client,
		newKey: func() string { return uuid.NewString() },
	}
}

// Name implements Provider
func (y *YooKassa) Name() string {
	return models.ProviderYooKassa
}

type ykAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type ykCreateRequest struct {
	Amount       ykAmount `json:"amount"`
	Capture      bool     `json:"capture"`
	Confirmation struct {
		Type      string `json:"type"`
		ReturnURL string `json:"return_url"`
	} `json:"confirmation"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type ykPayment struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Paid         bool   `json:"paid"`
	Confirmation struct {
		Type            string `json:"type"`
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

// Create implements Provider
func (y *YooKassa) Create(ctx context.Context, req CreateRequest) (*Checkout, error) {
	body := ykCreateRequest{
		Amount:      ykAmount{Value: fmt.Sprintf("%d.00", req.AmountRub), Currency: "RUB"},
		Capture:     true,
		Description: truncate(req.Description, 128),
		Metadata: map[string]string{
			"user_id": strconv.FormatInt(req.UserID, 10),
			"fish":    strconv.Itoa(req.Fish),
		},
	}
	body.Confirmation.Type = "redirect"
	body.Confirmation.ReturnURL = y.cfg.ReturnURL

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	// reused across retries
	key := y.newKey()

	var p ykPayment
	err = y.do(ctx, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, y.cfg.BaseURL+"/payments", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Idempotence-Key", key)
		return r, nil
	}, &p)
	if err != nil {
		return nil, err
	}
	if p.Confirmation.ConfirmationURL == "" {
		return nil, fmt.Errorf("%w: yookassa payment %s has no confirmation url", ErrProvider, p.ID)
	}

	return &Checkout{
		ProviderPaymentID: p.ID,
		ConfirmationURL:   p.Confirmation.ConfirmationURL,
		Status:            ykStatus(p.Status),
	}, nil
}

// Get implements Provider
func (y *YooKassa) Get(ctx context.Context, providerPaymentID string) (*State, error) {
	var p ykPayment
	err := y.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, y.cfg.BaseURL+"/payments/"+providerPaymentID, nil)
	}, &p)
	if err != nil {
		return nil, err
	}
	return &State{ProviderPaymentID: p.ID, Status: ykStatus(p.Status), Paid: p.Paid}, nil
}

func (y *YooKassa) do(ctx context.Context, build func(ctx context.Context) (*http.Request, error), out any) error {
	resp, err := y.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		r, err := build(ctx)
		if err != nil {
			return nil, err
		}
		r.SetBasicAuth(y.cfg.ShopID, y.cfg.SecretKey)
		r.Header.Set("Accept", "application/json")
		return r, nil
	})
	if err != nil {
		return fmt.Errorf("%w: yookassa: %w", ErrProvider, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding yookassa response: %w", ErrProvider, err)
	}
	return nil
}

func ykStatus(s string) string {
	switch s {
	case "succeeded":
		return models.PaymentStatusSucceeded
	case "canceled":
		return models.PaymentStatusCanceled
	default:
		return models.PaymentStatusPending
	}
}
