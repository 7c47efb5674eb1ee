package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Alias1177/MilkyTarot/models"
)

const paymentColumns = `
	id, user_id, provider, provider_payment_id, amount_rub, fish, status,
	description, confirmation_url, credited, created_at, updated_at`

func scanPayment(row rowScanner) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(
		&p.ID, &p.UserID, &p.Provider, &p.ProviderPaymentID, &p.AmountRub, &p.Fish, &p.Status,
		&p.Description, &p.ConfirmationURL, &p.Credited, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePayment stores a new payment and fills in its id and timestamps.
func (db *DB) CreatePayment(ctx context.Context, p *models.Payment) error {
	if p.Status == "" {
		p.Status = models.PaymentStatusPending
	}
	err := db.QueryRowContext(ctx, `
		INSERT INTO payments (
			user_id, provider, provider_payment_id, amount_rub, fish, status, description, confirmation_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`,
		p.UserID, p.Provider, p.ProviderPaymentID, p.AmountRub, p.Fish, p.Status, p.Description, p.ConfirmationURL,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating payment: %w", err)
	}
	return nil
}

// GetPayment retrieves a payment by provider id. It returns nil when missing.
func (db *DB) GetPayment(ctx context.Context, provider, providerPaymentID string) (*models.Payment, error) {
	p, err := scanPayment(db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE provider = $1 AND provider_payment_id = $2
	`, provider, providerPaymentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting payment: %w", err)
	}
	return p, nil
}

// GetPaymentByID retrieves a payment by its local id. It returns nil when missing.
func (db *DB) GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error) {
	p, err := scanPayment(db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting payment %d: %w", id, err)
	}
	return p, nil
}

// UpdatePaymentStatus stores the latest provider status.
func (db *DB) UpdatePaymentStatus(ctx context.Context, provider, providerPaymentID, status string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, updated_at = NOW()
		WHERE provider = $2 AND provider_payment_id = $3
	`, status, provider, providerPaymentID)
	if err != nil {
		return fmt.Errorf("updating payment status: %w", err)
	}
	return expectOne(res)
}

// CreditPayment marks a payment succeeded and adds its fish to the owner's balance.
// Crediting an already credited payment is a no-op that reports false.
func (db *DB) CreditPayment(ctx context.Context, provider, providerPaymentID string) (credited bool, balance int, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("beginning credit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var (
		userID  int64
		fish    int
		already bool
	)
	err = tx.QueryRowContext(ctx, `
		SELECT user_id, fish, credited
		FROM payments
		WHERE provider = $1 AND provider_payment_id = $2
		FOR UPDATE
	`, provider, providerPaymentID).Scan(&userID, &fish, &already)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, 0, ErrNotFound
		}
		return false, 0, fmt.Errorf("locking payment: %w", err)
	}

	if already {
		err = tx.QueryRowContext(ctx, `SELECT fish_balance FROM users WHERE id = $1`, userID).Scan(&balance)
		if err != nil {
			return false, 0, fmt.Errorf("reading balance: %w", err)
		}
		return false, balance, tx.Commit()
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE payments
		SET credited = TRUE, status = $1, updated_at = NOW()
		WHERE provider = $2 AND provider_payment_id = $3
	`, models.PaymentStatusSucceeded, provider, providerPaymentID); err != nil {
		return false, 0, fmt.Errorf("marking payment credited: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE users
		SET fish_balance = fish_balance + $1
		WHERE id = $2
		RETURNING fish_balance
	`, fish, userID).Scan(&balance)
	if err != nil {
		return false, 0, fmt.Errorf("crediting fish: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("committing credit: %w", err)
	}
	return true, balance, nil
}
