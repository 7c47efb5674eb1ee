package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Alias1177/MilkyTarot/models"
)

const userColumns = `
	id, username, registered_at, push_time, push_enabled, tz_offset_hours,
	last_card, last_card_date, last_activity_date, last_push_at,
	draw_count, daily_advice_count, advice_last_date, fish_balance`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                                             models.User
		lastCard                                      sql.NullString
		lastCardDate, lastActivity, lastPush, advDate sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.RegisteredAt, &u.PushTime, &u.PushEnabled, &u.TZOffset,
		&lastCard, &lastCardDate, &lastActivity, &lastPush,
		&u.DrawCount, &u.AdviceCount, &advDate, &u.FishBalance,
	)
	if err != nil {
		return nil, err
	}
	if lastCard.Valid {
		u.LastCard = lastCard.String
	}
	if lastCardDate.Valid {
		u.LastCardDate = lastCardDate.Time
	}
	if lastActivity.Valid {
		u.LastActivityDate = lastActivity.Time
	}
	if lastPush.Valid {
		u.LastPushAt = lastPush.Time
	}
	if advDate.Valid {
		u.AdviceLastDate = advDate.Time
	}
	return &u, nil
}

// EnsureUser creates the user with default settings if missing and refreshes the username.
// It reports whether the user was created.
func (db *DB) EnsureUser(ctx context.Context, userID int64, username string) (bool, error) {
	var created bool
	err := db.QueryRowContext(ctx, `
		INSERT INTO users (id, username, push_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET username = COALESCE(NULLIF(EXCLUDED.username, ''), users.username)
		RETURNING (xmax = 0)
	`, userID, username, models.DefaultPushTime).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("ensuring user %d: %w", userID, err)
	}
	return created, nil
}

// GetUser retrieves a user. It returns nil when the user does not exist.
func (db *DB) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting user %d: %w", userID, err)
	}
	return u, nil
}

// ListUsers returns every user ordered by id.
func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ListScheduleProfiles returns the push settings of every user.
func (db *DB) ListScheduleProfiles(ctx context.Context) ([]models.ScheduleProfile, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, push_enabled, push_time, tz_offset_hours
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing schedule profiles: %w", err)
	}
	defer rows.Close()

	var out []models.ScheduleProfile
	for rows.Next() {
		var p models.ScheduleProfile
		if err := rows.Scan(&p.UserID, &p.Enabled, &p.PushTime, &p.TZOffset); err != nil {
			return nil, fmt.Errorf("scanning schedule profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetPushTime stores the user's local push time.
func (db *DB) SetPushTime(ctx context.Context, userID int64, clock string) error {
	res, err := db.ExecContext(ctx, `UPDATE users SET push_time = $1 WHERE id = $2`, clock, userID)
	if err != nil {
		return fmt.Errorf("setting push time: %w", err)
	}
	return expectOne(res)
}

// SetPushEnabled turns daily pushes on or off.
func (db *DB) SetPushEnabled(ctx context.Context, userID int64, enabled bool) error {
	res, err := db.ExecContext(ctx, `UPDATE users SET push_enabled = $1 WHERE id = $2`, enabled, userID)
	if err != nil {
		return fmt.Errorf("setting push enabled: %w", err)
	}
	return expectOne(res)
}

// SetTZOffset stores the user's hour offset from the reference timezone.
func (db *DB) SetTZOffset(ctx context.Context, userID int64, offset int) error {
	res, err := db.ExecContext(ctx, `UPDATE users SET tz_offset_hours = $1 WHERE id = $2`, offset, userID)
	if err != nil {
		return fmt.Errorf("setting tz offset: %w", err)
	}
	return expectOne(res)
}

// RecordDraw stores the card of the day and bumps the draw counter.
func (db *DB) RecordDraw(ctx context.Context, userID int64, title string, day time.Time) error {
	res, err := db.ExecContext(ctx, `
		UPDATE users
		SET last_card = $1,
			last_card_date = $2,
			last_activity_date = $2,
			draw_count = draw_count + 1
		WHERE id = $3
	`, title, dateOnly(day), userID)
	if err != nil {
		return fmt.Errorf("recording draw: %w", err)
	}
	return expectOne(res)
}

// TouchActivity marks the user active on day.
func (db *DB) TouchActivity(ctx context.Context, userID int64, day time.Time) error {
	_, err := db.ExecContext(ctx, `UPDATE users SET last_activity_date = $1 WHERE id = $2`, dateOnly(day), userID)
	if err != nil {
		return fmt.Errorf("touching activity: %w", err)
	}
	return nil
}

// TouchPush records a push attempt.
func (db *DB) TouchPush(ctx context.Context, userID int64, at time.Time) error {
	_, err := db.ExecContext(ctx, `UPDATE users SET last_push_at = $1 WHERE id = $2`, at, userID)
	if err != nil {
		return fmt.Errorf("touching push: %w", err)
	}
	return nil
}

// TakeAdvice consumes one advice draw for day. It returns false once limit is reached.
func (db *DB) TakeAdvice(ctx context.Context, userID int64, day time.Time, limit int) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE users
		SET daily_advice_count = CASE WHEN advice_last_date = $2 THEN daily_advice_count + 1 ELSE 1 END,
			advice_last_date = $2,
			last_activity_date = $2
		WHERE id = $1
			AND (advice_last_date IS DISTINCT FROM $2 OR daily_advice_count < $3)
	`, userID, dateOnly(day), limit)
	if err != nil {
		return false, fmt.Errorf("taking advice: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Balance returns the user's fish balance.
func (db *DB) Balance(ctx context.Context, userID int64) (int, error) {
	var balance int
	err := db.QueryRowContext(ctx, `SELECT fish_balance FROM users WHERE id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("getting balance: %w", err)
	}
	return balance, nil
}

// SpendFish charges amount and returns the new balance.
func (db *DB) SpendFish(ctx context.Context, userID int64, amount int) (int, error) {
	var balance int
	err := db.QueryRowContext(ctx, `
		UPDATE users
		SET fish_balance = fish_balance - $1
		WHERE id = $2 AND fish_balance >= $1
		RETURNING fish_balance
	`, amount, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrInsufficientFunds
		}
		return 0, fmt.Errorf("spending fish: %w", err)
	}
	return balance, nil
}

// AddFish credits amount and returns the new balance.
func (db *DB) AddFish(ctx context.Context, userID int64, amount int) (int, error) {
	var balance int
	err := db.QueryRowContext(ctx, `
		UPDATE users
		SET fish_balance = fish_balance + $1
		WHERE id = $2
		RETURNING fish_balance
	`, amount, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("adding fish: %w", err)
	}
	return balance, nil
}

// Stats returns the admin counters for day.
func (db *DB) Stats(ctx context.Context, day time.Time) (*models.Stats, error) {
	var s models.Stats
	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE last_activity_date = $1),
			COALESCE(SUM(draw_count), 0),
			COUNT(*) FILTER (WHERE push_enabled)
		FROM users
	`, dateOnly(day)).Scan(&s.TotalUsers, &s.ActiveToday, &s.TotalDraws, &s.PushEnabled)
	if err != nil {
		return nil, fmt.Errorf("collecting stats: %w", err)
	}
	return &s, nil
}
