package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

var (
	// ErrInsufficientFunds is returned when a fish balance cannot cover a charge.
	ErrInsufficientFunds = errors.New("insufficient fish balance")
	// ErrNotFound is returned by updates that matched no row.
	ErrNotFound = errors.New("record not found")
)

// DB represents a database connection
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN builds a lib/pq connection string.
func (p ConnectionParams) DSN() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, sslMode,
	)
}

// New creates a new database connection from params
func New(ctx context.Context, params ConnectionParams) (*DB, error) {
	return Open(ctx, params.DSN())
}

// Open connects using a DSN or postgres:// URL and creates missing tables.
func Open(ctx context.Context, dsn string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db := Wrap(sqlDB)
	if err := db.Migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Wrap wraps an existing handle without touching the schema.
func Wrap(sqlDB *sql.DB) *DB {
	return &DB{sqlDB}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		username TEXT NOT NULL DEFAULT '',
		registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		push_time TEXT NOT NULL DEFAULT '10:00',
		push_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		tz_offset_hours INTEGER NOT NULL DEFAULT 0,
		last_card TEXT,
		last_card_date DATE,
		last_activity_date DATE,
		last_push_at TIMESTAMPTZ,
		draw_count INTEGER NOT NULL DEFAULT 0,
		daily_advice_count INTEGER NOT NULL DEFAULT 0,
		advice_last_date DATE,
		fish_balance INTEGER NOT NULL DEFAULT 0
	)`,
	`ALTER TABLE users ADD COLUMN IF NOT EXISTS last_push_at TIMESTAMPTZ`,
	`CREATE TABLE IF NOT EXISTS payments (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		provider TEXT NOT NULL,
		provider_payment_id TEXT NOT NULL,
		amount_rub INTEGER NOT NULL,
		fish INTEGER NOT NULL,
		status TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		confirmation_url TEXT NOT NULL DEFAULT '',
		credited BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (provider, provider_payment_id)
	)`,
	`CREATE INDEX IF NOT EXISTS payments_user_id_idx ON payments (user_id)`,
}

// Migrate creates the necessary tables if they don't exist
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating tables: %w", err)
		}
	}
	return nil
}

func dateOnly(t time.Time) string {
	return t.Format(time.DateOnly)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
