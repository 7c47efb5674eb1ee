package models

import (
	"time"
)

// DefaultPushTime is the local push time given to new users.
const DefaultPushTime = "10:00"

// Payment status constants
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusCanceled  = "canceled"
)

// Payment provider names
const (
	ProviderYooKassa = "yookassa"
	ProviderStripe   = "stripe"
)

// User represents a bot user and their settings
type User struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username,omitempty"`
	RegisteredAt     time.Time `json:"registered_at"`
	PushTime         string    `json:"push_time"` // local HH:MM
	PushEnabled      bool      `json:"push_enabled"`
	TZOffset         int       `json:"tz_offset_hours"` // hours ahead of the reference timezone
	LastCard         string    `json:"last_card,omitempty"`
	LastCardDate     time.Time `json:"last_card_date,omitempty"`
	LastActivityDate time.Time `json:"last_activity_date,omitempty"`
	LastPushAt       time.Time `json:"last_push_at,omitempty"`
	DrawCount        int       `json:"draw_count"`
	AdviceCount      int       `json:"daily_advice_count"`
	AdviceLastDate   time.Time `json:"advice_last_date,omitempty"`
	FishBalance      int       `json:"fish_balance"`
}

// ScheduleProfile is the part of a user the push scheduler needs.
type ScheduleProfile struct {
	UserID   int64
	Enabled  bool
	PushTime string
	TZOffset int
}

// ScheduleProfile returns the user's push schedule settings.
func (u *User) ScheduleProfile() ScheduleProfile {
	return ScheduleProfile{
		UserID:   u.ID,
		Enabled:  u.PushEnabled,
		PushTime: u.PushTime,
		TZOffset: u.TZOffset,
	}
}

// DrewOn reports whether the user's last card was drawn on the given day.
func (u *User) DrewOn(day time.Time) bool {
	return u.LastCard != "" && SameDay(u.LastCardDate, day)
}

// Payment represents a fish top-up
type Payment struct {
	ID                int64     `json:"id"`
	UserID            int64     `json:"user_id"`
	Provider          string    `json:"provider"`
	ProviderPaymentID string    `json:"provider_payment_id"`
	AmountRub         int       `json:"amount_rub"`
	Fish              int       `json:"fish"`
	Status            string    `json:"status"`
	Description       string    `json:"description,omitempty"`
	ConfirmationURL   string    `json:"confirmation_url,omitempty"`
	Credited          bool      `json:"credited"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Stats holds the admin counters
type Stats struct {
	TotalUsers  int `json:"total_users"`
	ActiveToday int `json:"active_today"`
	TotalDraws  int `json:"total_draws"`
	PushEnabled int `json:"push_enabled"`
}

// SameDay compares the calendar dates of a and b, each in its own location.
// Stored DATE columns come back as UTC midnight, so no conversion is done.
func SameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Day truncates t to midnight in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
