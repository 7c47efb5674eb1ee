package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/MilkyTarot/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		sqlDB.Close()
	})
	return Wrap(sqlDB), mock
}

var userCols = []string{
	"id", "username", "registered_at", "push_time", "push_enabled", "tz_offset_hours",
	"last_card", "last_card_date", "last_activity_date", "last_push_at",
	"draw_count", "daily_advice_count", "advice_last_date", "fish_balance",
}

func TestEnsureUser(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`INSERT INTO users \(id, username, push_time\)`).
		WithArgs(int64(42), "alice", models.DefaultPushTime).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))

	created, err := db.EnsureUser(context.Background(), 42, "alice")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestGetUser(t *testing.T) {
	db, mock := newMockDB(t)
	reg := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			7, "bob", reg, "09:30", true, -2,
			"Солнце", day, day, nil,
			4, 1, nil, 350,
		))

	u, err := db.GetUser(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "09:30", u.PushTime)
	assert.Equal(t, -2, u.TZOffset)
	assert.Equal(t, "Солнце", u.LastCard)
	assert.Equal(t, day, u.LastCardDate)
	assert.True(t, u.LastPushAt.IsZero())
	assert.Equal(t, 350, u.FishBalance)
}

func TestGetUserMissing(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(int64(8)).
		WillReturnError(sql.ErrNoRows)

	u, err := db.GetUser(context.Background(), 8)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestListScheduleProfiles(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT id, push_enabled, push_time, tz_offset_hours`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "push_enabled", "push_time", "tz_offset_hours"}).
			AddRow(1, true, "10:00", 0).
			AddRow(2, false, "bad", 3))

	profiles, err := db.ListScheduleProfiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.ScheduleProfile{
		{UserID: 1, Enabled: true, PushTime: "10:00"},
		{UserID: 2, Enabled: false, PushTime: "bad", TZOffset: 3},
	}, profiles)
}

func TestSetPushTimeMissingUser(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`UPDATE users SET push_time = \$1 WHERE id = \$2`).
		WithArgs("08:00", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := db.SetPushTime(context.Background(), 5, "08:00")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordDraw(t *testing.T) {
	db, mock := newMockDB(t)
	day := time.Date(2025, 3, 1, 23, 30, 0, 0, time.FixedZone("MSK", 3*3600))

	mock.ExpectExec(`UPDATE users\s+SET last_card = \$1`).
		WithArgs("Луна", "2025-03-01", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.RecordDraw(context.Background(), 3, "Луна", day))
}

func TestTakeAdvice(t *testing.T) {
	db, mock := newMockDB(t)
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE users\s+SET daily_advice_count`).
		WithArgs(int64(3), "2025-03-01", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users\s+SET daily_advice_count`).
		WithArgs(int64(3), "2025-03-01", 2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := db.TakeAdvice(context.Background(), 3, day, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.TakeAdvice(context.Background(), 3, day, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSpendFish(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`UPDATE users\s+SET fish_balance = fish_balance - \$1`).
		WithArgs(70, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"fish_balance"}).AddRow(280))
	mock.ExpectQuery(`UPDATE users\s+SET fish_balance = fish_balance - \$1`).
		WithArgs(70, int64(1)).
		WillReturnError(sql.ErrNoRows)

	balance, err := db.SpendFish(context.Background(), 1, 70)
	require.NoError(t, err)
	assert.Equal(t, 280, balance)

	_, err = db.SpendFish(context.Background(), 1, 70)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestStats(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT\s+COUNT\(\*\)`).
		WithArgs("2025-03-01").
		WillReturnRows(sqlmock.NewRows([]string{"total", "active", "draws", "push"}).AddRow(10, 3, 57, 8))

	s, err := db.Stats(context.Background(), time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, &models.Stats{TotalUsers: 10, ActiveToday: 3, TotalDraws: 57, PushEnabled: 8}, s)
}

func TestMigrate(t *testing.T) {
	db, mock := newMockDB(t)

	for range schema {
		mock.ExpectExec(`CREATE|ALTER`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, db.Migrate(context.Background()))
}
