package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/MilkyTarot/internal/cards"
	"github.com/Alias1177/MilkyTarot/internal/database"
	"github.com/Alias1177/MilkyTarot/internal/fish"
	"github.com/Alias1177/MilkyTarot/internal/loop"
	"github.com/Alias1177/MilkyTarot/internal/payment"
	"github.com/Alias1177/MilkyTarot/internal/push"
	"github.com/Alias1177/MilkyTarot/internal/scheduler"
	"github.com/Alias1177/MilkyTarot/models"
)

var msk = time.FixedZone("MSK", 3*3600)

type fakeMessenger struct {
	mu        sync.Mutex
	sent      []tgbotapi.Chattable
	callbacks int
	failPhoto bool
}

func (m *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := c.(tgbotapi.PhotoConfig); ok && m.failPhoto {
		return tgbotapi.Message{}, errors.New("wrong file identifier")
	}
	m.sent = append(m.sent, c)
	return tgbotapi.Message{}, nil
}

func (m *fakeMessenger) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *fakeMessenger) last() tgbotapi.Chattable {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

func (m *fakeMessenger) lastText() string {
	return textOf(m.last())
}

func (m *fakeMessenger) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, c := range m.sent {
		out = append(out, textOf(c))
	}
	return out
}

func textOf(c tgbotapi.Chattable) string {
	switch msg := c.(type) {
	case tgbotapi.MessageConfig:
		return msg.Text
	case tgbotapi.EditMessageTextConfig:
		return msg.Text
	case tgbotapi.PhotoConfig:
		return msg.Caption
	}
	return ""
}

type memStore struct {
	mu    sync.Mutex
	users map[int64]*models.User
}

func newMemStore(users ...*models.User) *memStore {
	s := &memStore{users: make(map[int64]*models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memStore) user(id int64) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

func (s *memStore) EnsureUser(_ context.Context, id int64, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Username = username
		return false, nil
	}
	s.users[id] = &models.User{
		ID:           id,
		Username:     username,
		RegisteredAt: time.Now(),
		PushTime:     models.DefaultPushTime,
		PushEnabled:  true,
	}
	return true, nil
}

func (s *memStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) update(id int64, fn func(u *models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return database.ErrNotFound
	}
	fn(u)
	return nil
}

func (s *memStore) SetPushTime(_ context.Context, id int64, clock string) error {
	return s.update(id, func(u *models.User) { u.PushTime = clock })
}

func (s *memStore) SetPushEnabled(_ context.Context, id int64, enabled bool) error {
	return s.update(id, func(u *models.User) { u.PushEnabled = enabled })
}

func (s *memStore) SetTZOffset(_ context.Context, id int64, offset int) error {
	return s.update(id, func(u *models.User) { u.TZOffset = offset })
}

func (s *memStore) RecordDraw(_ context.Context, id int64, title string, day time.Time) error {
	return s.update(id, func(u *models.User) {
		u.LastCard, u.LastCardDate = title, day
		u.DrawCount++
	})
}

func (s *memStore) TouchActivity(_ context.Context, id int64, day time.Time) error {
	return s.update(id, func(u *models.User) { u.LastActivityDate = day })
}

func (s *memStore) TouchPush(_ context.Context, id int64, at time.Time) error {
	return s.update(id, func(u *models.User) { u.LastPushAt = at })
}

func (s *memStore) TakeAdvice(_ context.Context, id int64, day time.Time, limit int) (bool, error) {
	taken := false
	err := s.update(id, func(u *models.User) {
		if !models.SameDay(u.AdviceLastDate, day) {
			u.AdviceCount, u.AdviceLastDate = 0, day
		}
		if u.AdviceCount < limit {
			u.AdviceCount++
			taken = true
		}
	})
	return taken, err
}

func (s *memStore) Balance(_ context.Context, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u.FishBalance, nil
	}
	return 0, nil
}

func (s *memStore) SpendFish(_ context.Context, id int64, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.FishBalance < amount {
		return 0, database.ErrInsufficientFunds
	}
	u.FishBalance -= amount
	return u.FishBalance, nil
}

func (s *memStore) AddFish(_ context.Context, id int64, amount int) (int, error) {
	var balance int
	err := s.update(id, func(u *models.User) {
		u.FishBalance += amount
		balance = u.FishBalance
	})
	return balance, err
}

func (s *memStore) Stats(context.Context, time.Time) (*models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &models.Stats{TotalUsers: len(s.users)}
	for _, u := range s.users {
		st.TotalDraws += u.DrawCount
		if u.PushEnabled {
			st.PushEnabled++
		}
	}
	return st, nil
}

type fakeReader struct {
	text     string
	err      error
	spread   []cards.Card
	question string
}

func (r *fakeReader) ThreeCards(_ context.Context, spread []cards.Card, question string) (string, error) {
	r.spread, r.question = spread, question
	return r.text, r.err
}

type fakePayments struct {
	started  []fish.Tariff
	checkErr error
	outcome  payment.Outcome
}

func (p *fakePayments) Start(_ context.Context, userID int64, tariff fish.Tariff) (*models.Payment, error) {
	p.started = append(p.started, tariff)
	return &models.Payment{
		ID:              5,
		UserID:          userID,
		Fish:            tariff.Fish,
		Status:          models.PaymentStatusPending,
		ConfirmationURL: "https://pay.example/5",
	}, nil
}

func (p *fakePayments) Check(context.Context, int64, int64) (payment.Outcome, error) {
	return p.outcome, p.checkErr
}

func (p *fakePayments) Watch(_ context.Context, _, _ int64, done func(payment.Outcome)) {
	done(p.outcome)
}

type harness struct {
	api      *fakeMessenger
	store    *memStore
	registry *scheduler.Registry
	loop     *loop.Loop
	reader   *fakeReader
	payments *fakePayments
	handler  *Handler
}

func newHarness(t *testing.T, users ...*models.User) *harness {
	t.Helper()

	deck, err := cards.Load("", cards.DeckMain)
	require.NoError(t, err)
	advice, err := cards.Load("", cards.DeckAdvice)
	require.NoError(t, err)

	hs := &harness{
		api:      &fakeMessenger{},
		store:    newMemStore(users...),
		registry: scheduler.New(msk, zerolog.Nop()),
		loop:     loop.New(16, zerolog.Nop()),
		reader:   &fakeReader{text: "Трактовка"},
		payments: &fakePayments{},
	}
	hs.registry.Configure(hs.loop)
	t.Cleanup(hs.registry.Shutdown)

	sender := NewCardSender(hs.api, "", zerolog.Nop())
	hs.handler = NewHandler(Deps{
		API:       hs.api,
		Store:     hs.store,
		Scheduler: hs.registry,
		Pusher:    push.New(hs.store, deck, sender, msk, zerolog.Nop()),
		Cards:     sender,
		Advice:    advice,
		Deck:      deck,
		Reader:    hs.reader,
		Payments:  hs.payments,
		Loop:      hs.loop,
	}, Options{Admins: map[int64]bool{1: true}, AdviceLimit: 2}, zerolog.Nop())
	return hs
}

// drain runs queued loop tasks after background work finished.
func (hs *harness) drain() {
	hs.handler.Wait()
	for {
		select {
		case task := <-hs.loop.Tasks():
			hs.loop.Exec(context.Background(), task)
		default:
			return
		}
	}
}

func command(userID int64, cmd string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID, UserName: "milky"},
		Chat:     &tgbotapi.Chat{ID: userID},
		Text:     cmd,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func message(userID int64, s string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: s,
	}}
}

func callback(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{
			MessageID: 10,
			Chat:      &tgbotapi.Chat{ID: userID},
		},
		Data: data,
	}}
}

func activeUser(id int64) *models.User {
	return &models.User{ID: id, PushTime: "10:00", PushEnabled: true}
}
