// Package bot implements the Telegram conversation: menus, settings,
// card draws, readings and fish top-ups.
package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Alias1177/MilkyTarot/internal/cards"
	"github.com/Alias1177/MilkyTarot/internal/database"
	"github.com/Alias1177/MilkyTarot/internal/fish"
	"github.com/Alias1177/MilkyTarot/internal/payment"
	"github.com/Alias1177/MilkyTarot/internal/push"
	"github.com/Alias1177/MilkyTarot/internal/scheduler"
	"github.com/Alias1177/MilkyTarot/models"
)

var errUserMissing = errors.New("user missing")

// Store is the user storage the bot needs.
type Store interface {
	push.Store
	EnsureUser(ctx context.Context, userID int64, username string) (bool, error)
	SetPushTime(ctx context.Context, userID int64, clock string) error
	SetPushEnabled(ctx context.Context, userID int64, enabled bool) error
	SetTZOffset(ctx context.Context, userID int64, offset int) error
	TouchActivity(ctx context.Context, userID int64, day time.Time) error
	TakeAdvice(ctx context.Context, userID int64, day time.Time, limit int) (bool, error)
	Balance(ctx context.Context, userID int64) (int, error)
	SpendFish(ctx context.Context, userID int64, amount int) (int, error)
	AddFish(ctx context.Context, userID int64, amount int) (int, error)
	Stats(ctx context.Context, day time.Time) (*models.Stats, error)
}

// Scheduler keeps one daily push per user.
type Scheduler interface {
	ScheduleDailyWithOffset(userID int64, clock string, offsetHours int, action scheduler.Action) bool
	Remove(userID int64)
}

// Pusher draws the card of the day and binds scheduled pushes.
type Pusher interface {
	CardOfDay(ctx context.Context, u *models.User) (cards.Card, bool)
	Today() time.Time
	Action(userID int64) scheduler.Action
}

// Reader interprets a three-card spread.
type Reader interface {
	ThreeCards(ctx context.Context, spread []cards.Card, question string) (string, error)
}

// Payments creates and settles fish top-ups.
type Payments interface {
	Start(ctx context.Context, userID int64, tariff fish.Tariff) (*models.Payment, error)
	Check(ctx context.Context, userID, paymentID int64) (payment.Outcome, error)
	Watch(ctx context.Context, userID, paymentID int64, done func(payment.Outcome))
}

// Deps are the collaborators of a Handler. Reader and Payments may be nil
// when the feature is disabled.
type Deps struct {
	API       Messenger
	Store     Store
	Scheduler Scheduler
	Pusher    Pusher
	Cards     push.Deliverer
	Advice    *cards.Deck
	Deck      *cards.Deck
	Reader    Reader
	Payments  Payments
	Loop      scheduler.Loop
}

// Options tune the handler.
type Options struct {
	Admins      map[int64]bool
	AdviceLimit int
}

// Handler processes updates. It is not safe for concurrent use: every call
// must come from the event loop goroutine.
type Handler struct {
	Deps
	opts Options

	// users waiting to type a reading question
	awaiting map[int64]bool

	wg  sync.WaitGroup
	log zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(deps Deps, opts Options, logger zerolog.Logger) *Handler {
	if opts.AdviceLimit <= 0 {
		opts.AdviceLimit = 2
	}
	return &Handler{
		Deps:     deps,
		opts:     opts,
		awaiting: make(map[int64]bool),
		log:      logger.With().Str("component", "bot").Logger(),
	}
}

// Wait blocks until background readings and payment checks finish.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// HandleUpdate dispatches a single update.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	chatID, userID := msg.Chat.ID, msg.From.ID

	if msg.IsCommand() {
		delete(h.awaiting, userID)
		switch msg.Command() {
		case "start":
			h.start(ctx, chatID, msg.From)
		case "help":
			h.send(chatID, textHelp)
		case "settings":
			h.showSettings(ctx, chatID, userID)
		case "balance":
			h.showBalance(ctx, chatID, userID)
		case "admin_stats":
			h.adminStats(ctx, chatID, userID)
		default:
			h.send(chatID, textUnknown)
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch text {
	case btnCardOfDay, btnAdvice, btnThree, btnSettings, btnBalance, btnHelp:
		delete(h.awaiting, userID)
	}

	switch text {
	case btnCardOfDay:
		h.cardOfDay(ctx, chatID, userID)
	case btnAdvice:
		h.advice(ctx, chatID, userID)
	case btnThree:
		h.startReading(ctx, chatID, userID)
	case btnSettings:
		h.showSettings(ctx, chatID, userID)
	case btnBalance:
		h.showBalance(ctx, chatID, userID)
	case btnHelp:
		h.send(chatID, textHelp)
	default:
		if h.awaiting[userID] {
			h.answerReading(ctx, chatID, userID, text)
			return
		}
		h.send(chatID, textUnknown)
	}
}

func (h *Handler) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := h.API.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		h.log.Debug().Err(err).Msg("failed to answer callback")
	}
	if cq.From == nil {
		return
	}
	userID := cq.From.ID
	chatID := userID
	if cq.Message != nil {
		chatID = cq.Message.Chat.ID
	}

	data := cq.Data
	switch {
	case data == cbChangeTime:
		h.edit(cq, chatID, textChooseTime, timeKeyboard())
	case strings.HasPrefix(data, cbSetTime):
		h.setPushTime(ctx, cq, chatID, userID, strings.TrimPrefix(data, cbSetTime))
	case data == cbCancelTime:
		h.refreshSettings(ctx, cq, chatID, userID, "")
	case data == cbPushOff:
		h.setPushEnabled(ctx, cq, chatID, userID, false)
	case data == cbPushOn:
		h.setPushEnabled(ctx, cq, chatID, userID, true)
	case data == cbChangeTZ:
		h.edit(cq, chatID, textChooseTZ, tzKeyboard())
	case strings.HasPrefix(data, cbSetTZ):
		h.setTZOffset(ctx, cq, chatID, userID, strings.TrimPrefix(data, cbSetTZ))
	case data == cbHelp:
		h.send(chatID, textHelp)
	case data == cbCancelReading:
		delete(h.awaiting, userID)
		h.send(chatID, textReadingCancel)
	case strings.HasPrefix(data, cbPayTariff):
		h.payTariff(ctx, chatID, userID, strings.TrimPrefix(data, cbPayTariff))
	case strings.HasPrefix(data, cbCheckPayment):
		h.checkPayment(ctx, chatID, userID, strings.TrimPrefix(data, cbCheckPayment))
	default:
		h.log.Warn().Str("data", data).Int64("user_id", userID).Msg("unknown callback")
	}
}

func (h *Handler) start(ctx context.Context, chatID int64, from *tgbotapi.User) {
	created, err := h.Store.EnsureUser(ctx, from.ID, from.UserName)
	if err != nil {
		h.fail(chatID, err, "failed to register user")
		return
	}
	u, err := h.Store.GetUser(ctx, from.ID)
	if err != nil || u == nil {
		h.fail(chatID, err, "failed to load user after registration")
		return
	}

	h.reschedule(u)
	h.touch(ctx, u.ID)

	if created {
		h.log.Info().Int64("user_id", u.ID).Str("username", from.UserName).Msg("new user registered")
	}

	msg := tgbotapi.NewMessage(chatID, textWelcome)
	msg.ReplyMarkup = MainMenu()
	h.sendMsg(msg)
}

func (h *Handler) cardOfDay(ctx context.Context, chatID, userID int64) {
	u := h.requireUser(ctx, chatID, userID)
	if u == nil {
		return
	}
	card, _ := h.Pusher.CardOfDay(ctx, u)
	h.touch(ctx, u.ID)
	if err := h.Cards.DeliverCard(ctx, chatID, card, push.Caption(card)); err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to send card of the day")
	}
}

func (h *Handler) advice(ctx context.Context, chatID, userID int64) {
	u := h.requireUser(ctx, chatID, userID)
	if u == nil {
		return
	}
	ok, err := h.Store.TakeAdvice(ctx, u.ID, h.Pusher.Today(), h.opts.AdviceLimit)
	if err != nil {
		h.fail(chatID, err, "failed to take advice")
		return
	}
	if !ok {
		h.send(chatID, textAdviceLimit)
		return
	}
	h.touch(ctx, u.ID)

	card := h.Advice.Random()
	if err := h.Cards.DeliverCard(ctx, chatID, card, adviceCaption(card.Title, card.Description)); err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to send advice")
	}
}

func (h *Handler) adminStats(ctx context.Context, chatID, userID int64) {
	if !h.opts.Admins[userID] {
		h.send(chatID, textNoRights)
		return
	}
	stats, err := h.Store.Stats(ctx, h.Pusher.Today())
	if err != nil {
		h.fail(chatID, err, "failed to collect stats")
		return
	}
	h.send(chatID, statsText(stats))
}

// requireUser loads the user or asks them to /start.
func (h *Handler) requireUser(ctx context.Context, chatID, userID int64) *models.User {
	u, err := h.Store.GetUser(ctx, userID)
	if err != nil {
		h.fail(chatID, err, "failed to load user")
		return nil
	}
	if u == nil {
		h.send(chatID, textNeedStart)
	}
	return u
}

func (h *Handler) touch(ctx context.Context, userID int64) {
	if err := h.Store.TouchActivity(ctx, userID, h.Pusher.Today()); err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to touch activity")
	}
}

// submit runs task on the event loop. If the loop rejects it the task runs
// in the calling goroutine so the user still gets an answer.
func (h *Handler) submit(ctx context.Context, task func(ctx context.Context)) {
	if err := h.Loop.Submit(task); err != nil {
		h.log.Warn().Err(err).Msg("event loop rejected task, running in place")
		task(ctx)
	}
}

func (h *Handler) send(chatID int64, text string) {
	h.sendMsg(tgbotapi.NewMessage(chatID, text))
}

func (h *Handler) sendMsg(c tgbotapi.Chattable) {
	if _, err := h.API.Send(c); err != nil {
		h.log.Error().Err(err).Msg("failed to send message")
	}
}

// edit replaces the callback's message, or sends a new one if there is none.
func (h *Handler) edit(cq *tgbotapi.CallbackQuery, chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	if cq.Message == nil {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ReplyMarkup = kb
		h.sendMsg(msg)
		return
	}
	h.sendMsg(tgbotapi.NewEditMessageTextAndMarkup(chatID, cq.Message.MessageID, text, kb))
}

func (h *Handler) fail(chatID int64, err error, msg string) {
	if err == nil {
		err = errUserMissing
	}
	if errors.Is(err, database.ErrNotFound) {
		h.send(chatID, textNeedStart)
		return
	}
	h.log.Error().Err(err).Int64("chat_id", chatID).Msg(msg)
	h.send(chatID, textError)
}
