package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Alias1177/MilkyTarot/internal/cards"
	"github.com/Alias1177/MilkyTarot/internal/database"
	"github.com/Alias1177/MilkyTarot/internal/fish"
	"github.com/Alias1177/MilkyTarot/internal/metrics"
)

const spreadSize = 3

func (h *Handler) startReading(ctx context.Context, chatID, userID int64) {
	if h.Reader == nil {
		h.send(chatID, textReadingsOff)
		return
	}
	u := h.requireUser(ctx, chatID, userID)
	if u == nil {
		return
	}
	if u.FishBalance < fish.ThreeCardsCost {
		h.sendNotEnough(chatID, u.FishBalance)
		return
	}

	h.awaiting[userID] = true
	msg := tgbotapi.NewMessage(chatID, textAskQuestion)
	msg.ReplyMarkup = cancelReadingKeyboard()
	h.sendMsg(msg)
}

// answerReading charges the user, draws the spread and asks the LLM in the
// background. The answer comes back through the event loop.
func (h *Handler) answerReading(ctx context.Context, chatID, userID int64, question string) {
	delete(h.awaiting, userID)
	if question == "" {
		h.awaiting[userID] = true
		h.send(chatID, textAskQuestion)
		return
	}

	balance, err := h.Store.SpendFish(ctx, userID, fish.ThreeCardsCost)
	if err != nil {
		if errors.Is(err, database.ErrInsufficientFunds) {
			balance, _ = h.Store.Balance(ctx, userID)
			h.sendNotEnough(chatID, balance)
			return
		}
		h.fail(chatID, err, "failed to charge reading")
		return
	}
	h.touch(ctx, userID)

	spread := h.Deck.Draw(spreadSize)
	h.send(chatID, fmt.Sprintf(textReadingWait, spreadTitles(spread)))
	h.log.Info().Int64("user_id", userID).Str("spread", spreadTitles(spread)).Msg("reading started")

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		text, err := h.Reader.ThreeCards(ctx, spread, question)
		h.submit(ctx, func(ctx context.Context) {
			h.finishReading(ctx, chatID, userID, text, err)
		})
	}()
}

func (h *Handler) finishReading(ctx context.Context, chatID, userID int64, text string, err error) {
	if err != nil {
		metrics.IncReading("failed")
		h.log.Error().Err(err).Int64("user_id", userID).Msg("reading failed, refunding")
		// refund even when shutdown canceled the reading
		if _, rerr := h.Store.AddFish(context.WithoutCancel(ctx), userID, fish.ThreeCardsCost); rerr != nil {
			h.log.Error().Err(rerr).Int64("user_id", userID).Int("fish", fish.ThreeCardsCost).Msg("refund failed")
			h.send(chatID, textError)
			return
		}
		h.send(chatID, fmt.Sprintf(textReadingFailed, fish.ThreeCardsCost))
		return
	}

	metrics.IncReading("ok")
	h.send(chatID, text)
}

func (h *Handler) sendNotEnough(chatID int64, balance int) {
	msg := tgbotapi.NewMessage(chatID, notEnoughText(balance))
	if h.Payments != nil {
		msg.ReplyMarkup = tariffKeyboard()
	}
	h.sendMsg(msg)
}

func spreadTitles(spread []cards.Card) string {
	titles := make([]string, len(spread))
	for i, c := range spread {
		titles[i] = c.Title
	}
	return strings.Join(titles, ", ")
}
