package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Alias1177/MilkyTarot/internal/fish"
	"github.com/Alias1177/MilkyTarot/internal/payment"
	"github.com/Alias1177/MilkyTarot/models"
)

func (h *Handler) showBalance(ctx context.Context, chatID, userID int64) {
	u := h.requireUser(ctx, chatID, userID)
	if u == nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, balanceText(u.FishBalance, h.Payments != nil))
	if h.Payments != nil {
		msg.ReplyMarkup = tariffKeyboard()
	}
	h.sendMsg(msg)
}

// payTariff creates a payment and watches it in the background.
func (h *Handler) payTariff(ctx context.Context, chatID, userID int64, value string) {
	if h.Payments == nil {
		h.send(chatID, textPaymentsOff)
		return
	}
	rub, err := strconv.Atoi(value)
	if err != nil {
		h.log.Warn().Str("value", value).Msg("bad tariff callback")
		return
	}
	tariff, ok := fish.ByRub(rub)
	if !ok {
		h.log.Warn().Int("rub", rub).Msg("unknown tariff")
		return
	}

	p, err := h.Payments.Start(ctx, userID, tariff)
	if err != nil {
		h.fail(chatID, err, "failed to create payment")
		return
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(textPayLink, tariff.Rub, tariff.Label()))
	msg.ReplyMarkup = paymentKeyboard(p)
	h.sendMsg(msg)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.Payments.Watch(ctx, userID, p.ID, func(out payment.Outcome) {
			h.submit(ctx, func(context.Context) {
				h.notifyPayment(chatID, out, true)
			})
		})
	}()
}

func (h *Handler) checkPayment(ctx context.Context, chatID, userID int64, value string) {
	if h.Payments == nil {
		h.send(chatID, textPaymentsOff)
		return
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		h.send(chatID, textPayUnknown)
		return
	}

	out, err := h.Payments.Check(ctx, userID, id)
	switch {
	case errors.Is(err, payment.ErrForeignPayment):
		h.log.Warn().Int64("user_id", userID).Int64("payment_id", id).Msg("foreign payment check")
		h.send(chatID, textPayForeign)
	case errors.Is(err, payment.ErrUnknownPayment):
		h.send(chatID, textPayUnknown)
	case err != nil:
		h.fail(chatID, err, "failed to check payment")
	default:
		h.notifyPayment(chatID, out, false)
	}
}

// notifyPayment reports a payment outcome. The automatic watcher stays silent
// about payments credited elsewhere.
func (h *Handler) notifyPayment(chatID int64, out payment.Outcome, auto bool) {
	switch out.Status {
	case models.PaymentStatusSucceeded:
		switch {
		case out.Credited:
			h.send(chatID, CreditedText(out))
		case !auto:
			h.send(chatID, fmt.Sprintf(textPaidAlready, out.Balance))
		}
	case models.PaymentStatusCanceled:
		h.send(chatID, textPayCanceled)
	default:
		h.send(chatID, textPayPending)
	}
}

// PaymentCredited tells the owner about a payment credited outside the chat,
// e.g. by a provider webhook. Safe to call from any goroutine.
func (h *Handler) PaymentCredited(ctx context.Context, out payment.Outcome) {
	if out.Payment == nil {
		return
	}
	h.submit(ctx, func(context.Context) {
		h.notifyPayment(out.Payment.UserID, out, true)
	})
}

// CreditedText is the message sent when a top-up is credited.
func CreditedText(out payment.Outcome) string {
	return fmt.Sprintf(textPaid, out.Payment.Fish, out.Balance)
}
