package bot

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Alias1177/MilkyTarot/internal/scheduler"
	"github.com/Alias1177/MilkyTarot/models"
)

// reschedule makes the registry match the user's stored push settings.
func (h *Handler) reschedule(u *models.User) {
	if !u.PushEnabled {
		h.Scheduler.Remove(u.ID)
		return
	}
	if !h.Scheduler.ScheduleDailyWithOffset(u.ID, u.PushTime, u.TZOffset, h.Pusher.Action(u.ID)) {
		h.log.Warn().Int64("user_id", u.ID).Str("push_time", u.PushTime).Int("tz_offset", u.TZOffset).Msg("stored push settings rejected by scheduler")
	}
}

func (h *Handler) showSettings(ctx context.Context, chatID, userID int64) {
	u := h.requireUser(ctx, chatID, userID)
	if u == nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, settingsText(u))
	msg.ReplyMarkup = settingsKeyboard(u)
	h.sendMsg(msg)
}

// refreshSettings redraws the settings message, optionally led by a notice.
func (h *Handler) refreshSettings(ctx context.Context, cq *tgbotapi.CallbackQuery, chatID, userID int64, notice string) {
	u := h.requireUser(ctx, chatID, userID)
	if u == nil {
		return
	}
	h.editSettings(cq, chatID, u, notice)
}

func (h *Handler) editSettings(cq *tgbotapi.CallbackQuery, chatID int64, u *models.User, notice string) {
	text := settingsText(u)
	if notice != "" {
		text = notice + "\n\n" + text
	}
	h.edit(cq, chatID, text, settingsKeyboard(u))
}

func (h *Handler) setPushTime(ctx context.Context, cq *tgbotapi.CallbackQuery, chatID, userID int64, value string) {
	hour, minute, err := scheduler.ParseClock(value)
	if err != nil {
		h.log.Warn().Err(err).Str("value", value).Int64("user_id", userID).Msg("bad push time")
		h.send(chatID, textBadTime)
		return
	}
	clock := scheduler.FormatClock(hour, minute)

	if err := h.Store.SetPushTime(ctx, userID, clock); err != nil {
		h.fail(chatID, err, "failed to store push time")
		return
	}
	u := h.requireUser(ctx, chatID, userID)
	if u == nil {
		return
	}
	h.reschedule(u)

	h.log.Info().Int64("user_id", userID).Str("push_time", clock).Msg("push time changed")
	h.editSettings(cq, chatID, u, fmt.Sprintf(textTimeUpdated, clock))
}

func (h *Handler) setPushEnabled(ctx context.Context, cq *tgbotapi.CallbackQuery, chatID, userID int64, enabled bool) {
	if err := h.Store.SetPushEnabled(ctx, userID, enabled); err != nil {
		h.fail(chatID, err, "failed to store push toggle")
		return
	}
	u := h.requireUser(ctx, chatID, userID)
	if u == nil {
		return
	}
	h.reschedule(u)

	notice := textPushOff
	if enabled {
		notice = textPushOn
	}
	h.log.Info().Int64("user_id", userID).Bool("enabled", enabled).Msg("push toggled")
	h.editSettings(cq, chatID, u, notice)
}

func (h *Handler) setTZOffset(ctx context.Context, cq *tgbotapi.CallbackQuery, chatID, userID int64, value string) {
	offset, err := strconv.Atoi(value)
	if err != nil || offset < -scheduler.MaxOffset || offset > scheduler.MaxOffset {
		h.log.Warn().Str("value", value).Int64("user_id", userID).Msg("bad tz offset")
		h.send(chatID, textBadTZ)
		return
	}

	if err := h.Store.SetTZOffset(ctx, userID, offset); err != nil {
		h.fail(chatID, err, "failed to store tz offset")
		return
	}
	u := h.requireUser(ctx, chatID, userID)
	if u == nil {
		return
	}
	h.reschedule(u)

	h.log.Info().Int64("user_id", userID).Int("tz_offset", offset).Msg("tz offset changed")
	h.editSettings(cq, chatID, u, fmt.Sprintf(textTZUpdated, tzLabel(offset)))
}
