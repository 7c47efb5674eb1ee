package bot

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Alias1177/MilkyTarot/internal/fish"
	"github.com/Alias1177/MilkyTarot/models"
)

// Callback data
const (
	cbChangeTime    = "change_push_time"
	cbSetTime       = "set_time:"
	cbCancelTime    = "cancel_time"
	cbPushOff       = "push_off"
	cbPushOn        = "push_on"
	cbChangeTZ      = "change_tz"
	cbSetTZ         = "set_tz:"
	cbHelp          = "help"
	cbCancelReading = "cancel_reading"
	cbPayTariff     = "pay_tariff:"
	cbCheckPayment  = "check_payment:"
)

// PushTimes are the times offered in the time picker.
var PushTimes = []string{"08:00", "09:00", "10:00", "11:00", "12:00", "18:00", "21:00"}

// TZOffsets are the offsets from Moscow offered in the timezone picker.
var TZOffsets = []int{-1, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

// MainMenu is the persistent reply keyboard.
func MainMenu() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCardOfDay)),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnAdvice),
			tgbotapi.NewKeyboardButton(btnThree),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSettings),
			tgbotapi.NewKeyboardButton(btnBalance),
		),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnHelp)),
	)
	kb.ResizeKeyboard = true
	return kb
}

func settingsKeyboard(u *models.User) tgbotapi.InlineKeyboardMarkup {
	toggle := tgbotapi.NewInlineKeyboardButtonData("Выключить пуши", cbPushOff)
	if !u.PushEnabled {
		toggle = tgbotapi.NewInlineKeyboardButtonData("Включить пуши", cbPushOn)
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Изменить время пуша", cbChangeTime)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Изменить часовой пояс", cbChangeTZ)),
		tgbotapi.NewInlineKeyboardRow(toggle),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Помощь", cbHelp)),
	)
}

func timeKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, t := range PushTimes {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(t, cbSetTime+t))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Отмена", cbCancelTime)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func tzKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, off := range TZOffsets {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(tzLabel(off), cbSetTZ+strconv.Itoa(off)))
		if len(row) == 4 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Отмена", cbCancelTime)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func tariffKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(fish.Tariffs))
	for _, t := range fish.Tariffs {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(t.Label(), fmt.Sprintf("%s%d", cbPayTariff, t.Rub)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func paymentKeyboard(p *models.Payment) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("Оплатить", p.ConfirmationURL)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Проверить оплату", fmt.Sprintf("%s%d", cbCheckPayment, p.ID))),
	)
}

func cancelReadingKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Отмена", cbCancelReading)),
	)
}
