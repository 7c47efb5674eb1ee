package bot

import (
	"fmt"
	"strings"

	"github.com/Alias1177/MilkyTarot/internal/fish"
	"github.com/Alias1177/MilkyTarot/models"
)

// Main menu buttons.
const (
	btnCardOfDay = "Вытянуть карту дня"
	btnAdvice    = "Узнать совет карт"
	btnThree     = "Три карты"
	btnSettings  = "Мои настройки"
	btnBalance   = "Баланс"
	btnHelp      = "Помощь"
)

const (
	textWelcome = "👋 Привет! Рада познакомиться и видеть тебя здесь. Я — Милки, твой спутник в мире карт.\n\n" +
		"Каждый день я буду присылать тебе карту дня, а ещё могу подсказать совет карт или сделать расклад на три карты.\n\n" +
		"Выбирай, с чего начнём 👇"
	textHelp          = "Для связи с админом пишите @netebla"
	textNeedStart     = "Сначала нажми /start 🚀"
	textUnknown       = "Не понимаю 🙈 Воспользуйся кнопками меню."
	textError         = "Что-то пошло не так. Попробуй ещё раз чуть позже."
	textChooseTime    = "Выберите время отправки уведомления:"
	textChooseTZ      = "Выберите ваш часовой пояс относительно Москвы:"
	textTimeUpdated   = "Время пуша обновлено на %s."
	textTZUpdated     = "Часовой пояс обновлён: %s."
	textPushOff       = "Пуши отключены."
	textPushOn        = "Пуши включены."
	textBadTime       = "Некорректное время."
	textBadTZ         = "Некорректный часовой пояс."
	textNoRights      = "Недостаточно прав."
	textAdviceLimit   = "⚠️ Лимит советов на сегодня исчерпан. Следующие будут доступны завтра 🌙"
	textAskQuestion   = "Напиши свой вопрос к раскладу одним сообщением ✍️"
	textReadingCancel = "Расклад отменён."
	textReadingsOff   = "Расклады временно недоступны 🌙"
	textReadingWait   = "Карты легли так: %s\n\nСмотрю, что они говорят. Это займёт немного времени ✨"
	textReadingFailed = "Не удалось получить трактовку. %d 🐟 вернулись на баланс."
	textPaymentsOff   = "Пополнение баланса сейчас недоступно."
	textPayLink       = "Счёт на %d ₽ (%s) создан. Для оплаты перейдите по ссылке, после оплаты рыбки начислятся автоматически."
	textPaid          = "✅ Оплата прошла! Начислено %d 🐟. Баланс: %d 🐟"
	textPaidAlready   = "✅ Оплата подтверждена. Баланс: %d 🐟"
	textPayCanceled   = "❌ Платёж отменён."
	textPayPending    = "⏳ Платёж ещё не подтверждён. Нажмите «Проверить оплату», когда завершите оплату."
	textPayForeign    = "Это не ваш платёж."
	textPayUnknown    = "Платёж не найден."
)

func onOff(enabled bool) string {
	if enabled {
		return "Включены"
	}
	return "Выключены"
}

// tzLabel renders an offset from the reference zone, e.g. "МСК+2".
func tzLabel(offset int) string {
	switch {
	case offset > 0:
		return fmt.Sprintf("МСК+%d", offset)
	case offset < 0:
		return fmt.Sprintf("МСК%d", offset)
	default:
		return "МСК"
	}
}

func settingsText(u *models.User) string {
	return fmt.Sprintf("Настройки пушей:\n\nСостояние: %s\nВремя: %s\nЧасовой пояс: %s",
		onOff(u.PushEnabled), u.PushTime, tzLabel(u.TZOffset))
}

func statsText(s *models.Stats) string {
	return fmt.Sprintf("📊 Статистика:\n👥 Пользователей: %d\n🔥 Активны сегодня: %d\n🃏 Вытянуто карт (всего): %d\n🔔 Пуши включены: %d",
		s.TotalUsers, s.ActiveToday, s.TotalDraws, s.PushEnabled)
}

func balanceText(balance int, canPay bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ваш баланс: %d 🐟\n\nРасклад «Три карты» стоит %d 🐟.", balance, fish.ThreeCardsCost)
	if canPay {
		b.WriteString("\n\nПополнить баланс:")
	}
	return b.String()
}

func notEnoughText(balance int) string {
	return fmt.Sprintf("Недостаточно рыбок: нужно %d 🐟, у вас %d 🐟.\n\nПополнить баланс:", fish.ThreeCardsCost, balance)
}

func adviceCaption(title, description string) string {
	return fmt.Sprintf("✨ Совет карт: %s\n\n%s", title, description)
}
