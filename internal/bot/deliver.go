package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Alias1177/MilkyTarot/internal/cards"
)

// Messenger is the part of the Telegram API the bot uses. *tgbotapi.BotAPI implements it.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// CardSender delivers cards as photos, falling back to plain text
// when the image cannot be sent.
type CardSender struct {
	api       Messenger
	imageBase string
	log       zerolog.Logger
}

// NewCardSender creates a CardSender serving images from imageBase.
func NewCardSender(api Messenger, imageBase string, logger zerolog.Logger) *CardSender {
	return &CardSender{api: api, imageBase: imageBase, log: logger}
}

// DeliverCard sends card to chatID with caption.
func (s *CardSender) DeliverCard(_ context.Context, chatID int64, card cards.Card, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(card.ImageURL(s.imageBase)))
	photo.Caption = caption
	_, err := s.api.Send(photo)
	if err == nil {
		return nil
	}
	s.log.Warn().Err(err).Int64("chat_id", chatID).Str("card", card.Title).Msg("photo send failed, falling back to text")

	if _, err := s.api.Send(tgbotapi.NewMessage(chatID, caption)); err != nil {
		return fmt.Errorf("sending card to %d: %w", chatID, err)
	}
	return nil
}
