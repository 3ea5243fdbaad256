package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	hoursPerDay                                     = 24
	settingsAutoDigestHourUTCKeyboardRowSize        = 6
	settingsAutoDigestHourUTCKeyboardCallbackPrefix = "settings_auto_digest_hour_utc_"
)

func (b *Bot) sendMessageWithKeyboard(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) error {
	_, err := b.rateLimiter.Send(ctx, b.newMessage(ctx, chatID, text, keyboard))
	return err
}

// sendReply answers a specific message, which keeps classifications next to
// the abstract they belong to.
func (b *Bot) sendReply(
	ctx context.Context,
	chatID int64,
	replyTo int,
	text string,
) error {
	message := b.newMessage(ctx, chatID, text, nil)
	message.ReplyToMessageID = replyTo

	_, err := b.rateLimiter.Send(ctx, message)
	return err
}

func (b *Bot) newMessage(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) tgbotapi.MessageConfig {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	message := tgbotapi.NewMessage(chatID, normalizedText)

	// See https://core.telegram.org/bots/api#markdownv2-style.
	message.ParseMode = tgbotapi.ModeMarkdownV2

	message.DisableWebPagePreview = true
	if len(keyboard) > 0 {
		message.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	}

	return message
}

func getReturnKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData("⬅️ Return to menu", "menu")},
	}
}

func getMenuKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("🧾 History", "menu_history"),
			tgbotapi.NewInlineKeyboardButtonData("📄 Journal feeds", "menu_list"),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("👈 24h digest", "menu_digest"),
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Settings", "menu_settings"),
		},
	}
}

func getSettingsAutoDigestHourUTCKeyboard() [][]tgbotapi.InlineKeyboardButton {
	var keyboard [][]tgbotapi.InlineKeyboardButton

	for i := 0; i < hoursPerDay; i += settingsAutoDigestHourUTCKeyboardRowSize {
		var row []tgbotapi.InlineKeyboardButton

		for j := i; j < i+settingsAutoDigestHourUTCKeyboardRowSize && j < hoursPerDay; j++ {
			hour := fmt.Sprintf("%02d", j)
			row = append(
				row,
				tgbotapi.NewInlineKeyboardButtonData(hour, settingsAutoDigestHourUTCKeyboardCallbackPrefix+hour),
			)
		}

		keyboard = append(keyboard, row)
	}

	keyboard = append(keyboard, getReturnKeyboard()...)

	return keyboard
}
