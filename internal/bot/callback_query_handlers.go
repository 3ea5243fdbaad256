package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"faclassifier/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	chatID, userID := callback.Message.Chat.ID, callback.From.ID

	return b.withSpinner(ctx, chatID, func() error {
		data := strings.TrimSpace(callback.Data)

		switch data {
		case "menu":
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleMenuCommand(ctx, chatID)
			})
		case "menu_history":
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleHistoryCommand(ctx, chatID, userID)
			})
		case "menu_list":
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleListCommand(ctx, chatID, userID)
			})
		case "menu_digest":
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleDigestCommand(ctx, chatID, userID)
			})
		case "menu_settings":
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleSettingsCommand(ctx, chatID, userID)
			})
		}

		if hourUTCStr, ok := strings.CutPrefix(data, settingsAutoDigestHourUTCKeyboardCallbackPrefix); ok {
			return b.handleSettingsAutoDigestHourUTCQuery(ctx, hourUTCStr, callback)
		}

		return b.errorCallbackAnswer(callback, fmt.Errorf("unknown callback data %q", data))
	})
}

func (b *Bot) handleSettingsAutoDigestHourUTCQuery(
	ctx context.Context,
	hourUTCStr string,
	callback *tgbotapi.CallbackQuery,
) error {
	hourUTC, err := strconv.ParseInt(strings.TrimSpace(hourUTCStr), 10, 64)
	if err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("parse hourUTC: %w", err))
	}

	if err = b.store.UpsertUserSettings(ctx, &domain.UserSettings{
		UserID:            callback.From.ID,
		AutoDigestHourUTC: hourUTC,
	}); err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("upsert user settings: %w", err))
	}

	if _, err = b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, "✅ Settings are updated.")); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	return b.handleSettingsCommand(ctx, callback.Message.Chat.ID, callback.From.ID)
}

func (b *Bot) withEmptyCallbackAnswer(
	callback *tgbotapi.CallbackQuery,
	fn func() error,
) error {
	var errs []error

	if _, err := b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		errs = append(errs, fmt.Errorf("send request: %w", err))
	}

	if err := fn(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (b *Bot) errorCallbackAnswer(
	callback *tgbotapi.CallbackQuery,
	err error,
) error {
	if _, sendErr := b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, "❌ Failed.")); sendErr != nil {
		return errors.Join(err, fmt.Errorf("send request: %w", sendErr))
	}
	return err
}
