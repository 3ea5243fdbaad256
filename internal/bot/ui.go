package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const sendSpinnerInterval = 4 * time.Second

func (b *Bot) sendTyping(ctx context.Context, chatID int64) {
	if _, err := b.rateLimiter.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.log.ErrorContext(ctx, "Failed to send chat action",
			"error", err,
			"chatID", chatID)
	}
}

// withSpinner keeps the "typing" indicator alive while fn runs. Provider
// calls and feed fetches can take tens of seconds.
func (b *Bot) withSpinner(ctx context.Context, chatID int64, fn func() error) error {
	spinCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		b.sendTyping(spinCtx, chatID)

		t := time.NewTicker(sendSpinnerInterval)
		defer t.Stop()

		for {
			select {
			case <-spinCtx.Done():
				return
			case <-t.C:
				b.sendTyping(spinCtx, chatID)
			}
		}
	}()

	return fn()
}
