package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"faclassifier/internal/classifier"
	"faclassifier/internal/feed"
	"faclassifier/internal/markdown"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	return b.withSpinner(ctx, message.Chat.ID, func() error {
		text := strings.TrimSpace(message.Text)
		if text == "" {
			text = strings.TrimSpace(message.Caption)
		}

		chatID, userID := message.Chat.ID, message.From.ID

		switch {
		case strings.HasPrefix(text, "/start"):
			return b.handleStartCommand(ctx, text, chatID, userID)
		case strings.HasPrefix(text, "/menu"):
			return b.handleMenuCommand(ctx, chatID)
		case strings.HasPrefix(text, "/history"):
			return b.handleHistoryCommand(ctx, chatID, userID)
		case strings.HasPrefix(text, "/list"):
			return b.handleListCommand(ctx, chatID, userID)
		case strings.HasPrefix(text, "/digest"):
			return b.handleDigestCommand(ctx, chatID, userID)
		case strings.HasPrefix(text, "/settings"):
			return b.handleSettingsCommand(ctx, chatID, userID)
		case feed.OnlyURLs(text):
			return b.handleFeedURLs(ctx, text, chatID, userID)
		default:
			return b.handleAbstract(ctx, text, chatID, userID, message.MessageID)
		}
	})
}

// handleAbstract classifies text and replies with the outcome's display
// string. Rejected and failed outcomes are replies too, not handler errors.
func (b *Bot) handleAbstract(
	ctx context.Context,
	text string,
	chatID int64,
	userID int64,
	messageID int,
) error {
	outcome := b.classifier.Classify(ctx, classifier.Request{
		Credential: b.credential,
		Text:       text,
		Source:     classifier.SourceBot,
		UserID:     userID,
	})

	if err := b.sendReply(ctx, chatID, messageID, formatOutcome(outcome)); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	return nil
}

// Bot users cannot supply a key of their own, so the web wording does not apply.
const missingServerKeyText = "⚠️ The classifier is not configured on the server\\. " +
	"Please contact the bot administrator\\."

func formatOutcome(outcome classifier.Outcome) string {
	switch {
	case outcome.OK():
		return "🧪 *" + markdown.EscapeV2(classifier.CategoryPrefix) + "* " + markdown.EscapeV2(outcome.Category)
	case outcome.Kind == classifier.KindMissingCredential:
		return missingServerKeyText
	case outcome.Rejected():
		return "⚠️ " + markdown.EscapeV2(outcome.String())
	default:
		return "❌ " + markdown.EscapeV2(outcome.String())
	}
}

func (b *Bot) handleFeedURLs(
	ctx context.Context,
	text string,
	chatID int64,
	userID int64,
) error {
	feeds, err := b.feeds.FindValidFeeds(ctx, text)

	if len(feeds) == 0 {
		var errs []error
		if err != nil {
			errs = append(errs, fmt.Errorf("find valid feeds: %w", err))
		}

		sendErr := b.sendMessageWithKeyboard(
			ctx,
			chatID,
			"✖️ Valid journal feed URLs are not found\\.",
			b.returnKeyboard,
		)
		if sendErr != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	var errs []error
	if err != nil {
		errs = append(errs, fmt.Errorf("find valid feeds: %w", err))
	}

	added := 0
	for _, f := range feeds {
		if err = b.store.AddFeed(ctx, userID, f.URL, f.Title); err != nil {
			errs = append(errs, fmt.Errorf("add feed: %w", err))
		} else {
			added++
		}
	}

	reply := "✅ Success\\."
	switch {
	case added == 0:
		reply = "❌ Failed\\."
	case len(errs) > 0:
		reply = fmt.Sprintf("⚠️ Partial success \\(%d added\\)\\.", added)
	}

	if err = b.sendMessageWithKeyboard(ctx, chatID, reply, b.returnKeyboard); err != nil {
		errs = append(errs, fmt.Errorf("send message with keyboard: %w", err))
	}

	return errors.Join(errs...)
}
