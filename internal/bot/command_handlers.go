package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"faclassifier/internal/domain"
	"faclassifier/internal/markdown"
)

const historyLimit = 10

const welcomeText = `🤖 *Welcome\!*

Send me the abstract of a journal article and I will tell you whether it is about ferroptosis, SkyClarys or omaveloxolone, neither, or both\.

You can also:

– Follow RSS / Atom journal feeds by sending their URLs
– Receive a classified 24h digest daily \(default \- 00:00 UTC\) or with /digest
– See your latest classifications with /history
– Get feed list with /list and unfollow feeds from it
– Configure the digest hour with /settings`

const settingsText = `*⚙️ Settings*

Current UTC time is %s\.

Current auto\-digest hour \(UTC\) setting is %s\.

You can choose different setting below:`

func (b *Bot) handleStartCommand(
	ctx context.Context,
	text string,
	chatID int64,
	userID int64,
) error {
	if feedIDStr, ok := strings.CutPrefix(text, "/start unfollow_"); ok {
		return b.handleUnfollowDeepLink(ctx, strings.TrimSpace(feedIDStr), chatID, userID)
	}

	return b.sendMessageWithKeyboard(ctx, chatID, welcomeText, b.menuKeyboard)
}

func (b *Bot) sendFailed(ctx context.Context, chatID int64, err error) error {
	errs := []error{err}

	if sendErr := b.sendMessageWithKeyboard(ctx, chatID, "❌ Failed\\.", b.returnKeyboard); sendErr != nil {
		errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
	}

	return errors.Join(errs...)
}

func (b *Bot) handleUnfollowDeepLink(
	ctx context.Context,
	feedIDStr string,
	chatID int64,
	userID int64,
) error {
	feedID, err := strconv.ParseInt(feedIDStr, 10, 64)
	if err != nil {
		return b.sendFailed(ctx, chatID, fmt.Errorf("parse feedID: %w", err))
	}

	if err = b.store.RemoveFeed(ctx, userID, feedID); err != nil {
		return b.sendFailed(ctx, chatID, fmt.Errorf("remove feed: %w", err))
	}

	if err = b.sendMessageWithKeyboard(ctx, chatID, "✅ Feed is removed\\.", b.returnKeyboard); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	return b.handleListCommand(ctx, chatID, userID)
}

func (b *Bot) handleListCommand(ctx context.Context, chatID int64, userID int64) error {
	feeds, err := b.store.GetUserFeeds(ctx, userID)

	if len(feeds) == 0 {
		var errs []error
		if err != nil {
			errs = append(errs, fmt.Errorf("get user feeds: %w", err))
		}

		sendErr := b.sendMessageWithKeyboard(ctx, chatID, "✖️ Feed list is empty\\. Send me a journal feed URL to follow it\\.", b.returnKeyboard)
		if sendErr != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	var errs []error
	if err != nil {
		errs = append(errs, fmt.Errorf("get user feeds: %w", err))
	}

	var message strings.Builder
	fmt.Fprintf(&message, "🔍 *Found %d feeds:*\n\n", len(feeds))

	for i, f := range feeds {
		feedURL := strings.TrimSpace(f.URL)
		if feedURL == "" {
			continue
		}

		title := strings.TrimSpace(f.Title)
		if title == "" {
			title = feedURL
		}

		fmt.Fprintf(&message, "%d\\. [%s](%s)", i+1, markdown.EscapeV2(title), markdown.EscapeLinkURL(feedURL))
		if b.username != "" {
			fmt.Fprintf(&message, " \\[[unfollow](https://t.me/%s?start=unfollow_%d)\\]", b.username, f.ID)
		}
		message.WriteString("\n")
	}

	if err = b.sendMessageWithKeyboard(ctx, chatID, message.String(), b.returnKeyboard); err != nil {
		errs = append(errs, fmt.Errorf("send message with keyboard: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) handleMenuCommand(ctx context.Context, chatID int64) error {
	return b.sendMessageWithKeyboard(ctx, chatID, "❔ *Choose an option:*", b.menuKeyboard)
}

func (b *Bot) handleHistoryCommand(ctx context.Context, chatID int64, userID int64) error {
	entries, err := b.store.GetRecentClassifications(ctx, userID, historyLimit)
	if err != nil {
		return b.sendFailed(ctx, chatID, fmt.Errorf("get recent classifications: %w", err))
	}

	if len(entries) == 0 {
		return b.sendMessageWithKeyboard(ctx, chatID, "✖️ You have not classified anything yet\\.", b.returnKeyboard)
	}

	return b.sendMessageWithKeyboard(ctx, chatID, formatHistory(entries), b.returnKeyboard)
}

func formatHistory(entries []domain.Classification) string {
	var message strings.Builder
	fmt.Fprintf(&message, "🧾 *Last %d classifications:*\n\n", len(entries))

	for i, e := range entries {
		result := e.Category
		if result == "" {
			result = e.ErrorKind
		}

		fmt.Fprintf(&message, "%d\\. %s · %s · %s\n",
			i+1,
			markdown.EscapeV2(e.CreatedAt.UTC().Format("2006-01-02 15:04")),
			markdown.EscapeV2(e.Source),
			markdown.EscapeV2(result))
	}

	return message.String()
}

func (b *Bot) handleDigestCommand(ctx context.Context, chatID int64, userID int64) error {
	userArticles, err := b.feeds.FetchUserFeeds(ctx, userID)

	if len(userArticles) == 0 {
		var errs []error
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch user feeds: %w", err))
		}

		sendErr := b.sendMessageWithKeyboard(ctx, chatID, "✖️ No new articles in your journal feeds\\.", b.returnKeyboard)
		if sendErr != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	var errs []error
	if err != nil {
		errs = append(errs, fmt.Errorf("fetch user feeds: %w", err))
	}

	for _, articles := range userArticles {
		if err = b.SendArticles(ctx, chatID, articles); err != nil {
			errs = append(errs, fmt.Errorf("send articles: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (b *Bot) handleSettingsCommand(ctx context.Context, chatID int64, userID int64) error {
	settings, err := b.store.GetUserSettingsWithDefault(ctx, userID)
	if err != nil {
		return b.sendFailed(ctx, chatID, fmt.Errorf("get user settings with default: %w", err))
	}

	if err = b.sendMessageWithKeyboard(
		ctx,
		chatID,
		fmt.Sprintf(settingsText,
			time.Now().UTC().Format("15:04"),
			fmt.Sprintf("%02d:00", settings.AutoDigestHourUTC)),
		b.settingsAutoDigestHourUTCKeyboard,
	); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	return nil
}

