package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"faclassifier/internal/classifier"
	"faclassifier/internal/domain"
	"faclassifier/internal/feed"
	"faclassifier/internal/ratelimiter"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	maxBackoffSeconds         = 60
	initialBackoffSeconds     = 3
	backoffGrowthFactor       = 2
	resetOffsetBackoffSeconds = 30
	updateProcessingTimeout   = 90 * time.Second

	BotUpdateTimeout = 60
)

type Store interface {
	AddFeed(ctx context.Context, userID int64, feedURL string, feedTitle string) error
	RemoveFeed(ctx context.Context, userID int64, feedID int64) error
	GetUserFeeds(ctx context.Context, userID int64) ([]domain.UserFeed, error)
	GetUserSettingsWithDefault(ctx context.Context, userID int64) (*domain.UserSettings, error)
	UpsertUserSettings(ctx context.Context, userSettings *domain.UserSettings) error
	GetRecentClassifications(ctx context.Context, userID int64, limit int) ([]domain.Classification, error)
}

type FeedSource interface {
	FindValidFeeds(ctx context.Context, text string) ([]domain.Feed, error)
	FetchUserFeeds(ctx context.Context, userID int64) (map[int64][]domain.Article, error)
}

type Classifier interface {
	Classify(ctx context.Context, req classifier.Request) classifier.Outcome
}

type Bot struct {
	api                               *tgbotapi.BotAPI
	rateLimiter                       *ratelimiter.RateLimiter
	username                          string
	store                             Store
	feeds                             FeedSource
	classifier                        Classifier
	credential                        string
	allowedUsers                      []int64
	returnKeyboard                    [][]tgbotapi.InlineKeyboardButton
	settingsAutoDigestHourUTCKeyboard [][]tgbotapi.InlineKeyboardButton
	menuKeyboard                      [][]tgbotapi.InlineKeyboardButton
	log                               *slog.Logger
}

// New connects to Telegram. Abstracts sent by users are classified with
// credential, the server-side key.
func New(
	token string,
	store Store,
	feeds FeedSource,
	c Classifier,
	credential string,
	allowedUsers []int64,
	log *slog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}

	b := newBot(api, store, feeds, c, credential, allowedUsers, log)
	b.api = api
	b.username = api.Self.UserName

	return b, nil
}

func newBot(
	sender ratelimiter.Sender,
	store Store,
	feeds FeedSource,
	c Classifier,
	credential string,
	allowedUsers []int64,
	log *slog.Logger,
) *Bot {
	return &Bot{
		rateLimiter:                       ratelimiter.New(sender, ratelimiter.DefaultRates, log),
		store:                             store,
		feeds:                             feeds,
		classifier:                        c,
		credential:                        strings.TrimSpace(credential),
		allowedUsers:                      allowedUsers,
		returnKeyboard:                    getReturnKeyboard(),
		settingsAutoDigestHourUTCKeyboard: getSettingsAutoDigestHourUTCKeyboard(),
		menuKeyboard:                      getMenuKeyboard(),
		log:                               log,
	}
}

// Start long-polls for updates until ctx is done, reconnecting with backoff
// when the update channel closes.
func (b *Bot) Start(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = BotUpdateTimeout

	backoffSeconds := initialBackoffSeconds

	for {
		if ctx.Err() != nil {
			b.log.InfoContext(ctx, "Bot context is done",
				"error", ctx.Err())
			return
		}

		updates := b.api.GetUpdatesChan(updateConfig)
		updatesClosed := false

		for !updatesClosed {
			select {
			case <-ctx.Done():
				b.api.StopReceivingUpdates()
				b.log.InfoContext(ctx, "Bot context is done",
					"error", ctx.Err())
				return

			case update, ok := <-updates:
				if !ok {
					updatesClosed = true
					continue
				}
				updateConfig.Offset = update.UpdateID + 1

				b.handleUpdate(ctx, &update)
			}
		}

		b.log.WarnContext(ctx, "Update channel is closed, reconnecting...",
			"offset", updateConfig.Offset,
			"backoffSeconds", backoffSeconds)

		select {
		case <-time.After(time.Duration(backoffSeconds) * time.Second):
		case <-ctx.Done():
			return
		}

		backoffSeconds = updateBackoffSeconds(backoffSeconds)

		if backoffSeconds >= resetOffsetBackoffSeconds {
			updateConfig.Offset = 0
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	switch {
	case update.Message != nil && update.Message.From != nil && update.Message.Chat != nil:
		message := update.Message
		userID := message.From.ID

		if !b.userAllowed(userID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", userID,
				"chatID", message.Chat.ID,
				"username", message.From.UserName,
				"chatType", message.Chat.Type)

			return
		}

		if err := b.handleMessage(updateCtx, message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", message.Chat.ID,
				"userID", userID,
				"chatType", message.Chat.Type,
				"messageID", message.MessageID)
		}

	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		callback := update.CallbackQuery
		chatID := callbackChatID(callback)

		if !b.userAllowed(callback.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", callback.From.ID,
				"chatID", chatID,
				"username", callback.From.UserName,
				"data", callback.Data)

			return
		}

		if chatID == 0 {
			return
		}

		if err := b.handleCallbackQuery(updateCtx, callback); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"chatID", chatID,
				"userID", callback.From.ID,
				"data", callback.Data,
				"messageID", callback.Message.MessageID)
		}
	}
}

// userAllowed admits everyone when no allow list is configured.
func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

func callbackChatID(cb *tgbotapi.CallbackQuery) int64 {
	if cb != nil && cb.Message != nil && cb.Message.Chat != nil {
		return cb.Message.Chat.ID
	}

	return 0
}

// SendArticles delivers a classified digest to chatID.
func (b *Bot) SendArticles(ctx context.Context, chatID int64, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}

	var errs []error

	for _, message := range feed.FormatArticlesAsMessages(ctx, articles, b.log) {
		if err := b.sendMessageWithKeyboard(ctx, chatID, message, b.returnKeyboard); err != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (b *Bot) Stop() {
	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

func updateBackoffSeconds(backoffSeconds int) int {
	if backoffSeconds < maxBackoffSeconds {
		backoffSeconds = min(backoffSeconds*backoffGrowthFactor, maxBackoffSeconds)
	}
	return backoffSeconds
}
