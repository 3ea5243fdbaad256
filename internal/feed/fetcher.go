package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"sync"
	"time"

	"faclassifier/internal/classifier"
	"faclassifier/internal/domain"

	"github.com/mmcdole/gofeed"
)

const (
	feedClientTimeout                    = 20 * time.Second
	fetchFeedsMaxConcurrencyGrowthFactor = 10
)

// Store is the part of the database the feed package reads and writes.
type Store interface {
	GetHourFeeds(ctx context.Context, hourUTC int64) ([]domain.UserFeed, error)
	GetUserFeeds(ctx context.Context, userID int64) ([]domain.UserFeed, error)
	UpdateFeedTitle(ctx context.Context, feedID int64, feedTitle string) error
}

// Classifier is the part of classifier.Service used for feed items.
type Classifier interface {
	Classify(ctx context.Context, req classifier.Request) classifier.Outcome
}

type Fetcher struct {
	store     Store
	parser    *Parser
	libParser *gofeed.Parser
	log       *slog.Logger
}

// NewFetcher builds a Fetcher. Items are classified with credential, the
// server-side key; an empty credential leaves every item unclassified.
func NewFetcher(
	store Store,
	c Classifier,
	credential string,
	log *slog.Logger,
) *Fetcher {
	libParser := gofeed.NewParser()
	libParser.Client = &http.Client{Timeout: feedClientTimeout}

	return &Fetcher{
		store:     store,
		parser:    NewParser(store, c, credential, libParser, log),
		libParser: libParser,
		log:       log,
	}
}

// FindValidFeeds returns every https URL in text that parses as an RSS or
// Atom feed. Invalid URLs are reported in the joined error.
func (f *Fetcher) FindValidFeeds(
	ctx context.Context,
	text string,
) ([]domain.Feed, error) {
	urls := HTTPSURLs(text)

	feeds := make([]domain.Feed, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	var errs []error

	for _, u := range urls {
		feed, err := f.validateFeed(ctx, u)
		if err != nil {
			errs = append(errs, fmt.Errorf("validate feed: %w", err))
			continue
		}

		if _, ok := seen[feed.URL]; ok {
			continue
		}

		feeds = append(feeds, feed)
		seen[feed.URL] = struct{}{}
	}

	return feeds, errors.Join(errs...)
}

// FetchHourFeeds collects new articles for users whose digest hour is hourUTC.
func (f *Fetcher) FetchHourFeeds(
	ctx context.Context,
	hourUTC int64,
) (map[int64][]domain.Article, error) {
	feeds, err := f.store.GetHourFeeds(ctx, hourUTC)
	if err != nil {
		return nil, fmt.Errorf("get hour feeds: %w", err)
	}

	return f.fetchFeeds(ctx, feeds)
}

func (f *Fetcher) FetchUserFeeds(
	ctx context.Context,
	userID int64,
) (map[int64][]domain.Article, error) {
	feeds, err := f.store.GetUserFeeds(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user feeds: %w", err)
	}

	return f.fetchFeeds(ctx, feeds)
}

func (f *Fetcher) validateFeed(
	ctx context.Context,
	feedURL string,
) (domain.Feed, error) {
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return domain.Feed{}, errors.New("feed URL is empty")
	}

	if _, err := url.Parse(feedURL); err != nil {
		return domain.Feed{}, fmt.Errorf("parse URL: %w", err)
	}

	parsed, err := f.libParser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return domain.Feed{}, fmt.Errorf("parse feed (URL = %s): %w", feedURL, err)
	}

	title := strings.TrimSpace(parsed.Title)
	if title == "" {
		f.log.WarnContext(ctx, "Empty feed title",
			"feedURL", feedURL,
			"fallbackTitle", feedURL)

		title = feedURL
	}

	return domain.Feed{URL: feedURL, Title: title}, nil
}

func (f *Fetcher) fetchFeeds(
	ctx context.Context,
	feeds []domain.UserFeed,
) (map[int64][]domain.Article, error) {
	userArticles := make(map[int64][]domain.Article)
	if len(feeds) == 0 {
		return userArticles, nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	concurrency := min(runtime.NumCPU()*fetchFeedsMaxConcurrencyGrowthFactor, len(feeds))
	semCh := make(chan struct{}, concurrency)

	for _, feed := range feeds {
		semCh <- struct{}{}

		wg.Go(func() {
			defer func() { <-semCh }()

			articles, err := f.parser.ParseFeed(ctx, &feed)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				errs = append(errs, fmt.Errorf("parse feed: %w", err))
			}
			if len(articles) != 0 {
				userArticles[feed.UserID] = append(userArticles[feed.UserID], articles...)
			}
		})
	}

	wg.Wait()

	return userArticles, errors.Join(errs...)
}
