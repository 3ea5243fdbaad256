package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"faclassifier/internal/classifier"
	"faclassifier/internal/domain"

	"github.com/mmcdole/gofeed"
)

const (
	classifyMaxParallelism = 4
	parseFeedGracePeriod   = 10 * time.Minute
)

type TitleUpdater interface {
	UpdateFeedTitle(ctx context.Context, feedID int64, feedTitle string) error
}

type Parser struct {
	titles     TitleUpdater
	classifier Classifier
	credential string
	libParser  *gofeed.Parser
	log        *slog.Logger
	now        func() time.Time
}

func NewParser(
	titles TitleUpdater,
	c Classifier,
	credential string,
	libParser *gofeed.Parser,
	log *slog.Logger,
) *Parser {
	if libParser == nil {
		libParser = gofeed.NewParser()
	}

	return &Parser{
		titles:     titles,
		classifier: c,
		credential: credential,
		libParser:  libParser,
		log:        log,
		now:        time.Now,
	}
}

// ParseFeed returns the items published within the last day, each classified
// from its plain-text abstract. A failed title update is returned alongside
// the articles.
func (fp *Parser) ParseFeed(
	ctx context.Context,
	feed *domain.UserFeed,
) ([]domain.Article, error) {
	feedURL := strings.TrimSpace(feed.URL)
	feedTitle := strings.TrimSpace(feed.Title)

	parsed, err := fp.libParser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed (URL = %s): %w", feedURL, err)
	}

	var updateTitleErr error
	if parsedTitle := strings.TrimSpace(parsed.Title); parsedTitle != "" && parsedTitle != feedTitle {
		if fp.titles != nil {
			if err = fp.titles.UpdateFeedTitle(ctx, feed.ID, parsedTitle); err != nil {
				updateTitleErr = fmt.Errorf("update feed title: %w", err)
			}
		}
		feedTitle = parsedTitle
	}
	if feedTitle == "" {
		feedTitle = feedURL
	}

	now := fp.now().Round(time.Hour)
	cutoff := now.Add(-24*time.Hour - parseFeedGracePeriod)

	var articles []domain.Article
	for _, item := range parsed.Items {
		article, ok := fp.parseFeedItem(ctx, now, cutoff, feed.ID, feedTitle, feedURL, item)
		if !ok {
			continue
		}

		articles = append(articles, article)
	}

	fp.classifyArticles(ctx, feed.UserID, articles)

	return articles, updateTitleErr
}

func (fp *Parser) parseFeedItem(
	ctx context.Context,
	now time.Time,
	cutoff time.Time,
	feedID int64,
	feedTitle string,
	feedURL string,
	item *gofeed.Item,
) (domain.Article, bool) {
	published := now
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	if !published.After(cutoff) {
		return domain.Article{}, false
	}

	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if link == "" {
		fp.log.WarnContext(ctx, "Skipping feed item with empty URL",
			"feedURL", feedURL,
			"feedTitle", feedTitle,
			"itemTitle", title)

		return domain.Article{}, false
	}

	if title == "" {
		title = link
	}

	abstract := PlainText(item.Description)
	if abstract == "" {
		abstract = PlainText(item.Content)
	}

	return domain.Article{
		Title:     title,
		URL:       link,
		Abstract:  abstract,
		FeedID:    feedID,
		FeedTitle: feedTitle,
		FeedURL:   feedURL,
	}, true
}

// classifyArticles fills Category or Failed in place. Items without an
// abstract are left unclassified and never reach the provider.
func (fp *Parser) classifyArticles(
	ctx context.Context,
	userID int64,
	articles []domain.Article,
) {
	if fp.classifier == nil {
		return
	}

	var pending []int
	for i := range articles {
		if articles[i].Abstract != "" {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return
	}

	tasks := make(chan int)
	var wg sync.WaitGroup

	for range min(classifyMaxParallelism, len(pending)) {
		wg.Go(func() {
			for i := range tasks {
				outcome := fp.classifier.Classify(ctx, classifier.Request{
					Credential: fp.credential,
					Text:       articles[i].Abstract,
					Source:     classifier.SourceFeed,
					UserID:     userID,
				})

				if outcome.OK() {
					articles[i].Category = outcome.Category
				} else {
					articles[i].Failed = true
				}
			}
		})
	}

	for _, i := range pending {
		tasks <- i
	}

	close(tasks)
	wg.Wait()
}
