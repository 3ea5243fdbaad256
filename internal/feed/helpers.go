package feed

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"faclassifier/internal/classifier"
	"faclassifier/internal/domain"
	"faclassifier/internal/markdown"

	"github.com/PuerkitoBio/goquery"
	"mvdan.cc/xurls/v2"
)

const (
	telegramMessageMaxLength = 4096
	articleTitleMaxRunes     = 200

	digestHeader         = "📰 *New articles*\n\n"
	digestContinueHeader = "📰 *New articles \\(continue\\)*\n\n"
)

//nolint:gochecknoglobals // Compiled once, read-only.
var httpsURLRe = xurls.Strict()

type feedGroupKey struct {
	FeedID    int64
	FeedTitle string
	FeedURL   string
}

// HTTPSURLs returns the https URLs found in text, in order.
func HTTPSURLs(text string) []string {
	var urls []string
	for _, u := range httpsURLRe.FindAllString(text, -1) {
		if strings.HasPrefix(strings.ToLower(u), "https://") {
			urls = append(urls, u)
		}
	}
	return urls
}

// OnlyURLs reports whether text is made up of https URLs and whitespace. Such
// messages are feed subscriptions, not abstracts.
func OnlyURLs(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	for _, field := range strings.Fields(text) {
		urls := HTTPSURLs(field)
		if len(urls) != 1 || urls[0] != field {
			return false
		}
	}

	return true
}

// PlainText strips markup from a feed item description.
func PlainText(html string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}

	doc.Find("script, style").Remove()

	return strings.Join(strings.Fields(doc.Text()), " ")
}

// FormatArticlesAsMessages renders a MarkdownV2 digest grouped by feed, split
// to fit Telegram's message size limit.
func FormatArticlesAsMessages(
	ctx context.Context,
	articles []domain.Article,
	log *slog.Logger,
) []string {
	var messages []string
	var current strings.Builder

	current.WriteString(digestHeader)
	headerLength := current.Len()

	groups := make(map[feedGroupKey][]domain.Article)
	for _, article := range articles {
		normalized, ok := normalizeArticle(ctx, article, log)
		if !ok {
			continue
		}

		key := feedGroupKey{
			FeedID:    normalized.FeedID,
			FeedTitle: normalized.FeedTitle,
			FeedURL:   normalized.FeedURL,
		}
		groups[key] = append(groups[key], normalized)
	}

	keys := slices.SortedFunc(
		maps.Keys(groups),
		func(a, b feedGroupKey) int { return cmp.Compare(a.FeedID, b.FeedID) },
	)

	flush := func(feedHeader string) {
		messages = append(messages, current.String())
		current.Reset()
		current.WriteString(digestContinueHeader)
		current.WriteString(feedHeader)
	}

	for _, key := range keys {
		feedArticles := groups[key]

		feedHeader := fmt.Sprintf("📌 *[%s](%s)*\n\n",
			markdown.EscapeV2(key.FeedTitle),
			markdown.EscapeLinkURL(key.FeedURL))

		if current.Len()+len(feedHeader)+len(bulletPoint(feedArticles[0])) > telegramMessageMaxLength {
			flush("")
		}

		current.WriteString(feedHeader)

		for _, article := range feedArticles {
			bullet := bulletPoint(article)
			if current.Len()+len(bullet) > telegramMessageMaxLength {
				flush(feedHeader)
			}

			current.WriteString(bullet)
		}
	}

	if current.Len() > headerLength {
		messages = append(messages, current.String())
	}

	return messages
}

func bulletPoint(article domain.Article) string {
	return fmt.Sprintf("– [%s](%s)\n   %s\n\n",
		markdown.EscapeV2(markdown.Truncate(article.Title, articleTitleMaxRunes)),
		markdown.EscapeLinkURL(article.URL),
		categoryLabel(article))
}

func categoryLabel(article domain.Article) string {
	switch {
	case article.Failed:
		return "_" + markdown.EscapeV2("not classified") + "_"
	case article.Category == "":
		return "_" + markdown.EscapeV2("no abstract") + "_"
	default:
		return "*" + markdown.EscapeV2(classifier.CategoryPrefix) + "* " + markdown.EscapeV2(article.Category)
	}
}

func normalizeArticle(
	ctx context.Context,
	article domain.Article,
	log *slog.Logger,
) (domain.Article, bool) {
	normalized := article

	normalized.Title = strings.TrimSpace(article.Title)
	normalized.URL = strings.TrimSpace(article.URL)
	normalized.FeedTitle = strings.TrimSpace(article.FeedTitle)
	normalized.FeedURL = strings.TrimSpace(article.FeedURL)

	switch {
	case normalized.FeedURL == "" && normalized.URL != "":
		normalized.FeedURL = normalized.URL
	case normalized.URL == "" && normalized.FeedURL != "":
		normalized.URL = normalized.FeedURL
	case normalized.URL == "" && normalized.FeedURL == "":
		log.WarnContext(ctx, "Skipping article with empty URLs",
			"feedID", article.FeedID,
			"title", normalized.Title)

		return domain.Article{}, false
	}

	if normalized.Title == "" {
		normalized.Title = normalized.URL
	}

	if normalized.FeedTitle == "" {
		log.WarnContext(ctx, "Empty feed title",
			"feedID", article.FeedID,
			"feedURL", normalized.FeedURL)

		normalized.FeedTitle = normalized.FeedURL
	}

	return normalized, true
}
