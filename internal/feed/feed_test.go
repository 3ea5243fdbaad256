package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"faclassifier/internal/classifier"
	"faclassifier/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubClassifier struct {
	mu       sync.Mutex
	requests []classifier.Request
}

func (s *stubClassifier) Classify(_ context.Context, req classifier.Request) classifier.Outcome {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if strings.Contains(strings.ToLower(req.Text), "ferroptosis") {
		return classifier.Success("Ferroptosis")
	}
	return classifier.Failure(classifier.KindProviderCall, "Error: Could not contact the AI model.")
}

type stubStore struct {
	mu     sync.Mutex
	feeds  []domain.UserFeed
	titles map[int64]string
}

func (s *stubStore) GetHourFeeds(context.Context, int64) ([]domain.UserFeed, error) {
	return s.feeds, nil
}

func (s *stubStore) GetUserFeeds(_ context.Context, userID int64) ([]domain.UserFeed, error) {
	var out []domain.UserFeed
	for _, f := range s.feeds {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *stubStore) UpdateFeedTitle(_ context.Context, feedID int64, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.titles == nil {
		s.titles = make(map[int64]string)
	}
	s.titles[feedID] = title
	return nil
}

func journalRSS(now time.Time) string {
	recent := now.Add(-time.Hour).Format(time.RFC1123Z)
	old := now.Add(-72 * time.Hour).Format(time.RFC1123Z)

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Journal of Ataxia Research</title>
  <link>https://journal.example.org</link>
  <item>
    <title>Iron and lipid peroxidation in FA</title>
    <link>https://journal.example.org/a1</link>
    <description><![CDATA[<p>We show that <b>ferroptosis</b> drives neuronal loss.</p>]]></description>
    <pubDate>%[1]s</pubDate>
  </item>
  <item>
    <title>Gait analysis cohort</title>
    <link>https://journal.example.org/a2</link>
    <description>A cohort study of gait.</description>
    <pubDate>%[1]s</pubDate>
  </item>
  <item>
    <title>Editorial</title>
    <link>https://journal.example.org/a3</link>
    <pubDate>%[1]s</pubDate>
  </item>
  <item>
    <title>Old ferroptosis paper</title>
    <link>https://journal.example.org/old</link>
    <description>ferroptosis</description>
    <pubDate>%[2]s</pubDate>
  </item>
</channel>
</rss>`, recent, old)
}

func newFeedServer(t *testing.T, tls bool) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, journalRSS(time.Now()))
	})
	mux.HandleFunc("/page.html", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html><body>not a feed</body></html>")
	})

	var srv *httptest.Server
	if tls {
		srv = httptest.NewTLSServer(mux)
	} else {
		srv = httptest.NewServer(mux)
	}
	t.Cleanup(srv.Close)

	return srv
}

func TestPlainText(t *testing.T) {
	cases := map[string]string{
		"":                                      "",
		"  plain   abstract\n text ":            "plain abstract text",
		"<p>Iron &amp; <i>lipids</i></p>":       "Iron & lipids",
		"<div>a<script>alert(1)</script> b</div>": "a b",
		"p < 0.05 was significant":              "p < 0.05 was significant",
	}

	for in, want := range cases {
		assert.Equal(t, want, PlainText(in), "input %q", in)
	}
}

func TestOnlyURLs(t *testing.T) {
	assert.True(t, OnlyURLs("https://pubmed.ncbi.nlm.nih.gov/rss/search/1.xml"))
	assert.True(t, OnlyURLs(" https://a.example.org/feed \n https://b.example.org/rss "))
	assert.False(t, OnlyURLs(""))
	assert.False(t, OnlyURLs("see https://a.example.org/feed"))
	assert.False(t, OnlyURLs("http://insecure.example.org/feed"))
	assert.False(t, OnlyURLs("Ferroptosis is an iron-dependent form of cell death."))
}

func TestHTTPSURLs(t *testing.T) {
	got := HTTPSURLs("feeds: https://a.example.org/rss and http://b.example.org/rss, https://c.example.org/atom")
	assert.Equal(t, []string{"https://a.example.org/rss", "https://c.example.org/atom"}, got)
}

func TestParseFeed(t *testing.T) {
	srv := newFeedServer(t, false)
	store := &stubStore{}
	cls := &stubClassifier{}

	parser := NewParser(store, cls, "server-key", nil, discardLogger())

	articles, err := parser.ParseFeed(context.Background(), &domain.UserFeed{
		ID:     7,
		UserID: 42,
		URL:    srv.URL + "/feed.xml",
		Title:  "stale title",
	})
	require.NoError(t, err)
	require.Len(t, articles, 3)

	assert.Equal(t, "Journal of Ataxia Research", store.titles[7])

	byURL := make(map[string]domain.Article)
	for _, a := range articles {
		assert.Equal(t, "Journal of Ataxia Research", a.FeedTitle)
		assert.Equal(t, int64(7), a.FeedID)
		byURL[a.URL] = a
	}

	ferro := byURL["https://journal.example.org/a1"]
	assert.Equal(t, "We show that ferroptosis drives neuronal loss.", ferro.Abstract)
	assert.Equal(t, "Ferroptosis", ferro.Category)
	assert.False(t, ferro.Failed)

	gait := byURL["https://journal.example.org/a2"]
	assert.True(t, gait.Failed)
	assert.Empty(t, gait.Category)

	editorial := byURL["https://journal.example.org/a3"]
	assert.Empty(t, editorial.Abstract)
	assert.False(t, editorial.Failed)

	require.Len(t, cls.requests, 2, "items without an abstract are not classified")
	for _, req := range cls.requests {
		assert.Equal(t, "server-key", req.Credential)
		assert.Equal(t, classifier.SourceFeed, req.Source)
		assert.Equal(t, int64(42), req.UserID)
	}
}

func TestParseFeedInvalid(t *testing.T) {
	srv := newFeedServer(t, false)
	parser := NewParser(nil, &stubClassifier{}, "key", nil, discardLogger())

	_, err := parser.ParseFeed(context.Background(), &domain.UserFeed{URL: srv.URL + "/page.html"})
	assert.Error(t, err)
}

func TestFetchUserFeeds(t *testing.T) {
	srv := newFeedServer(t, false)
	store := &stubStore{feeds: []domain.UserFeed{
		{ID: 1, UserID: 10, URL: srv.URL + "/feed.xml"},
		{ID: 2, UserID: 20, URL: srv.URL + "/feed.xml"},
	}}

	f := NewFetcher(store, &stubClassifier{}, "key", discardLogger())

	got, err := f.FetchUserFeeds(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Len(t, got[10], 3)

	all, err := f.FetchHourFeeds(context.Background(), 9)
	require.NoError(t, err)
	assert.Len(t, all[10], 3)
	assert.Len(t, all[20], 3)
}

func TestFetchHourFeedsReportsBrokenFeeds(t *testing.T) {
	srv := newFeedServer(t, false)
	store := &stubStore{feeds: []domain.UserFeed{
		{ID: 1, UserID: 10, URL: srv.URL + "/feed.xml"},
		{ID: 2, UserID: 10, URL: srv.URL + "/page.html"},
	}}

	f := NewFetcher(store, &stubClassifier{}, "key", discardLogger())

	got, err := f.FetchHourFeeds(context.Background(), 0)
	assert.Error(t, err)
	assert.Len(t, got[10], 3, "healthy feeds are still delivered")
}

func TestFindValidFeeds(t *testing.T) {
	srv := newFeedServer(t, true)

	f := NewFetcher(&stubStore{}, nil, "", discardLogger())
	f.libParser.Client = srv.Client()

	text := srv.URL + "/feed.xml " + srv.URL + "/feed.xml " + srv.URL + "/page.html"
	feeds, err := f.FindValidFeeds(context.Background(), text)

	assert.Error(t, err)
	require.Len(t, feeds, 1)
	assert.Equal(t, srv.URL+"/feed.xml", feeds[0].URL)
	assert.Equal(t, "Journal of Ataxia Research", feeds[0].Title)
}

func TestFormatArticlesAsMessages(t *testing.T) {
	articles := []domain.Article{
		{Title: "B (2025)", URL: "https://j.example.org/b", FeedID: 2, FeedTitle: "Journal B", FeedURL: "https://j.example.org/rss", Category: "neither"},
		{Title: "A", URL: "https://j.example.org/a", FeedID: 1, FeedTitle: "Journal A", FeedURL: "https://j.example.org/a.rss", Category: "Ferroptosis"},
		{Title: "C", URL: "https://j.example.org/c", FeedID: 1, FeedTitle: "Journal A", FeedURL: "https://j.example.org/a.rss", Failed: true},
		{Title: "no urls", FeedID: 3},
	}

	messages := FormatArticlesAsMessages(context.Background(), articles, discardLogger())
	require.Len(t, messages, 1)

	msg := messages[0]
	assert.True(t, strings.HasPrefix(msg, digestHeader))
	assert.Less(t, strings.Index(msg, "Journal A"), strings.Index(msg, "Journal B"))
	assert.Contains(t, msg, `[B \(2025\)](https://j.example.org/b)`)
	assert.Contains(t, msg, "*Category:* Ferroptosis")
	assert.Contains(t, msg, "_not classified_")
	assert.NotContains(t, msg, "no urls")
}

func TestFormatArticlesAsMessagesSplits(t *testing.T) {
	var articles []domain.Article
	for i := range 200 {
		articles = append(articles, domain.Article{
			Title:     strings.Repeat("long title ", 10),
			URL:       fmt.Sprintf("https://j.example.org/%d", i),
			FeedID:    1,
			FeedTitle: "Journal",
			FeedURL:   "https://j.example.org/rss",
			Category:  "neither",
		})
	}

	messages := FormatArticlesAsMessages(context.Background(), articles, discardLogger())
	require.Greater(t, len(messages), 1)

	for i, msg := range messages {
		assert.LessOrEqual(t, len(msg), telegramMessageMaxLength)
		if i > 0 {
			assert.True(t, strings.HasPrefix(msg, digestContinueHeader))
		}
	}
}

func TestFormatArticlesAsMessagesEmpty(t *testing.T) {
	assert.Empty(t, FormatArticlesAsMessages(context.Background(), nil, discardLogger()))
}
