package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"faclassifier/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	hour     int64
	articles map[int64][]domain.Article
	err      error
}

func (f *fakeFetcher) FetchHourFeeds(_ context.Context, hourUTC int64) (map[int64][]domain.Article, error) {
	f.hour = hourUTC
	return f.articles, f.err
}

type fakeSender struct {
	mu   sync.Mutex
	sent map[int64]int
}

func (s *fakeSender) SendArticles(_ context.Context, chatID int64, articles []domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sent == nil {
		s.sent = make(map[int64]int)
	}
	s.sent[chatID] += len(articles)
	return nil
}

type fakePruner struct {
	cutoff time.Time
}

func (p *fakePruner) PruneClassifications(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return 3, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 19, 14, 0, 5, 0, time.UTC)
}

func TestCheckHourFeedsSendsToEveryUser(t *testing.T) {
	fetcher := &fakeFetcher{
		articles: map[int64][]domain.Article{
			1: {{FeedID: 10}, {FeedID: 10}},
			2: {{FeedID: 11}},
		},
		err: errors.New("one feed is broken"),
	}
	sender := &fakeSender{}

	s := New(context.Background(), fetcher, sender, nil, 0, discardLogger())
	s.now = fixedNow

	s.checkHourFeeds()

	assert.Equal(t, int64(14), fetcher.hour)
	assert.Equal(t, map[int64]int{1: 2, 2: 1}, sender.sent)
}

func TestCheckHourFeedsStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{hour: -1}
	s := New(ctx, fetcher, &fakeSender{}, nil, 0, discardLogger())

	s.checkHourFeeds()

	assert.Equal(t, int64(-1), fetcher.hour)
}

func TestPruneHistoryUsesRetention(t *testing.T) {
	pruner := &fakePruner{}

	s := New(context.Background(), nil, nil, pruner, 720*time.Hour, discardLogger())
	s.now = fixedNow

	s.pruneHistory()

	assert.Equal(t, fixedNow().Add(-720*time.Hour), pruner.cutoff)
}

func TestStartRegistersAvailableJobs(t *testing.T) {
	s := New(context.Background(), &fakeFetcher{}, &fakeSender{}, &fakePruner{}, time.Hour, discardLogger())
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()

	pruneOnly := New(context.Background(), nil, nil, &fakePruner{}, time.Hour, discardLogger())
	require.NoError(t, pruneOnly.Start())
	assert.Len(t, pruneOnly.cron.Entries(), 1)
	pruneOnly.Stop()

	nothing := New(context.Background(), nil, nil, nil, 0, discardLogger())
	assert.Error(t, nothing.Start())
}

func TestFeedIDs(t *testing.T) {
	got := feedIDs([]domain.Article{{FeedID: 3}, {FeedID: 1}, {FeedID: 3}})
	assert.Equal(t, []int64{3, 1}, got)
}
