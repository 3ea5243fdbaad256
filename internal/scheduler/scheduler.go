package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"faclassifier/internal/domain"

	"github.com/robfig/cron/v3"
)

const (
	HourlyDigestSpec      = "0 * * * *"
	DailyPruneSpec        = "30 3 * * *"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0

	checkHourFeedsTimeout = 15 * time.Minute
	pruneHistoryTimeout   = time.Minute
)

type HourFetcher interface {
	FetchHourFeeds(ctx context.Context, hourUTC int64) (map[int64][]domain.Article, error)
}

type DigestSender interface {
	SendArticles(ctx context.Context, chatID int64, articles []domain.Article) error
}

type HistoryPruner interface {
	PruneClassifications(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler runs the hourly journal digest and the daily history prune. The
// digest job is only registered when both fetcher and sender are set.
type Scheduler struct {
	ctx       context.Context
	cron      *cron.Cron
	fetcher   HourFetcher
	sender    DigestSender
	pruner    HistoryPruner
	retention time.Duration
	now       func() time.Time
	log       *slog.Logger
}

func New(
	ctx context.Context,
	fetcher HourFetcher,
	sender DigestSender,
	pruner HistoryPruner,
	retention time.Duration,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:       ctx,
		cron:      c,
		fetcher:   fetcher,
		sender:    sender,
		pruner:    pruner,
		retention: retention,
		now:       time.Now,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if s.fetcher != nil && s.sender != nil {
		if _, err := s.cron.AddFunc(HourlyDigestSpec, s.checkHourFeeds); err != nil {
			return err
		}
	}

	if s.pruner != nil && s.retention > 0 {
		if _, err := s.cron.AddFunc(DailyPruneSpec, s.pruneHistory); err != nil {
			return err
		}
	}

	if len(s.cron.Entries()) == 0 {
		return errors.New("no jobs to schedule")
	}

	s.cron.Start()

	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) checkHourFeeds() {
	ctx, cancel := context.WithTimeout(s.ctx, checkHourFeedsTimeout)
	defer cancel()

	if ctx.Err() != nil {
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	}

	hourUTC := int64(s.now().UTC().Hour())

	userArticles, err := s.fetcher.FetchHourFeeds(ctx, hourUTC)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to fetch hour feeds",
			"error", err,
			"hourUTC", hourUTC,
			"usersWithArticles", len(userArticles))
	}

	if ctx.Err() != nil {
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	}

	for userID, articles := range userArticles {
		if err = s.sender.SendArticles(ctx, userID, articles); err != nil {
			s.log.ErrorContext(ctx, "Failed to send user articles",
				"error", err,
				"hourUTC", hourUTC,
				"userID", userID,
				"articleCount", len(articles),
				"feedIDs", feedIDs(articles))
		}
	}
}

func (s *Scheduler) pruneHistory() {
	ctx, cancel := context.WithTimeout(s.ctx, pruneHistoryTimeout)
	defer cancel()

	cutoff := s.now().UTC().Add(-s.retention)

	n, err := s.pruner.PruneClassifications(ctx, cutoff)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to prune classification history",
			"error", err,
			"cutoff", cutoff)
		return
	}

	s.log.InfoContext(ctx, "Classification history is pruned",
		"deleted", n,
		"cutoff", cutoff)
}

func feedIDs(articles []domain.Article) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64

	for _, article := range articles {
		if _, ok := seen[article.FeedID]; ok {
			continue
		}

		seen[article.FeedID] = struct{}{}
		ids = append(ids, article.FeedID)
	}

	return ids
}
