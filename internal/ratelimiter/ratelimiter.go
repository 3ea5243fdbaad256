package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const queueSize = 1000

// Telegram allows about one message per second in a private chat and
// twenty per minute in a group.
var DefaultRates = Rates{
	Private: time.Second,
	Group:   3 * time.Second,
}

type Rates struct {
	Private time.Duration
	Group   time.Duration
}

func (r Rates) forChat(chatID int64) time.Duration {
	if chatID < 0 {
		return r.Group
	}
	return r.Private
}

// Sender is the subset of *tgbotapi.BotAPI the limiter drives.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type job struct {
	chattable tgbotapi.Chattable
	done      chan result
}

type result struct {
	message tgbotapi.Message
	err     error
}

// RateLimiter serializes outgoing messages and keeps a per-chat gap between
// them. Replies with a classification and digest items share one queue.
type RateLimiter struct {
	sender   Sender
	rates    Rates
	queue    chan job
	lastSent map[int64]time.Time
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	stopped  chan struct{}
	log      *slog.Logger
}

func New(sender Sender, rates Rates, log *slog.Logger) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		sender:   sender,
		rates:    rates,
		queue:    make(chan job, queueSize),
		lastSent: make(map[int64]time.Time),
		ctx:      ctx,
		cancel:   cancel,
		stopped:  make(chan struct{}),
		log:      log,
	}

	go rl.run()

	return rl
}

// Send queues c and waits until it is delivered, the caller gives up or the
// limiter stops.
func (rl *RateLimiter) Send(
	ctx context.Context,
	c tgbotapi.Chattable,
) (tgbotapi.Message, error) {
	j := job{
		chattable: c,
		done:      make(chan result, 1),
	}

	select {
	case rl.queue <- j:
	case <-ctx.Done():
		return tgbotapi.Message{}, ctx.Err()
	case <-rl.ctx.Done():
		return tgbotapi.Message{}, fmt.Errorf("rate limiter stopped: %w", rl.ctx.Err())
	}

	// After Stop the worker no longer drains the queue, so a job enqueued
	// late would never be answered.
	select {
	case res := <-j.done:
		return res.message, res.err
	case <-ctx.Done():
		return tgbotapi.Message{}, ctx.Err()
	case <-rl.ctx.Done():
		select {
		case res := <-j.done:
			return res.message, res.err
		default:
			return tgbotapi.Message{}, fmt.Errorf("rate limiter stopped: %w", rl.ctx.Err())
		}
	}
}

// Request bypasses the queue. It is used for callback answers which are not
// counted against chat limits.
func (rl *RateLimiter) Request(
	c tgbotapi.Chattable,
) (*tgbotapi.APIResponse, error) {
	return rl.sender.Request(c)
}

// Stop cancels pending jobs and waits for the worker to exit.
func (rl *RateLimiter) Stop() {
	rl.cancel()
	<-rl.stopped
}

func (rl *RateLimiter) run() {
	defer close(rl.stopped)

	for {
		select {
		case j := <-rl.queue:
			rl.deliver(j)
		case <-rl.ctx.Done():
			for {
				select {
				case j := <-rl.queue:
					j.done <- result{err: rl.ctx.Err()}
				default:
					return
				}
			}
		}
	}
}

func (rl *RateLimiter) deliver(j job) {
	chatID := chatIDOf(j.chattable)

	if delay := rl.delay(chatID, time.Now()); delay > 0 {
		rl.log.DebugContext(rl.ctx, "Rate limiting message",
			"chatID", chatID,
			"delay", delay,
			"chattableType", fmt.Sprintf("%T", j.chattable),
			"queueLen", len(rl.queue))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-rl.ctx.Done():
			timer.Stop()
			j.done <- result{err: rl.ctx.Err()}
			return
		}
	}

	message, err := rl.sender.Send(j.chattable)

	rl.mu.Lock()
	rl.lastSent[chatID] = time.Now()
	rl.mu.Unlock()

	j.done <- result{message: message, err: err}
}

func (rl *RateLimiter) delay(chatID int64, now time.Time) time.Duration {
	rl.mu.Lock()
	last, ok := rl.lastSent[chatID]
	rl.mu.Unlock()

	if !ok {
		return 0
	}

	return max(rl.rates.forChat(chatID)-now.Sub(last), 0)
}

func chatIDOf(c tgbotapi.Chattable) int64 {
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		return m.ChatID
	case tgbotapi.EditMessageTextConfig:
		return m.ChatID
	case tgbotapi.EditMessageReplyMarkupConfig:
		return m.ChatID
	case tgbotapi.DeleteMessageConfig:
		return m.ChatID
	case tgbotapi.ChatActionConfig:
		return m.ChatID
	default:
		return 0
	}
}
