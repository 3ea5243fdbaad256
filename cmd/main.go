package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"faclassifier/internal/bot"
	"faclassifier/internal/classifier"
	"faclassifier/internal/config"
	"faclassifier/internal/database"
	"faclassifier/internal/feed"
	"faclassifier/internal/provider"
	"faclassifier/internal/scheduler"
	"faclassifier/internal/web"

	"github.com/gin-gonic/gin"
)

const (
	shutdownTimeout   = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeoutSlack = 15 * time.Second
)

func main() {
	start := time.Now()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).ErrorContext(ctx, "Failed to load config",
			"error", err)

		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	if err = run(ctx, cfg, log); err != nil {
		log.ErrorContext(ctx, "Exiting with error",
			"error", err,
			"uptimeSeconds", time.Since(start).Seconds())

		os.Exit(1)
	}

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", closeErr,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	model := cfg.Model
	if model == "" {
		model = provider.DefaultModel(cfg.Provider)
	}

	p, err := provider.New(provider.Config{
		Name:    cfg.Provider,
		Model:   model,
		BaseURL: cfg.ProviderBaseURL,
	})
	if err != nil {
		return err
	}

	service := classifier.NewService(
		classifier.NewClient(p, cfg.ProviderTimeout),
		db,
		cfg.Provider,
		model,
		log,
	)
	log.InfoContext(ctx, "Classifier is initialized",
		"provider", cfg.Provider,
		"model", model,
		"timeout", cfg.ProviderTimeout)

	credential := cfg.ServerCredential()
	if credential == "" {
		log.WarnContext(ctx, "Server API key is missing so only requests with their own key are classified",
			"envVar", cfg.CredentialEnvVar())
	}

	fetcher := feed.NewFetcher(db, service, credential, log)

	var (
		botInst *bot.Bot
		digest  scheduler.DigestSender
	)
	if cfg.Token != "" {
		botInst, err = bot.New(cfg.Token, db, fetcher, service, credential, cfg.AllowedUsers, log)
		if err != nil {
			return err
		}
		defer botInst.Stop()

		digest = botInst
		log.InfoContext(ctx, "Bot is initialized",
			"allowedUsersCount", len(cfg.AllowedUsers))
	} else {
		log.WarnContext(ctx, "TOKEN is missing so the Telegram bot is disabled",
			"envVar", "TOKEN")
	}

	sched := scheduler.New(ctx, fetcher, digest, db, cfg.HistoryRetention, log)
	if err = sched.Start(); err != nil {
		log.WarnContext(ctx, "Scheduler is not started",
			"error", err)
	} else {
		defer sched.Stop()
		log.InfoContext(ctx, "Scheduler is started",
			"digestSpec", scheduler.HourlyDigestSpec,
			"pruneSpec", scheduler.DailyPruneSpec,
			"historyRetention", cfg.HistoryRetention,
			"timezone", scheduler.Timezone)
	}

	if botInst != nil {
		go botInst.Start(ctx)
		log.InfoContext(ctx, "Bot is started",
			"updateTimeoutSeconds", bot.BotUpdateTimeout)
	}

	gin.SetMode(gin.ReleaseMode)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           web.Setup(web.NewHandler(service, db, db, credential), log),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.ProviderTimeout + writeTimeoutSlack,
		IdleTimeout:       time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "HTTP server is started",
			"addr", cfg.HTTPAddr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err = <-serveErr:
		return err
	case <-ctx.Done():
		log.InfoContext(ctx, "Shutdown signal is received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(shutdownCtx, "Server forced to shutdown",
			"error", err)
	}

	return nil
}
