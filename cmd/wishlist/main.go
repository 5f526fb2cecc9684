package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"wishlist-bot/internal/api"
	"wishlist-bot/internal/bot"
	"wishlist-bot/internal/config"
	"wishlist-bot/internal/database"
	"wishlist-bot/internal/identity"
	"wishlist-bot/internal/query"
	"wishlist-bot/internal/utils"
	"wishlist-bot/internal/wish"
	"wishlist-bot/internal/wishlist"
	"wishlist-bot/internal/worker"
)

func main() {
	cfg := config.LoadConfig()
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Could not connect to database")
	}

	var cache identity.Cache
	if rdb, err := database.ConnectRedis(ctx, cfg, log); err != nil {
		log.WithError(err).Warn("Redis unavailable, identity cache disabled")
	} else {
		defer rdb.Close()
		cache = identity.NewRedisCache(rdb, cfg.IdentityCacheTTL, log)
	}

	allow, err := utils.NewAllowlist(cfg.AllowedCIDRs)
	if err != nil {
		log.WithError(err).Fatal("Invalid ALLOWED_CIDRS")
	}
	loc := cfg.Location()

	users := identity.NewService(db, cache, log)
	lists := wishlist.NewService(db, log)
	wishes := wish.NewService(db, users, lists, log)

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewHandler(api.Deps{
			Users:     users,
			Wishlists: lists,
			Wishes:    wishes,
			Query:     query.NewService(db),
			Allowlist: allow,
			Location:  loc,
			Log:       log,
		}).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.NewChecker(lists, cfg.AuditInterval, log).Start(ctx)
	}()

	if cfg.BotToken != "" {
		tgBot, err := bot.NewBot(cfg.BotToken, cfg.WebAppURL, users, loc, log)
		if err != nil {
			log.WithError(err).Fatal("Could not create Telegram bot")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tgBot.Start(ctx); err != nil {
				log.WithError(err).Error("Telegram bot stopped")
			}
		}()
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN is not set, bot disabled")
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("HTTP server shutdown failed")
		}
	}()

	log.WithField("addr", cfg.HTTPAddr).Info("Service started successfully")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("HTTP server failed")
		stop()
	}

	wg.Wait()
	log.Info("Service stopped")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
