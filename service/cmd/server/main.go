// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/linanqiu/acquire-game-sub002/service/internal/auth"
	"github.com/linanqiu/acquire-game-sub002/service/internal/cache"
	"github.com/linanqiu/acquire-game-sub002/service/internal/config"
	"github.com/linanqiu/acquire-game-sub002/service/internal/database"
	"github.com/linanqiu/acquire-game-sub002/service/internal/handlers"
)

const (
	tokenTTL        = 24 * time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	cfg.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Connect(ctx, cfg.DBDialect, cfg.DSN()); err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}
	if cfg.RedisURL != "" {
		if err := cache.ConnectRedis(ctx, cfg.RedisURL); err != nil {
			logrus.WithError(err).Warn("redis unavailable; running without action log and snapshots")
		}
	}

	srv := handlers.NewServer(cfg, auth.NewSigner(cfg.JWTSecret, tokenTTL))
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithField("addr", cfg.ListenAddr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Hijacked websockets are not tracked by Shutdown; close them first.
		srv.Close()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("server stopped with error")
	}
	if err := cache.Close(); err != nil {
		logrus.WithError(err).Warn("failed to close redis")
	}
	if database.DB != nil {
		if err := database.DB.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close database")
		}
	}
}
