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

	"forumlite/internal/config"
	"forumlite/internal/server"
	"forumlite/internal/store"
)

func main() {
	cfg := config.LoadServer()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := store.Open(ctx, cfg.Driver, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Error("db open", "driver", cfg.Driver, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		log.Error("migrate", "err", err)
		os.Exit(1)
	}
	if cfg.Seed {
		if err := st.Seed(context.Background()); err != nil {
			log.Error("seed", "err", err)
			os.Exit(1)
		}
	}
	if cfg.AdminTokenHash == "" {
		log.Info("ADMIN_TOKEN_HASH not set, /moderators disabled")
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: server.New(st, log, cfg),
		ReadTimeout: 15 * time.Second, ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout: 30 * time.Second, IdleTimeout: 120 * time.Second}

	go func() {
		log.Info("listening", "addr", cfg.Addr, "driver", cfg.Driver, "strict_sessions", cfg.StrictSessions)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) && err != nil {
			log.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	ctxSh, cancelSh := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSh()
	if err := srv.Shutdown(ctxSh); err != nil {
		log.Error("shutdown", "err", err)
	}
}
