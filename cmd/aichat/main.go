package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"aichat/internal/config"
	"aichat/internal/identity"
	"aichat/internal/pipeline"
	"aichat/internal/quota"
	"aichat/internal/server"
	"aichat/internal/throttle"
	"aichat/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	store, err := quota.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		fatal("failed to init quota store", "err", err)
	}

	limiter, err := throttle.NewSlidingWindowLimiter(
		cfg.RedisAddr, cfg.RedisPassword, "ai_chat",
		cfg.ThrottleMaxRequests, cfg.ThrottleWindow(),
	)
	if err != nil {
		fatal("failed to init throttle", "err", err)
	}

	verifier, err := identity.NewVerifier(cfg.IdentitySecret)
	if err != nil {
		fatal("failed to init identity verifier", "err", err)
	}

	chat, err := pipeline.New(pipeline.Config{
		Throttle: limiter,
		Store:    store,
		Settings: func() pipeline.Settings { return pipeline.SettingsFromConfig(cfg) },
	})
	if err != nil {
		fatal("failed to init chat pipeline", "err", err)
	}

	httpServer := server.New(server.Config{
		Pipeline: chat,
		Verifier: verifier,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("ai chat server listening", "addr", addr, "provider", cfg.Provider)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
