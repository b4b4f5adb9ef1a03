package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"lotto-settlement/internal/config"
	"lotto-settlement/internal/db"
	"lotto-settlement/internal/handlers"
	"lotto-settlement/internal/ledger"
	"lotto-settlement/internal/lib/logger/sl"
	"lotto-settlement/internal/lotto"
	"lotto-settlement/internal/oracle"
	"lotto-settlement/internal/services"
)

func main() {
	// 0. Load config (.env + environment)
	cfg := config.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// 1. Init store: Turso when configured, in-memory otherwise
	var store ledger.Store
	if cfg.DatabaseURL != "" {
		sqlStore, err := db.Open(context.Background(), cfg.DatabaseURL, cfg.AuthToken)
		if err != nil {
			log.Error("failed to init database", sl.Err(err))
			os.Exit(1)
		}
		defer sqlStore.Close()
		store = sqlStore
		log.Info("store initialized", slog.String("backend", "libsql"))
	} else {
		store = ledger.NewMemStore()
		log.Warn("TURSO_DATABASE_URL not set, using in-memory store")
	}

	// 2. Init oracle
	orc := oracle.NewService()
	revealPolicy := oracle.Policy{
		Attempts: cfg.OracleRevealAttempts,
		Delay:    cfg.OracleRevealDelay,
	}

	// 3. Init settlement engine, with Telegram notifications when configured
	engineOpts := []lotto.EngineOption{}
	if cfg.TelegramToken != "" {
		notifier, err := services.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, log)
		if err != nil {
			log.Warn("failed to init telegram notifier", sl.Err(err))
		} else {
			engineOpts = append(engineOpts, lotto.WithNotifier(notifier))
		}
	}
	engine := lotto.NewEngine(store, orc, log, engineOpts...)

	// 4. Router: public routes plus the token-protected authority group
	if cfg.AuthorityToken == "" {
		log.Warn("AUTHORITY_TOKEN not set, admin routes are disabled")
	}
	h := handlers.New(engine, orc, log, cfg.Authority, revealPolicy)
	router := h.Routes(cfg.AuthorityToken)

	// 5. Serve
	log.Info("server starting", slog.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Error("server stopped", sl.Err(err))
		os.Exit(1)
	}
}
