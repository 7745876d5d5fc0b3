package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kanban/api/internal/ai"
	"kanban/api/internal/app"
	"kanban/api/internal/config"
	"kanban/api/internal/session"
	"kanban/api/internal/store"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := store.Open(ctx, cfg.DBDriver, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := store.EnsureSchema(ctx, db, cfg.DBDriver); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	dataStore := store.NewSQLStore(db, cfg.DBDriver)

	var sessions session.Store
	if cfg.RedisURL != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("connect to redis: %v", err)
		}
		sessions = redisStore
		log.Printf("sessions: redis")
	} else {
		sessions = session.NewMemoryStore()
		log.Printf("sessions: in-memory (REDIS_URL not set)")
	}
	defer sessions.Close()

	client := ai.NewClient(
		cfg.OpenRouterBaseURL,
		cfg.OpenRouterAPIKey,
		cfg.OpenRouterModel,
		cfg.OpenRouterTemperature,
		cfg.OpenRouterTimeout,
	)
	if cfg.OpenRouterAPIKey == "" {
		log.Printf("chat: OPENROUTER_API_KEY not set, /api/chat will return NOT_CONFIGURED")
	}

	service := app.New(cfg, dataStore, sessions, client)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("api listening on %s (db driver %s)", cfg.Addr, cfg.DBDriver)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	case sig := <-stop:
		log.Printf("received %s, shutting down", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}
