package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/keywarden/keywarden-go/internal/config"
	"github.com/keywarden/keywarden-go/internal/cursor"
	"github.com/keywarden/keywarden-go/internal/handler"
	"github.com/keywarden/keywarden-go/internal/middleware"
	"github.com/keywarden/keywarden-go/internal/repository"
	"github.com/keywarden/keywarden-go/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg := config.Load()

	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Initialize DB and API routes if database is available.
	db, err := repository.NewDB(cfg.DatabaseDSN)
	if err != nil {
		slog.Warn("database connection failed, API routes disabled", "error", err)
	} else {
		userRepo := repository.NewUserRepository(db)
		authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiry)
		authHandler := handler.NewAuthHandler(authService)

		itemRepo := repository.NewItemRepository(db)
		syncService := service.NewSyncService(itemRepo, cursor.NewCodec(cfg.CursorSecret), cfg.MaxPageSize)
		syncHandler := handler.NewSyncHandler(syncService, cfg.MaxBatchSize)
		vaultHandler := handler.NewVaultHandler(syncService)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(float64(cfg.AuthRPS), cfg.AuthBurst))
			r.Post("/api/v1/auth/register", authHandler.HandleRegister)
			r.Post("/api/v1/auth/login", authHandler.HandleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(cfg.JWTSecret))
			r.Get("/api/v1/auth/me", authHandler.HandleMe)

			r.Get("/api/v1/vault", vaultHandler.HandleListItems)
			r.Delete("/api/v1/vault/{item_id}", vaultHandler.HandleDeleteItem)

			r.Get("/api/v1/sync/changes", syncHandler.HandleGetChanges)
			r.Post("/api/v1/sync/push", syncHandler.HandlePush)
		})
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
