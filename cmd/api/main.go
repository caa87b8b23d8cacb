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

	"github.com/studyhall/studyhall-go/internal/backend"
	"github.com/studyhall/studyhall-go/internal/config"
	"github.com/studyhall/studyhall-go/internal/coordinator"
	"github.com/studyhall/studyhall-go/internal/crypto"
	"github.com/studyhall/studyhall-go/internal/handler"
	"github.com/studyhall/studyhall-go/internal/middleware"
	"github.com/studyhall/studyhall-go/internal/service"
	"github.com/studyhall/studyhall-go/internal/sessionstore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg := config.Load()

	// Session persistence: durable when a database is configured,
	// in-memory otherwise.
	var store sessionstore.Store = sessionstore.NewMemoryStore()
	if cfg.DatabaseDSN != "" {
		db, err := sessionstore.NewDB(cfg.DatabaseDSN)
		if err != nil {
			slog.Warn("database connection failed — session persistence disabled", "error", err)
		} else {
			cipher, err := crypto.NewCipher(cfg.SessionSecret)
			if err != nil {
				slog.Error("session cipher setup failed", "error", err)
				os.Exit(1)
			}
			store = sessionstore.NewMySQLStore(db, cipher, cfg.ClientID)
		}
	}

	var client backend.Client
	if cfg.BackendConfigured() {
		var err error
		client, err = backend.NewClient(backend.Config{
			URL:            cfg.SupabaseURL,
			AnonKey:        cfg.SupabaseAnonKey,
			RequestTimeout: cfg.RequestTimeout,
			ProbeTimeout:   cfg.ProbeTimeout,
			Store:          store,
		})
		if err != nil {
			slog.Error("invalid backend configuration", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("backend credentials missing or placeholders — using mock client")
		client = backend.NewMockClient()
	}
	defer client.Close()

	authService := service.NewAuthService(client)

	coord := coordinator.New(authService, cfg.BootstrapTimeout)
	coord.Start()
	defer coord.Close()

	authHandler := handler.NewAuthHandler(coord, authService)
	profileHandler := handler.NewProfileHandler(coord)
	stateHandler := handler.NewStateHandler(coord)

	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/api/v1/state", stateHandler.HandleState)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(5, 10))
		r.Post("/api/v1/auth/signup", authHandler.HandleSignUp)
		r.Post("/api/v1/auth/signin", authHandler.HandleSignIn)
		r.Post("/api/v1/auth/reset-password", authHandler.HandleResetPassword)
	})

	r.Post("/api/v1/auth/signout", authHandler.HandleSignOut)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser(coord))
		r.Get("/api/v1/profile", profileHandler.HandleGetProfile)
		r.Patch("/api/v1/profile", profileHandler.HandleUpdateProfile)
		r.Post("/api/v1/profile/retry", profileHandler.HandleRetryProfileLoad)
	})

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
