package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/vellko/affiliate-admin/internal/auth"
	"github.com/vellko/affiliate-admin/internal/cache"
	"github.com/vellko/affiliate-admin/internal/cake"
	"github.com/vellko/affiliate-admin/internal/client"
	"github.com/vellko/affiliate-admin/internal/config"
	"github.com/vellko/affiliate-admin/internal/database"
	"github.com/vellko/affiliate-admin/internal/handler"
	"github.com/vellko/affiliate-admin/internal/repository"
	"github.com/vellko/affiliate-admin/internal/ringba"
	"github.com/vellko/affiliate-admin/internal/secrets"
	"github.com/vellko/affiliate-admin/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg)
	log.Info().
		Str("environment", cfg.App.Env).
		Int("port", cfg.App.Port).
		Msg("Starting affiliate admin service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := database.Migrate(cfg.Database); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	db, err := database.New(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	redisCache, err := cache.New(ctx, cfg.Redis, log)
	if err != nil {
		// Connection caching is an optimization; run without it.
		log.Warn().Err(err).Msg("Redis unavailable, connection caching disabled")
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	var natsConn *nats.Conn
	natsConn, err = nats.Connect(cfg.NATS.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		log.Warn().Err(err).Msg("NATS unavailable, notifications disabled")
		natsConn = nil
	} else {
		defer natsConn.Close()
	}

	encryptor, err := secrets.NewEncryptor(cfg.Crypto.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid credentials encryption key")
	}

	// Repositories
	signupRepo := repository.NewSignupRepository(db)
	userRepo := repository.NewUserRepository(db)
	connectionRepo := repository.NewConnectionRepository(db, encryptor)
	qaFormRepo := repository.NewQAFormRepository(db)

	// Clients and workers
	notifier := client.NewNotificationPublisher(natsConn, log)
	cakeClient := cake.NewClient(log)
	ringbaClient := ringba.NewClient(log)
	cakeWorker := service.NewCakeWorker(cakeClient, userRepo, notifier, log)
	ringbaWorker := service.NewRingbaWorker(ringbaClient, signupRepo, log)

	// Services
	tokens := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	connectionService := service.NewConnectionService(connectionRepo, redisCache)
	approvalService := service.NewApprovalService(
		signupRepo, userRepo, connectionService, cakeWorker, ringbaWorker, notifier, log)
	signupService := service.NewSignupService(signupRepo, userRepo, notifier, log)
	userService := service.NewUserService(userRepo, tokens, notifier, cfg.Auth.BcryptCost, log)

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(requestLogger(log))
	e.Use(echomw.CORS())

	h := handler.New(
		signupService, approvalService, userService, connectionService,
		qaFormRepo, tokens, cfg.Storage.UploadDir, log)
	h.RegisterRoutes(e)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
	log.Info().Msg("Server stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.App.IsDevelopment() {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Str("service", "affiliate-admin").Logger()
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}
