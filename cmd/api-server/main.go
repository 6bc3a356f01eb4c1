package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/medflowhq/hospital-booking/internal/api"
	"github.com/medflowhq/hospital-booking/internal/auth"
	"github.com/medflowhq/hospital-booking/internal/booking"
	"github.com/medflowhq/hospital-booking/internal/cache"
	"github.com/medflowhq/hospital-booking/internal/config"
	"github.com/medflowhq/hospital-booking/internal/db"
	"github.com/medflowhq/hospital-booking/internal/directory"
	"github.com/medflowhq/hospital-booking/internal/medrecord"
	"github.com/medflowhq/hospital-booking/internal/notify"
	"github.com/medflowhq/hospital-booking/internal/telemetry"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := newLogger(cfg.Env).With().Str("service", "api-server").Logger()
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, "api-server", cfg.OTLPEndpoint, cfg.TraceSampleRate)
	if err != nil {
		logger.Fatal().Err(err).Msg("telemetry setup error")
	}

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// Connect Redis; the directory cache tolerates Redis being down, so a
	// failed connection only degrades reads.
	rdb, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, directory cache disabled")
		rdb = nil
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Msg("connected to Redis")
	}

	publisher := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing kafka writer")
		}
	}()

	dirSvc := directory.NewService(directory.NewPgRepository(pgPool), cache.New(rdb, cfg.CacheTTL), logger)
	bookingSvc := booking.NewService(booking.NewPgRepository(pgPool), dirSvc, publisher, cfg.MaxDailyPerDoc, logger)
	recordSvc := medrecord.NewService(medrecord.NewPgRepository(pgPool), dirSvc, logger)

	var (
		issuer  *auth.TokenIssuer
		authSvc api.AuthService
	)
	if cfg.JWTSecret != "" {
		issuer = auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
		authSvc = auth.NewService(auth.NewPgUserRepository(pgPool), issuer, logger)
	} else {
		logger.Warn().Msg("JWT_SECRET not set, API authentication disabled")
	}

	router := api.NewRouter(api.RouterConfig{
		Booking:   bookingSvc,
		Directory: dirSvc,
		Records:   recordSvc,
		Auth:      authSvc,
		Issuer:    issuer,
		PgPool:    pgPool,
		Redis:     rdb,
		Logger:    logger,
		Env:       cfg.Env,
		Version:   version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           otelhttp.NewHandler(router, "http.server"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracing shutdown error")
	}

	logger.Info().Msg("api-server stopped")
}

func newLogger(env string) zerolog.Logger {
	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
