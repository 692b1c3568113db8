// Command phoneauth-server serves phone + OTP login over HTTP.
//
// Endpoints:
//
//	POST   /otp      {"phone": "...", "purpose": ""|"add_phone"} issue a code
//	POST   /login    {"phone": "...", "otp": "...", "expectedUserId": ""}
//	POST   /phones   {"phone": "...", "otp": "..."} attach a number (bearer token)
//	DELETE /phones   {"phone": "..."} detach a number (bearer token)
//	GET    /metrics  Prometheus exposition
//	GET    /healthz
//
// Settings come from the environment or .env; see internal/config. With no
// REDIS_ADDR an embedded miniredis is started.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goPhoneAuth "github.com/MrEthical07/goPhoneAuth"
	"github.com/MrEthical07/goPhoneAuth/internal/config"
	"github.com/MrEthical07/goPhoneAuth/internal/rate"
	"github.com/MrEthical07/goPhoneAuth/jwt"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, closeRedis, err := openRedis(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	accounts, closeAccounts, err := openAccountStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeAccounts()

	engine, err := goPhoneAuth.New().
		WithConfig(cfg.EngineConfig()).
		WithRedis(rdb).
		WithAccountStore(accounts).
		WithLogger(logger).
		WithAuditSink(goPhoneAuth.NewZapSink(logger)).
		Build()
	if err != nil {
		return fmt.Errorf("engine build: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	for _, w := range report.Warnings {
		logger.Warn("security posture", zap.String("warning", w))
	}
	logger.Info("engine ready",
		zap.String("otp_backend", report.OTPBackend),
		zap.Duration("otp_max_age", report.OTPMaxAge),
		zap.String("phone_format", report.StorageFormat),
		zap.Bool("ambiguous_errors", report.AmbiguousErrors),
	)

	tokens, err := newTokenManager(cfg, logger)
	if err != nil {
		return err
	}

	limiter := rate.New(rdb, rate.Config{
		EnableIPThrottle: true,
		MaxAttempts:      cfg.MaxVerifyAttempts,
		Window:           cfg.VerifyWindow,
	})

	handler := newServer(engine, tokens, limiter, logger, serverOptions{
		returnOTP: cfg.DevReturnOTP,
		ambiguous: cfg.AmbiguousErrors,
	}).routes()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("account_store", cfg.AccountStore))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func openRedis(cfg *config.Config, logger *zap.Logger) (redis.UniversalClient, func(), error) {
	addrs := cfg.RedisAddrs()
	if len(addrs) == 0 {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		logger.Warn("REDIS_ADDR not set, using embedded miniredis", zap.String("addr", mr.Addr()))
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    addrs,
		Password: cfg.RedisPassword,
	})
	return client, func() { _ = client.Close() }, nil
}

func newTokenManager(cfg *config.Config, logger *zap.Logger) (*jwt.Manager, error) {
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		if cfg.Env == "production" {
			return nil, errors.New("JWT_SECRET is required when APP_ENV=production")
		}
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		logger.Warn("JWT_SECRET not set, using an ephemeral signing key")
	}

	return jwt.NewManager(jwt.Config{
		TTL:           cfg.JWTTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    secret,
		Issuer:        cfg.JWTIssuer,
		Audience:      cfg.JWTAudience,
		Leeway:        30 * time.Second,
	})
}
