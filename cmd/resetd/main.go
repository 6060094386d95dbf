// Command resetd serves the password-reset code and token flow over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/internal/config"
	"github.com/MrEthical07/goReset/internal/infrastructure/dynamo"
	"github.com/MrEthical07/goReset/internal/infrastructure/smtp"
	transporthttp "github.com/MrEthical07/goReset/internal/transport/http"
	"github.com/MrEthical07/goReset/metrics/export/prometheus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "resetd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	logger, err := makeLogger(cfg.App)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	engineCfg, err := cfg.Engine()
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx := context.Background()
	dynamoClient, err := dynamo.NewClient(ctx, cfg.AWS)
	if err != nil {
		return err
	}

	builder := goReset.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithIdentityResolver(dynamo.NewIdentityResolver(dynamoClient, cfg.Dynamo.UsersTable, cfg.Dynamo.UsersEmailIndex)).
		WithNotifier(smtp.NewNotifier(cfg.SMTP)).
		WithLogger(logger)
	if cfg.Dynamo.TokensTable != "" {
		builder = builder.WithTokenSink(dynamo.NewTokenSink(dynamoClient, cfg.Dynamo.TokensTable))
	} else {
		logger.Warn("no tokens table configured; minted tokens are returned but not persisted")
	}
	if engineCfg.Audit.Enabled {
		builder = builder.WithAuditSink(goReset.NewZapSink(logger.Named("audit")))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	router := transporthttp.NewRouter(cfg, transporthttp.Deps{
		Service: engine,
		Metrics: prometheus.NewPrometheusExporter(engine).Handler(),
		Logger:  logger,
	})
	defer router.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.App.Port),
			zap.String("env", cfg.App.Env),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		logger.Warn("audit drain cut short",
			zap.Error(err),
			zap.Any("dropped_by_type", engine.AuditDroppedByType()),
		)
	}
	logger.Info("server stopped")
	return nil
}

func makeLogger(app config.App) (*zap.Logger, error) {
	var zcfg zap.Config
	if app.Env == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString(t.Format("15:04:05.000"))
		}
		zcfg.DisableStacktrace = true
	}

	level, err := zapcore.ParseLevel(app.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
