package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"github.com/triage-ai/deskgate/internal/audit"
	"github.com/triage-ai/deskgate/internal/providers"
	"github.com/triage-ai/deskgate/internal/registry"
	"github.com/triage-ai/deskgate/internal/safety"
	"github.com/triage-ai/deskgate/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serverVersion = "1.0.0"

func main() {
	// Logger goes to stderr: stdout carries the protocol stream.
	logger := mustBuildLogger(envOrDefault("DESKGATE_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	cacheSize := envOrDefaultInt("DESKGATE_CACHE_SIZE", safety.DefaultCacheSize)
	maxWaitS := envOrDefaultFloat("DESKGATE_MAX_WAIT_S", 30)
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	postgresDSN := os.Getenv("POSTGRES_DSN")

	logger.Info("starting deskgate server",
		zap.String("version", serverVersion),
		zap.Int("cache_size", cacheSize),
		zap.Float64("max_wait_s", maxWaitS),
	)

	// Rule set — built-in catalog, optionally merged with Postgres rules
	rules := safety.DefaultRuleSet()
	if postgresDSN != "" {
		db, err := sql.Open("pgx", postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		extra, err := safety.LoadPostgresRules(ctx, db, logger)
		cancel()
		_ = db.Close() // rules are loaded once at startup
		if err != nil {
			logger.Warn("postgres rule load failed, using built-in catalog only",
				zap.Error(err),
			)
		} else if len(extra) > 0 {
			rules = rules.Merge(extra)
			logger.Info("merged postgres rules",
				zap.Int("extra_rules", len(extra)),
				zap.Uint64("rule_set_version", rules.Version()),
			)
		}
	}

	validator := safety.NewValidator(rules, cacheSize, logger)

	// Audit — ClickHouse or LogWriter fallback
	var writer audit.EventWriter
	if clickhouseDSN != "" {
		chWriter, err := audit.NewClickHouseWriter(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			writer = audit.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = audit.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	// Providers — built once per process from the detected platform
	desc := providers.Detect()
	factory := providers.NewFactory(providers.DefaultRetryPolicy(), logger)
	bundle := factory.Build(desc)

	reg, err := registry.New(registry.Config{MaxWaitSeconds: maxWaitS})
	if err != nil {
		logger.Fatal("failed to build tool registry", zap.Error(err))
	}

	srv := server.New(reg, validator, bundle, writer, logger, server.Config{
		Name:    "deskgate",
		Version: serverVersion,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Error("serve loop error", zap.Error(err))
	}

	logger.Info("deskgate server stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	return logger
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
