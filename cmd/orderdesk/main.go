package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/app"
)

const (
	envLogLevel = "ORDERDESK_LOG_LEVEL"

	envGRPCAddr      = "ORDERDESK_GRPC_ADDR"
	envHTTPAddr      = "ORDERDESK_HTTP_ADDR"
	envStorageDriver = "ORDERDESK_STORAGE_DRIVER"
	envPostgresDSN   = "ORDERDESK_POSTGRES_DSN"
	envMySQLDSN      = "ORDERDESK_MYSQL_DSN"
	envSQLitePath    = "ORDERDESK_SQLITE_PATH"
	envAutoMigrate   = "ORDERDESK_AUTO_MIGRATE"

	envRedisAddr     = "ORDERDESK_REDIS_ADDR"
	envRedisPassword = "ORDERDESK_REDIS_PASSWORD"
	envRedisDB       = "ORDERDESK_REDIS_DB"

	envCatalogCacheTTL = "ORDERDESK_CATALOG_CACHE_TTL"
	envSessionTTL      = "ORDERDESK_SESSION_TTL"
	envSubmitLockTTL   = "ORDERDESK_SUBMIT_LOCK_TTL"

	envKafkaBrokers = "ORDERDESK_KAFKA_BROKERS"
	envKafkaTopic   = "ORDERDESK_KAFKA_TOPIC"

	envOutboxPollInterval = "ORDERDESK_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize    = "ORDERDESK_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts  = "ORDERDESK_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay   = "ORDERDESK_OUTBOX_RETRY_DELAY"

	envSessionCleanupInterval  = "ORDERDESK_SESSION_CLEANUP_INTERVAL"
	envSessionCleanupBatchSize = "ORDERDESK_SESSION_CLEANUP_BATCH_SIZE"

	envBlobDriver  = "ORDERDESK_BLOB_DRIVER"
	envBlobRoot    = "ORDERDESK_BLOB_ROOT"
	envS3Bucket    = "ORDERDESK_S3_BUCKET"
	envS3Region    = "ORDERDESK_S3_REGION"
	envS3Endpoint  = "ORDERDESK_S3_ENDPOINT"
	envS3PathStyle = "ORDERDESK_S3_PATH_STYLE"

	envAuthSecret  = "ORDERDESK_AUTH_SECRET"
	envCORSOrigins = "ORDERDESK_CORS_ORIGINS"
)

type envLookup func(string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	raw, ok := lookup(envLogLevel)
	if !ok || strings.TrimSpace(raw) == "" {
		return
	}
	level, err := log.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		log.WithError(err).WithField("env", envLogLevel).Warn("invalid log level, using info")
		return
	}
	log.SetLevel(level)
}

// readConfig формирует конфигурацию приложения из переменных окружения ORDERDESK_*.
func readConfig() app.Config {
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}
	return cfg
}

// readConfigFromEnv применяет переопределения поверх DefaultConfig.
// Некорректные значения пропускаются, для каждого возвращается предупреждение.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string
	warn := func(key, raw string, err error) {
		warnings = append(warnings, fmt.Sprintf("ignore %s=%q: %v", key, raw, err))
	}

	stringVars := []struct {
		key    string
		target *string
		lower  bool
	}{
		{envGRPCAddr, &cfg.GRPCAddr, false},
		{envHTTPAddr, &cfg.HTTPAddr, false},
		{envStorageDriver, &cfg.StorageDriver, true},
		{envPostgresDSN, &cfg.PostgresDSN, false},
		{envMySQLDSN, &cfg.MySQLDSN, false},
		{envSQLitePath, &cfg.SQLitePath, false},
		{envRedisAddr, &cfg.RedisAddr, false},
		{envRedisPassword, &cfg.RedisPassword, false},
		{envKafkaBrokers, &cfg.KafkaBrokers, false},
		{envKafkaTopic, &cfg.KafkaTopic, false},
		{envBlobDriver, &cfg.BlobDriver, true},
		{envBlobRoot, &cfg.BlobRoot, false},
		{envS3Bucket, &cfg.S3Bucket, false},
		{envS3Region, &cfg.S3Region, false},
		{envS3Endpoint, &cfg.S3Endpoint, false},
		{envAuthSecret, &cfg.AuthSecret, false},
		{envCORSOrigins, &cfg.CORSOrigins, false},
	}
	for _, v := range stringVars {
		raw, ok := lookup(v.key)
		if !ok {
			continue
		}
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if v.lower {
			value = strings.ToLower(value)
		}
		*v.target = value
	}

	boolVars := []struct {
		key    string
		target *bool
	}{
		{envAutoMigrate, &cfg.AutoMigrate},
		{envS3PathStyle, &cfg.S3PathStyle},
	}
	for _, v := range boolVars {
		raw, ok := lookup(v.key)
		if !ok {
			continue
		}
		value, err := parseBool(raw)
		if err != nil {
			warn(v.key, raw, err)
			continue
		}
		*v.target = value
	}

	positive := func(v int) bool { return v > 0 }
	intVars := []struct {
		key    string
		target *int
		valid  func(int) bool
		rule   string
	}{
		{envRedisDB, &cfg.RedisDB, func(v int) bool { return v >= 0 }, "must be >= 0"},
		{envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0"},
		{envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0"},
		{envSessionCleanupBatchSize, &cfg.SessionCleanupBatchSize, positive, "must be > 0"},
	}
	for _, v := range intVars {
		raw, ok := lookup(v.key)
		if !ok {
			continue
		}
		value, err := parseInt(raw, v.valid, v.rule)
		if err != nil {
			warn(v.key, raw, err)
			continue
		}
		*v.target = value
	}

	positiveDuration := func(v time.Duration) bool { return v > 0 }
	durationVars := []struct {
		key    string
		target *time.Duration
		valid  func(time.Duration) bool
		rule   string
	}{
		{envCatalogCacheTTL, &cfg.CatalogCacheTTL, func(v time.Duration) bool { return v >= 0 }, "must be >= 0"},
		{envSessionTTL, &cfg.SessionTTL, positiveDuration, "must be > 0"},
		{envSubmitLockTTL, &cfg.SubmitLockTTL, positiveDuration, "must be > 0"},
		{envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0"},
		{envOutboxRetryDelay, &cfg.OutboxRetryDelay, func(v time.Duration) bool { return v >= 0 }, "must be >= 0"},
		{envSessionCleanupInterval, &cfg.SessionCleanupInterval, positiveDuration, "must be > 0"},
	}
	for _, v := range durationVars {
		raw, ok := lookup(v.key)
		if !ok {
			continue
		}
		value, err := parseDuration(raw, v.valid, v.rule)
		if err != nil {
			warn(v.key, raw, err)
			continue
		}
		*v.target = value
	}

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func main() {
	setupLogger(os.LookupEnv)
	cfg := readConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"grpc_addr":      cfg.GRPCAddr,
		"http_addr":      cfg.HTTPAddr,
		"storage_driver": cfg.StorageDriver,
		"blob_driver":    cfg.BlobDriver,
		"redis":          cfg.RedisAddr != "",
		"kafka":          cfg.KafkaBrokers != "",
		"auth":           cfg.AuthSecret != "",
	}).Info("запускаем orderdesk")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("orderdesk остановлен")
}
