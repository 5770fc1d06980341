package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/orderdesk/internal/health"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/mysql"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/orderdesk/internal/storage/redis"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/sqldb"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/sqlite"
)

// runtimeDependencies — хранилища, выбранные по конфигурации.
type runtimeDependencies struct {
	catalogRepo  domain.CatalogRepository
	shopRepo     domain.ShopRepository
	orderRepo    domain.OrderRepository
	outboxRepo   domain.OutboxRepository
	timelineRepo domain.TimelineRepository

	sessions     domain.SessionStore
	submitGuard  domain.SubmitGuard
	catalogCache domain.CatalogCache

	storageChecker healthcheck.Checker
	redisChecker   healthcheck.Checker

	closers []func() error
}

// closeFn закрывает подключения в обратном порядке открытия.
func (d *runtimeDependencies) closeFn() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// initRuntimeDependencies открывает основное хранилище и, если задан адрес, Redis.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{}
	if err := initStorage(ctx, cfg, logger, deps); err != nil {
		return nil, err
	}
	if err := initSharedState(ctx, cfg, logger, deps); err != nil {
		_ = deps.closeFn()
		return nil, err
	}
	return deps, nil
}

func initStorage(ctx context.Context, cfg Config, logger *log.Entry, deps *runtimeDependencies) error {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if driver == "" || driver == StorageDriverMemory {
		store := memory.NewStore()
		deps.catalogRepo = store.Catalog()
		deps.shopRepo = store.Shops()
		deps.orderRepo = store.Orders()
		deps.outboxRepo = memory.NewOutboxRepository()
		deps.timelineRepo = memory.NewTimelineRepository()
		logger.Info("using in-memory storage")
		return nil
	}

	store, err := openSQLStore(ctx, driver, cfg)
	if err != nil {
		return err
	}
	deps.closers = append(deps.closers, store.Close)

	if cfg.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = deps.closeFn()
			return fmt.Errorf("apply %s migrations: %w", driver, err)
		}
	}

	deps.catalogRepo = sqldb.NewCatalogRepository(store)
	deps.shopRepo = sqldb.NewShopRepository(store)
	deps.orderRepo = sqldb.NewOrderRepository(store)
	deps.outboxRepo = sqldb.NewOutboxRepository(store)
	deps.timelineRepo = sqldb.NewTimelineRepository(store)
	deps.storageChecker = healthcheck.NewPingChecker("storage", store.Ping)

	logger.WithFields(log.Fields{
		"driver":       driver,
		"auto_migrate": cfg.AutoMigrate,
	}).Info("using sql storage")
	return nil
}

func openSQLStore(ctx context.Context, driver string, cfg Config) (*sqldb.Store, error) {
	switch driver {
	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("postgres dsn is required for postgres storage driver")
		}
		return postgres.Open(ctx, cfg.PostgresDSN)
	case StorageDriverMySQL:
		if strings.TrimSpace(cfg.MySQLDSN) == "" {
			return nil, errors.New("mysql dsn is required for mysql storage driver")
		}
		return mysql.Open(ctx, cfg.MySQLDSN)
	case StorageDriverSQLite:
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			return nil, errors.New("sqlite path is required for sqlite storage driver")
		}
		return sqlite.Open(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func initSharedState(ctx context.Context, cfg Config, logger *log.Entry, deps *runtimeDependencies) error {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		deps.sessions = memory.NewSessionStore()
		deps.submitGuard = memory.NewSubmitGuard()
		deps.catalogCache = memory.NewCatalogCache()
		return nil
	}

	client, err := redisstore.Open(ctx, redisstore.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	deps.closers = append(deps.closers, client.Close)

	deps.sessions = redisstore.NewSessionStore(client, "")
	deps.submitGuard = redisstore.NewSubmitGuard(client, "")
	deps.catalogCache = redisstore.NewCatalogCache(client, "")
	deps.redisChecker = healthcheck.NewOptionalChecker("redis", redisPing(client))

	logger.WithField("addr", cfg.RedisAddr).Info("using redis for sessions, submit locks and catalog cache")
	return nil
}

func redisPing(client goredis.UniversalClient) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
