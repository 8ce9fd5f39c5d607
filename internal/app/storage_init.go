package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/orderflow/internal/health"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/memory"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/orderflow/internal/storage/redis"
)

// runtimeDependencies — хранилища, выбранные по конфигурации, и их проверки здоровья.
type runtimeDependencies struct {
	repo         domain.OrderRepository
	outboxRepo   domain.OutboxRepository
	timelineRepo domain.TimelineRepository

	storageChecker healthcheck.Checker
	cacheChecker   healthcheck.Checker

	closers []func() error
}

// closeFn закрывает ресурсы в обратном порядке открытия.
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

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	initTotalsCache(ctx, cfg, deps, logger)
	return deps, nil
}

func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		logger.Info("using in-memory storage")
		return &runtimeDependencies{
			repo:         memory.NewOrderRepository(),
			outboxRepo:   memory.NewOutboxRepository(),
			timelineRepo: memory.NewTimelineRepository(),
			storageChecker: healthcheck.NewSimpleChecker("storage", func(context.Context) error {
				return nil
			}),
		}, nil
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage driver requires dsn")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres schema is up to date")
		}
		logger.Info("using postgres storage")
		return &runtimeDependencies{
			repo:           postgres.NewOrderRepository(store),
			outboxRepo:     postgres.NewOutboxRepository(store),
			timelineRepo:   postgres.NewTimelineRepository(store),
			storageChecker: healthcheck.NewSimpleChecker("storage", store.Ping),
			closers:        []func() error{store.Close},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// initTotalsCache оборачивает репозиторий кэшем Redis. Недоступный Redis не мешает старту:
// сервис работает без кэша, а /healthz показывает degraded.
func initTotalsCache(ctx context.Context, cfg Config, deps *runtimeDependencies, logger *log.Entry) {
	if cfg.RedisAddr == "" {
		return
	}
	client, err := redisstore.NewClient(ctx, redisstore.Options{Addr: cfg.RedisAddr})
	if err != nil {
		logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis is unavailable, totals cache disabled")
		deps.cacheChecker = healthcheck.NewOptionalChecker("totals-cache", func(context.Context) error {
			return err
		})
		return
	}

	deps.repo = redisstore.NewCachedOrderRepository(deps.repo, client, cfg.RedisTotalTTL, logger)
	deps.cacheChecker = healthcheck.NewOptionalChecker("totals-cache", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	deps.closers = append(deps.closers, client.Close)
	logger.WithField("addr", cfg.RedisAddr).Info("redis totals cache enabled")
}
