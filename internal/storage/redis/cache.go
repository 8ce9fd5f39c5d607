// Package redis кэширует итоговые суммы заказов в Redis поверх основного хранилища.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

const (
	// KeyPrefix — префикс ключей с итогами заказов.
	KeyPrefix = "orderflow:total:"
	// DefaultTTL — время жизни записи в кэше по умолчанию.
	DefaultTTL = 10 * time.Minute

	opTimeout = 500 * time.Millisecond
)

// Options управляют подключением к Redis.
type Options struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// NewClient создаёт клиента и проверяет соединение командой PING.
func NewClient(ctx context.Context, opts Options) (*goredis.Client, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = 50
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     poolSize,
		MinIdleConns: opts.MinIdleConns,
		PoolTimeout:  5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// CachedOrderRepository дописывает итог заказа в Redis при каждом сохранении
// и отдаёт его из кэша в CachedTotal. Остальные операции уходят в обёрнутый репозиторий.
type CachedOrderRepository struct {
	domain.OrderRepository

	client goredis.UniversalClient
	ttl    time.Duration
	logger *log.Entry
}

var _ domain.OrderRepository = (*CachedOrderRepository)(nil)

// NewCachedOrderRepository оборачивает репозиторий кэшем итогов.
func NewCachedOrderRepository(next domain.OrderRepository, client goredis.UniversalClient, ttl time.Duration, logger *log.Entry) *CachedOrderRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &CachedOrderRepository{
		OrderRepository: next,
		client:          client,
		ttl:             ttl,
		logger:          logger.WithField("component", "redis-total-cache"),
	}
}

// Create сохраняет заказ и прогревает кэш итога.
func (r *CachedOrderRepository) Create(ctx context.Context, order domain.Order) error {
	if err := r.OrderRepository.Create(ctx, order); err != nil {
		return err
	}
	r.store(ctx, order)
	return nil
}

// Save сохраняет заказ и обновляет итог в кэше.
func (r *CachedOrderRepository) Save(ctx context.Context, order domain.Order) error {
	if err := r.OrderRepository.Save(ctx, order); err != nil {
		return err
	}
	r.store(ctx, order)
	return nil
}

// CachedTotal читает итог из Redis. Промах или недоступность Redis
// не считаются ошибкой: запрос уходит в основное хранилище.
func (r *CachedOrderRepository) CachedTotal(ctx context.Context, id string) (decimal.Decimal, bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	raw, err := r.client.Get(opCtx, Key(id)).Result()
	cancel()

	switch {
	case err == nil:
		total, parseErr := decimal.NewFromString(raw)
		if parseErr == nil {
			return total, true, nil
		}
		r.logger.WithError(parseErr).WithField("order_id", id).Warn("corrupted cached total, falling back")
	case errors.Is(err, goredis.Nil):
	default:
		if ctx.Err() != nil {
			return decimal.Zero, false, ctx.Err()
		}
		r.logger.WithError(err).WithField("order_id", id).Warn("redis get failed, falling back")
	}

	total, ok, err := r.OrderRepository.CachedTotal(ctx, id)
	if err != nil || !ok {
		return total, ok, err
	}
	r.set(ctx, id, total)
	return total, true, nil
}

// Invalidate удаляет итог заказа из кэша. Вызывается, когда свежий итог записать не удалось.
func (r *CachedOrderRepository) Invalidate(ctx context.Context, id string) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return r.client.Del(opCtx, Key(id)).Err()
}

// Key возвращает ключ Redis для итога заказа.
func Key(orderID string) string {
	return KeyPrefix + orderID
}

func (r *CachedOrderRepository) store(ctx context.Context, order domain.Order) {
	r.set(ctx, order.ID, order.Total())
}

func (r *CachedOrderRepository) set(ctx context.Context, id string, total decimal.Decimal) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	err := r.client.Set(opCtx, Key(id), total.StringFixed(2), r.ttl).Err()
	if err == nil {
		return
	}
	r.logger.WithError(err).WithField("order_id", id).Warn("redis set failed, dropping cached total")
	// старое значение могло пережить сбой записи; без него CachedTotal уйдёт в основное хранилище
	if delErr := r.Invalidate(ctx, id); delErr != nil {
		r.logger.WithError(delErr).WithField("order_id", id).Warn("redis invalidate failed")
	}
}
