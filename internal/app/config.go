package app

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderflow/internal/service/payment"
	"github.com/vladislavdragonenkov/orderflow/internal/service/shipping"
	redisstore "github.com/vladislavdragonenkov/orderflow/internal/storage/redis"
)

// Поддерживаемые хранилища заказов.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	GRPCAddr    string
	MetricsAddr string
	LogLevel    log.Level

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// RedisAddr включает кэш итогов заказов; пустое значение отключает кэш.
	RedisAddr     string
	RedisTotalTTL time.Duration

	// KafkaBrokers включает публикацию outbox. Без брокеров события копятся в outbox.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaDLQ     string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	PaymentLatency     time.Duration
	PaymentFailureRate float64
	PaymentMaxAttempts int
	// BreakerMaxFailures — подряд идущие ошибки шлюза, после которых circuit breaker размыкается.
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration

	ShippingLatency time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",
		LogLevel:    log.InfoLevel,

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		RedisTotalTTL: redisstore.DefaultTTL,

		KafkaTopic: kafka.TopicOrderEvents,
		KafkaDLQ:   kafka.TopicDeadLetterQueue,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,

		PaymentLatency:      payment.DefaultLatency,
		PaymentFailureRate:  payment.DefaultFailureRate,
		PaymentMaxAttempts:  2,
		BreakerMaxFailures:  5,
		BreakerResetTimeout: 10 * time.Second,

		ShippingLatency: shipping.DefaultLatency,
	}
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("postgres storage driver requires dsn")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if c.PaymentFailureRate < 0 || c.PaymentFailureRate > 1 {
		return fmt.Errorf("payment failure rate must be within [0, 1], got %v", c.PaymentFailureRate)
	}
	return nil
}
