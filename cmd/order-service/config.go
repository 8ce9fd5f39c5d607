package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/app"
)

const (
	envGRPCAddr            = "ORDERFLOW_GRPC_ADDR"
	envMetricsAddr         = "ORDERFLOW_METRICS_ADDR"
	envLogLevel            = "ORDERFLOW_LOG_LEVEL"
	envStorageDriver       = "ORDERFLOW_STORAGE_DRIVER"
	envPostgresDSN         = "ORDERFLOW_POSTGRES_DSN"
	envPostgresAutoMigrate = "ORDERFLOW_POSTGRES_AUTO_MIGRATE"
	envRedisAddr           = "ORDERFLOW_REDIS_ADDR"
	envRedisTotalTTL       = "ORDERFLOW_REDIS_TOTAL_TTL"
	envKafkaBrokers        = "ORDERFLOW_KAFKA_BROKERS"
	envKafkaTopic          = "ORDERFLOW_KAFKA_TOPIC"
	envKafkaDLQTopic       = "ORDERFLOW_KAFKA_DLQ_TOPIC"
	envOutboxPollInterval  = "ORDERFLOW_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize     = "ORDERFLOW_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts   = "ORDERFLOW_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay    = "ORDERFLOW_OUTBOX_RETRY_DELAY"
	envPaymentLatency      = "ORDERFLOW_PAYMENT_LATENCY"
	envPaymentFailureRate  = "ORDERFLOW_PAYMENT_FAILURE_RATE"
	envPaymentMaxAttempts  = "ORDERFLOW_PAYMENT_MAX_ATTEMPTS"
	envShippingLatency     = "ORDERFLOW_SHIPPING_LATENCY"
)

// envLookup совпадает по сигнатуре с os.LookupEnv.
type envLookup func(key string) (string, bool)

// configWarning — переменная окружения, значение которой проигнорировано.
type configWarning struct {
	Key   string
	Value string
	Err   error
}

func (w configWarning) Error() string {
	return fmt.Sprintf("%s=%q: %v", w.Key, w.Value, w.Err)
}

// readConfigFromEnv накладывает переменные окружения на app.DefaultConfig.
// Некорректные значения не применяются и возвращаются как предупреждения.
func readConfigFromEnv(lookup envLookup) (app.Config, []configWarning) {
	cfg := app.DefaultConfig()
	var warnings []configWarning

	get := func(key string) (string, bool) {
		value, ok := lookup(key)
		if !ok || strings.TrimSpace(value) == "" {
			return "", false
		}
		return value, true
	}
	warn := func(key, value string, err error) {
		warnings = append(warnings, configWarning{Key: key, Value: value, Err: err})
	}
	positiveInt := func(v int) bool { return v > 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }

	if v, ok := get(envGRPCAddr); ok {
		cfg.GRPCAddr = strings.TrimSpace(v)
	}
	if v, ok := get(envMetricsAddr); ok {
		cfg.MetricsAddr = strings.TrimSpace(v)
	}
	if v, ok := get(envLogLevel); ok {
		if level, err := log.ParseLevel(strings.TrimSpace(v)); err != nil {
			warn(envLogLevel, v, err)
		} else {
			cfg.LogLevel = level
		}
	}
	if v, ok := get(envStorageDriver); ok {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := get(envPostgresDSN); ok {
		cfg.PostgresDSN = strings.TrimSpace(v)
	}
	if v, ok := get(envPostgresAutoMigrate); ok {
		if parsed, err := parseBool(v); err != nil {
			warn(envPostgresAutoMigrate, v, err)
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}
	if v, ok := get(envRedisAddr); ok {
		cfg.RedisAddr = strings.TrimSpace(v)
	}
	if v, ok := get(envRedisTotalTTL); ok {
		if parsed, err := parseDuration(v, positiveDuration, "must be > 0"); err != nil {
			warn(envRedisTotalTTL, v, err)
		} else {
			cfg.RedisTotalTTL = parsed
		}
	}
	if v, ok := get(envKafkaBrokers); ok {
		cfg.KafkaBrokers = splitList(v)
	}
	if v, ok := get(envKafkaTopic); ok {
		cfg.KafkaTopic = strings.TrimSpace(v)
	}
	if v, ok := get(envKafkaDLQTopic); ok {
		cfg.KafkaDLQ = strings.TrimSpace(v)
	}
	if v, ok := get(envOutboxPollInterval); ok {
		if parsed, err := parseDuration(v, positiveDuration, "must be > 0"); err != nil {
			warn(envOutboxPollInterval, v, err)
		} else {
			cfg.OutboxPollInterval = parsed
		}
	}
	if v, ok := get(envOutboxBatchSize); ok {
		if parsed, err := parseInt(v, positiveInt, "must be > 0"); err != nil {
			warn(envOutboxBatchSize, v, err)
		} else {
			cfg.OutboxBatchSize = parsed
		}
	}
	if v, ok := get(envOutboxMaxAttempts); ok {
		if parsed, err := parseInt(v, positiveInt, "must be > 0"); err != nil {
			warn(envOutboxMaxAttempts, v, err)
		} else {
			cfg.OutboxMaxAttempts = parsed
		}
	}
	if v, ok := get(envOutboxRetryDelay); ok {
		if parsed, err := parseDuration(v, nonNegativeDuration, "must be >= 0"); err != nil {
			warn(envOutboxRetryDelay, v, err)
		} else {
			cfg.OutboxRetryDelay = parsed
		}
	}
	if v, ok := get(envPaymentLatency); ok {
		if parsed, err := parseDuration(v, nonNegativeDuration, "must be >= 0"); err != nil {
			warn(envPaymentLatency, v, err)
		} else {
			cfg.PaymentLatency = parsed
		}
	}
	if v, ok := get(envPaymentFailureRate); ok {
		if parsed, err := parseRate(v); err != nil {
			warn(envPaymentFailureRate, v, err)
		} else {
			cfg.PaymentFailureRate = parsed
		}
	}
	if v, ok := get(envPaymentMaxAttempts); ok {
		if parsed, err := parseInt(v, positiveInt, "must be > 0"); err != nil {
			warn(envPaymentMaxAttempts, v, err)
		} else {
			cfg.PaymentMaxAttempts = parsed
		}
	}
	if v, ok := get(envShippingLatency); ok {
		if parsed, err := parseDuration(v, nonNegativeDuration, "must be >= 0"); err != nil {
			warn(envShippingLatency, v, err)
		} else {
			cfg.ShippingLatency = parsed
		}
	}

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value")
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, fmt.Errorf("%s", rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, fmt.Errorf("%s", rule)
	}
	return value, nil
}

func parseRate(raw string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if value < 0 || value > 1 {
		return 0, fmt.Errorf("must be within [0, 1]")
	}
	return value, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
