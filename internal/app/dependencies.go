package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/orderflow/internal/health"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
	"github.com/vladislavdragonenkov/orderflow/internal/service/order"
	"github.com/vladislavdragonenkov/orderflow/internal/service/outbox"
	"github.com/vladislavdragonenkov/orderflow/internal/service/payment"
	"github.com/vladislavdragonenkov/orderflow/internal/service/resilience"
	"github.com/vladislavdragonenkov/orderflow/internal/service/shipping"
	"github.com/vladislavdragonenkov/orderflow/internal/version"
)

// Gateways — внешние шлюзы с навешанными декораторами.
type Gateways struct {
	Payments domain.PaymentGateway
	Shipping domain.ShippingGateway
	Breaker  *resilience.CircuitBreaker
}

// NewGateways собирает цепочку платёжного шлюза: метрики → повторы → circuit breaker → mock.
func NewGateways(cfg Config, gatewayMetrics *metrics.GatewayMetrics, logger *log.Entry) Gateways {
	breaker := resilience.NewCircuitBreaker(cfg.BreakerMaxFailures, cfg.BreakerResetTimeout,
		logger.WithField("component", "payment-breaker"))

	retryCfg := resilience.DefaultRetryConfig()
	if cfg.PaymentMaxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.PaymentMaxAttempts
	}

	var payments domain.PaymentGateway = payment.NewMockGateway(
		payment.WithLatency(cfg.PaymentLatency),
		payment.WithFailureRate(cfg.PaymentFailureRate),
	)
	payments = payment.NewBreakerGateway(payments, breaker)
	payments = payment.NewRetryingGateway(payments, retryCfg, gatewayMetrics, logger.WithField("component", "payment-retry"))
	payments = payment.NewTimedGateway(payments, gatewayMetrics, logger.WithField("component", "payment-gateway"))

	var ship domain.ShippingGateway = shipping.NewMockGateway(cfg.ShippingLatency)
	ship = shipping.NewTimedGateway(ship, gatewayMetrics, logger.WithField("component", "shipping-gateway"))

	return Gateways{Payments: payments, Shipping: ship, Breaker: breaker}
}

// Runtime держит собранный граф зависимостей сервиса заказов.
type Runtime struct {
	Orders *order.Service
	Outbox domain.OutboxRepository
	Health *healthcheck.Handler

	worker   *outbox.Worker
	producer *kafka.Producer
	deps     *runtimeDependencies
	logger   *log.Entry
}

// Build инициализирует хранилища, шлюзы, сервис заказов и (при наличии Kafka) outbox worker.
// Метрики регистрируются в registerer.
func Build(ctx context.Context, cfg Config, registerer prometheus.Registerer, logger *log.Entry) (*Runtime, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	gateways := NewGateways(cfg, metrics.NewGatewayMetricsWithRegisterer(registerer), logger)
	svc := order.NewService(deps.repo, gateways.Payments, gateways.Shipping,
		order.WithTimeline(deps.timelineRepo),
		order.WithOutbox(deps.outboxRepo),
		order.WithMetrics(metrics.NewOrderMetricsWithRegisterer(registerer)),
		order.WithLogger(logger.WithField("component", "order-service")),
	)

	health := healthcheck.NewHandler(version.GetVersion())
	health.RegisterChecker("storage", deps.storageChecker)
	if deps.cacheChecker != nil {
		health.RegisterChecker("totals-cache", deps.cacheChecker)
	}
	health.RegisterChecker("payment-breaker", healthcheck.NewOptionalChecker("payment-breaker", func(context.Context) error {
		if gateways.Breaker.State() == resilience.CircuitOpen {
			return domain.ErrCircuitOpen
		}
		return nil
	}))

	rt := &Runtime{
		Orders: svc,
		Outbox: deps.outboxRepo,
		Health: health,
		deps:   deps,
		logger: logger,
	}

	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err == nil && producer != nil {
		rt.producer = producer
		rt.worker = outbox.NewWorker(deps.outboxRepo,
			kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
			outbox.WithDLQPublisher(kafka.NewDeadLetterPublisher(producer, cfg.KafkaDLQ, cfg.KafkaTopic)),
			outbox.WithMetrics(metrics.NewOutboxMetricsWithRegisterer(registerer)),
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
	}

	return rt, nil
}

// StartOutbox запускает outbox worker, если Kafka настроена. Возвращённая функция
// останавливает воркер и ждёт его завершения.
func (r *Runtime) StartOutbox(ctx context.Context) func() {
	if r.worker == nil {
		r.logger.Info("kafka is not configured, outbox events stay pending")
		return func() {}
	}
	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.worker.Run(workerCtx)
	}()
	return func() { shutdownOutboxWorker(cancel, done, r.logger) }
}

// Close дожидается фоновых checkout и освобождает ресурсы.
func (r *Runtime) Close() error {
	r.Orders.Wait()
	closeKafkaProducer(r.producer, r.logger)
	r.producer = nil
	if r.deps == nil {
		return nil
	}
	return r.deps.closeFn()
}

func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
	logger.Info("outbox worker stopped")
}
