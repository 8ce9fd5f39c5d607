package payment

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
	"github.com/vladislavdragonenkov/orderflow/internal/service/resilience"
)

const (
	gatewayName  = "payment"
	operationPay = "pay"
)

// RetryingGateway повторяет временные ошибки провайдера по RetryConfig.
type RetryingGateway struct {
	next    domain.PaymentGateway
	retrier *resilience.Retrier
}

// NewRetryingGateway оборачивает шлюз retry-логикой; gatewayMetrics может быть nil.
func NewRetryingGateway(next domain.PaymentGateway, config resilience.RetryConfig, gatewayMetrics *metrics.GatewayMetrics, logger *log.Entry) *RetryingGateway {
	if logger == nil {
		logger = log.New().WithField("component", "payment-retry")
	}
	retrier := resilience.NewRetrier(config, logger)
	if gatewayMetrics != nil {
		retrier.OnRetry(func(int, error) {
			gatewayMetrics.RecordRetry(gatewayName, operationPay)
		})
	}
	return &RetryingGateway{next: next, retrier: retrier}
}

// Pay вызывает обёрнутый шлюз с повторами.
func (g *RetryingGateway) Pay(ctx context.Context, order domain.Order, method domain.PaymentMethod) (domain.PaymentResult, error) {
	var result domain.PaymentResult
	err := g.retrier.Do(ctx, "payment.pay:"+order.ID, func(ctx context.Context) error {
		res, err := g.next.Pay(ctx, order, method)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return domain.PaymentResult{}, err
	}
	return result, nil
}

// TimedGateway логирует и измеряет длительность вызова.
type TimedGateway struct {
	next    domain.PaymentGateway
	metrics *metrics.GatewayMetrics
	logger  *log.Entry
}

// NewTimedGateway оборачивает шлюз замером времени; gatewayMetrics может быть nil.
func NewTimedGateway(next domain.PaymentGateway, gatewayMetrics *metrics.GatewayMetrics, logger *log.Entry) *TimedGateway {
	if logger == nil {
		logger = log.New().WithField("component", "payment-gateway")
	}
	return &TimedGateway{next: next, metrics: gatewayMetrics, logger: logger}
}

// Pay вызывает обёрнутый шлюз и пишет длительность в debug-лог и гистограмму.
func (g *TimedGateway) Pay(ctx context.Context, order domain.Order, method domain.PaymentMethod) (result domain.PaymentResult, err error) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		g.logger.WithFields(log.Fields{
			"order_id":    order.ID,
			"duration_ms": float64(elapsed.Microseconds()) / 1000,
		}).Debugf("%s took %.1fms", operationPay, float64(elapsed.Microseconds())/1000)
		if g.metrics != nil {
			g.metrics.ObserveCall(gatewayName, operationPay, elapsed, err)
		}
	}()

	return g.next.Pay(ctx, order, method)
}

// BreakerGateway отсекает вызовы, пока провайдер деградировал.
type BreakerGateway struct {
	next    domain.PaymentGateway
	breaker *resilience.CircuitBreaker
}

// NewBreakerGateway оборачивает шлюз circuit breaker.
func NewBreakerGateway(next domain.PaymentGateway, breaker *resilience.CircuitBreaker) *BreakerGateway {
	return &BreakerGateway{next: next, breaker: breaker}
}

// Pay выполняет вызов через circuit breaker.
func (g *BreakerGateway) Pay(ctx context.Context, order domain.Order, method domain.PaymentMethod) (domain.PaymentResult, error) {
	var result domain.PaymentResult
	err := g.breaker.Execute(operationPay, func() error {
		res, err := g.next.Pay(ctx, order, method)
		result = res
		return err
	})
	return result, err
}

var (
	_ domain.PaymentGateway = (*RetryingGateway)(nil)
	_ domain.PaymentGateway = (*TimedGateway)(nil)
	_ domain.PaymentGateway = (*BreakerGateway)(nil)
)
