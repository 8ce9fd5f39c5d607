package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/resilience"
)

const (
	// DefaultLatency — имитация задержки сети до провайдера.
	DefaultLatency = 50 * time.Millisecond
	// DefaultFailureRate — доля вызовов, завершающихся временной сетевой ошибкой.
	DefaultFailureRate = 0.1
	// MockTxnID — идентификатор транзакции, который возвращает заглушка.
	MockTxnID = "TXN-12345"
)

// MockGateway — имитация платёжного провайдера со случайными временными сбоями.
type MockGateway struct {
	latency     time.Duration
	failureRate float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// MockOption настраивает MockGateway.
type MockOption func(*MockGateway)

// WithLatency задаёт задержку ответа.
func WithLatency(latency time.Duration) MockOption {
	return func(g *MockGateway) {
		g.latency = latency
	}
}

// WithFailureRate задаёт вероятность временной ошибки (0..1).
func WithFailureRate(rate float64) MockOption {
	return func(g *MockGateway) {
		g.failureRate = rate
	}
}

// WithRandSource подменяет источник случайности (детерминированные тесты).
func WithRandSource(src rand.Source) MockOption {
	return func(g *MockGateway) {
		g.rnd = rand.New(src)
	}
}

// NewMockGateway создаёт заглушку с задержкой 50мс и 10% временных сбоев.
func NewMockGateway(options ...MockOption) *MockGateway {
	g := &MockGateway{
		latency:     DefaultLatency,
		failureRate: DefaultFailureRate,
		rnd:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, option := range options {
		option(g)
	}
	if g.latency < 0 {
		g.latency = 0
	}
	return g
}

// Pay имитирует списание: ждёт latency и с вероятностью failureRate возвращает ErrPaymentTemporary.
func (g *MockGateway) Pay(ctx context.Context, order domain.Order, method domain.PaymentMethod) (domain.PaymentResult, error) {
	if err := resilience.Sleep(ctx, g.latency); err != nil {
		return domain.PaymentResult{}, err
	}
	if g.roll() < g.failureRate {
		return domain.PaymentResult{}, fmt.Errorf("%w: transient network error", domain.ErrPaymentTemporary)
	}

	return domain.PaymentResult{
		OK:      true,
		TxnID:   MockTxnID,
		Message: fmt.Sprintf("Paid via %s", method.Normalize()),
	}, nil
}

func (g *MockGateway) roll() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Float64()
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
