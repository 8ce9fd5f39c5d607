package shipping

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/resilience"
)

// DefaultLatency — имитация задержки службы доставки.
const DefaultLatency = 30 * time.Millisecond

// LabelPrefix — префикс трек-лейбла.
const LabelPrefix = "SHP-"

// MockGateway всегда успешно выдаёт лейбл вида SHP-<order id>.
type MockGateway struct {
	latency time.Duration
}

// NewMockGateway создаёт заглушку службы доставки.
func NewMockGateway(latency time.Duration) *MockGateway {
	if latency < 0 {
		latency = 0
	}
	return &MockGateway{latency: latency}
}

// Ship ждёт latency и возвращает лейбл отправления.
func (g *MockGateway) Ship(ctx context.Context, order domain.Order) (string, error) {
	if err := resilience.Sleep(ctx, g.latency); err != nil {
		return "", err
	}
	return LabelPrefix + order.ID, nil
}

var _ domain.ShippingGateway = (*MockGateway)(nil)
