package shipping

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
)

// TimedGateway логирует и измеряет длительность создания отправления.
type TimedGateway struct {
	next    domain.ShippingGateway
	metrics *metrics.GatewayMetrics
	logger  *log.Entry
}

// NewTimedGateway оборачивает шлюз; gatewayMetrics может быть nil.
func NewTimedGateway(next domain.ShippingGateway, gatewayMetrics *metrics.GatewayMetrics, logger *log.Entry) *TimedGateway {
	if logger == nil {
		logger = log.New().WithField("component", "shipping-gateway")
	}
	return &TimedGateway{next: next, metrics: gatewayMetrics, logger: logger}
}

func (g *TimedGateway) Ship(ctx context.Context, order domain.Order) (label string, err error) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		ms := float64(elapsed.Microseconds()) / 1000
		g.logger.WithField("order_id", order.ID).Debugf("ship took %.1fms", ms)
		if g.metrics != nil {
			g.metrics.ObserveCall("shipping", "ship", elapsed, err)
		}
	}()

	return g.next.Ship(ctx, order)
}

var _ domain.ShippingGateway = (*TimedGateway)(nil)
