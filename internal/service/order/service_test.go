package order

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
	"github.com/vladislavdragonenkov/orderflow/internal/service/payment"
	"github.com/vladislavdragonenkov/orderflow/internal/service/shipping"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/memory"
)

type fixture struct {
	svc      *Service
	orders   domain.OrderRepository
	outbox   *memory.OutboxRepository
	payments *payment.StubGateway
	shipping *shipping.StubGateway
	registry *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := log.New()
	logger.SetLevel(log.PanicLevel)

	f := &fixture{
		orders:   memory.NewOrderRepository(),
		outbox:   memory.NewOutboxRepository(),
		payments: payment.NewStubGateway(),
		shipping: &shipping.StubGateway{},
		registry: prometheus.NewRegistry(),
	}
	f.svc = NewService(f.orders, f.payments, f.shipping,
		WithTimeline(memory.NewTimelineRepository()),
		WithOutbox(f.outbox),
		WithMetrics(metrics.NewOrderMetricsWithRegisterer(f.registry)),
		WithLogger(logger.WithField("test", t.Name())),
	)
	return f
}

func demoItems() []domain.OrderItem {
	return []domain.OrderItem{
		{SKU: "A100", Qty: 2, Price: decimal.RequireFromString("3.5")},
		{SKU: "B200", Qty: 1, Price: decimal.RequireFromString("9.9")},
	}
}

func (f *fixture) metricValue(t *testing.T, name string) float64 {
	t.Helper()
	families, err := f.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		var sum float64
		for _, m := range family.GetMetric() {
			sum += metricNumber(m)
		}
		return sum
	}
	return 0
}

func metricNumber(m *dto.Metric) float64 {
	switch {
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetHistogram() != nil:
		return float64(m.GetHistogram().GetSampleCount())
	default:
		return 0
	}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, "ORD-1", demoItems())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCreated, order.Status)
	assert.Equal(t, "created", order.Note())
	assert.Equal(t, "18.59", order.Total().StringFixed(2))

	stored, err := f.svc.Get(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, order.Items, stored.Items)

	assert.Equal(t, 1.0, f.metricValue(t, "orderflow_orders_created_total"))
	assert.Len(t, f.outbox.AllPending(), 1)
}

func TestCreateOrder_Duplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, "ORD-1", demoItems())
	require.NoError(t, err)

	_, err = f.svc.CreateOrder(ctx, "ORD-1", demoItems())
	assert.ErrorIs(t, err, domain.ErrOrderExists)
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, " ", demoItems())
	assert.ErrorIs(t, err, domain.ErrOrderIDRequired)

	_, err = f.svc.CreateOrder(ctx, "ORD-2", nil)
	assert.ErrorIs(t, err, domain.ErrItemsRequired)

	_, err = f.svc.CreateOrder(ctx, "ORD-3", []domain.OrderItem{{SKU: "A", Qty: 0, Price: decimal.NewFromInt(1)}})
	assert.ErrorIs(t, err, domain.ErrItemQtyInvalid)
}

func TestCheckout_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateOrder(ctx, "ORD-1", demoItems())
	require.NoError(t, err)

	res, err := f.svc.Checkout(ctx, "ORD-1", "")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, []domain.PaymentMethod{domain.PaymentMethodCard}, f.payments.Methods)

	order, err := f.svc.Get(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.Equal(t, "created\npaid", order.Note())
	assert.Equal(t, int64(1), order.Version)

	assert.Equal(t, 1.0, f.metricValue(t, "orderflow_orders_paid_total"))
	assert.Equal(t, 1.0, f.metricValue(t, "orderflow_checkout_duration_seconds"))
	assert.Equal(t, 0.0, f.metricValue(t, "orderflow_checkouts_in_flight"))
}

func TestCheckout_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(context.Background(), "missing", domain.PaymentMethodCard)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.Zero(t, f.payments.CallCount())
}

func TestCheckout_NotOK(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateOrder(ctx, "ORD-1", demoItems())
	require.NoError(t, err)

	f.payments.Result = domain.PaymentResult{OK: false, Message: "insufficient funds"}
	res, err := f.svc.Checkout(ctx, "ORD-1", domain.PaymentMethodCard)
	require.NoError(t, err)
	assert.False(t, res.OK)

	order, err := f.svc.Get(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCreated, order.Status)
	assert.Equal(t, 1.0, f.metricValue(t, "orderflow_payment_failures_total"))

	events, err := f.svc.Timeline(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventPaymentFailed, events[1].Type)
	assert.Equal(t, "insufficient funds", events[1].Reason)
}

func TestCheckout_GatewayError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateOrder(ctx, "ORD-1", demoItems())
	require.NoError(t, err)

	f.payments.Err = domain.ErrPaymentTemporary
	_, err = f.svc.Checkout(ctx, "ORD-1", domain.PaymentMethodCard)
	assert.ErrorIs(t, err, domain.ErrPaymentTemporary)

	order, err := f.svc.Get(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCreated, order.Status)
}

func TestCheckout_AlreadyPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateOrder(ctx, "ORD-1", demoItems())
	require.NoError(t, err)
	_, err = f.svc.Checkout(ctx, "ORD-1", domain.PaymentMethodCard)
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, "ORD-1", domain.PaymentMethodCard)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, 1, f.payments.CallCount())
}

func TestCheckout_ConcurrentPaysOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateOrder(ctx, "ORD-1", demoItems())
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Checkout(ctx, "ORD-1", domain.PaymentMethodCard); err == nil {
				succeeded.Add(1)
			} else {
				assert.ErrorIs(t, err, domain.ErrInvalidTransition)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, 1, f.payments.CallCount())
}

func TestShip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateOrder(ctx, "ORD-1", demoItems())
	require.NoError(t, err)

	_, err = f.svc.Ship(ctx, "ORD-1")
	assert.ErrorIs(t, err, domain.ErrOrderNotPaid)
	assert.Zero(t, f.shipping.CallCount())

	_, err = f.svc.Checkout(ctx, "ORD-1", domain.PaymentMethodCard)
	require.NoError(t, err)

	label, err := f.svc.Ship(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "SHP-ORD-1", label)

	order, err := f.svc.Get(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, order.Status)
	assert.Equal(t, "created\npaid\nshipped", order.Note())

	_, err = f.svc.Ship(ctx, "ORD-1")
	assert.ErrorIs(t, err, domain.ErrOrderNotPaid)
}

func TestShip_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Ship(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestShip_GatewayErrorKeepsPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateOrder(ctx, "ORD-1", demoItems())
	require.NoError(t, err)
	_, err = f.svc.Checkout(ctx, "ORD-1", domain.PaymentMethodCard)
	require.NoError(t, err)

	f.shipping.Err = domain.ErrShippingTemporary
	_, err = f.svc.Ship(ctx, "ORD-1")
	assert.ErrorIs(t, err, domain.ErrShippingTemporary)

	order, err := f.svc.Get(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateOrder(ctx, "ORD-1", demoItems())
	require.NoError(t, err)

	order, err := f.svc.Cancel(ctx, "ORD-1", "customer request")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	assert.Equal(t, "created\ncancelled: customer request", order.Note())

	// Повторная отмена не ошибка.
	again, err := f.svc.Cancel(ctx, "ORD-1", "")
	require.NoError(t, err)
	assert.Equal(t, order.Version, again.Version)

	_, err = f.svc.Checkout(ctx, "ORD-1", domain.PaymentMethodCard)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, 1.0, f.metricValue(t, "orderflow_orders_cancelled_total"))
}

func TestCancel_ShippedRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateOrder(ctx, "ORD-1", demoItems())
	require.NoError(t, err)
	_, err = f.svc.Checkout(ctx, "ORD-1", domain.PaymentMethodCard)
	require.NoError(t, err)
	_, err = f.svc.Ship(ctx, "ORD-1")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, "ORD-1", "too late")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTimelineAndOutbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateOrder(ctx, "ORD-1", demoItems())
	require.NoError(t, err)
	_, err = f.svc.Checkout(ctx, "ORD-1", domain.PaymentMethodCard)
	require.NoError(t, err)
	_, err = f.svc.Ship(ctx, "ORD-1")
	require.NoError(t, err)

	events, err := f.svc.Timeline(ctx, "ORD-1")
	require.NoError(t, err)
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{domain.EventOrderCreated, domain.EventOrderPaid, domain.EventOrderShipped}, types)

	pending := f.outbox.AllPending()
	require.Len(t, pending, 3)
	var shipped map[string]interface{}
	for _, msg := range pending {
		assert.Equal(t, AggregateType, msg.AggregateType)
		assert.Equal(t, "ORD-1", msg.AggregateID)
		if msg.EventType == domain.EventOrderShipped {
			require.NoError(t, json.Unmarshal(msg.Payload, &shipped))
		}
	}
	assert.Equal(t, "SHP-ORD-1", shipped["label"])
	assert.Equal(t, "SHIPPED", shipped["status"])

	_, err = f.svc.Timeline(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestTotalsReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateOrder(ctx, "ORD-1", demoItems())
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, "ORD-2", []domain.OrderItem{{SKU: "C", Qty: 1, Price: decimal.RequireFromString("0.05")}})
	require.NoError(t, err)

	report, err := f.svc.TotalsReport(ctx)
	require.NoError(t, err)
	require.Len(t, report, 2)
	assert.Equal(t, "18.59", report["ORD-1"].StringFixed(2))
	assert.Equal(t, "0.06", report["ORD-2"].StringFixed(2))
}

// uncachedRepository прячет кэш итогов, чтобы проверить пересчёт.
type uncachedRepository struct {
	domain.OrderRepository
}

func (uncachedRepository) CachedTotal(context.Context, string) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}

func TestTotalsReport_FallsBackToTotal(t *testing.T) {
	repo := uncachedRepository{OrderRepository: memory.NewOrderRepository()}
	svc := NewService(repo, payment.NewStubGateway(), &shipping.StubGateway{})
	ctx := context.Background()
	_, err := svc.CreateOrder(ctx, "ORD-1", demoItems())
	require.NoError(t, err)

	report, err := svc.TotalsReport(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("18.59").Equal(report["ORD-1"]))
}

// conflictingRepository имитирует конкурентную запись из другого процесса при первом Save.
type conflictingRepository struct {
	domain.OrderRepository
	once sync.Once
}

func (r *conflictingRepository) Save(ctx context.Context, order domain.Order) error {
	r.once.Do(func() {
		current, err := r.OrderRepository.Get(ctx, order.ID)
		if err == nil {
			current.AddNote("external")
			_ = r.OrderRepository.Save(ctx, current)
		}
	})
	return r.OrderRepository.Save(ctx, order)
}

func TestTransition_RetriesOnVersionConflict(t *testing.T) {
	repo := &conflictingRepository{OrderRepository: memory.NewOrderRepository()}
	svc := NewService(repo, payment.NewStubGateway(), &shipping.StubGateway{})
	ctx := context.Background()
	_, err := svc.CreateOrder(ctx, "ORD-1", demoItems())
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, "ORD-1", domain.PaymentMethodCard)
	require.NoError(t, err)

	order, err := svc.Get(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.Equal(t, "created\nexternal\npaid", order.Note())
	assert.Equal(t, int64(2), order.Version)
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := NewService(memory.NewOrderRepository(), payment.NewStubGateway(), &shipping.StubGateway{}, WithClock(func() time.Time { return fixed }))

	order, err := svc.CreateOrder(context.Background(), "ORD-1", demoItems())
	require.NoError(t, err)
	assert.Equal(t, fixed, order.CreatedAt)
}

func TestCheckout_ContextCancelled(t *testing.T) {
	repo := memory.NewOrderRepository()
	svc := NewService(repo, payment.NewMockGateway(payment.WithLatency(time.Second), payment.WithFailureRate(0)), &shipping.StubGateway{})
	_, err := svc.CreateOrder(context.Background(), "ORD-1", demoItems())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Checkout(ctx, "ORD-1", domain.PaymentMethodCard)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCheckout_PaymentFailedStampedWithFailureTime(t *testing.T) {
	f := newFixture(t)
	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	failed := created.Add(time.Hour)
	clock := created
	f.svc.now = func() time.Time { return clock }
	f.payments.Err = domain.ErrPaymentTemporary

	_, err := f.svc.CreateOrder(context.Background(), "ORD-1", demoItems())
	require.NoError(t, err)

	clock = failed
	_, err = f.svc.Checkout(context.Background(), "ORD-1", domain.PaymentMethodCard)
	require.ErrorIs(t, err, domain.ErrPaymentTemporary)

	events, err := f.svc.Timeline(context.Background(), "ORD-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventPaymentFailed, events[1].Type)
	assert.Equal(t, failed, events[1].Occurred)
	assert.Equal(t, created, events[0].Occurred)

	pending := f.outbox.AllPending()
	require.Len(t, pending, 2)
	var payload map[string]any
	for _, msg := range pending {
		if msg.EventType == domain.EventPaymentFailed {
			require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		}
	}
	assert.Equal(t, failed.Format(time.RFC3339Nano), payload["ts"])
}

func TestService_IDsAreTrimmedEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, " ORD-1 ", demoItems())
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, "ORD-1 ", domain.PaymentMethodCard)
	require.NoError(t, err)
	_, err = f.svc.Ship(ctx, "\tORD-1")
	require.NoError(t, err)

	order, err := f.svc.Get(ctx, " ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", order.ID)
	assert.Equal(t, domain.OrderStatusShipped, order.Status)

	events, err := f.svc.Timeline(ctx, "ORD-1  ")
	require.NoError(t, err)
	assert.Len(t, events, 3)

	_, err = f.svc.Cancel(ctx, " ORD-1 ", "late")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
