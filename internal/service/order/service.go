package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
)

const tracerName = "github.com/vladislavdragonenkov/orderflow/internal/service/order"

// Заметки, которые сервис дописывает в историю заказа.
const (
	noteCreated   = "created"
	notePaid      = "paid"
	noteShipped   = "shipped"
	noteCancelled = "cancelled"
)

// maxSaveAttempts — сколько раз перечитываем заказ при конфликте версий.
const maxSaveAttempts = 3

// Service реализует жизненный цикл заказа поверх репозитория и внешних шлюзов.
type Service struct {
	orders   domain.OrderRepository
	payments domain.PaymentGateway
	shipping domain.ShippingGateway
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	metrics  *metrics.OrderMetrics
	logger   *log.Entry
	tracer   trace.Tracer
	now      func() time.Time

	locks *stripedLocks
	async sync.WaitGroup
}

// Option настраивает Service.
type Option func(*Service)

// WithTimeline подключает хранилище событий жизненного цикла.
func WithTimeline(timeline domain.TimelineRepository) Option {
	return func(s *Service) { s.timeline = timeline }
}

// WithOutbox включает постановку событий в transactional outbox.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(s *Service) { s.outbox = outbox }
}

// WithMetrics подключает Prometheus-метрики.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer задаёт OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock подменяет источник времени (тесты).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLockStripes задаёт число полос блокировок.
func WithLockStripes(n int) Option {
	return func(s *Service) { s.locks = newStripedLocks(n) }
}

// NewService создаёт сервис заказов.
func NewService(orders domain.OrderRepository, payments domain.PaymentGateway, shipping domain.ShippingGateway, options ...Option) *Service {
	s := &Service{
		orders:   orders,
		payments: payments,
		shipping: shipping,
		logger:   log.New().WithField("component", "order-service"),
		tracer:   otel.Tracer(tracerName),
		now:      func() time.Time { return time.Now().UTC() },
		locks:    newStripedLocks(defaultLockStripes),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// CreateOrder создаёт заказ в статусе CREATED. Повторный id возвращает ErrOrderExists.
func (s *Service) CreateOrder(ctx context.Context, id string, items []domain.OrderItem) (_ domain.Order, err error) {
	ctx, span := s.startSpan(ctx, "order.CreateOrder", id)
	defer func() { endSpan(span, err) }()

	id = normalizeID(id)
	order := domain.NewOrder(id, items, s.now())
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errors.Join(errs...)
	}

	unlock := s.locks.lock(id)
	defer unlock()

	order.AddNote(noteCreated)
	if err := s.orders.Create(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("create order %s: %w", id, err)
	}

	s.logger.WithFields(log.Fields{
		"order_id": id,
		"items":    len(order.Items),
		"total":    order.Total().StringFixed(2),
	}).Info("order created")
	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
	}
	s.emitEvent(&order, domain.EventOrderCreated, "", order.UpdatedAt, map[string]interface{}{
		"total": order.Total().StringFixed(2),
	})
	return order, nil
}

// Checkout оплачивает заказ в статусе CREATED. Отказ провайдера (OK=false) возвращается
// без ошибки, статус при этом не меняется.
func (s *Service) Checkout(ctx context.Context, id string, method domain.PaymentMethod) (_ domain.PaymentResult, err error) {
	id = normalizeID(id)
	ctx, span := s.startSpan(ctx, "order.Checkout", id)
	defer func() { endSpan(span, err) }()

	if s.metrics != nil {
		done := s.metrics.CheckoutStarted()
		defer done()
	}

	unlock := s.locks.lock(id)
	defer unlock()

	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.PaymentResult{}, fmt.Errorf("checkout %s: %w", id, err)
	}
	if !order.Status.CanTransitionTo(domain.OrderStatusPaid) {
		return domain.PaymentResult{}, fmt.Errorf("checkout %s: %w: status %s", id, domain.ErrInvalidTransition, order.Status)
	}

	method = method.Normalize()
	span.SetAttributes(attribute.String("payment.method", string(method)))

	result, err := s.payments.Pay(ctx, order, method)
	if err != nil {
		s.paymentFailed(&order, err.Error())
		return domain.PaymentResult{}, fmt.Errorf("checkout %s: %w", id, err)
	}
	if !result.OK {
		s.paymentFailed(&order, result.Message)
		return result, nil
	}

	if err := s.transition(ctx, &order, domain.OrderStatusPaid, notePaid); err != nil {
		return domain.PaymentResult{}, fmt.Errorf("checkout %s: %w", id, err)
	}

	s.logger.WithFields(log.Fields{
		"order_id": id,
		"txn_id":   result.TxnID,
		"method":   method,
	}).Info("order paid")
	if s.metrics != nil {
		s.metrics.RecordOrderPaid()
	}
	s.emitEvent(&order, domain.EventOrderPaid, "", order.UpdatedAt, map[string]interface{}{
		"txn_id": result.TxnID,
		"method": string(method),
		"total":  order.Total().StringFixed(2),
	})
	return result, nil
}

// Ship передаёт оплаченный заказ в доставку и возвращает трек-лейбл.
func (s *Service) Ship(ctx context.Context, id string) (_ string, err error) {
	id = normalizeID(id)
	ctx, span := s.startSpan(ctx, "order.Ship", id)
	defer func() { endSpan(span, err) }()

	unlock := s.locks.lock(id)
	defer unlock()

	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("ship %s: %w", id, err)
	}
	if order.Status != domain.OrderStatusPaid {
		return "", fmt.Errorf("ship %s: %w: status %s", id, domain.ErrOrderNotPaid, order.Status)
	}

	label, err := s.shipping.Ship(ctx, order)
	if err != nil {
		return "", fmt.Errorf("ship %s: %w", id, err)
	}

	if err := s.transition(ctx, &order, domain.OrderStatusShipped, noteShipped); err != nil {
		return "", fmt.Errorf("ship %s: %w", id, err)
	}

	s.logger.WithFields(log.Fields{
		"order_id": id,
		"label":    label,
	}).Info("order shipped")
	if s.metrics != nil {
		s.metrics.RecordOrderShipped()
	}
	s.emitEvent(&order, domain.EventOrderShipped, "", order.UpdatedAt, map[string]interface{}{
		"label": label,
	})
	return label, nil
}

// Cancel отменяет заказ, который ещё не отгружен.
func (s *Service) Cancel(ctx context.Context, id, reason string) (_ domain.Order, err error) {
	id = normalizeID(id)
	ctx, span := s.startSpan(ctx, "order.Cancel", id)
	defer func() { endSpan(span, err) }()

	unlock := s.locks.lock(id)
	defer unlock()

	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("cancel %s: %w", id, err)
	}
	if order.Status == domain.OrderStatusCancelled {
		return order, nil
	}

	note := noteCancelled
	if reason = strings.TrimSpace(reason); reason != "" {
		note += ": " + reason
	}
	if err := s.transition(ctx, &order, domain.OrderStatusCancelled, note); err != nil {
		return domain.Order{}, fmt.Errorf("cancel %s: %w", id, err)
	}

	s.logger.WithFields(log.Fields{
		"order_id": id,
		"reason":   reason,
	}).Info("order cancelled")
	if s.metrics != nil {
		s.metrics.RecordOrderCancelled()
	}
	s.emitEvent(&order, domain.EventOrderCancelled, reason, order.UpdatedAt, nil)
	return order, nil
}

// Get возвращает заказ по идентификатору.
func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	return s.orders.Get(ctx, normalizeID(id))
}

// List возвращает все заказы в порядке создания.
func (s *Service) List(ctx context.Context) ([]domain.Order, error) {
	return s.orders.List(ctx)
}

// Timeline возвращает события заказа в хронологическом порядке.
func (s *Service) Timeline(ctx context.Context, id string) ([]domain.TimelineEvent, error) {
	id = normalizeID(id)
	if _, err := s.orders.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return s.timeline.List(id)
}

// TotalsReport возвращает итог по каждому заказу: из кэша, а при его отсутствии пересчитанный.
func (s *Service) TotalsReport(ctx context.Context) (_ map[string]decimal.Decimal, err error) {
	ctx, span := s.startSpan(ctx, "order.TotalsReport", "")
	defer func() { endSpan(span, err) }()

	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("totals report: %w", err)
	}

	report := make(map[string]decimal.Decimal, len(orders))
	for i := range orders {
		order := &orders[i]
		cached, ok, err := s.orders.CachedTotal(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("totals report %s: %w", order.ID, err)
		}
		if ok {
			report[order.ID] = cached
			continue
		}
		report[order.ID] = order.Total()
	}
	return report, nil
}

// transition применяет переход и сохраняет заказ. При конфликте версий перечитывает
// свежую копию и повторяет, если переход всё ещё допустим.
func (s *Service) transition(ctx context.Context, order *domain.Order, next domain.OrderStatus, note string) error {
	for attempt := 1; ; attempt++ {
		updated := order.Clone()
		if err := updated.Transition(next, s.now()); err != nil {
			return err
		}
		updated.AddNote(note)

		err := s.orders.Save(ctx, updated)
		if err == nil {
			updated.Version++
			*order = updated
			return nil
		}
		if !domain.IsVersionConflict(err) || attempt >= maxSaveAttempts {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"status":   next,
				"attempt":  attempt,
			}).Error("failed to persist status")
			return err
		}

		s.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"attempt":  attempt,
			"version":  order.Version,
		}).Warn("version conflict detected, reloading")

		fresh, loadErr := s.orders.Get(ctx, order.ID)
		if loadErr != nil {
			return loadErr
		}
		*order = fresh
	}
}

// normalizeID приводит идентификатор к виду, в котором заказ хранится.
func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

func (s *Service) paymentFailed(order *domain.Order, reason string) {
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"reason":   reason,
	}).Warn("payment failed")
	if s.metrics != nil {
		s.metrics.RecordPaymentFailed()
	}
	s.emitEvent(order, domain.EventPaymentFailed, reason, s.now(), nil)
}

func (s *Service) startSpan(ctx context.Context, name, orderID string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name)
	if orderID != "" {
		span.SetAttributes(attribute.String("order.id", orderID))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
