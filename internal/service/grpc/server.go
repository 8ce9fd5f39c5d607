package grpcsvc

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/order"
)

// OrderService — операции сервиса заказов, которые использует транспорт.
type OrderService interface {
	CreateOrder(ctx context.Context, id string, items []domain.OrderItem) (domain.Order, error)
	Checkout(ctx context.Context, id string, method domain.PaymentMethod) (domain.PaymentResult, error)
	Ship(ctx context.Context, id string) (string, error)
	Cancel(ctx context.Context, id, reason string) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	Timeline(ctx context.Context, id string) ([]domain.TimelineEvent, error)
	TotalsReport(ctx context.Context) (map[string]decimal.Decimal, error)
}

var _ OrderService = (*order.Service)(nil)

// OrderServer реализует OrderServiceServer поверх сервиса заказов.
type OrderServer struct {
	svc      OrderService
	validate *validator.Validate
	logger   *log.Entry
}

// NewOrderServer конструирует gRPC-обработчик.
func NewOrderServer(svc OrderService, logger *log.Entry) *OrderServer {
	if logger == nil {
		logger = log.New().WithField("component", "grpc-order-service")
	}
	return &OrderServer{
		svc:      svc,
		validate: NewValidator(),
		logger:   logger,
	}
}

// NewValidator возвращает validator, понимающий decimal.Decimal как число.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// CreateOrder превращает сырые позиции в заказ и отвечает {id, status, total}.
func (s *OrderServer) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, s.toStatus(err, "CreateOrder", req.ID)
	}

	created, err := s.svc.CreateOrder(ctx, strings.TrimSpace(req.ID), toDomainItems(req.Items))
	if err != nil {
		return nil, s.toStatus(err, "CreateOrder", req.ID)
	}

	return &CreateOrderResponse{
		ID:     created.ID,
		Status: created.Status,
		Total:  created.Total(),
	}, nil
}

// Checkout оплачивает заказ. Отказ провайдера приходит в Payment.OK=false без ошибки.
func (s *OrderServer) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, s.toStatus(err, "Checkout", req.OrderID)
	}

	result, err := s.svc.Checkout(ctx, req.OrderID, domain.PaymentMethod(req.Method))
	if err != nil {
		return nil, s.toStatus(err, "Checkout", req.OrderID)
	}

	current, err := s.svc.Get(ctx, req.OrderID)
	if err != nil {
		return nil, s.toStatus(err, "Checkout", req.OrderID)
	}

	return &CheckoutResponse{
		OrderID: current.ID,
		Status:  current.Status,
		Payment: result,
	}, nil
}

// Ship отгружает оплаченный заказ.
func (s *OrderServer) Ship(ctx context.Context, req *ShipRequest) (*ShipResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, s.toStatus(err, "Ship", req.OrderID)
	}

	label, err := s.svc.Ship(ctx, req.OrderID)
	if err != nil {
		return nil, s.toStatus(err, "Ship", req.OrderID)
	}

	return &ShipResponse{
		OrderID: req.OrderID,
		Status:  domain.OrderStatusShipped,
		Label:   label,
	}, nil
}

// CancelOrder отменяет заказ до отгрузки.
func (s *OrderServer) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*CancelOrderResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, s.toStatus(err, "CancelOrder", req.OrderID)
	}

	cancelled, err := s.svc.Cancel(ctx, req.OrderID, req.Reason)
	if err != nil {
		return nil, s.toStatus(err, "CancelOrder", req.OrderID)
	}

	return &CancelOrderResponse{OrderID: cancelled.ID, Status: cancelled.Status}, nil
}

// GetOrder возвращает заказ и его таймлайн.
func (s *OrderServer) GetOrder(ctx context.Context, req *GetOrderRequest) (*GetOrderResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, s.toStatus(err, "GetOrder", req.OrderID)
	}

	found, err := s.svc.Get(ctx, req.OrderID)
	if err != nil {
		return nil, s.toStatus(err, "GetOrder", req.OrderID)
	}

	events, err := s.svc.Timeline(ctx, req.OrderID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", req.OrderID).Warn("failed to list timeline events")
		events = nil
	}

	return &GetOrderResponse{
		Order:    toAPIOrder(found),
		Timeline: toAPITimeline(events),
	}, nil
}

// ListOrders возвращает все заказы в порядке создания.
func (s *OrderServer) ListOrders(ctx context.Context, _ *ListOrdersRequest) (*ListOrdersResponse, error) {
	orders, err := s.svc.List(ctx)
	if err != nil {
		return nil, s.toStatus(err, "ListOrders", "")
	}

	result := make([]Order, 0, len(orders))
	for _, o := range orders {
		result = append(result, toAPIOrder(o))
	}
	return &ListOrdersResponse{Orders: result}, nil
}

// GetTimeline возвращает события заказа.
func (s *OrderServer) GetTimeline(ctx context.Context, req *GetTimelineRequest) (*GetTimelineResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, s.toStatus(err, "GetTimeline", req.OrderID)
	}

	events, err := s.svc.Timeline(ctx, req.OrderID)
	if err != nil {
		return nil, s.toStatus(err, "GetTimeline", req.OrderID)
	}

	return &GetTimelineResponse{OrderID: req.OrderID, Events: toAPITimeline(events)}, nil
}

// TotalsReport возвращает итоги по всем заказам.
func (s *OrderServer) TotalsReport(ctx context.Context, _ *TotalsReportRequest) (*TotalsReportResponse, error) {
	report, err := s.svc.TotalsReport(ctx)
	if err != nil {
		return nil, s.toStatus(err, "TotalsReport", "")
	}
	return &TotalsReportResponse{Report: report}, nil
}

var _ OrderServiceServer = (*OrderServer)(nil)
