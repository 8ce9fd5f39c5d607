package domain

import "time"

// Типы событий жизненного цикла заказа.
const (
	EventOrderCreated   = "OrderCreated"
	EventOrderPaid      = "OrderPaid"
	EventOrderShipped   = "OrderShipped"
	EventOrderCancelled = "OrderCancelled"
	EventPaymentFailed  = "PaymentFailed"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Status   OrderStatus
	Reason   string
	Occurred time.Time
}

// EventTypeForStatus возвращает тип события, которым фиксируется переход в статус.
func EventTypeForStatus(status OrderStatus) string {
	switch status {
	case OrderStatusCreated:
		return EventOrderCreated
	case OrderStatusPaid:
		return EventOrderPaid
	case OrderStatusShipped:
		return EventOrderShipped
	case OrderStatusCancelled:
		return EventOrderCancelled
	default:
		return "OrderStatusChanged"
	}
}
