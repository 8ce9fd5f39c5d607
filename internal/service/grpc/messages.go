package grpcsvc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// Item — позиция заказа. В запросе принимается и кортежем [sku, qty, price], и объектом.
type Item struct {
	SKU   string          `json:"sku" validate:"required,max=64"`
	Qty   int32           `json:"qty" validate:"gt=0"`
	Price decimal.Decimal `json:"price" validate:"gte=0"`
}

type itemObject Item

// UnmarshalJSON разбирает позицию из кортежа или объекта.
func (i *Item) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return json.Unmarshal(data, (*itemObject)(i))
	}

	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 3 {
		return fmt.Errorf("item tuple must have 3 elements [sku, qty, price], got %d", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &i.SKU); err != nil {
		return fmt.Errorf("item sku: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &i.Qty); err != nil {
		return fmt.Errorf("item qty: %w", err)
	}
	if err := json.Unmarshal(tuple[2], &i.Price); err != nil {
		return fmt.Errorf("item price: %w", err)
	}
	return nil
}

// TupleItem собирает позицию из сырого кортежа (sku, qty, price).
func TupleItem(sku string, qty int32, price float64) Item {
	return Item{SKU: sku, Qty: qty, Price: decimal.NewFromFloat(price)}
}

type CreateOrderRequest struct {
	ID    string `json:"id" validate:"required,max=64"`
	Items []Item `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderResponse struct {
	ID     string             `json:"id"`
	Status domain.OrderStatus `json:"status"`
	Total  decimal.Decimal    `json:"total"`
}

type CheckoutRequest struct {
	OrderID string `json:"order_id" validate:"required"`
	Method  string `json:"method,omitempty" validate:"omitempty,max=32"`
}

type CheckoutResponse struct {
	OrderID string               `json:"order_id"`
	Status  domain.OrderStatus   `json:"status"`
	Payment domain.PaymentResult `json:"payment"`
}

type ShipRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}

type ShipResponse struct {
	OrderID string             `json:"order_id"`
	Status  domain.OrderStatus `json:"status"`
	Label   string             `json:"label"`
}

type CancelOrderRequest struct {
	OrderID string `json:"order_id" validate:"required"`
	Reason  string `json:"reason,omitempty" validate:"max=256"`
}

type CancelOrderResponse struct {
	OrderID string             `json:"order_id"`
	Status  domain.OrderStatus `json:"status"`
}

type GetOrderRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}

type GetOrderResponse struct {
	Order    Order           `json:"order"`
	Timeline []TimelineEvent `json:"timeline"`
}

type ListOrdersRequest struct{}

type ListOrdersResponse struct {
	Orders []Order `json:"orders"`
}

type GetTimelineRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}

type GetTimelineResponse struct {
	OrderID string          `json:"order_id"`
	Events  []TimelineEvent `json:"events"`
}

type TotalsReportRequest struct{}

type TotalsReportResponse struct {
	Report map[string]decimal.Decimal `json:"report"`
}

// Order — представление заказа в ответах API.
type Order struct {
	ID        string             `json:"id"`
	Status    domain.OrderStatus `json:"status"`
	Items     []Item             `json:"items"`
	Note      string             `json:"note"`
	Subtotal  decimal.Decimal    `json:"subtotal"`
	Tax       decimal.Decimal    `json:"tax"`
	Total     decimal.Decimal    `json:"total"`
	Version   int64              `json:"version"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// TimelineEvent — событие жизненного цикла в ответах API.
type TimelineEvent struct {
	Type     string             `json:"type"`
	Status   domain.OrderStatus `json:"status,omitempty"`
	Reason   string             `json:"reason,omitempty"`
	Occurred time.Time          `json:"occurred"`
}

func toAPIOrder(order domain.Order) Order {
	items := make([]Item, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, Item{SKU: item.SKU, Qty: item.Qty, Price: item.Price})
	}
	return Order{
		ID:        order.ID,
		Status:    order.Status,
		Items:     items,
		Note:      order.Note(),
		Subtotal:  order.Subtotal(),
		Tax:       order.Tax(),
		Total:     order.Total(),
		Version:   order.Version,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
}

func toAPITimeline(events []domain.TimelineEvent) []TimelineEvent {
	result := make([]TimelineEvent, 0, len(events))
	for _, event := range events {
		result = append(result, TimelineEvent{
			Type:     event.Type,
			Status:   event.Status,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}
	return result
}

func toDomainItems(items []Item) []domain.OrderItem {
	result := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		result = append(result, domain.OrderItem{SKU: item.SKU, Qty: item.Qty, Price: item.Price})
	}
	return result
}
