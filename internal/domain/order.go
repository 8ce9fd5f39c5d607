package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusCreated — заказ создан и ожидает оплаты.
	OrderStatusCreated OrderStatus = "CREATED"
	// OrderStatusPaid — оплата подтверждена платёжным шлюзом.
	OrderStatusPaid OrderStatus = "PAID"
	// OrderStatusShipped — заказ передан в доставку, получен трек-лейбл.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusCancelled — заказ отменён до отгрузки.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// TaxRate — фиксированная ставка налога, начисляемая на сумму позиций.
var TaxRate = decimal.RequireFromString("0.10")

// moneyPlaces — точность денежных сумм.
const moneyPlaces = 2

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusPaid, OrderStatusShipped, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, что из статуса больше нет переходов.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusShipped || s == OrderStatusCancelled
}

// CanTransitionTo проверяет допустимость перехода CREATED→PAID→SHIPPED с отменой до отгрузки.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusCreated:
		return next == OrderStatusPaid || next == OrderStatusCancelled
	case OrderStatusPaid:
		return next == OrderStatusShipped || next == OrderStatusCancelled
	default:
		return false
	}
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// SKU — внешний идентификатор товара.
	SKU string
	// Qty — количество единиц товара.
	Qty int32
	// Price — цена за единицу.
	Price decimal.Decimal
}

// Subtotal возвращает qty * price без налога.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt32(i.Qty))
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID        string
	Items     []OrderItem
	Status    OrderStatus
	Notes     []string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrder создаёт заказ в статусе CREATED.
func NewOrder(id string, items []OrderItem, now time.Time) Order {
	return Order{
		ID:        id,
		Items:     append([]OrderItem(nil), items...),
		Status:    OrderStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Subtotal — сумма позиций без налога.
func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.Subtotal())
	}
	return sum
}

// Tax — налог с суммы позиций, округлённый до копеек.
func (o *Order) Tax() decimal.Decimal {
	return o.Subtotal().Mul(TaxRate).Round(moneyPlaces)
}

// Total — итоговая сумма к оплате: позиции плюс налог.
func (o *Order) Total() decimal.Decimal {
	return o.Subtotal().Add(o.Tax()).Round(moneyPlaces)
}

// AddNote дописывает служебную заметку в историю заказа.
func (o *Order) AddNote(text string) {
	o.Notes = append(o.Notes, text)
}

// Note возвращает заметки одной строкой, через перевод строки.
func (o *Order) Note() string {
	return strings.Join(o.Notes, "\n")
}

// Transition переводит заказ в новый статус, если переход разрешён.
func (o *Order) Transition(next OrderStatus, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}

// Clone возвращает глубокую копию, чтобы хранилища не делили слайсы с вызывающим кодом.
func (o Order) Clone() Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	o.Notes = append([]string(nil), o.Notes...)
	return o
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if strings.TrimSpace(o.ID) == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrStatusInvalid)
	}

	for _, item := range o.Items {
		if strings.TrimSpace(item.SKU) == "" {
			errs = append(errs, ErrItemSKURequired)
		}
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.Price.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}

	return errs
}
