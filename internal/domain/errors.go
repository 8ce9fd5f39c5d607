package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отсутствующего SKU у позиции.
	ErrItemSKURequired = errors.New("item sku is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка неизвестного статуса заказа.
	ErrStatusInvalid = errors.New("order status is invalid")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists возвращается при повторном создании заказа с тем же ID.
	ErrOrderExists = errors.New("order already exists")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrInvalidTransition — переход статуса запрещён жизненным циклом.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrOrderNotPaid — отгрузка возможна только для оплаченного заказа.
	ErrOrderNotPaid = errors.New("order is not paid")
	// ErrPaymentDeclined — платёж отклонён провайдером (бизнес-ошибка).
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrPaymentTemporary — временная ошибка платёжного шлюза (сеть, таймаут).
	ErrPaymentTemporary = errors.New("payment temporary error")
	// ErrShippingTemporary — временная ошибка службы доставки.
	ErrShippingTemporary = errors.New("shipping temporary error")
	// ErrCircuitOpen — вызов заблокирован circuit breaker.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsTemporary сообщает, что операцию имеет смысл повторить.
func IsTemporary(err error) bool {
	return errors.Is(err, ErrPaymentTemporary) ||
		errors.Is(err, ErrShippingTemporary) ||
		errors.Is(err, ErrCircuitOpen)
}
