package domain

import "strings"

// PaymentMethod — способ оплаты, передаётся в платёжный шлюз как есть.
type PaymentMethod string

// PaymentMethodCard используется, если способ оплаты не указан.
const PaymentMethodCard PaymentMethod = "CARD"

// Normalize подставляет способ оплаты по умолчанию.
func (m PaymentMethod) Normalize() PaymentMethod {
	if strings.TrimSpace(string(m)) == "" {
		return PaymentMethodCard
	}
	return PaymentMethod(strings.TrimSpace(string(m)))
}

// PaymentResult — результат попытки оплаты.
type PaymentResult struct {
	OK      bool   `json:"ok"`
	TxnID   string `json:"txn_id"`
	Message string `json:"message"`
}
