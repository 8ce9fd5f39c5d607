package payment

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// StubGateway возвращает заранее заданный результат и считает вызовы.
type StubGateway struct {
	mu sync.Mutex

	Result domain.PaymentResult
	Err    error
	// Errs, если задан, отдаётся по одному значению на вызов перед Err.
	Errs []error

	Calls   int
	Methods []domain.PaymentMethod
}

// NewStubGateway возвращает stub с успешным сценарием по умолчанию.
func NewStubGateway() *StubGateway {
	return &StubGateway{
		Result: domain.PaymentResult{OK: true, TxnID: MockTxnID, Message: "Paid via CARD"},
	}
}

// Pay возвращает заранее настроенный результат и считает вызовы.
func (s *StubGateway) Pay(_ context.Context, _ domain.Order, method domain.PaymentMethod) (domain.PaymentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls++
	s.Methods = append(s.Methods, method)

	if len(s.Errs) > 0 {
		err := s.Errs[0]
		s.Errs = s.Errs[1:]
		if err != nil {
			return domain.PaymentResult{}, err
		}
		return s.Result, nil
	}
	if s.Err != nil {
		return domain.PaymentResult{}, s.Err
	}
	return s.Result, nil
}

// CallCount возвращает число вызовов Pay.
func (s *StubGateway) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls
}

var _ domain.PaymentGateway = (*StubGateway)(nil)
