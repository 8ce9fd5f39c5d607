package order

import (
	"context"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// CheckoutOutcome передаётся из CheckoutAsync по завершении оплаты.
type CheckoutOutcome struct {
	OrderID string
	Result  domain.PaymentResult
	Err     error
}

// CheckoutAsync запускает Checkout в отдельной горутине. Канал получает ровно один
// результат и закрывается.
func (s *Service) CheckoutAsync(ctx context.Context, id string, method domain.PaymentMethod) <-chan CheckoutOutcome {
	out := make(chan CheckoutOutcome, 1)

	s.async.Add(1)
	go func() {
		defer s.async.Done()
		defer close(out)

		result, err := s.Checkout(ctx, id, method)
		out <- CheckoutOutcome{OrderID: id, Result: result, Err: err}
	}()

	return out
}

// CheckoutAll оплачивает несколько заказов параллельно и возвращает результаты в порядке ids.
func (s *Service) CheckoutAll(ctx context.Context, ids []string, method domain.PaymentMethod) []CheckoutOutcome {
	channels := make([]<-chan CheckoutOutcome, len(ids))
	for i, id := range ids {
		channels[i] = s.CheckoutAsync(ctx, id, method)
	}

	outcomes := make([]CheckoutOutcome, len(ids))
	for i, ch := range channels {
		outcomes[i] = <-ch
	}
	return outcomes
}

// Wait блокируется, пока не завершатся все запущенные асинхронные checkout.
func (s *Service) Wait() {
	s.async.Wait()
}
