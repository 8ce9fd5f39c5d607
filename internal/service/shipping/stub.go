package shipping

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// StubGateway выдаёт лейблы без задержки и умеет падать по команде.
type StubGateway struct {
	mu sync.Mutex

	Label string
	Err   error
	Calls int
}

// Ship возвращает Err либо Label (по умолчанию SHP-<id>).
func (s *StubGateway) Ship(_ context.Context, order domain.Order) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls++
	if s.Err != nil {
		return "", s.Err
	}
	if s.Label != "" {
		return s.Label, nil
	}
	return LabelPrefix + order.ID, nil
}

// CallCount возвращает число вызовов Ship.
func (s *StubGateway) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls
}

var _ domain.ShippingGateway = (*StubGateway)(nil)
