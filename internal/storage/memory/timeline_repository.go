package memory

import (
	"slices"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// timelineStore держит ленту событий каждого заказа отсортированной по Occurred.
// События с одинаковым временем сохраняют порядок записи.
type timelineStore struct {
	mu      sync.RWMutex
	byOrder map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory ленту событий заказов.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineStore{byOrder: make(map[string][]domain.TimelineEvent)}
}

func (s *timelineStore) Append(event domain.TimelineEvent) error {
	if strings.TrimSpace(event.OrderID) == "" {
		return domain.ErrOrderIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	feed := s.byOrder[event.OrderID]
	// вставляем после всех событий, не позже нового
	pos := len(feed)
	for pos > 0 && feed[pos-1].Occurred.After(event.Occurred) {
		pos--
	}
	s.byOrder[event.OrderID] = slices.Insert(feed, pos, event)
	return nil
}

func (s *timelineStore) List(orderID string) ([]domain.TimelineEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.byOrder[orderID]), nil
}

var _ domain.TimelineRepository = (*timelineStore)(nil)
