package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// timelineRepository пишет ленту событий заказа в timeline_events.
// Событие ссылается на заказ внешним ключом, поэтому лента без заказа невозможна.
type timelineRepository struct {
	db *sql.DB
}

func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{db: store.DB()}
}

func (r *timelineRepository) Append(event domain.TimelineEvent) error {
	if strings.TrimSpace(event.OrderID) == "" {
		return domain.ErrOrderIDRequired
	}
	occurred := event.Occurred
	if occurred.IsZero() {
		occurred = time.Now()
	}

	ctx, cancel := withTimeout(context.Background())
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO timeline_events (order_id, type, status, reason, occurred) VALUES ($1, $2, $3, $4, $5)`,
		event.OrderID, event.Type, string(event.Status), event.Reason, occurred.UTC())
	switch {
	case err == nil:
		return nil
	case hasSQLState(err, sqlStateForeignKeyViolation):
		return fmt.Errorf("timeline %s for %s: %w", event.Type, event.OrderID, domain.ErrOrderNotFound)
	default:
		return fmt.Errorf("timeline %s for %s: %w", event.Type, event.OrderID, err)
	}
}

// List отдаёт ленту по возрастанию времени; при равном времени решает порядок вставки.
func (r *timelineRepository) List(orderID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := withTimeout(context.Background())
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT type, status, reason, occurred FROM timeline_events WHERE order_id = $1 ORDER BY occurred, id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("timeline of %s: %w", orderID, err)
	}
	defer rows.Close()

	var feed []domain.TimelineEvent
	for rows.Next() {
		ev := domain.TimelineEvent{OrderID: orderID}
		var status string
		if err := rows.Scan(&ev.Type, &status, &ev.Reason, &ev.Occurred); err != nil {
			return nil, fmt.Errorf("timeline of %s: %w", orderID, err)
		}
		ev.Status = domain.OrderStatus(status)
		ev.Occurred = ev.Occurred.UTC()
		feed = append(feed, ev)
	}
	return feed, rows.Err()
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
