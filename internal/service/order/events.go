package order

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// AggregateType — тип агрегата в outbox-сообщениях заказа.
const AggregateType = "order"

// emitEvent записывает событие в timeline и, если outbox подключён, ставит его на публикацию.
// occurred задаёт вызывающий: время перехода или, для событий без перехода, текущее время.
// Ошибки только логируются: переход уже сохранён.
func (s *Service) emitEvent(order *domain.Order, eventType, reason string, occurred time.Time, payload map[string]interface{}) {
	if occurred.IsZero() {
		occurred = s.now()
	}

	if s.timeline != nil {
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     eventType,
			Status:   order.Status,
			Reason:   reason,
			Occurred: occurred,
		}
		if err := s.timeline.Append(event); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Warn("append timeline event failed")
		} else if s.metrics != nil {
			s.metrics.RecordTimelineEvent()
		}
	}

	if s.outbox == nil {
		return
	}

	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID
	payload["status"] = string(order.Status)
	payload["version"] = order.Version
	payload["ts"] = occurred.UTC().Format(time.RFC3339Nano)
	if reason != "" {
		payload["reason"] = reason
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: AggregateType,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
	} else if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}
