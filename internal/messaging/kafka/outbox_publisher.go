package kafka

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
	}
}

// Topic возвращает topic, в который уходят события.
func (p *OutboxTopicPublisher) Topic() string {
	return p.topic
}

// Publish отправляет событие с ключом по ID заказа, чтобы события одного заказа шли в одну партицию.
func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("%w: kafka outbox publisher is not initialized", domain.ErrOutboxPublish)
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := NewOrderEvent(event, time.Now())
	if err := p.producer.PublishEvent(p.topic, key, envelope,
		sarama.RecordHeader{Key: []byte(HeaderEventType), Value: []byte(event.EventType)},
		sarama.RecordHeader{Key: []byte(HeaderOutboxID), Value: []byte(event.ID)},
	); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrOutboxPublish, err)
	}
	return nil
}

// DeadLetterPublisher отправляет в DLQ сообщения, исчерпавшие попытки публикации.
type DeadLetterPublisher struct {
	producer *Producer
	topic    string
	origin   string
}

// NewDeadLetterPublisher создаёт паблишер DLQ; origin задаёт исходный topic.
func NewDeadLetterPublisher(producer *Producer, topic, origin string) *DeadLetterPublisher {
	if topic == "" {
		topic = TopicDeadLetterQueue
	}
	if origin == "" {
		origin = TopicOrderEvents
	}
	return &DeadLetterPublisher{producer: producer, topic: topic, origin: origin}
}

// PublishFailed отправляет сообщение в DLQ с причиной ошибки в заголовках.
func (p *DeadLetterPublisher) PublishFailed(event domain.OutboxMessage, cause error) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dlq publisher is not initialized")
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	now := time.Now().UTC()
	return p.producer.PublishEvent(p.topic, event.AggregateID, NewOrderEvent(event, now),
		sarama.RecordHeader{Key: []byte(HeaderEventType), Value: []byte(event.EventType)},
		sarama.RecordHeader{Key: []byte(HeaderOutboxID), Value: []byte(event.ID)},
		sarama.RecordHeader{Key: []byte(HeaderOriginalTopic), Value: []byte(p.origin)},
		sarama.RecordHeader{Key: []byte(HeaderErrorMessage), Value: []byte(reason)},
		sarama.RecordHeader{Key: []byte(HeaderFailedAt), Value: []byte(now.Format(time.RFC3339Nano))},
	)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
