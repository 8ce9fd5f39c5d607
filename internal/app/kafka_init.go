package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderflow/internal/version"
)

// kafkaProducerConfig собирает настройки producer из конфигурации сервиса.
// Пустые адреса и дубликаты брокеров отбрасываются.
func kafkaProducerConfig(brokers []string) kafka.ProducerConfig {
	seen := make(map[string]struct{}, len(brokers))
	cleaned := make([]string, 0, len(brokers))
	for _, b := range brokers {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if _, dup := seen[b]; dup {
			continue
		}
		seen[b] = struct{}{}
		cleaned = append(cleaned, b)
	}
	return kafka.ProducerConfig{
		Brokers:  cleaned,
		ClientID: "orderflow-" + version.GetVersion(),
	}
}

// initKafkaProducer создаёт producer для outbox worker. Без брокеров возвращает nil, nil:
// сервис работает, а события остаются в outbox до появления Kafka.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	pcfg := kafkaProducerConfig(brokers)
	if len(pcfg.Brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(pcfg)
	if err != nil {
		logger.WithError(err).WithField("brokers", pcfg.Brokers).
			Warn("kafka is unavailable, order events stay in outbox")
		return nil, err
	}

	logger.WithFields(log.Fields{
		"brokers":   pcfg.Brokers,
		"client_id": pcfg.ClientID,
	}).Info("kafka producer initialized")
	return producer, nil
}

func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("kafka producer close failed")
		return
	}
	logger.Info("kafka producer closed")
}
