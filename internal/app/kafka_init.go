package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderdesk/internal/realtime"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/outbox"
)

// initKafkaProducer создаёт producer, если список брокеров не пуст.
// Ошибка подключения не фатальна: сервис продолжает работу без Kafka.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// outboxPublishers собирает публикацию событий: живая лента всегда, Kafka при наличии producer.
// Второе значение — DLQ-публикатор, nil без Kafka.
func outboxPublishers(producer *kafka.Producer, topic string, hub *realtime.Hub) (domain.OutboxPublisher, domain.OutboxPublisher) {
	var (
		kafkaPublisher domain.OutboxPublisher
		dlqPublisher   domain.OutboxPublisher
	)
	if producer != nil {
		if topic == "" {
			topic = kafka.TopicOrderEvents
		}
		kafkaPublisher = kafka.NewOutboxPublisher(producer, topic)
		dlqPublisher = kafka.NewDeadLetterPublisher(producer)
	}

	var hubPublisher domain.OutboxPublisher
	if hub != nil {
		hubPublisher = realtime.NewOutboxPublisher(hub, realtime.RoomOrders)
	}

	return outbox.NewFanOut(kafkaPublisher, hubPublisher), dlqPublisher
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
