package events

import (
	"fmt"
	"os"
	"tokenq/pkg/config"
	"tokenq/pkg/kafka"
	kafka_middleware "tokenq/pkg/kafka/middleware"
)

// NewPublisher returns a Kafka-backed publisher when events are enabled and
// a no-op publisher otherwise. metrics may be nil.
func NewPublisher(cfg *config.Config, source string, metrics *kafka_middleware.Metrics) (Publisher, error) {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, booking events are not published")
		return NoopPublisher{}, nil
	}

	producer, err := kafka.NewProducer(cfg.Kafka, cfg.BookingEventsTopic, cfg.BookingEventsDLQTopic, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create event producer: %w", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	if metrics != nil {
		producer.Use(metrics.Producer())
	}

	cfg.Log.Info("Publishing booking events", "topic", cfg.BookingEventsTopic)
	return NewKafkaPublisher(producer, source, cfg.Kafka.ProducerWriteTimeout), nil
}

// NewConsumer subscribes handler to the booking events topic. Each process
// joins its own group so every replica sees every event.
func NewConsumer(cfg *config.Config, handler kafka.MessageHandler, metrics *kafka_middleware.Metrics) (*kafka.Consumer, error) {
	groupID := cfg.ProjectionConsumerGroup
	if host, err := os.Hostname(); err == nil && host != "" {
		groupID += "-" + host
	}

	consumer, err := kafka.NewConsumer(cfg.Kafka, cfg.BookingEventsTopic, groupID, cfg.BookingEventsDLQTopic, handler, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create event consumer: %w", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	if metrics != nil {
		consumer.Use(metrics.Consumer())
	}
	return consumer, nil
}
