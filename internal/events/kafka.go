package events

import (
	"context"
	"fmt"
	"time"
	"tokenq/pkg/kafka"
	"tokenq/pkg/middleware"
)

// KafkaPublisher writes events to the booking events topic keyed by date.
type KafkaPublisher struct {
	producer *kafka.Producer
	source   string
	timeout  time.Duration
}

func NewKafkaPublisher(producer *kafka.Producer, source string, timeout time.Duration) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, source: source, timeout: timeout}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := Encode(event, p.source, middleware.RequestIDFrom(ctx))
	if err != nil {
		return err
	}

	// Publishing follows a commit that already happened; a client that went
	// away must not cancel it.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.producer.Publish(pubCtx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

func Encode(event Event, source, correlationID string) (kafka.Message, error) {
	return kafka.NewMessage().
		WithKey(event.Key()).
		WithValue(event).
		WithEventType(string(event.Type)).
		WithSchemaVersion(SchemaVersion).
		WithSource(source).
		WithCorrelationID(correlationID).
		Build()
}

func Decode(msg kafka.Message) (Event, error) {
	var event Event
	if err := msg.DecodeValue(&event); err != nil {
		return Event{}, kafka.NewPermanentError("decode event", err)
	}
	if event.Type == "" {
		event.Type = Type(msg.GetEventType())
	}
	return event, nil
}
