package kafka_middleware

import (
	"context"
	"sync/atomic"
	"time"

	"tokenq/pkg/kafka"
)

// Metrics counts event traffic of one process.
type Metrics struct {
	published       atomic.Int64
	publishFailed   atomic.Int64
	publishDuration atomic.Int64
	consumed        atomic.Int64
	consumeFailed   atomic.Int64
	consumeDuration atomic.Int64
}

type MetricsSnapshot struct {
	Published        int64 `json:"published"`
	PublishFailed    int64 `json:"publish_failed"`
	AvgPublishMillis int64 `json:"avg_publish_ms"`
	Consumed         int64 `json:"consumed"`
	ConsumeFailed    int64 `json:"consume_failed"`
	AvgConsumeMillis int64 `json:"avg_consume_ms"`
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	published := m.published.Load()
	consumed := m.consumed.Load()

	snap := MetricsSnapshot{
		Published:     published,
		PublishFailed: m.publishFailed.Load(),
		Consumed:      consumed,
		ConsumeFailed: m.consumeFailed.Load(),
	}
	if total := published + snap.PublishFailed; total > 0 {
		snap.AvgPublishMillis = time.Duration(m.publishDuration.Load() / total).Milliseconds()
	}
	if total := consumed + snap.ConsumeFailed; total > 0 {
		snap.AvgConsumeMillis = time.Duration(m.consumeDuration.Load() / total).Milliseconds()
	}
	return snap
}

func (m *Metrics) Producer() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)

		m.publishDuration.Add(int64(time.Since(start)))
		if err != nil {
			m.publishFailed.Add(1)
		} else {
			m.published.Add(1)
		}
		return err
	}
}

func (m *Metrics) Consumer() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)

		m.consumeDuration.Add(int64(time.Since(start)))
		if err != nil {
			m.consumeFailed.Add(1)
		} else {
			m.consumed.Add(1)
		}
		return err
	}
}
