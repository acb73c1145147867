package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/winlife/gamelytics/internal/ingest"
)

type kafkaQueue struct {
	w *kafka.Writer
}

// NewKafka builds a Kafka publisher for raw events. The writer is safe for
// concurrent use, so one instance serves all HTTP handlers.
func NewKafka(brokers []string, topic string) (Queue, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if topic == "" {
		topic = "gamelytics.events"
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &kafkaQueue{w: w}, nil
}

func (q *kafkaQueue) Close() error { return q.w.Close() }

func (q *kafkaQueue) PublishEvent(ev ingest.RawEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return q.w.WriteMessages(ctx, kafka.Message{Key: []byte(ev.UserID), Value: b})
}
