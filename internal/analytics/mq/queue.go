package mq

import "github.com/winlife/gamelytics/internal/ingest"

// Queue publishes raw telemetry for asynchronous validation. Implementations
// are backed by Redis Streams, Kafka, or a no-op for dev/sync mode.
type Queue interface {
	PublishEvent(ev ingest.RawEvent) error
	Close() error
}
