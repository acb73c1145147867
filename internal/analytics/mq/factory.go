package mq

import (
	"fmt"
	"log/slog"
)

// Config selects and parameterizes the queue backend.
type Config struct {
	Type string // redis | kafka | noop

	RedisURL          string
	RedisStream       string
	RedisMaxLen       int64
	RedisMaxLenApprox bool

	KafkaBrokers []string
	KafkaTopic   string
}

// New builds a Queue from configuration. An empty type means noop, which is
// what sync collect mode uses.
func New(cfg Config) (Queue, error) {
	switch cfg.Type {
	case "redis":
		q, err := NewRedis(cfg.RedisURL, cfg.RedisStream, cfg.RedisMaxLen, cfg.RedisMaxLenApprox)
		if err != nil {
			return nil, err
		}
		slog.Info("event queue enabled", "type", "redis", "stream", cfg.RedisStream)
		return q, nil
	case "kafka":
		q, err := NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		slog.Info("event queue enabled", "type", "kafka", "topic", cfg.KafkaTopic)
		return q, nil
	case "", "noop":
		return NewNoop(), nil
	default:
		return nil, fmt.Errorf("unsupported queue type %q", cfg.Type)
	}
}
