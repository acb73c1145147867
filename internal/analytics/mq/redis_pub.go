package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/winlife/gamelytics/internal/ingest"
)

type redisQueue struct {
	cli          *redis.Client
	stream       string
	maxLen       int64
	maxLenApprox bool
}

// NewRedis opens a Redis Streams publisher for raw events. Messages carry a
// single 'data' field holding the JSON body, so the stream schema never
// changes when the event shape does.
func NewRedis(url, stream string, maxLen int64, approx bool) (Queue, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	if stream == "" {
		stream = "gamelytics:events"
	}
	return &redisQueue{cli: redis.NewClient(opt), stream: stream, maxLen: maxLen, maxLenApprox: approx}, nil
}

func (q *redisQueue) Close() error { return q.cli.Close() }

func (q *redisQueue) PublishEvent(ev ingest.RawEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	args := &redis.XAddArgs{Stream: q.stream, Values: map[string]any{"data": string(b)}}
	if q.maxLen > 0 {
		args.MaxLen = q.maxLen
		args.Approx = q.maxLenApprox
	}
	return q.cli.XAdd(ctx, args).Err()
}
