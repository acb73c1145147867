package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/winlife/gamelytics/internal/ingest"
)

// Worker drains the raw-event stream and pushes each message through the
// ingestion router. Messages are acked after routing; routing failures that
// are retryable (storage down) leave the message pending for redelivery.
type Worker struct {
	rdb      *redis.Client
	router   *ingest.Router
	stream   string
	group    string
	consumer string
	block    time.Duration
	count    int64
}

type Config struct {
	RedisURL string
	Stream   string
	Group    string
	Consumer string
}

func New(cfg Config, router *ingest.Router) (*Worker, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	stream := cfg.Stream
	if stream == "" {
		stream = "gamelytics:events"
	}
	group := cfg.Group
	if group == "" {
		group = "gamelytics-worker"
	}
	consumer := cfg.Consumer
	if consumer == "" {
		consumer = fmt.Sprintf("c-%d", time.Now().UnixNano())
	}
	return &Worker{
		rdb:      redis.NewClient(opt),
		router:   router,
		stream:   stream,
		group:    group,
		consumer: consumer,
		block:    2 * time.Second,
		count:    200,
	}, nil
}

func (w *Worker) ensureGroup(ctx context.Context) {
	// BUSYGROUP on restart is expected.
	_ = w.rdb.XGroupCreateMkStream(ctx, w.stream, w.group, "$").Err()
}

// Run blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.ensureGroup(ctx)
	slog.Info("worker started", "stream", w.stream, "group", w.group, "consumer", w.consumer)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res, err := w.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.group,
			Consumer: w.consumer,
			Streams:  []string{w.stream, ">"},
			Count:    w.count,
			Block:    w.block,
		}).Result()
		if err != nil && err != redis.Nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("xreadgroup", "err", err)
			continue
		}
		for _, str := range res {
			for _, msg := range str.Messages {
				if w.handle(ctx, msg) {
					if err := w.rdb.XAck(ctx, str.Stream, w.group, msg.ID).Err(); err != nil {
						slog.Warn("xack", "id", msg.ID, "err", err)
					}
				}
			}
		}
	}
}

// handle reports whether the message should be acked. Malformed messages are
// always acked; redelivering them can never succeed.
func (w *Worker) handle(ctx context.Context, msg redis.XMessage) bool {
	data := stringValue(msg.Values["data"])
	if data == "" {
		slog.Warn("empty stream message", "id", msg.ID)
		return true
	}
	var ev ingest.RawEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		slog.Warn("undecodable stream message", "id", msg.ID, "err", err)
		return true
	}
	outcome, err := w.router.Process(ctx, ev)
	if err != nil {
		slog.Error("route event", "id", msg.ID, "event", ev.EventName, "err", err)
		return false
	}
	slog.Debug("event routed", "id", msg.ID, "event", ev.EventName, "outcome", outcome)
	return true
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
