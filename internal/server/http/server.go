package httpserver

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/winlife/gamelytics/internal/analysis"
	"github.com/winlife/gamelytics/internal/analytics/mq"
	"github.com/winlife/gamelytics/internal/ingest"
	"github.com/winlife/gamelytics/internal/schema"
)

// CollectMode selects how POST /api/data/event hands off events.
type CollectMode string

const (
	// CollectSync routes the event inline and answers with its outcome.
	CollectSync CollectMode = "sync"
	// CollectQueue publishes the raw event and answers 202; a worker routes it.
	CollectQueue CollectMode = "queue"
)

type Config struct {
	CollectMode CollectMode
	// IngestSecret enables HMAC auth on the collect endpoint when non-empty.
	IngestSecret string
	AllowSkew    time.Duration
}

// Server wires the stores, router, queue and analysis service behind gin.
type Server struct {
	cfg       Config
	schemas   *schema.GormStore
	events    *ingest.EventStore
	snapshots *ingest.SnapshotStore
	router    *ingest.Router
	analysis  *analysis.Service
	queue     mq.Queue
}

func NewServer(cfg Config, schemas *schema.GormStore, events *ingest.EventStore, snapshots *ingest.SnapshotStore, router *ingest.Router, svc *analysis.Service, queue mq.Queue) *Server {
	if cfg.CollectMode == "" {
		cfg.CollectMode = CollectSync
	}
	if cfg.AllowSkew == 0 {
		cfg.AllowSkew = 300 * time.Second
	}
	if queue == nil {
		queue = mq.NewNoop()
	}
	return &Server{
		cfg:       cfg,
		schemas:   schemas,
		events:    events,
		snapshots: snapshots,
		router:    router,
		analysis:  svc,
		queue:     queue,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(s.ginReqID(), s.ginLogger(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })

	s.addIngestRoutes(r)
	s.addPlayerRoutes(r)
	s.addSchemaRoutes(r)
	s.addAnalysisRoutes(r)
	return r
}

func (s *Server) ginReqID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			var b [8]byte
			_, _ = rand.Read(b[:])
			rid = hex.EncodeToString(b[:])
		}
		c.Set("request_id", rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

func (s *Server) ginLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"dur", time.Since(start),
			"rid", c.GetString("request_id"))
	}
}

// respondError sends the unified JSON error body.
func (s *Server) respondError(c *gin.Context, status int, code, message string) {
	type errBody struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId,omitempty"`
	}
	s.JSON(c, status, errBody{Code: code, Message: message, RequestID: c.GetString("request_id")})
}
