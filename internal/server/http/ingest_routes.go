package httpserver

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/winlife/gamelytics/internal/ingest"
)

func (s *Server) addIngestRoutes(r *gin.Engine) {
	collect := r.Group("/api/data")
	if s.cfg.IngestSecret != "" {
		collect.Use(s.authHMAC())
	}
	collect.POST("/event", s.collectEvent)

	api := r.Group("/api/data")
	api.GET("/realtime", s.listRealtime)
	api.GET("/errored", s.listErrored)
	api.GET("/debug", s.listDebug)
	api.GET("/report/statistics", s.reportStatistics)
	api.GET("/events/statistics/:userId", s.userStatistics)
	api.GET("/player/sequence/:userId", s.userSequence)
}

// collectEvent accepts one raw event. Validation failure is not an HTTP
// error: the event lands in the errored store and the response says so.
func (s *Server) collectEvent(c *gin.Context) {
	var ev ingest.RawEvent
	if err := c.BindJSON(&ev); err != nil {
		s.respondError(c, 400, "bad_request", "invalid event payload")
		return
	}
	if s.cfg.CollectMode == CollectQueue {
		if err := s.queue.PublishEvent(ev); err != nil {
			slog.Error("publish event", "event", ev.EventName, "err", err)
			s.respondError(c, 503, "unavailable", "queue write failed")
			return
		}
		s.JSON(c, 202, gin.H{"status": "queued"})
		return
	}
	outcome, err := s.router.Process(c.Request.Context(), ev)
	if err != nil {
		slog.Error("route event", "event", ev.EventName, "err", err)
		s.respondError(c, 500, "internal_error", "event processing failed")
		return
	}
	// Rejected events answer 400; they are stored on the errored path either way.
	code := 200
	if outcome == ingest.Rejected {
		code = 400
	}
	s.JSON(c, code, gin.H{"status": outcome.String()})
}

func (s *Server) listRealtime(c *gin.Context) {
	page, size := pageParams(c)
	arr, err := s.events.RecentValid(c.Request.Context(), page, size)
	if err != nil {
		s.respondError(c, 500, "internal_error", "failed to list events")
		return
	}
	s.JSON(c, 200, gin.H{"events": arr, "page": page, "size": size})
}

func (s *Server) listErrored(c *gin.Context) {
	page, size := pageParams(c)
	arr, err := s.events.RecentErrored(c.Request.Context(), page, size)
	if err != nil {
		s.respondError(c, 500, "internal_error", "failed to list errored events")
		return
	}
	s.JSON(c, 200, gin.H{"events": arr, "page": page, "size": size})
}

func (s *Server) listDebug(c *gin.Context) {
	page, size := pageParams(c)
	arr, err := s.events.RecentDebug(c.Request.Context(), page, size, c.Query("deviceId"))
	if err != nil {
		s.respondError(c, 500, "internal_error", "failed to list debug events")
		return
	}
	s.JSON(c, 200, gin.H{"events": arr, "page": page, "size": size})
}

func (s *Server) reportStatistics(c *gin.Context) {
	start, end, ok := timeRange(c)
	if !ok {
		s.respondError(c, 400, "bad_request", "startTime and endTime are required")
		return
	}
	stats, err := s.events.ReportStatistics(c.Request.Context(), start, end)
	if err != nil {
		s.respondError(c, 500, "internal_error", "failed to compute statistics")
		return
	}
	s.JSON(c, 200, gin.H{"statistics": stats})
}

func (s *Server) userStatistics(c *gin.Context) {
	start, end, ok := timeRange(c)
	if !ok {
		s.respondError(c, 400, "bad_request", "startTime and endTime are required")
		return
	}
	stats, err := s.events.UserStatistics(c.Request.Context(), c.Param("userId"), start, end)
	if err != nil {
		s.respondError(c, 500, "internal_error", "failed to compute statistics")
		return
	}
	s.JSON(c, 200, gin.H{"statistics": stats})
}

func (s *Server) userSequence(c *gin.Context) {
	page, size := pageParams(c)
	arr, err := s.events.UserSequence(c.Request.Context(), c.Param("userId"), page, size)
	if err != nil {
		s.respondError(c, 500, "internal_error", "failed to list user events")
		return
	}
	s.JSON(c, 200, gin.H{"events": arr, "page": page, "size": size})
}

// pageParams reads zero-based page/size query params with sane bounds.
func pageParams(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ = strconv.Atoi(c.DefaultQuery("size", "50"))
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 1000 {
		size = 50
	}
	return page, size
}

func timeRange(c *gin.Context) (start, end int64, ok bool) {
	var err1, err2 error
	start, err1 = strconv.ParseInt(c.Query("startTime"), 10, 64)
	end, err2 = strconv.ParseInt(c.Query("endTime"), 10, 64)
	return start, end, err1 == nil && err2 == nil
}
