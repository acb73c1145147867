package httpserver

import (
	"github.com/gin-gonic/gin"

	"github.com/winlife/gamelytics/internal/ingest"
)

func (s *Server) addPlayerRoutes(r *gin.Engine) {
	r.GET("/api/players", s.lookupPlayers)
}

// lookupPlayers serves snapshot lookups by userId, deviceId, or a stored
// property key/value pair. Exactly one lookup mode per request.
func (s *Server) lookupPlayers(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		arr []ingest.PlayerData
		err error
	)
	switch {
	case c.Query("userId") != "":
		arr, err = s.snapshots.ByUserID(ctx, c.Query("userId"))
	case c.Query("deviceId") != "":
		arr, err = s.snapshots.ByDeviceID(ctx, c.Query("deviceId"))
	case c.Query("propertyKey") != "":
		arr, err = s.snapshots.ByProperty(ctx, c.Query("propertyKey"), c.Query("propertyValue"))
	default:
		s.respondError(c, 400, "bad_request", "one of userId, deviceId or propertyKey is required")
		return
	}
	if err != nil {
		s.respondError(c, 500, "internal_error", "player lookup failed")
		return
	}
	s.JSON(c, 200, gin.H{"players": arr})
}
