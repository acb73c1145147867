package httpserver

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) addSchemaRoutes(r *gin.Engine) {
	api := r.Group("/api/schemas")
	api.GET("/events", s.listSchemas)
	api.GET("/events/:eventName", s.getSchema)
	api.PUT("/events/:eventName", s.putSchema)
	api.DELETE("/events/:eventName", s.deleteSchema)
	api.GET("/user-properties", s.getUserPropertySchema)
	api.PUT("/user-properties", s.putUserPropertySchema)
}

func (s *Server) listSchemas(c *gin.Context) {
	arr, err := s.schemas.ListEventSchemas(c.Request.Context())
	if err != nil {
		s.respondError(c, 500, "internal_error", "failed to list schemas")
		return
	}
	s.JSON(c, 200, gin.H{"schemas": arr})
}

func (s *Server) getSchema(c *gin.Context) {
	rec, ok, err := s.schemas.FindEventSchema(c.Request.Context(), c.Param("eventName"))
	if err != nil {
		s.respondError(c, 500, "internal_error", "failed to load schema")
		return
	}
	if !ok {
		s.respondError(c, 404, "not_found", "no schema for event")
		return
	}
	s.JSON(c, 200, rec)
}

func (s *Server) getUserPropertySchema(c *gin.Context) {
	rec, ok, err := s.schemas.FindUserPropertySchema(c.Request.Context())
	if err != nil {
		s.respondError(c, 500, "internal_error", "failed to load schema")
		return
	}
	if !ok {
		s.respondError(c, 404, "not_found", "no user property schema defined")
		return
	}
	s.JSON(c, 200, rec)
}

// putSchema stores the raw document body verbatim; it is parsed up front so a
// malformed document never reaches the table.
func (s *Server) putSchema(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		s.respondError(c, 400, "bad_request", "read body failed")
		return
	}
	if err := s.schemas.PutEventSchema(c.Request.Context(), c.Param("eventName"), raw); err != nil {
		s.respondError(c, 400, "bad_request", err.Error())
		return
	}
	s.JSON(c, 200, gin.H{"status": "stored"})
}

func (s *Server) deleteSchema(c *gin.Context) {
	if err := s.schemas.DeleteEventSchema(c.Request.Context(), c.Param("eventName")); err != nil {
		s.respondError(c, 500, "internal_error", "failed to delete schema")
		return
	}
	s.JSON(c, 200, gin.H{"status": "deleted"})
}

func (s *Server) putUserPropertySchema(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		s.respondError(c, 400, "bad_request", "read body failed")
		return
	}
	if err := s.schemas.PutUserPropertySchema(c.Request.Context(), raw); err != nil {
		s.respondError(c, 400, "bad_request", err.Error())
		return
	}
	s.JSON(c, 200, gin.H{"status": "stored"})
}
