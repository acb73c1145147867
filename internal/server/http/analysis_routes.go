package httpserver

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/winlife/gamelytics/internal/analysis"
)

func (s *Server) addAnalysisRoutes(r *gin.Engine) {
	r.POST("/api/analysis/event", s.runAnalysis)
}

// runAnalysis compiles and executes one declarative query. Client mistakes
// (bad attribute, bad operator, inconsistent range) answer 400 with the query
// error kind; everything else is a 500.
func (s *Server) runAnalysis(c *gin.Context) {
	var q analysis.EventAnalysisQuery
	if err := c.BindJSON(&q); err != nil {
		s.respondError(c, 400, "bad_request", "invalid query payload")
		return
	}
	rows, err := s.analysis.Run(c.Request.Context(), q)
	if err != nil {
		var qerr *analysis.QueryError
		if errors.As(err, &qerr) && qerr.IsClientError() {
			s.respondError(c, 400, qerr.Kind.String(), qerr.Reason)
			return
		}
		s.respondError(c, 500, "internal_error", "query execution failed")
		return
	}
	s.JSON(c, 200, gin.H{"rows": rows})
}
