package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandleHealthz reports process liveness.
// GET /healthz
func (s *Server) HandleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"status": "ok",
		},
	})
}

// HandleReadyz reports whether the model services are reachable. The service
// still accepts uploads when the diarizer is down, so only a missing
// transcriber makes readiness fail.
// GET /readyz
func (s *Server) HandleReadyz(c *gin.Context) {
	transcriber := probe(c, s.TranscriberHealth)
	diarizer := probe(c, s.DiarizerHealth)

	status := http.StatusOK
	if !transcriber {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"success": transcriber,
		"data": gin.H{
			"transcriber": transcriber,
			"diarizer":    diarizer,
			"degraded":    transcriber && !diarizer,
		},
	})
}

func probe(c *gin.Context, check func(*gin.Context) bool) bool {
	if check == nil {
		return true
	}
	return check(c)
}
