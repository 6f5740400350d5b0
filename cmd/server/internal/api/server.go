// Package api exposes the HTTP surface: report job CRUD, artifact downloads,
// and operational probes. Handlers translate classified pipeline errors into
// status codes and never leak internals to the caller.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/ingest"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/middleware"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/orchestrator"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/store"
	"github.com/yahyachammami/meetscribe/pkg/cache"
)

// Server bundles the dependencies the handlers need.
type Server struct {
	Store     *store.Store
	Blobs     *store.BlobStore
	Ingestor  *ingest.Ingestor
	Orch      *orchestrator.Orchestrator
	Artifacts *cache.ArtifactCache

	// Readiness checks for the model services.
	TranscriberHealth func(*gin.Context) bool
	DiarizerHealth    func(*gin.Context) bool
}

// RegisterRoutes wires all endpoints onto the engine. Report routes require
// a valid bearer identity; probes and metrics do not.
func (s *Server) RegisterRoutes(r *gin.Engine, jwtSecret []byte) {
	r.GET("/healthz", s.HandleHealthz)
	r.GET("/readyz", s.HandleReadyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1", middleware.Auth(jwtSecret))
	{
		v1.POST("/reports", s.HandleCreateReport)
		v1.GET("/reports", s.HandleListReports)
		v1.GET("/reports/:id", s.HandleGetReport)
		v1.GET("/reports/:id/download/markdown", s.HandleDownloadMarkdown)
		v1.GET("/reports/:id/download/pdf", s.HandleDownloadPDF)
		v1.POST("/reports/:id/cancel", s.HandleCancelReport)
		v1.DELETE("/reports/:id", s.HandleDeleteReport)
	}
}

// respondError maps a pipeline/store error to an HTTP response with the
// error kind and message, never a stack trace.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "report not found",
		})
		return
	}
	if errors.Is(err, store.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"message": "report is already in a terminal state",
		})
		return
	}

	se := pipeline.AsStageError(err)
	status := http.StatusInternalServerError
	switch se.Kind {
	case pipeline.KindUnsupportedFormat:
		status = http.StatusBadRequest
	case pipeline.KindPayloadTooLarge:
		status = http.StatusRequestEntityTooLarge
	case pipeline.KindModelUnavailable, pipeline.KindUpstreamRateLimited:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"success": false,
		"kind":    string(se.Kind),
		"message": se.Message,
	})
}
