package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/ingest"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/middleware"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/report"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/store"
)

// HandleCreateReport accepts an audio upload and starts an analysis job.
// POST /api/v1/reports  (multipart: audio, optional title, language)
func (s *Server) HandleCreateReport(c *gin.Context) {
	file, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": fmt.Sprintf("missing audio file: %v", err),
		})
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer src.Close()

	accepted, err := s.Ingestor.Accept(c.Request.Context(), ingest.Upload{
		Filename:     file.Filename,
		DeclaredSize: file.Size,
		LanguageHint: c.PostForm("language"),
	}, src)
	if err != nil {
		respondError(c, err)
		return
	}

	job := &store.Job{
		ID:         uuid.NewString(),
		OwnerID:    middleware.UserID(c),
		Title:      c.PostForm("title"),
		Status:     pipeline.StatusPending,
		Language:   accepted.Language,
		BlobRef:    accepted.BlobRef,
		Format:     accepted.Format,
		SizeBytes:  accepted.SizeBytes,
		DurationMs: accepted.DurationMs,
	}
	if err := s.Store.CreateJob(c.Request.Context(), job); err != nil {
		respondError(c, err)
		return
	}
	s.Orch.Enqueue(job.ID)

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": gin.H{
			"id":     job.ID,
			"status": string(job.Status),
		},
	})
}

// HandleListReports returns the caller's jobs, newest first.
// GET /api/v1/reports
func (s *Server) HandleListReports(c *gin.Context) {
	jobs, err := s.Store.ListJobs(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if jobs == nil {
		jobs = []*store.Job{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    jobs,
	})
}

// HandleGetReport returns job status, and the analysis result plus aligned
// transcript once the job completed.
// GET /api/v1/reports/:id
func (s *Server) HandleGetReport(c *gin.Context) {
	job, err := s.Store.GetJobForOwner(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	data := gin.H{"job": job}
	if job.Status == pipeline.StatusCompleted {
		var result pipeline.AnalysisResult
		if ok, err := s.Store.LoadArtifact(c.Request.Context(), job.ID, store.ArtifactResult, &result); err == nil && ok {
			data["result"] = result
		}
		var transcript []pipeline.Utterance
		if ok, err := s.Store.LoadArtifact(c.Request.Context(), job.ID, store.ArtifactUtterances, &transcript); err == nil && ok {
			data["transcript"] = transcript
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// HandleDownloadMarkdown serves the Markdown artifact.
// GET /api/v1/reports/:id/download/markdown
func (s *Server) HandleDownloadMarkdown(c *gin.Context) {
	s.download(c, "markdown")
}

// HandleDownloadPDF serves the PDF artifact.
// GET /api/v1/reports/:id/download/pdf
func (s *Server) HandleDownloadPDF(c *gin.Context) {
	s.download(c, "pdf")
}

func (s *Server) download(c *gin.Context, format string) {
	job, err := s.Store.GetJobForOwner(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if job.Status != pipeline.StatusCompleted {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"message": fmt.Sprintf("report is %s, artifacts are available once completed", string(job.Status)),
		})
		return
	}

	contentType := "text/markdown; charset=utf-8"
	ext := "md"
	if format == "pdf" {
		contentType = "application/pdf"
		ext = "pdf"
	}

	cacheKey := job.ID + "/" + format
	if data, ok := s.Artifacts.Get(cacheKey); ok {
		serveArtifact(c, job.ID, ext, contentType, data)
		return
	}

	data, err := s.render(c, job, format)
	if err != nil {
		respondError(c, err)
		return
	}
	s.Artifacts.Put(cacheKey, data)
	serveArtifact(c, job.ID, ext, contentType, data)
}

func (s *Server) render(c *gin.Context, job *store.Job, format string) ([]byte, error) {
	var result pipeline.AnalysisResult
	if ok, err := s.Store.LoadArtifact(c.Request.Context(), job.ID, store.ArtifactResult, &result); err != nil || !ok {
		if err == nil {
			err = pipeline.NewStageError(pipeline.KindInternal, "render", "analysis result missing", nil)
		}
		return nil, err
	}
	var transcript []pipeline.Utterance
	if _, err := s.Store.LoadArtifact(c.Request.Context(), job.ID, store.ArtifactUtterances, &transcript); err != nil {
		return nil, err
	}

	meta := report.Meta{
		JobID:      job.ID,
		Title:      job.Title,
		Language:   job.Language,
		CreatedAt:  job.CreatedAt,
		DurationMs: job.DurationMs,
	}
	if format == "pdf" {
		return report.RenderPDF(meta, &result, transcript)
	}
	return report.RenderMarkdown(meta, &result, transcript), nil
}

func serveArtifact(c *gin.Context, jobID, ext, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=meeting_report_%s.%s", jobID, ext))
	c.Data(http.StatusOK, contentType, data)
}

// HandleCancelReport cancels a running job.
// POST /api/v1/reports/:id/cancel
func (s *Server) HandleCancelReport(c *gin.Context) {
	job, err := s.Store.GetJobForOwner(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.Orch.Cancel(c.Request.Context(), job.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"id":     job.ID,
			"status": string(pipeline.StatusCancelled),
		},
	})
}

// HandleDeleteReport removes a job with its artifacts, audio, and cached
// renderings.
// DELETE /api/v1/reports/:id
func (s *Server) HandleDeleteReport(c *gin.Context) {
	jobID := c.Param("id")
	owner := middleware.UserID(c)
	if _, err := s.Store.GetJobForOwner(c.Request.Context(), jobID, owner); err != nil {
		respondError(c, err)
		return
	}

	// Stop any in-flight stage work before the row disappears under it.
	s.Orch.CancelRunning(jobID)

	blobRef, err := s.Store.DeleteJob(c.Request.Context(), jobID, owner)
	if err != nil {
		respondError(c, err)
		return
	}
	if blobRef != "" {
		// The job row is gone at this point; an orphaned blob is a cleanup
		// concern, not a request failure.
		_ = s.Blobs.Delete(c.Request.Context(), blobRef)
	}
	s.Artifacts.Invalidate(jobID + "/")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"id": jobID,
		},
	})
}
