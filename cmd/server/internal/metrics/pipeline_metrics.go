package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StagesTotal counts stage completions.
	// Labels: stage (transcribe/diarize/align/summarize/render), status (success/error)
	StagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetscribe_pipeline_stages_total",
			Help: "Total number of pipeline stage executions by stage and status",
		},
		[]string{"stage", "status"},
	)

	// StageErrorsTotal counts classified stage failures.
	// Labels: stage, kind (ModelUnavailable/DecodeError/UpstreamRateLimited/...)
	StageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetscribe_pipeline_stage_errors_total",
			Help: "Total number of pipeline stage errors by stage and error kind",
		},
		[]string{"stage", "kind"},
	)

	// StageDuration tracks per-stage wall time.
	// Buckets cover fast local stages through long transcriptions.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meetscribe_pipeline_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds by stage",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	// ActiveJobs gauges jobs currently running through the pipeline.
	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meetscribe_active_jobs",
			Help: "Number of analysis jobs currently in flight",
		},
	)

	// JobsTotal counts finished jobs by terminal status.
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetscribe_jobs_total",
			Help: "Total number of finished jobs by terminal status",
		},
		[]string{"status"},
	)
)

// RecordStage records one stage execution.
func RecordStage(stage string, success bool, durationSeconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	StagesTotal.WithLabelValues(stage, status).Inc()
	StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordStageError records a classified stage failure.
func RecordStageError(stage, kind string) {
	StageErrorsTotal.WithLabelValues(stage, kind).Inc()
}

// RecordJobFinished records a job reaching a terminal status.
func RecordJobFinished(status string) {
	JobsTotal.WithLabelValues(status).Inc()
}
