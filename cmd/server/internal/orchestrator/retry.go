package orchestrator

import (
	"context"
	"time"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/metrics"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
	"github.com/yahyachammami/meetscribe/pkg/logger"
)

// retriableKind is the default retry predicate: only transient kinds retry.
func retriableKind(kind pipeline.ErrorKind) bool {
	return kind.Retriable()
}

// summarizeRetriable additionally retries malformed completions: the model
// may produce parseable output on a second attempt.
func summarizeRetriable(kind pipeline.ErrorKind) bool {
	return kind.Retriable() || kind == pipeline.KindMalformedResponse
}

// withRetry runs fn up to RetryAttempts times with exponential backoff,
// retrying only errors whose kind satisfies the predicate. Stage timing and
// outcome are recorded once, for the final attempt.
func (o *Orchestrator) withRetry(ctx context.Context, jobID, stage string,
	retriable func(pipeline.ErrorKind) bool, fn func(context.Context) error) error {

	logger.LogStage(o.log, jobID, stage, "start", 0, "")
	start := time.Now()

	var err error
	backoff := time.Duration(o.cfg.RetryBackoffMs) * time.Millisecond
	for attempt := 1; attempt <= o.cfg.RetryAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			metrics.RecordStage(stage, true, time.Since(start).Seconds())
			logger.LogStage(o.log, jobID, stage, "success", time.Since(start).Milliseconds(), "")
			return nil
		}
		if ctx.Err() != nil {
			break
		}

		se := pipeline.AsStageError(err)
		if se.Stage == "" {
			se.Stage = stage
		}
		if !retriable(se.Kind) || attempt == o.cfg.RetryAttempts {
			break
		}

		logger.LogStage(o.log, jobID, stage, "retry", time.Since(start).Milliseconds(), string(se.Kind))
		select {
		case <-ctx.Done():
			metrics.RecordStage(stage, false, time.Since(start).Seconds())
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	se := pipeline.AsStageError(err)
	if se.Stage == "" {
		se.Stage = stage
	}
	metrics.RecordStage(stage, false, time.Since(start).Seconds())
	metrics.RecordStageError(stage, string(se.Kind))
	logger.LogStage(o.log, jobID, stage, "error", time.Since(start).Milliseconds(), string(se.Kind))
	return se
}
