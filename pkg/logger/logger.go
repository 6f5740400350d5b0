package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls logger initialization.
// Level accepts debug/info/warn/error; Environment selects the handler
// format (prod -> JSON, anything else -> text). When File is set, output
// is written to a size-rotated log file instead of stdout.
type Config struct {
	Level       string
	Environment string
	WithSource  bool
	File        string
	MaxSizeMB   int
	MaxBackups  int
}

var (
	global *slog.Logger
	once   sync.Once
)

func levelFromString(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.New("invalid log level: " + level)
	}
}

// New creates a slog.Logger from cfg without touching the global instance.
func New(cfg Config) (*slog.Logger, error) {
	lvl, err := levelFromString(cfg.Level)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl, AddSource: cfg.WithSource}
	var handler slog.Handler
	env := strings.ToLower(cfg.Environment)
	if env == "prod" || env == "production" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	return slog.New(handler), nil
}

// Init initializes the global logger; repeated calls return the first result.
func Init(cfg Config) (*slog.Logger, error) {
	var initErr error
	once.Do(func() {
		global, initErr = New(cfg)
	})
	return global, initErr
}

// L returns the initialized global logger and panics if Init was never called.
func L() *slog.Logger {
	if global == nil {
		panic("logger.Init must be called before logger.L")
	}
	return global
}

// LogStage emits a structured log line for one pipeline stage event.
// stage: transcribe/diarize/align/summarize/render
// action: start/success/retry/error
// errorKind is optional and switches the record to error level.
func LogStage(logger *slog.Logger, jobID, stage, action string, durationMs int64, errorKind string) {
	attrs := []slog.Attr{
		slog.String("job_id", jobID),
		slog.String("stage", stage),
		slog.String("action", action),
		slog.Int64("duration_ms", durationMs),
	}

	if errorKind != "" {
		attrs = append(attrs, slog.String("error_kind", errorKind))
		logger.LogAttrs(context.Background(), slog.LevelError, "pipeline stage error", attrs...)
	} else {
		logger.LogAttrs(context.Background(), slog.LevelInfo, "pipeline stage event", attrs...)
	}
}
