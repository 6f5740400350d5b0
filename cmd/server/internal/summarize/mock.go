package summarize

import (
	"context"
	"sync"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
)

// Mock implements Summarizer with scripted results for tests.
type Mock struct {
	mu sync.Mutex

	// Result is returned by every Summarize call when Err is nil.
	Result *pipeline.AnalysisResult

	// Err, when non-nil, is returned by Summarize. ErrCount limits how many
	// calls fail before Result is returned again; zero means always.
	Err      error
	ErrCount int

	// Calls counts Summarize invocations, for retry assertions.
	Calls int
}

// NewMock creates a mock that always returns result.
func NewMock(result *pipeline.AnalysisResult) *Mock {
	return &Mock{Result: result}
}

// Summarize returns the scripted error or result.
func (m *Mock) Summarize(ctx context.Context, transcript, language string) (*pipeline.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++

	if m.Err != nil && (m.ErrCount == 0 || m.Calls <= m.ErrCount) {
		return nil, m.Err
	}
	if m.Result == nil {
		return &pipeline.AnalysisResult{Summary: "mock summary"}, nil
	}
	return m.Result, nil
}

// Name identifies this implementation in logs and metrics.
func (m *Mock) Name() string {
	return "mock"
}
