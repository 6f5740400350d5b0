package diarize

import (
	"context"
	"sync"
)

// Mock implements Diarizer with scripted results for tests. The zero value
// returns an empty Result for every call.
type Mock struct {
	mu sync.Mutex

	// Result is returned by every Diarize call when Err is nil.
	Result *Result

	// Err, when non-nil, is returned by Diarize. ErrCount limits how many
	// calls fail before Result is returned again; zero means always.
	Err      error
	ErrCount int

	// Calls counts Diarize invocations, for retry assertions.
	Calls int

	// Healthy is reported by HealthCheck.
	Healthy bool
}

// NewMock creates a mock that always returns result.
func NewMock(result *Result) *Mock {
	return &Mock{Result: result, Healthy: true}
}

// Diarize returns the scripted error or result without touching audioPath.
func (m *Mock) Diarize(ctx context.Context, audioPath string, opts *Options) (*Result, error) {
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
		return &Result{Turns: []Turn{}}, nil
	}
	return m.Result, nil
}

// HealthCheck reports the scripted health state.
func (m *Mock) HealthCheck(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Healthy, nil
}

// Name identifies this implementation in logs and metrics.
func (m *Mock) Name() string {
	return "mock"
}
