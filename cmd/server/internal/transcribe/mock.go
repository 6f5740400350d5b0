package transcribe

import (
	"context"
	"sync"
)

// Mock implements Transcriber with scripted results for tests and for
// degraded deployments where no whisper service is reachable. The zero value
// returns an empty Result (valid silence) for every call.
type Mock struct {
	mu sync.Mutex

	// Result is returned by every Transcribe call when Err is nil.
	Result *Result

	// Err, when non-nil, is returned by Transcribe. ErrCount limits how many
	// calls fail before Result is returned again; zero means always.
	Err      error
	ErrCount int

	// Calls counts Transcribe invocations, for retry assertions.
	Calls int

	// Healthy is reported by HealthCheck.
	Healthy bool
}

// NewMock creates a mock that always returns result.
func NewMock(result *Result) *Mock {
	return &Mock{Result: result, Healthy: true}
}

// Transcribe returns the scripted error or result without touching audioPath.
func (m *Mock) Transcribe(ctx context.Context, audioPath string, opts *Options) (*Result, error) {
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
		return &Result{Segments: []Segment{}, Language: "unknown"}, nil
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
