package verification

import (
	"context"
	"sync"

	"github.com/teslashibe/go-faceverify/pkg/imagebuf"
)

// Mock implements Classifier for testing.
type Mock struct {
	// AnalyzeFunc is called when Analyze is invoked.
	AnalyzeFunc func(ctx context.Context, img *imagebuf.Buffer) (*Estimate, error)

	// WarmFunc is called when Warm is invoked.
	WarmFunc func(ctx context.Context) error

	mu    sync.Mutex
	calls map[string]int
}

// NewMock returns a mock that always reports est.
func NewMock(est Estimate) *Mock {
	return &Mock{
		AnalyzeFunc: func(ctx context.Context, img *imagebuf.Buffer) (*Estimate, error) {
			e := est
			return &e, nil
		},
	}
}

// WithError returns a mock whose Analyze always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		AnalyzeFunc: func(ctx context.Context, img *imagebuf.Buffer) (*Estimate, error) {
			return nil, err
		},
	}
}

// Analyze calls AnalyzeFunc and records the call.
func (m *Mock) Analyze(ctx context.Context, img *imagebuf.Buffer) (*Estimate, error) {
	m.record("Analyze")
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, img)
	}
	return nil, ErrNoFace
}

// Warm calls WarmFunc and records the call.
func (m *Mock) Warm(ctx context.Context) error {
	m.record("Warm")
	if m.WarmFunc != nil {
		return m.WarmFunc(ctx)
	}
	return nil
}

func (m *Mock) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Verify Mock implements Classifier and Warmer at compile time.
var (
	_ Classifier = (*Mock)(nil)
	_ Warmer     = (*Mock)(nil)
)
