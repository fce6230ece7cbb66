package transcriber

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeRecognizer returns a fixed text or error. Delay simulates a slow
// service and honours context cancellation.
type FakeRecognizer struct {
	baseRecognizer
	text  string
	err   error
	Delay time.Duration

	mu    sync.Mutex
	calls int
	last  Clip
}

func NewFake(text string, err error) *FakeRecognizer {
	return &FakeRecognizer{text: text, err: err}
}

func (f *FakeRecognizer) Name() string { return "fake" }

func (f *FakeRecognizer) Recognize(ctx context.Context, clip Clip) (*Result, error) {
	f.mu.Lock()
	f.calls++
	f.last = clip
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, fmt.Errorf("fake recognizer error: %w", f.err)
	}
	return &Result{
		Text:    f.text,
		Metrics: &NetworkMetrics{Total: 10 * time.Millisecond},
	}, nil
}

func (f *FakeRecognizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeRecognizer) LastClip() Clip {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}
