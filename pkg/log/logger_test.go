package log

import (
	"sync"
	"testing"
)

// recordingLogger captures events for assertions.
type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingLogger) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestMultiLoggerFansOut(t *testing.T) {
	a := &recordingLogger{}
	b := &recordingLogger{}
	multi := NewMultiLogger(a, b)

	for i := 0; i < 3; i++ {
		multi.Log(makeTestEvent("conn-x", CategoryMessage))
	}

	if a.count() != 3 {
		t.Errorf("first sink got %d events, want 3", a.count())
	}
	if b.count() != 3 {
		t.Errorf("second sink got %d events, want 3", b.count())
	}
}

func TestMultiLoggerEmpty(t *testing.T) {
	multi := NewMultiLogger()
	// Must not panic with no sinks
	multi.Log(makeTestEvent("conn-y", CategoryState))
}

func TestMultiLoggerSkipsNilSinks(t *testing.T) {
	a := &recordingLogger{}
	multi := NewMultiLogger(nil, a, nil)

	multi.Log(makeTestEvent("conn-y", CategoryMessage))

	if a.count() != 1 {
		t.Errorf("sink got %d events, want 1", a.count())
	}
}

func TestNoopLogger(t *testing.T) {
	var logger Logger = NoopLogger{}
	logger.Log(makeTestEvent("conn-z", CategoryError))
}
