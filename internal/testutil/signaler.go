package testutil

import (
	"sync"

	"github.com/hupe1980/convomesh/core"
)

// Signal names recorded by RecordingSignaler.
const (
	SignalGenerate  = "generate"
	SignalInterrupt = "interrupt"
)

// RecordingSignaler is a core.Signaler that records every call in order.
// GenerateErr, when set, is returned from Generate.
type RecordingSignaler struct {
	mu          sync.Mutex
	calls       []string
	GenerateErr error
}

var _ core.Signaler = (*RecordingSignaler)(nil)

// Generate implements core.Signaler.
func (r *RecordingSignaler) Generate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, SignalGenerate)
	return r.GenerateErr
}

// Interrupt implements core.Signaler.
func (r *RecordingSignaler) Interrupt() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, SignalInterrupt)
	return nil
}

// Calls returns the recorded signal names.
func (r *RecordingSignaler) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Count returns how often name was signalled.
func (r *RecordingSignaler) Count(name string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls.
func (r *RecordingSignaler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
