package engine

import "sync"

// EventType names the points of a generation run observable by a Sink.
type EventType string

const (
	// EventDelta carries a streamed text fragment of the reply.
	EventDelta EventType = "delta"
	// EventTool is emitted after each tool call of a round has finished.
	EventTool EventType = "tool"
	// EventDone carries the complete reply once it has been committed.
	EventDone EventType = "done"
	// EventError reports a run that ended without a reply.
	EventError EventType = "error"
)

// Event is one observation of a generation run. Run increases with every
// run of the engine, letting transports drop fragments of a run that has
// since been superseded.
type Event struct {
	Type      EventType
	SessionID string
	Run       uint64
	Text      string
	Tool      string
	Success   bool
	Err       error
}

// Sink receives run events. Emit is called from the engine goroutine and
// must not block for long; a slow sink delays the next run.
type Sink interface {
	Emit(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event)

// Emit implements Sink.
func (f SinkFunc) Emit(ev Event) { f(ev) }

// DiscardSink drops every event.
type DiscardSink struct{}

// Emit implements Sink.
func (DiscardSink) Emit(Event) {}

// MultiSink fans events out to registered sinks in registration order.
// Registration may happen concurrently with Emit.
type MultiSink struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewMultiSink creates a fan-out sink.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Add registers a sink.
func (m *MultiSink) Add(s Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

// Emit implements Sink.
func (m *MultiSink) Emit(ev Event) {
	m.mu.RLock()
	sinks := m.sinks
	m.mu.RUnlock()
	for _, s := range sinks {
		s.Emit(ev)
	}
}
