package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// sseDone terminates a chat stream.
const sseDone = "[DONE]"

// sseWriter writes data-only server-sent events.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return &sseWriter{w: w, flusher: f}, nil
}

// Send writes v as a JSON data event.
func (sw *sseWriter) Send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return sw.raw(string(b))
}

// Done writes the terminating event.
func (sw *sseWriter) Done() error { return sw.raw(sseDone) }

func (sw *sseWriter) raw(data string) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}
