package vision

import "sync"

// Store keeps one frame Buffer per session. Buffers are created on first use
// with the store's options.
type Store struct {
	optFns []func(o *Options)

	mu      sync.RWMutex
	buffers map[string]*Buffer // sessionID -> buffer
}

// NewStore creates an empty store. optFns apply to every buffer it creates.
func NewStore(optFns ...func(o *Options)) *Store {
	return &Store{optFns: optFns, buffers: make(map[string]*Buffer)}
}

// Buffer returns the buffer of sessionID, creating it when missing.
func (s *Store) Buffer(sessionID string) *Buffer {
	s.mu.RLock()
	b, ok := s.buffers[sessionID]
	s.mu.RUnlock()
	if ok {
		return b
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buffers[sessionID]; ok {
		return b
	}
	b = NewBuffer(s.optFns...)
	s.buffers[sessionID] = b
	return b
}

// Get returns the buffer of sessionID or ErrNotFound.
func (s *Store) Get(sessionID string) (*Buffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buffers[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

// Sessions returns the ids of sessions holding a buffer.
func (s *Store) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.buffers))
	for id := range s.buffers {
		ids = append(ids, id)
	}
	return ids
}

// Delete drops the buffer of sessionID or returns ErrNotFound.
func (s *Store) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buffers[sessionID]; !ok {
		return ErrNotFound
	}
	delete(s.buffers, sessionID)
	return nil
}
