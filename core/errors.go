package core

import "errors"

var (
	// ErrNotFound is returned by stores when the addressed entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoSignaler is returned when a generation or interruption signal is
	// requested before an engine has been attached to the session.
	ErrNoSignaler = errors.New("no generation engine attached")

	// ErrEmptyInput is returned for inputs that carry nothing to append.
	ErrEmptyInput = errors.New("empty input")

	// ErrUnsupportedInput is returned for input kinds no normalizer handles.
	ErrUnsupportedInput = errors.New("unsupported input kind")

	// ErrSessionClosed is returned by operations submitted after Close.
	ErrSessionClosed = errors.New("session closed")

	// ErrInboxFull is returned when a signal cannot be queued without blocking.
	ErrInboxFull = errors.New("signal inbox full")
)
