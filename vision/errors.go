package vision

import "errors"

var (
	// ErrNotFound is returned when no buffer exists for a session.
	ErrNotFound = errors.New("frame buffer not found")

	// ErrInvalidFrame is returned for raw frames whose size does not match
	// their pixel data.
	ErrInvalidFrame = errors.New("invalid raw frame")
)
