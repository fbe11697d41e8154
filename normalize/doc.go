// Package normalize converts user inputs of every modality into the canonical
// content appended to a session's prompt context and the turn written to its
// conversation log.
package normalize
