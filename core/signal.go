package core

// Signaler is the one-way channel from a session's orchestrator to its
// generation engine. Both calls return without waiting for generation.
//
//   - Generate asks for the next assistant turn from the current context.
//   - Interrupt abandons in-flight generation and drops unconsumed signals.
type Signaler interface {
	Generate() error
	Interrupt() error
}
