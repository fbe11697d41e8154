// Package prompt holds the live prompt context of a session and the fixed
// prompt texts (system prompts, greeting instructions, memory note).
//
// A Context enforces nothing about ordering by itself; the session
// orchestrator drives it so that the memory note precedes replayed history,
// which precedes any new input.
package prompt
