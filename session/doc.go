// Package session implements the per-session action orchestrator.
//
// An Orchestrator owns one prompt context and one conversation log pointer.
// Configure binds identity and conversation and rebuilds the context in a
// fixed order: memory note, replayed history, greeting instruction. HandleInput
// runs every input through interrupt, normalize, context append, log write and
// generate. Tools reach the memory store through SaveFact and DeleteFact, and
// the engine commits replies through RecordReply; all of these share the same
// sequential operation queue.
package session
