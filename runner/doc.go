// Package runner is the session registry of convomesh.
//
// A Runner owns the dependencies shared by every session (memory service,
// conversation store, knowledge searcher, user directory, camera frames and
// the model) and builds, per session id, the pair that serves it:
//
//   - a session.Orchestrator that owns the prompt context and the log
//   - an engine.Engine that generates replies and executes tools
//
// The engine is attached to the orchestrator as its core.Signaler and the
// orchestrator is the engine's Conversation. Entry surfaces open a session
// when a client connects and close it when the client goes away.
package runner
