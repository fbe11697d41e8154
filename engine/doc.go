// Package engine implements the generation worker attached to a session.
//
// An Engine receives generate and interrupt signals from the session
// orchestrator (it implements core.Signaler) and turns each generate signal
// into a run:
//
//  1. snapshot the prompt context
//  2. call the model, streaming text fragments to the Sink
//  3. when the model asks for tools, execute them through the tool registry
//     and call the model again with the results, bounded by Config.MaxSteps
//  4. commit the reply, together with the tool exchange, through
//     Conversation.RecordReply
//
// Interrupt cancels the run in flight and drops queued signals without
// waiting. A cancelled run commits nothing: the orchestrator rejects commits
// whose context is done, and interrupts are delivered from within the
// orchestrator's own operation loop, so no stale reply can land after the
// input that interrupted it.
//
// Example:
//
//	sess := session.New()
//	eng := engine.New(sess, llm, func(o *engine.Options) {
//	    o.SessionID = sess.ID()
//	    o.Tools = tool.NewRegistry(tool.Builtin(deps)...)
//	    o.Sink = engine.SinkFunc(func(ev engine.Event) { ... })
//	})
//	sess.AttachSignaler(eng)
//	defer eng.Close()
package engine
