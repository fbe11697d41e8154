// Package conversation implements the conversation log: the in-process
// ConversationStore and the per-session Log that tracks the current
// conversation, provisions one on first write and renders history for replay.
package conversation
