// Package core provides the foundational domain types and interfaces shared by
// every convomesh component:
//
//   - Content and Parts (text, image, function call / response) forming the
//     messages of a prompt context
//   - Conversations and Turns persisted by a ConversationStore
//   - Facts and Scopes persisted by a FactStore
//   - KnowledgeBase and Directory collaborators used by tools
//   - Signaler, the one-way channel from an orchestrator to its engine
//   - ToolContext handed to tool implementations
//
// Implementation concerns (persistence, generation, transport) live in sibling
// packages; this package only exposes small contracts.
package core
