// Package model defines the provider-agnostic abstractions used by the
// generation engine to talk to language models.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic, Gemini) implement the Model interface in
// sub-packages so the engine stays decoupled from vendor SDKs.
package model
