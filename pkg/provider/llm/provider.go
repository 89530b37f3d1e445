// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (Gemini, OpenAI, Anthropic,
// a local Ollama instance and so on) and exposes a single blocking completion
// call. The transcript corrector only ever asks for one short rewrite at a
// time, so there is no streaming or tool-calling surface here.
//
// Implementors must be safe for concurrent use.
package llm

import "context"

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// It returns an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities reports static limits of the configured model.
	Capabilities() ModelCapabilities
}
