// Package providers contains the HTTP clients for the AI backends: a local
// Ollama endpoint used for output filtering, and the external reasoning
// services (OpenAI, Gemini). Clients are stateless; conversation history is
// whatever the caller passes in.
package providers

import "context"

// Message is one entry of a chat conversation.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatRequest is a provider-neutral chat completion request.
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// ChatResponse is a provider-neutral chat completion response.
type ChatResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	StopReason   string `json:"stop_reason,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
}

// Provider is the contract both AI backends are reached through.
type Provider interface {
	// Chat sends a chat request and returns the response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// TestConnection validates credentials and connectivity.
	TestConnection(ctx context.Context) error

	// Name returns the provider name.
	Name() string
}
