package providers

import "fmt"

// NewReasoning returns the external reasoning provider for a name. Supported:
// "openai", "gemini". baseURL overrides are for tests and proxies.
func NewReasoning(name, apiKey, model, baseURL string) (Provider, error) {
	switch name {
	case "openai":
		if model == "" {
			model = "gpt-4o"
		}
		return NewOpenAIClient(apiKey, model, baseURL), nil
	case "gemini":
		if model == "" {
			model = "gemini-1.5-pro"
		}
		return NewGeminiClient(apiKey, model, baseURL), nil
	default:
		return nil, fmt.Errorf("unsupported reasoning provider %q (want openai or gemini)", name)
	}
}
