// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"fmt"
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
	// JSON asks the provider for a single JSON object when it supports it.
	JSON bool
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderAzure     Provider = "azure"
)

// ProviderConfig carries credentials for every supported provider.
type ProviderConfig struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	AzureEndpoint   string
	AzureAPIKey     string
	AzureAPIVersion string
	// AzureDeployment is the deployment name, used as the model.
	AzureDeployment string
}

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, cfg ProviderConfig) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(cfg.AnthropicAPIKey)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenAIAPIKey)
	case ProviderAzure:
		return NewAzureClient(cfg.AzureEndpoint, cfg.AzureAPIKey, cfg.AzureAPIVersion, cfg.AzureDeployment)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}
