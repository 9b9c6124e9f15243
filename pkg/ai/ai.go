// Package ai defines the LLM collaborator contract used by the extraction
// pipeline. Implementations live in the openai and ollama subpackages; both
// speak a chat-completion shaped protocol.
//
// LLM failure is always recoverable from the caller's point of view: the
// extractors fall back to rule evaluation and the query paths return empty
// results. Nothing in this package is allowed to abort a document pipeline.
package ai

import "context"

// GenerateOptions holds configuration for a single generation request.
type GenerateOptions struct {
	Model         string
	SystemPrompts []string
	Temperature   float64
}

// GenerateOption is a functional option for configuring generation requests.
type GenerateOption func(*GenerateOptions)

// WithModel sets the model to use for this request.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithSystemPrompts sets system prompts prepended to the request.
func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// Client is the interface the extractors depend on.
type Client interface {
	// GenerateCompletionWithFormat enforces a JSON schema derived from out
	// and unmarshals the response into it. name and description label the
	// schema for the model.
	GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...GenerateOption) error
}
