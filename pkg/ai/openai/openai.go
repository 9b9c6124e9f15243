// Package openai implements ai.Client against any OpenAI-compatible
// chat-completion endpoint.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/knograph/knograph/pkg/ai"
)

// Client talks to an OpenAI-compatible chat-completion API.
//
// A Client should be created using NewClient.
type Client struct {
	model   string
	baseURL string

	chat *openai.Client
}

// NewClientParams configures a new Client. BaseURL may point at any
// OpenAI-compatible server; when empty the official endpoint is used.
type NewClientParams struct {
	Model   string
	BaseURL string
	APIKey  string
}

// NewClient creates a chat-completion client for the configured endpoint.
// Returns nil when no API key is configured, which callers treat as "no LLM
// available".
func NewClient(params NewClientParams) *Client {
	if params.APIKey == "" {
		return nil
	}

	options := []option.RequestOption{
		option.WithAPIKey(params.APIKey),
	}
	if params.BaseURL != "" {
		options = append(options, option.WithBaseURL(params.BaseURL))
	}
	chat := openai.NewClient(options...)

	return &Client{
		model:   params.Model,
		baseURL: params.BaseURL,
		chat:    &chat,
	}
}

// GenerateCompletionWithFormat sends a prompt and unmarshals the response
// into out, enforcing a JSON schema derived from out's type on the server
// side where supported.
func (c *Client) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	schema := ai.GenerateSchema(out)
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        name,
		Description: openai.String(description),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}

	options := ai.GenerateOptions{
		Model:       c.model,
		Temperature: 0.1,
	}
	for _, o := range opts {
		o(&options)
	}

	msgs := []openai.ChatCompletionMessageParamUnion{}
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(options.Model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
		Messages:    msgs,
		Temperature: openai.Float(options.Temperature),
	}

	response, err := c.chat.Chat.Completions.New(ctx, body)
	if err != nil {
		return err
	}
	if len(response.Choices) == 0 {
		return fmt.Errorf("no choices in response from model")
	}
	message := response.Choices[0].Message.Content
	if message == "" {
		return fmt.Errorf("empty response from model (finish_reason: %s)", response.Choices[0].FinishReason)
	}
	return ai.UnmarshalFlexible(message, out)
}
