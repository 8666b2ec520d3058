package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const defaultTemperature = 0.3

type OpenAIOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	// RequestOptions are appended after the key and base URL.
	RequestOptions []option.RequestOption
}

// OpenAIModel talks to any OpenAI-compatible chat completions endpoint.
type OpenAIModel struct {
	client      openai.Client
	model       string
	temperature float64
}

func NewOpenAIModel(opts OpenAIOptions) (*OpenAIModel, error) {
	if opts.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	reqOpts = append(reqOpts, opts.RequestOptions...)

	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	return &OpenAIModel{
		client:      openai.NewClient(reqOpts...),
		model:       opts.Model,
		temperature: temperature,
	}, nil
}

func (m *OpenAIModel) NewConversation(system, user string, tools []ToolSpec) Conversation {
	params := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema shared.FunctionParameters
		if len(t.Parameters) > 0 {
			if err := json.Unmarshal(t.Parameters, &schema); err != nil {
				schema = shared.FunctionParameters{"type": "object"}
			}
		}
		params = append(params, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  schema,
		}))
	}
	return &openAIConversation{
		model: m,
		tools: params,
		messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
}

type openAIConversation struct {
	model    *OpenAIModel
	tools    []openai.ChatCompletionToolUnionParam
	messages []openai.ChatCompletionMessageParamUnion
}

func (c *openAIConversation) Step(ctx context.Context) (Reply, error) {
	completion, err := c.model.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model.model),
		Messages:    c.messages,
		Tools:       c.tools,
		Temperature: openai.Float(c.model.temperature),
	})
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Reply{}, fmt.Errorf("chat completion returned no choices")
	}

	msg := completion.Choices[0].Message
	c.messages = append(c.messages, msg.ToParam())

	reply := Reply{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return reply, nil
}

func (c *openAIConversation) AddToolResult(callID, content string) {
	c.messages = append(c.messages, openai.ToolMessage(content, callID))
}
