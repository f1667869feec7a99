package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"
)

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// AnthropicClient implements Client on the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	config *AnthropicConfig
	logger *logrus.Logger
}

// NewAnthropicClient creates a client for the Anthropic Messages API.
func NewAnthropicClient(config *AnthropicConfig, logger *logrus.Logger) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	return &AnthropicClient{
		client: &client,
		config: config,
		logger: logger,
	}
}

// ProviderName returns the provider identifier.
func (c *AnthropicClient) ProviderName() string {
	return "anthropic"
}

// Complete performs one completion round.
func (c *AnthropicClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	params, err := c.convertRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to convert request: %w", err)
	}

	resp, err := c.client.Messages.New(ctx, *params)
	if err != nil {
		c.logger.WithError(err).Error("Anthropic API call failed")
		return nil, fmt.Errorf("anthropic api call failed: %w", err)
	}

	return c.convertResponse(resp), nil
}

// convertRequest converts the neutral request to Anthropic's format.
// Anthropic takes the system prompt separately, requires max_tokens, and
// expects tool results as tool_result blocks inside user messages.
func (c *AnthropicClient) convertRequest(req *Request) (*anthropic.MessageNewParams, error) {
	var messages []anthropic.MessageParam

	for i := 0; i < len(req.Messages); i++ {
		msg := req.Messages[i]
		switch msg.Role {
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))

		case RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, call.Arguments, call.Name))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(""))
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))

		case RoleTool:
			// Consecutive tool results collapse into one user message.
			var blocks []anthropic.ContentBlockParamUnion
			for ; i < len(req.Messages) && req.Messages[i].Role == RoleTool; i++ {
				result := req.Messages[i]
				blocks = append(blocks, anthropic.NewToolResultBlock(result.ToolCallID, result.Content, false))
			}
			i--
			messages = append(messages, anthropic.NewUserMessage(blocks...))

		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 1024 // Anthropic requires max_tokens
	}

	params := &anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System, Type: "text"},
		}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	if len(req.Tools) > 0 {
		var tools []anthropic.ToolUnionParam
		for _, tool := range req.Tools {
			schema := anthropic.ToolInputSchemaParam{}
			if props, ok := tool.Parameters["properties"]; ok {
				schema.Properties = props
			}
			if required, ok := tool.Parameters["required"].([]string); ok {
				schema.Required = required
			}

			t := anthropic.ToolUnionParamOfTool(schema, tool.Name)
			if t.OfTool != nil {
				t.OfTool.Description = anthropic.String(tool.Description)
			}
			tools = append(tools, t)
		}
		params.Tools = tools
	}

	return params, nil
}

// convertResponse extracts text, tool calls, and usage from an Anthropic message.
func (c *AnthropicClient) convertResponse(resp *anthropic.Message) *Response {
	var text strings.Builder
	var toolCalls []ToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			toolCalls = append(toolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}

	return &Response{
		Text:         text.String(),
		ToolCalls:    toolCalls,
		StopReason:   string(resp.StopReason),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
}
