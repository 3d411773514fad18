// Package anthropic provides a model wrapper for the Anthropic Claude API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model
// interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

// Generate implements generation against the Anthropic Messages API,
// adapting function/tool calling into model.Response chunks.
func (m *Model) Generate(ctx context.Context, req *model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		temperature := m.opts.Temperature
		if req.Config.Temperature != nil {
			temperature = *req.Config.Temperature
		}

		maxTokens := m.opts.MaxTokens
		if req.Config.MaxTokens != nil {
			maxTokens = int64(*req.Config.MaxTokens)
		}

		modelID := m.opts.Model
		if req.Model != "" {
			modelID = anthropic.Model(req.Model)
		}

		params := anthropic.MessageNewParams{
			Model:       modelID,
			Messages:    m.buildMessages(req.Contents),
			MaxTokens:   maxTokens,
			Temperature: anthropic.Float(temperature),
		}

		if req.Instructions != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
		}

		if declarations := req.Declarations(); len(declarations) > 0 {
			params.Tools = m.buildTools(declarations)
		}

		if req.Stream {
			// TODO: implement streaming via anthropic.MessageStreamEvent
			// accumulation (text deltas plus tool_use input aggregation).
			errCh <- fmt.Errorf("streaming not yet implemented for anthropic model")
			return
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		var parts []core.Part

		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				textBlock := block.AsText()
				if textBlock.Text != "" {
					parts = append(parts, core.TextPart{Text: textBlock.Text})
				}
			case "tool_use":
				toolBlock := block.AsToolUse()

				args := ""
				if toolBlock.Input != nil {
					if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
						args = string(argsBytes)
					}
				}

				parts = append(parts, core.FunctionCallPart{
					FunctionCall: core.FunctionCall{
						ID:        toolBlock.ID,
						Name:      toolBlock.Name,
						Arguments: args,
					},
				})
			}
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}

		out <- model.Response{
			Content:      &core.Content{Role: "assistant", Parts: parts},
			FinishReason: finishReason,
			Usage: &model.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			},
		}
	}()

	return out, errCh
}

// buildMessages converts normalized contents to the Anthropic message
// format. Function responses become tool_result blocks on a user message,
// matching where the contents processor placed them.
func (m *Model) buildMessages(contents []core.Content) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	for _, c := range contents {
		if c.Role == "system" {
			continue // handled via params.System
		}

		var (
			blocks      []anthropic.ContentBlockParamUnion
			isAssistant = c.Role == "assistant"
		)

		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" && !part.Thought {
					blocks = append(blocks, anthropic.NewTextBlock(part.Text))
				}
			case core.FunctionCallPart:
				var input any
				if part.FunctionCall.Arguments != "" {
					if err := json.Unmarshal([]byte(part.FunctionCall.Arguments), &input); err != nil {
						input = part.FunctionCall.Arguments
					}
				}

				blocks = append(blocks, anthropic.NewToolUseBlock(
					part.FunctionCall.ID,
					input,
					part.FunctionCall.Name,
				))
			case core.FunctionResponsePart:
				fr := part.FunctionResponse

				payload := any(fr.Response)
				if fr.Error != "" {
					payload = map[string]any{"error": fr.Error}
				}

				text := fmt.Sprintf("%v", payload)
				if raw, err := json.Marshal(payload); err == nil {
					text = string(raw)
				}

				blocks = append(blocks, anthropic.NewToolResultBlock(fr.ID, text, fr.Error != ""))
			}
		}

		if len(blocks) == 0 {
			continue
		}

		if isAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
	}

	return messages
}

// buildTools converts tool declarations to the Anthropic tool format.
func (m *Model) buildTools(declarations []tool.FunctionDeclaration) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(declarations))

	for i, decl := range declarations {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if decl.Parameters != nil {
			if properties, exists := decl.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}

			if required, exists := decl.Parameters["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []any:
					var reqStrings []string
					for _, r := range req {
						if s, ok := r.(string); ok {
							reqStrings = append(reqStrings, s)
						}
					}
					inputSchema.Required = reqStrings
				}
			}
		}

		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, decl.Name)
	}

	return anthropicTools
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
