// Package anthropic implements model.Model on the Anthropic Messages API
// with streaming. Text deltas are forwarded as chunks; tool_use blocks and
// usage totals are reconstructed from the accumulated message at stream
// end.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/moxie-ai/agentgraph/core"
	"github.com/moxie-ai/agentgraph/model"
)

// Options configure the Anthropic model adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	Pricing     model.Pricing
	Features    []model.Feature
}

// Model wraps the Anthropic Messages API behind model.Model.
type Model struct {
	client *anthropic.Client
	opts   Options
	tools  []model.ToolDefinition
}

// NewModel creates an adapter using the official client.
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

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates an adapter from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
		Pricing:     model.Pricing{Unit: 0.001},
		Features:    []model.Feature{model.FeatureToolCall, model.FeatureAgentThought},
	}
}

// Stream implements model.Model.
func (m *Model) Stream(ctx context.Context, messages []core.Message) (<-chan model.Chunk, <-chan error) {
	out := make(chan model.Chunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    buildMessages(messages),
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}
		if system := systemBlocks(messages); len(system) > 0 {
			params.System = system
		}
		if len(m.tools) > 0 {
			params.Tools = buildTools(m.tools)
		}

		stream := m.client.Messages.NewStreaming(ctx, params)
		var accumulated anthropic.Message

		for stream.Next() {
			event := stream.Current()
			if err := accumulated.Accumulate(event); err != nil {
				errCh <- fmt.Errorf("anthropic accumulate error: %w", err)
				return
			}

			if deltaEvent, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if textDelta, ok := deltaEvent.Delta.AsAny().(anthropic.TextDelta); ok && textDelta.Text != "" {
					select {
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					case out <- model.Chunk{Content: textDelta.Text}:
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("anthropic streaming error: %w", err)
			return
		}

		final := model.Chunk{
			ToolCalls: toolCallsFromMessage(accumulated),
			Usage: &model.Usage{
				InputTokens:  int(accumulated.Usage.InputTokens),
				OutputTokens: int(accumulated.Usage.OutputTokens),
				TotalTokens:  int(accumulated.Usage.InputTokens + accumulated.Usage.OutputTokens),
			},
		}
		select {
		case <-ctx.Done():
		case out <- final:
		}
	}()

	return out, errCh
}

// toolCallsFromMessage extracts completed tool_use blocks.
func toolCallsFromMessage(msg anthropic.Message) []core.ToolCall {
	var calls []core.ToolCall
	for _, block := range msg.Content {
		if block.Type != "tool_use" {
			continue
		}
		toolBlock := block.AsToolUse()
		args := ""
		if toolBlock.Input != nil {
			if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
				args = string(argsBytes)
			}
		}
		calls = append(calls, core.ToolCall{ID: toolBlock.ID, Name: toolBlock.Name, Arguments: args})
	}
	return calls
}

// buildMessages converts normalized messages; system messages are handled
// separately, tool results become tool_result blocks on a user message.
func buildMessages(messages []core.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case core.RoleHuman:
			if text := msg.Text(); text != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
			}
		case core.RoleAI:
			var content []anthropic.ContentBlockParamUnion
			if text := msg.Text(); text != "" {
				content = append(content, anthropic.NewTextBlock(text))
			}
			for _, tc := range msg.ToolCalls {
				var input any
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
						input = tc.Arguments
					}
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(content) > 0 {
				out = append(out, anthropic.NewAssistantMessage(content...))
			}
		case core.RoleTool:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Text(), false),
			))
		}
	}
	return out
}

func systemBlocks(messages []core.Message) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, msg := range messages {
		if msg.Role == core.RoleSystem {
			if text := msg.Text(); text != "" {
				blocks = append(blocks, anthropic.TextBlockParam{Text: text})
			}
		}
	}
	return blocks
}

func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, tdef := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if tdef.Parameters != nil {
			if properties, exists := tdef.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}
			switch required := tdef.Parameters["required"].(type) {
			case []string:
				inputSchema.Required = required
			case []any:
				for _, r := range required {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}
		out[i] = anthropic.ToolUnionParamOfTool(inputSchema, tdef.Name)
	}
	return out
}

// CountTokens implements model.Model with a character heuristic; Anthropic
// exposes a counting endpoint but it costs a round trip per call.
func (m *Model) CountTokens(messages []core.Message) int {
	return len(model.MessagesText(messages)) / 4
}

// Pricing implements model.Model.
func (m *Model) Pricing() model.Pricing { return m.opts.Pricing }

// Features implements model.Model.
func (m *Model) Features() []model.Feature { return m.opts.Features }

// BindTools implements model.Model, returning a copy advertising the tools.
func (m *Model) BindTools(tools []model.ToolDefinition) model.Model {
	bound := *m
	bound.tools = tools
	return &bound
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: "anthropic"}
}
