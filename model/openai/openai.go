// Package openai implements model.Model on the OpenAI Chat Completions API
// (streaming with function/tool calling and usage reporting). It converts
// the normalized message list into SDK message params and aggregates
// streamed tool-call deltas back into complete calls.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/moxie-ai/agentgraph/core"
	"github.com/moxie-ai/agentgraph/model"
)

// aggCall aggregates partial tool call streaming deltas (id, name,
// arguments) so complete calls can be reconstructed at stream end.
type aggCall struct{ id, name, args string }

// Options configure the OpenAI model adapter. Pricing defaults to zero;
// deployments supply their negotiated schedule.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	Pricing             model.Pricing
	Features            []model.Feature
}

// Model wraps the OpenAI Chat Completions API behind model.Model.
type Model struct {
	client *openai.Client
	opts   Options
	tools  []model.ToolDefinition
}

// NewModel creates an adapter using the default SDK client (API key from
// the environment).
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates an adapter from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
		Pricing:             model.Pricing{Unit: 0.001},
		Features:            []model.Feature{model.FeatureToolCall, model.FeatureAgentThought},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Stream implements model.Model.
func (m *Model) Stream(ctx context.Context, messages []core.Message) (<-chan model.Chunk, <-chan error) {
	out := make(chan model.Chunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(messages)
		stream := m.client.Chat.Completions.NewStreaming(ctx, params)

		toolAgg := map[int64]*aggCall{}
		var usage *model.Usage

		for stream.Next() {
			ck := stream.Current()

			if ck.Usage.TotalTokens > 0 {
				usage = &model.Usage{
					InputTokens:  int(ck.Usage.PromptTokens),
					OutputTokens: int(ck.Usage.CompletionTokens),
					TotalTokens:  int(ck.Usage.TotalTokens),
				}
			}

			for _, choice := range ck.Choices {
				chunk := model.Chunk{Content: choice.Delta.Content}
				for _, tc := range choice.Delta.ToolCalls {
					ac, ok := toolAgg[tc.Index]
					if !ok {
						ac = &aggCall{}
						toolAgg[tc.Index] = ac
					}
					if tc.ID != "" {
						ac.id = tc.ID
					}
					if tc.Function.Name != "" {
						ac.name = tc.Function.Name
					}
					ac.args += tc.Function.Arguments
				}
				if len(toolAgg) > 0 {
					chunk.ToolCalls = aggregatedCalls(toolAgg)
				}
				if chunk.Content != "" || len(chunk.ToolCalls) > 0 {
					select {
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					case out <- chunk:
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("openai streaming error: %w", err)
			return
		}

		// Final chunk carries the completed tool calls and usage totals.
		final := model.Chunk{Usage: usage}
		if len(toolAgg) > 0 {
			final.ToolCalls = aggregatedCalls(toolAgg)
		}
		if final.Usage == nil {
			final.Usage = &model.Usage{}
		}
		select {
		case <-ctx.Done():
		case out <- final:
		}
	}()

	return out, errCh
}

func aggregatedCalls(agg map[int64]*aggCall) []core.ToolCall {
	calls := make([]core.ToolCall, 0, len(agg))
	for i := int64(0); int(i) < len(agg); i++ {
		ac, ok := agg[i]
		if !ok {
			continue
		}
		calls = append(calls, core.ToolCall{ID: ac.id, Name: ac.name, Arguments: ac.args})
	}
	return calls
}

// buildParams assembles the request including bound tool definitions.
func (m *Model) buildParams(messages []core.Message) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(messages),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}

	if len(m.tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(m.tools))
		for i, tdef := range m.tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tdef.Name,
					Description: openai.String(tdef.Description),
					Parameters:  tdef.Parameters,
				},
			}
		}
		params.Tools = tools
	}

	return params
}

// buildMessages converts the normalized messages into SDK params.
func buildMessages(messages []core.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case core.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Text()))
		case core.RoleHuman:
			out = append(out, openai.UserMessage(msg.Text()))
		case core.RoleAI:
			if len(msg.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(msg.Text()))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})
		case core.RoleTool:
			out = append(out, openai.ToolMessage(msg.Text(), msg.ToolCallID))
		}
	}
	return out
}

// CountTokens implements model.Model with a character heuristic; the SDK
// exposes no tokenizer. Roughly four characters per token for mixed text.
func (m *Model) CountTokens(messages []core.Message) int {
	var chars int
	for _, msg := range messages {
		chars += len(msg.Text())
		for _, tc := range msg.ToolCalls {
			chars += len(tc.Name) + len(tc.Arguments)
		}
	}
	return chars / 4
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
	return model.Info{Name: strings.TrimSpace(m.opts.Model), Provider: "openai"}
}
