package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/moxie-ai/agentgraph/core"
	"github.com/moxie-ai/agentgraph/model"
	"github.com/moxie-ai/agentgraph/tool"
)

// nodeSet bundles the four node implementations an agent variant registers
// under the shared node names.
type nodeSet struct {
	presetOperation nodeFunc
	memoryRecall    nodeFunc
	llm             nodeFunc
	tools           nodeFunc
}

// buildAgentGraph wires the canonical agent shape: preset check, memory
// recall, then the llm ⟷ tools loop until a plain answer ends the turn.
func buildAgentGraph(ns nodeSet, afterPreset, afterLLM routeFunc) (*compiledGraph, error) {
	g := newStateGraph()
	g.addNode(nodePresetOperation, ns.presetOperation)
	g.addNode(nodeLongTermMemoryRecall, ns.memoryRecall)
	g.addNode(nodeLLM, ns.llm)
	g.addNode(nodeTools, ns.tools)
	g.setEntryPoint(nodePresetOperation)
	g.addConditionalEdge(nodePresetOperation, afterPreset)
	g.addEdge(nodeLongTermMemoryRecall, nodeLLM)
	g.addConditionalEdge(nodeLLM, afterLLM)
	g.addEdge(nodeTools, nodeLLM)
	return g.compile()
}

// FunctionCallAgent drives models with native structured tool calling. The
// model receives bound tool definitions and returns either a streamed
// plain-text answer or tool calls, which the tools node executes before
// looping back.
type FunctionCallAgent struct {
	BaseAgent
}

// NewFunctionCallAgent constructs and compiles the agent graph.
func NewFunctionCallAgent(llm model.Model, config Config, optFns ...func(o *Options)) (*FunctionCallAgent, error) {
	a := &FunctionCallAgent{BaseAgent: newBaseAgent(llm, config, optFns...)}

	graph, err := buildAgentGraph(nodeSet{
		presetOperation: a.presetOperation,
		memoryRecall:    a.longTermMemoryRecall,
		llm:             a.llmNode,
		tools:           a.toolsNode,
	}, a.routeAfterPreset, a.routeAfterLLM)
	if err != nil {
		return nil, err
	}
	a.graph = graph

	return a, nil
}

// presetOperation short-circuits the turn when input review matches a
// configured keyword: the preset response is published as the full answer
// and the graph ends without touching the model.
func (a *BaseAgent) presetOperation(_ context.Context, state *State) error {
	review := a.config.Review
	if !review.Enable || !review.InputsConfig.Enable {
		return nil
	}

	var query string
	if len(state.Messages) > 0 {
		query = state.Messages[0].Text()
	}

	if !containsKeyword(query, review.InputsConfig.Keywords) {
		return nil
	}

	thought := core.NewAgentThought(state.TaskID, core.EventAgentMessage)
	thought.Answer = review.InputsConfig.PresetResponse
	thought.Thought = review.InputsConfig.PresetResponse
	thought.Message = state.snapshotMessages()
	a.publish(state.TaskID, thought)
	a.publishEnd(state.TaskID)

	state.halted = true
	return nil
}

func (a *BaseAgent) routeAfterPreset(state *State) string {
	if state.halted {
		return End
	}
	return nodeLongTermMemoryRecall
}

// longTermMemoryRecall publishes the recalled memory, validates the
// short-term history and assembles the working message list the model
// sees: system prompt, prior turns, then the current query.
func (a *BaseAgent) longTermMemoryRecall(_ context.Context, state *State) error {
	if err := validateHistory(state.History); err != nil {
		return err
	}

	var longTermMemory string
	if a.config.EnableLongTermMemory {
		longTermMemory = state.LongTermMemory
		thought := core.NewAgentThought(state.TaskID, core.EventLongTermMemoryRecall)
		thought.Observation = longTermMemory
		a.publish(state.TaskID, thought)
	}

	system := core.NewSystemMessage(renderSystemPrompt(a.config.PresetPrompt, longTermMemory))
	messages := make([]core.Message, 0, len(state.History)+len(state.Messages)+1)
	messages = append(messages, system)
	messages = append(messages, state.History...)
	messages = append(messages, state.Messages...)
	state.Messages = messages

	return nil
}

// validateHistory enforces the alternating human/ai pairing of short-term
// history. A malformed history is unrecoverable for the turn.
func validateHistory(history []core.Message) error {
	if len(history)%2 != 0 {
		return fmt.Errorf("conversation history must contain human/ai message pairs, got %d messages", len(history))
	}
	for i, msg := range history {
		if i%2 == 0 && msg.Role != core.RoleHuman {
			return fmt.Errorf("conversation history message %d must be a human message", i)
		}
		if i%2 == 1 && msg.Role != core.RoleAI {
			return fmt.Errorf("conversation history message %d must be an ai message", i)
		}
	}
	return nil
}

// llmNode runs one model turn: it streams the response, publishing answer
// chunks as agent_message events, and records either a closing answer or
// the tool calls for the tools node. The iteration bound is enforced here
// with a fixed fallback answer.
func (a *BaseAgent) llmNode(ctx context.Context, state *State) error {
	state.IterationCount++
	if state.IterationCount > a.config.MaxIterationCount {
		thought := core.NewAgentThought(state.TaskID, core.EventAgentMessage)
		thought.Answer = maxIterationResponse
		thought.Thought = maxIterationResponse
		thought.Message = state.snapshotMessages()
		a.publish(state.TaskID, thought)
		a.publishEnd(state.TaskID)

		state.halted = true
		return nil
	}

	llm := a.llm
	if model.HasFeature(llm, model.FeatureToolCall) && len(a.config.Tools) > 0 {
		llm = llm.BindTools(toolDefinitions(a.config.Tools))
	}

	startedAt := time.Now()
	inputMessages := state.snapshotMessages()
	chunks, errs := llm.Stream(ctx, inputMessages)

	id := core.NewID()
	var content string
	var toolCalls []core.ToolCall
	var usage model.Usage

	for ck := range chunks {
		if len(ck.ToolCalls) > 0 {
			toolCalls = ck.ToolCalls
		}
		usage.Add(ck.Usage)

		if ck.Content == "" {
			continue
		}
		delta := a.reviewOutput(ck.Content)
		content += delta

		if len(toolCalls) == 0 {
			thought := &core.AgentThought{ID: id, TaskID: state.TaskID, Event: core.EventAgentMessage}
			thought.Thought = delta
			thought.Answer = delta
			a.publish(state.TaskID, thought)
		}
	}
	if err := <-errs; err != nil {
		return err
	}

	latency := time.Since(startedAt).Seconds()

	var aiMessage core.Message
	if len(toolCalls) > 0 {
		aiMessage = core.NewAIMessageWithToolCalls(content, toolCalls...)
	} else {
		aiMessage = core.NewAIMessage(content)
	}

	messageTokens := usage.InputTokens
	if messageTokens == 0 {
		messageTokens = a.llm.CountTokens(inputMessages)
	}
	answerTokens := usage.OutputTokens
	if answerTokens == 0 {
		answerTokens = a.llm.CountTokens([]core.Message{aiMessage})
	}
	pricing := a.llm.Pricing()
	totalPrice := (float64(messageTokens)*pricing.InputPrice + float64(answerTokens)*pricing.OutputPrice) * pricing.Unit

	// Mutate state before publishing: a terminal publish releases the
	// consumer, which may inspect the state immediately.
	state.Messages = append(state.Messages, aiMessage)

	if len(toolCalls) > 0 {
		thought := core.NewAgentThought(state.TaskID, core.EventAgentThought)
		thought.Thought = serializeToolCalls(toolCalls)
		thought.Message = inputMessages
		thought.MessageTokenCount = messageTokens
		thought.MessageUnitPrice = pricing.InputPrice
		thought.AnswerTokenCount = answerTokens
		thought.AnswerUnitPrice = pricing.OutputPrice
		thought.TotalTokenCount = messageTokens + answerTokens
		thought.TotalPrice = totalPrice
		thought.Latency = latency
		a.publish(state.TaskID, thought)
	} else {
		thought := &core.AgentThought{ID: id, TaskID: state.TaskID, Event: core.EventAgentMessage}
		thought.Message = inputMessages
		thought.MessageTokenCount = messageTokens
		thought.MessageUnitPrice = pricing.InputPrice
		thought.AnswerTokenCount = answerTokens
		thought.AnswerUnitPrice = pricing.OutputPrice
		thought.TotalTokenCount = messageTokens + answerTokens
		thought.TotalPrice = totalPrice
		thought.Latency = latency
		a.publish(state.TaskID, thought)
		a.publishEnd(state.TaskID)
	}

	return nil
}

func (a *BaseAgent) routeAfterLLM(state *State) string {
	if state.halted {
		return End
	}
	if last := state.lastMessage(); last != nil && last.Role == core.RoleAI && len(last.ToolCalls) > 0 {
		return nodeTools
	}
	return End
}

// toolsNode executes every tool call from the last model turn, publishes a
// progress event per call and appends the tool result messages.
func (a *BaseAgent) toolsNode(ctx context.Context, state *State) error {
	last := state.lastMessage()
	if last == nil || len(last.ToolCalls) == 0 {
		return nil
	}

	for _, call := range last.ToolCalls {
		startedAt := time.Now()
		args, result := a.executeToolCall(ctx, call)

		event := core.EventAgentAction
		if call.Name == tool.DatasetRetrievalToolName {
			event = core.EventDatasetRetrieval
		}
		thought := core.NewAgentThought(state.TaskID, event)
		thought.Tool = call.Name
		thought.ToolInput = args
		thought.Observation = result
		thought.Latency = time.Since(startedAt).Seconds()
		a.publish(state.TaskID, thought)

		state.Messages = append(state.Messages, core.NewToolMessage(result, call.ID))
	}

	return nil
}

// executeToolCall resolves and invokes one tool call. Failures become
// observation text fed back to the model rather than errors.
func (a *BaseAgent) executeToolCall(ctx context.Context, call core.ToolCall) (map[string]any, string) {
	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return args, "工具执行出错: " + err.Error()
		}
	}

	t, ok := a.config.toolByName(call.Name)
	if !ok {
		return args, "工具执行出错: 不存在名为 " + call.Name + " 的工具"
	}

	result, err := t.Invoke(ctx, args)
	if err != nil {
		a.logger.Warn("agent.tool_failed", "tool", call.Name, "error", err.Error())
		return args, "工具执行出错: " + err.Error()
	}

	return args, stringifyToolResult(result)
}

// stringifyToolResult renders a tool return value as observation text.
func stringifyToolResult(result any) string {
	switch v := result.(type) {
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// toolDefinitions converts configured tools into model-facing definitions.
func toolDefinitions(tools []tool.Tool) []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// serializeToolCalls renders tool calls for the thought record.
func serializeToolCalls(calls []core.ToolCall) string {
	data, err := json.Marshal(calls)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// reviewOutput applies output-side keyword redaction when enabled.
func (a *BaseAgent) reviewOutput(text string) string {
	review := a.config.Review
	if !review.Enable || !review.OutputsConfig.Enable {
		return text
	}
	return redactKeywords(text, review.OutputsConfig.Keywords)
}

// containsKeyword reports whether the text contains any keyword,
// case-insensitively.
func containsKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
