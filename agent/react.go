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

// reactClassifyLookahead is how many leading characters of a model turn
// are buffered before deciding whether the turn is a fenced tool-call
// block or a plain answer. Seven covers the "```json" fence opener.
const reactClassifyLookahead = 7

// reactToolResultTemplate recasts a tool execution result as user-visible
// text appended to the conversation, since text-only models have no
// native tool-result channel.
const reactToolResultTemplate = "工具: %s\n执行结果: %s\n====\n"

// ReactAgent emulates tool calling over plain text for models without the
// native capability. The system prompt instructs the model to reply with a
// fenced JSON block when it wants a tool; the llm node sniffs the stream
// prefix to classify each turn. When the underlying model does support
// native tool calling, every node delegates to the standard behavior.
type ReactAgent struct {
	BaseAgent
}

// NewReactAgent constructs and compiles the agent graph.
func NewReactAgent(llm model.Model, config Config, optFns ...func(o *Options)) (*ReactAgent, error) {
	a := &ReactAgent{BaseAgent: newBaseAgent(llm, config, optFns...)}

	graph, err := buildAgentGraph(nodeSet{
		presetOperation: a.presetOperation,
		memoryRecall:    a.reactMemoryRecall,
		llm:             a.reactLLMNode,
		tools:           a.reactToolsNode,
	}, a.routeAfterPreset, a.routeAfterLLM)
	if err != nil {
		return nil, err
	}
	a.graph = graph

	return a, nil
}

// nativeToolCalling reports whether the text emulation can be skipped.
func (a *ReactAgent) nativeToolCalling() bool {
	return model.HasFeature(a.llm, model.FeatureToolCall)
}

// reactMemoryRecall builds the working messages with the text-emulation
// system prompt, which embeds tool descriptions and the fenced-JSON reply
// convention.
func (a *ReactAgent) reactMemoryRecall(ctx context.Context, state *State) error {
	if a.nativeToolCalling() {
		return a.longTermMemoryRecall(ctx, state)
	}

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

	system := core.NewSystemMessage(renderReactSystemPrompt(a.config.PresetPrompt, longTermMemory, a.config.Tools))
	messages := make([]core.Message, 0, len(state.History)+len(state.Messages)+1)
	messages = append(messages, system)
	messages = append(messages, state.History...)
	messages = append(messages, state.Messages...)
	state.Messages = messages

	return nil
}

// reactLLMNode streams one model turn, buffering the leading characters to
// classify it. A fenced JSON prefix means a tool request: chunk publishing
// is suppressed and the block is parsed into a synthesized tool call. Any
// other prefix streams through as a plain answer. A fenced block that
// fails to parse degrades to a plain answer rather than aborting.
func (a *ReactAgent) reactLLMNode(ctx context.Context, state *State) error {
	if a.nativeToolCalling() {
		return a.llmNode(ctx, state)
	}

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

	startedAt := time.Now()
	inputMessages := state.snapshotMessages()
	chunks, errs := a.llm.Stream(ctx, inputMessages)

	id := core.NewID()
	var content string
	var usage model.Usage

	// classified stays false until enough of the stream has arrived to
	// decide; toolMode suppresses chunk publishing once a fence is seen.
	classified := false
	toolMode := false

	publishDelta := func(delta string) {
		if delta == "" {
			return
		}
		thought := &core.AgentThought{ID: id, TaskID: state.TaskID, Event: core.EventAgentMessage}
		thought.Thought = delta
		thought.Answer = delta
		a.publish(state.TaskID, thought)
	}

	for ck := range chunks {
		usage.Add(ck.Usage)
		if ck.Content == "" {
			continue
		}

		delta := a.reviewOutput(ck.Content)
		content += delta

		if !classified {
			if len(strings.TrimSpace(content)) < reactClassifyLookahead {
				continue
			}
			classified = true
			toolMode = strings.HasPrefix(strings.TrimSpace(content), "```json")
			if !toolMode {
				publishDelta(content)
			}
			continue
		}
		if !toolMode {
			publishDelta(delta)
		}
	}
	if err := <-errs; err != nil {
		return err
	}

	// Stream ended before the lookahead filled: classify on what we have.
	if !classified {
		toolMode = strings.HasPrefix(strings.TrimSpace(content), "```json")
		if !toolMode {
			publishDelta(content)
		}
	}

	latency := time.Since(startedAt).Seconds()
	pricing := a.llm.Pricing()

	var call core.ToolCall
	parsed := false
	if toolMode {
		call, parsed = parseReactToolCall(content)
		if !parsed {
			// Malformed fenced block: surface the raw text as the answer.
			publishDelta(content)
		}
	}

	var aiMessage core.Message
	if parsed {
		aiMessage = core.NewAIMessageWithToolCalls(content, call)
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
	totalPrice := (float64(messageTokens)*pricing.InputPrice + float64(answerTokens)*pricing.OutputPrice) * pricing.Unit

	// Mutate state before publishing: a terminal publish releases the
	// consumer, which may inspect the state immediately.
	state.Messages = append(state.Messages, aiMessage)

	if parsed {
		thought := core.NewAgentThought(state.TaskID, core.EventAgentThought)
		thought.Thought = content
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

// reactToolsNode executes the synthesized tool call and rewrites the
// conversation so the model sees its own fenced block as assistant text
// followed by the recast result as user text.
func (a *ReactAgent) reactToolsNode(ctx context.Context, state *State) error {
	if a.nativeToolCalling() {
		return a.toolsNode(ctx, state)
	}

	last := state.lastMessage()
	if last == nil || len(last.ToolCalls) == 0 {
		return nil
	}
	aiMessage := *last

	var results strings.Builder
	for _, call := range aiMessage.ToolCalls {
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

		results.WriteString(fmt.Sprintf(reactToolResultTemplate, call.Name, result))
	}

	state.removeMessage(aiMessage.ID)
	state.Messages = append(state.Messages,
		core.NewAIMessage(aiMessage.Text()),
		core.NewHumanMessage(results.String()),
	)

	return nil
}

// parseReactToolCall extracts the {"name", "args"} payload from a fenced
// JSON block and synthesizes a structured tool call from it.
func parseReactToolCall(content string) (core.ToolCall, bool) {
	body := strings.TrimSpace(content)
	if !strings.HasPrefix(body, "```json") {
		return core.ToolCall{}, false
	}
	body = strings.TrimPrefix(body, "```json")
	if idx := strings.Index(body, "```"); idx >= 0 {
		body = body[:idx]
	}

	var payload struct {
		Name string         `json:"name"`
		Args map[string]any `json:"args"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &payload); err != nil || payload.Name == "" {
		return core.ToolCall{}, false
	}
	if payload.Args == nil {
		payload.Args = map[string]any{}
	}

	args, err := json.Marshal(payload.Args)
	if err != nil {
		return core.ToolCall{}, false
	}

	return core.ToolCall{ID: core.NewID(), Name: payload.Name, Arguments: string(args)}, true
}
