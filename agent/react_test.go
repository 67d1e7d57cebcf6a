package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moxie-ai/agentgraph/core"
	"github.com/moxie-ai/agentgraph/model"
)

const reactEchoBlock = "```json\n{\"name\": \"echo\", \"args\": {\"text\": \"hi\"}}\n```"

func TestReactToolCallEmulation(t *testing.T) {
	llm := model.NewMockModel() // no native tool calling
	llm.AddTurn(model.Chunk{Content: reactEchoBlock})
	llm.AddTurn(model.Chunk{Content: "完成"})

	config := testConfig()
	config.Tools = append(config.Tools, echoTool())
	a, err := NewReactAgent(llm, config)
	require.NoError(t, err)

	state := &State{Messages: []core.Message{core.NewHumanMessage("请调用echo")}}
	result, err := a.Invoke(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, "完成", result.Answer)
	assert.Equal(t, core.EventAgentEnd, result.Status)
	assert.Equal(t, 2, llm.Calls())

	kinds := make([]core.QueueEvent, 0, len(result.AgentThoughts))
	for _, thought := range result.AgentThoughts {
		kinds = append(kinds, thought.Event)
	}
	assert.Equal(t, []core.QueueEvent{
		core.EventAgentThought,
		core.EventAgentAction,
		core.EventAgentMessage,
		core.EventAgentEnd,
	}, kinds)

	action := result.AgentThoughts[1]
	assert.Equal(t, "echo", action.Tool)
	assert.Equal(t, "hi", action.Observation)

	// The fenced block is preserved as assistant text and the result is
	// recast as user text, since the model has no tool channel.
	var sawRecast bool
	for _, msg := range state.Messages {
		if msg.Role == core.RoleHuman && strings.Contains(msg.Text(), "工具: echo") {
			sawRecast = true
		}
	}
	assert.True(t, sawRecast)
}

func TestReactMalformedBlockFallsBackToAnswer(t *testing.T) {
	llm := model.NewMockModel()
	llm.AddTurn(model.Chunk{Content: "```json\n{broken\n```"})

	config := testConfig()
	config.Tools = append(config.Tools, echoTool())
	a, err := NewReactAgent(llm, config)
	require.NoError(t, err)

	result, err := a.Invoke(context.Background(), &State{
		Messages: []core.Message{core.NewHumanMessage("hello")},
	})
	require.NoError(t, err)

	assert.Equal(t, core.EventAgentEnd, result.Status)
	assert.Equal(t, "```json\n{broken\n```", result.Answer)
	assert.Equal(t, 1, llm.Calls())

	for _, thought := range result.AgentThoughts {
		assert.NotEqual(t, core.EventAgentThought, thought.Event)
	}
}

func TestReactPlainAnswerStreams(t *testing.T) {
	llm := model.NewMockModel()
	llm.AddTurn(
		model.Chunk{Content: "你好，"},
		model.Chunk{Content: "世界"},
	)

	a, err := NewReactAgent(llm, testConfig())
	require.NoError(t, err)

	result, err := a.Invoke(context.Background(), &State{
		Messages: []core.Message{core.NewHumanMessage("打个招呼")},
	})
	require.NoError(t, err)

	assert.Equal(t, "你好，世界", result.Answer)
	assert.Equal(t, core.EventAgentEnd, result.Status)
}

func TestReactSystemPromptEmbedsTools(t *testing.T) {
	llm := model.NewMockModel()
	llm.AddTurn(model.Chunk{Content: "好的"})

	config := testConfig()
	config.Tools = append(config.Tools, echoTool())
	a, err := NewReactAgent(llm, config)
	require.NoError(t, err)

	state := &State{Messages: []core.Message{core.NewHumanMessage("hello")}}
	_, err = a.Invoke(context.Background(), state)
	require.NoError(t, err)

	require.NotEmpty(t, state.Messages)
	system := state.Messages[0]
	require.Equal(t, core.RoleSystem, system.Role)
	assert.Contains(t, system.Text(), "echo")
	assert.Contains(t, system.Text(), "```json")
}

func TestReactDelegatesToNativeToolCalling(t *testing.T) {
	llm := model.NewMockModel(model.FeatureToolCall)
	llm.AddTurn(echoToolCallChunk())
	llm.AddTurn(model.Chunk{Content: "done"}, model.Chunk{Usage: &model.Usage{}})

	config := testConfig()
	config.Tools = append(config.Tools, echoTool())
	a, err := NewReactAgent(llm, config)
	require.NoError(t, err)

	result, err := a.Invoke(context.Background(), &State{
		Messages: []core.Message{core.NewHumanMessage("echo hi back")},
	})
	require.NoError(t, err)

	assert.Equal(t, "done", result.Answer)
	// Native path binds structured tool definitions instead of prompting.
	require.Len(t, llm.BoundTools(), 1)
	assert.Equal(t, "echo", llm.BoundTools()[0].Name)
}

func TestParseReactToolCall(t *testing.T) {
	call, ok := parseReactToolCall(reactEchoBlock)
	require.True(t, ok)
	assert.Equal(t, "echo", call.Name)
	assert.JSONEq(t, `{"text": "hi"}`, call.Arguments)
	assert.NotEmpty(t, call.ID)

	_, ok = parseReactToolCall("plain text answer")
	assert.False(t, ok)

	_, ok = parseReactToolCall("```json\n{\"args\": {}}\n```")
	assert.False(t, ok)

	call, ok = parseReactToolCall("```json\n{\"name\": \"echo\"}\n```")
	require.True(t, ok)
	assert.Equal(t, "{}", call.Arguments)
}
