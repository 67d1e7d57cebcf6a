package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moxie-ai/agentgraph/core"
	"github.com/moxie-ai/agentgraph/model"
	"github.com/moxie-ai/agentgraph/tool"
)

func testConfig() Config {
	return Config{UserID: "user-1", InvokeFrom: core.InvokeFromDebugger}
}

func collectEvents(t *testing.T, ch <-chan *core.AgentThought) []*core.AgentThought {
	t.Helper()
	var events []*core.AgentThought
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatal("event stream did not close in time")
		}
	}
}

func eventKinds(events []*core.AgentThought) []core.QueueEvent {
	kinds := make([]core.QueueEvent, 0, len(events))
	for _, ev := range events {
		if ev.Event == core.EventPing {
			continue
		}
		kinds = append(kinds, ev.Event)
	}
	return kinds
}

func echoTool() tool.Tool {
	return tool.NewFunctionTool("echo", "Echo the text back", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	}, func(_ context.Context, args map[string]any) (any, error) {
		text, _ := args["text"].(string)
		return text, nil
	})
}

func TestStreamRequiresGraph(t *testing.T) {
	base := newBaseAgent(model.NewMockModel(), testConfig())

	_, err := base.Stream(context.Background(), &State{})
	assert.ErrorIs(t, err, ErrGraphNotBuilt)
}

func TestStreamAssignsTaskID(t *testing.T) {
	llm := model.NewMockModel(model.FeatureToolCall)
	llm.AddTurn(model.Chunk{Content: "hi"}, model.Chunk{Usage: &model.Usage{}})

	a, err := NewFunctionCallAgent(llm, testConfig())
	require.NoError(t, err)

	state := &State{Messages: []core.Message{core.NewHumanMessage("hello")}}
	ch, err := a.Stream(context.Background(), state)
	require.NoError(t, err)

	assert.NotEmpty(t, state.TaskID)

	events := collectEvents(t, ch)
	for _, ev := range events {
		assert.Equal(t, state.TaskID, ev.TaskID)
	}
}

func TestInvokeAccumulatesAnswerChunks(t *testing.T) {
	llm := model.NewMockModel(model.FeatureToolCall)
	llm.AddTurn(
		model.Chunk{Content: "A"},
		model.Chunk{Content: "B"},
		model.Chunk{Usage: &model.Usage{InputTokens: 10, OutputTokens: 2, TotalTokens: 12}},
	)

	a, err := NewFunctionCallAgent(llm, testConfig())
	require.NoError(t, err)

	result, err := a.Invoke(context.Background(), &State{
		Messages: []core.Message{core.NewHumanMessage("hello")},
	})
	require.NoError(t, err)

	assert.Equal(t, "AB", result.Answer)
	assert.Equal(t, "hello", result.Query)
	assert.Equal(t, core.EventAgentEnd, result.Status)

	// The streamed chunks and the closing summary share one id, so they
	// fold into a single agent_message thought.
	var messages []*core.AgentThought
	for i := range result.AgentThoughts {
		if result.AgentThoughts[i].Event == core.EventAgentMessage {
			messages = append(messages, &result.AgentThoughts[i])
		}
	}
	require.Len(t, messages, 1)
	assert.Equal(t, "AB", messages[0].Answer)
	assert.Equal(t, 10, messages[0].MessageTokenCount)
	assert.Equal(t, 2, messages[0].AnswerTokenCount)
	assert.NotEmpty(t, messages[0].Message)
}

func TestInvokeCapturesImageURLs(t *testing.T) {
	llm := model.NewMockModel(model.FeatureToolCall)
	llm.AddTurn(model.Chunk{Content: "看到了"}, model.Chunk{Usage: &model.Usage{}})

	a, err := NewFunctionCallAgent(llm, testConfig())
	require.NoError(t, err)

	query := core.NewHumanMessageWithParts(
		core.TextPart{Text: "这张图片是什么"},
		core.ImageURLPart{URL: "https://example.com/cat.png"},
	)
	result, err := a.Invoke(context.Background(), &State{Messages: []core.Message{query}})
	require.NoError(t, err)

	assert.Equal(t, "这张图片是什么", result.Query)
	assert.Equal(t, []string{"https://example.com/cat.png"}, result.ImageURLs)
}

func TestRedactKeywords(t *testing.T) {
	out := redactKeywords("The Secret plan is SECRET", []string{"secret"})
	assert.Equal(t, "The ** plan is **", out)

	assert.Equal(t, "untouched", redactKeywords("untouched", nil))
	assert.Equal(t, "untouched", redactKeywords("untouched", []string{""}))
}
