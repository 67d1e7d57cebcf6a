package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageText(t *testing.T) {
	msg := NewHumanMessageWithParts(
		TextPart{Text: "看看这张图"},
		ImageURLPart{URL: "https://example.com/a.png"},
		TextPart{Text: "，谢谢"},
	)

	assert.Equal(t, "看看这张图，谢谢", msg.Text())
	assert.Equal(t, []string{"https://example.com/a.png"}, msg.ImageURLs())
}

func TestMessageConstructorsAssignIDs(t *testing.T) {
	a := NewHumanMessage("hi")
	b := NewHumanMessage("hi")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, RoleHuman, a.Role)
}

func TestToolMessageCorrelation(t *testing.T) {
	msg := NewToolMessage("result", "call-1")

	assert.Equal(t, RoleTool, msg.Role)
	assert.Equal(t, "call-1", msg.ToolCallID)
	assert.Equal(t, "result", msg.Text())
}

func TestTerminalEvents(t *testing.T) {
	terminal := []QueueEvent{EventStop, EventError, EventTimeout, EventAgentEnd}
	for _, ev := range terminal {
		assert.True(t, ev.Terminal(), string(ev))
	}

	nonTerminal := []QueueEvent{
		EventLongTermMemoryRecall, EventAgentThought, EventAgentMessage,
		EventAgentAction, EventDatasetRetrieval, EventAgentDispatch, EventPing,
	}
	for _, ev := range nonTerminal {
		assert.False(t, ev.Terminal(), string(ev))
	}
}

func TestInvokeFromOwner(t *testing.T) {
	assert.Equal(t, "account-user-1", InvokeFromDebugger.Owner("user-1"))
	assert.Equal(t, "account-user-1", InvokeFromAssistantAgent.Owner("user-1"))
	assert.Equal(t, "end-user-user-1", InvokeFromWebApp.Owner("user-1"))
	assert.Equal(t, "end-user-user-1", InvokeFromServiceAPI.Owner("user-1"))
}

func TestNewAgentThought(t *testing.T) {
	thought := NewAgentThought("task-1", EventAgentMessage)

	require.NotEmpty(t, thought.ID)
	assert.Equal(t, "task-1", thought.TaskID)
	assert.Equal(t, EventAgentMessage, thought.Event)
}
