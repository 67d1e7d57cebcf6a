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

func transferCallChunk(target, task string) model.Chunk {
	return model.Chunk{ToolCalls: []core.ToolCall{
		{ID: "call-1", Name: "transfer_to_" + target, Arguments: `{"task_description": "` + task + `"}`},
	}}
}

func newResearcher(t *testing.T, answer string) (*FunctionCallAgent, *model.MockModel) {
	t.Helper()
	llm := model.NewMockModel(model.FeatureToolCall)
	llm.AddTurn(model.Chunk{Content: answer}, model.Chunk{Usage: &model.Usage{}})
	a, err := NewFunctionCallAgent(llm, testConfig())
	require.NoError(t, err)
	return a, llm
}

func TestMultiAgentRequiresNativeToolCalling(t *testing.T) {
	researcher, _ := newResearcher(t, "irrelevant")

	_, err := NewMultiAgent(model.NewMockModel(), testConfig(), []Collaborator{
		{Name: "researcher", Agent: researcher},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "native tool calling")
}

func TestMultiAgentRejectsBadCollaborators(t *testing.T) {
	researcher, _ := newResearcher(t, "irrelevant")
	coordinator := model.NewMockModel(model.FeatureToolCall)

	_, err := NewMultiAgent(coordinator, testConfig(), []Collaborator{{Agent: researcher}})
	assert.Error(t, err)

	_, err = NewMultiAgent(coordinator, testConfig(), []Collaborator{{Name: "researcher"}})
	assert.Error(t, err)

	_, err = NewMultiAgent(coordinator, testConfig(), []Collaborator{
		{Name: "researcher", Agent: researcher},
		{Name: "researcher", Agent: researcher},
	})
	assert.Error(t, err)
}

func TestMultiAgentDispatch(t *testing.T) {
	researcher, subLLM := newResearcher(t, "北京的人口约2100万")

	coordinator := model.NewMockModel(model.FeatureToolCall)
	coordinator.AddTurn(transferCallChunk("researcher", "查询北京人口"))
	coordinator.AddTurn(model.Chunk{Content: "北京大约有2100万人"}, model.Chunk{Usage: &model.Usage{}})

	a, err := NewMultiAgent(coordinator, testConfig(), []Collaborator{
		{Name: "researcher", Description: "负责检索事实", Agent: researcher},
	})
	require.NoError(t, err)

	state := &State{Messages: []core.Message{core.NewHumanMessage("北京有多少人")}}
	result, err := a.Invoke(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, "北京大约有2100万人", result.Answer)
	assert.Equal(t, core.EventAgentEnd, result.Status)
	assert.Equal(t, 2, coordinator.Calls())
	assert.Equal(t, 1, subLLM.Calls())

	var dispatch *core.AgentThought
	for i := range result.AgentThoughts {
		if result.AgentThoughts[i].Event == core.EventAgentDispatch {
			dispatch = &result.AgentThoughts[i]
		}
	}
	require.NotNil(t, dispatch)
	assert.Equal(t, "transfer_to_researcher", dispatch.Tool)
	assert.Contains(t, dispatch.Observation, "researcher")

	// The collaborator's answer is spliced back as a tool result for the
	// coordinating model.
	var sawSplice bool
	for _, msg := range state.Messages {
		if msg.Role == core.RoleTool && msg.Text() == "北京的人口约2100万" {
			sawSplice = true
		}
	}
	assert.True(t, sawSplice)
}

func TestMultiAgentDispatchFailureIsReadable(t *testing.T) {
	subLLM := model.NewMockModel(model.FeatureToolCall)
	subLLM.AddErrorTurn(assert.AnError)
	failing, err := NewFunctionCallAgent(subLLM, testConfig())
	require.NoError(t, err)

	coordinator := model.NewMockModel(model.FeatureToolCall)
	coordinator.AddTurn(transferCallChunk("researcher", "查询"))
	coordinator.AddTurn(model.Chunk{Content: "协作失败，换个方式"}, model.Chunk{Usage: &model.Usage{}})

	a, err := NewMultiAgent(coordinator, testConfig(), []Collaborator{
		{Name: "researcher", Agent: failing},
	})
	require.NoError(t, err)

	state := &State{Messages: []core.Message{core.NewHumanMessage("hello")}}
	result, err := a.Invoke(context.Background(), state)
	require.NoError(t, err)

	// The coordinator keeps going; the failure is data in the transcript.
	assert.Equal(t, core.EventAgentEnd, result.Status)

	var sawFailureSplice bool
	for _, msg := range state.Messages {
		if msg.Role == core.RoleTool && strings.Contains(msg.Text(), "协作Agent执行出错") {
			sawFailureSplice = true
		}
	}
	assert.True(t, sawFailureSplice)
}

func TestSupervisorHandoffRelaysStream(t *testing.T) {
	researcher, subLLM := newResearcher(t, "调查完成")

	supervisor := model.NewMockModel(model.FeatureToolCall)
	supervisor.AddTurn(transferCallChunk("researcher", "去调查"))

	a, err := NewSupervisorAgent(supervisor, testConfig(), []Collaborator{
		{Name: "researcher", Description: "负责调查", Agent: researcher},
	})
	require.NoError(t, err)

	result, err := a.Invoke(context.Background(), &State{
		Messages: []core.Message{core.NewHumanMessage("请调查一下")},
	})
	require.NoError(t, err)

	assert.Equal(t, "调查完成", result.Answer)
	assert.Equal(t, core.EventAgentEnd, result.Status)
	assert.Equal(t, 1, supervisor.Calls())
	assert.Equal(t, 1, subLLM.Calls())

	kinds := make([]core.QueueEvent, 0, len(result.AgentThoughts))
	for _, thought := range result.AgentThoughts {
		kinds = append(kinds, thought.Event)
	}
	// supervisor's tool-call thought, the dispatch, the relayed answer,
	// then the supervisor's own end.
	assert.Equal(t, []core.QueueEvent{
		core.EventAgentThought,
		core.EventAgentDispatch,
		core.EventAgentMessage,
		core.EventAgentEnd,
	}, kinds)

	// Relayed events are re-keyed onto the supervisor's task.
	for _, thought := range result.AgentThoughts {
		assert.Equal(t, result.AgentThoughts[0].TaskID, thought.TaskID)
	}
}

func TestSupervisorRequiresNativeToolCalling(t *testing.T) {
	researcher, _ := newResearcher(t, "irrelevant")

	_, err := NewSupervisorAgent(model.NewMockModel(), testConfig(), []Collaborator{
		{Name: "researcher", Agent: researcher},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "native tool calling")
}

func TestSupervisorCollaboratorErrorFailsTurn(t *testing.T) {
	subLLM := model.NewMockModel(model.FeatureToolCall)
	subLLM.AddErrorTurn(assert.AnError)
	failing, err := NewFunctionCallAgent(subLLM, testConfig())
	require.NoError(t, err)

	supervisor := model.NewMockModel(model.FeatureToolCall)
	supervisor.AddTurn(transferCallChunk("researcher", "去调查"))

	a, err := NewSupervisorAgent(supervisor, testConfig(), []Collaborator{
		{Name: "researcher", Agent: failing},
	})
	require.NoError(t, err)

	result, err := a.Invoke(context.Background(), &State{
		Messages: []core.Message{core.NewHumanMessage("hello")},
	})
	require.NoError(t, err)

	assert.Equal(t, core.EventError, result.Status)
	assert.Contains(t, result.Error, "researcher")
}
