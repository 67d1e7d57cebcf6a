package agentgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moxie-ai/agentgraph/agent"
	"github.com/moxie-ai/agentgraph/core"
	"github.com/moxie-ai/agentgraph/model"
)

func newTestApp(t *testing.T, chunks ...model.Chunk) *App {
	t.Helper()
	llm := model.NewMockModel(model.FeatureToolCall)
	llm.AddTurn(chunks...)

	app, err := New(func(optFns ...func(o *agent.Options)) (agent.Agent, error) {
		return agent.NewFunctionCallAgent(llm, agent.Config{
			UserID:     "user-1",
			InvokeFrom: core.InvokeFromDebugger,
		}, optFns...)
	})
	require.NoError(t, err)
	return app
}

func TestRunSync(t *testing.T) {
	app := newTestApp(t, model.Chunk{Content: "你好"}, model.Chunk{Usage: &model.Usage{}})

	result, err := app.RunSync(context.Background(), &agent.State{
		Messages: []core.Message{core.NewHumanMessage("打个招呼")},
	})
	require.NoError(t, err)

	assert.Equal(t, "你好", result.Answer)
	assert.Equal(t, core.EventAgentEnd, result.Status)
}

func TestRunPersistsAndReplaysThoughts(t *testing.T) {
	app := newTestApp(t, model.Chunk{Content: "hi"}, model.Chunk{Usage: &model.Usage{}})

	taskID, events, err := app.Run(context.Background(), &agent.State{
		Messages: []core.Message{core.NewHumanMessage("hello")},
	})
	require.NoError(t, err)

	for range events {
	}

	stored, err := app.Thoughts(context.Background(), taskID)
	require.NoError(t, err)
	require.NotEmpty(t, stored)
	assert.Equal(t, core.EventAgentEnd, stored[len(stored)-1].Event)
}

func TestStopAuthorizesAgainstSharedStore(t *testing.T) {
	app := newTestApp(t, model.Chunk{Content: "hi"}, model.Chunk{Usage: &model.Usage{}})

	state := &agent.State{Messages: []core.Message{core.NewHumanMessage("hello")}}
	result, err := app.RunSync(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, core.EventAgentEnd, result.Status)

	// The turn registered its ownership in the shared store; an authorized
	// stop request is accepted, an unauthorized one is a silent no-op.
	require.NoError(t, app.Stop(context.Background(), state.TaskID, core.InvokeFromWebApp, "user-1"))
	require.NoError(t, app.Stop(context.Background(), state.TaskID, core.InvokeFromDebugger, "user-1"))
}
