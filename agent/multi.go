package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/moxie-ai/agentgraph/core"
	"github.com/moxie-ai/agentgraph/model"
	"github.com/moxie-ai/agentgraph/tool"
)

// Internal argument keys the dispatch node injects alongside the model
// supplied task description when delegating to a collaborator.
const (
	transferHistoryArg = "history"
	transferMemoryArg  = "long_term_memory"
)

// Collaborator is a named sub-agent a coordinating agent can delegate to.
type Collaborator struct {
	Name        string
	Description string
	Agent       Agent
}

func dispatchNodeName(collaboratorName string) string { return "dispatch_" + collaboratorName }

// MultiAgent coordinates a set of collaborator agents behind one model.
// Each collaborator is advertised as a hand-off tool; when the model's
// first tool call targets one, routing goes to that collaborator's
// dispatch node, which runs the sub-agent to completion and splices its
// answer back into the conversation as a tool result. The model then
// continues the turn with the collaborator's findings in context.
//
// MultiAgent requires a model with native tool calling.
type MultiAgent struct {
	BaseAgent
	collaborators map[string]Collaborator
}

// NewMultiAgent constructs the coordinator with hand-off tools for every
// collaborator and compiles the extended graph.
func NewMultiAgent(llm model.Model, config Config, collaborators []Collaborator, optFns ...func(o *Options)) (*MultiAgent, error) {
	if !model.HasFeature(llm, model.FeatureToolCall) {
		return nil, fmt.Errorf("multi-agent coordination requires a model with native tool calling")
	}

	byName := make(map[string]Collaborator, len(collaborators))
	for _, collab := range collaborators {
		if collab.Name == "" {
			return nil, fmt.Errorf("collaborator must have a name")
		}
		if collab.Agent == nil {
			return nil, fmt.Errorf("collaborator %s must have an agent", collab.Name)
		}
		if _, exists := byName[collab.Name]; exists {
			return nil, fmt.Errorf("duplicate collaborator name %s", collab.Name)
		}
		byName[collab.Name] = collab
		config.Tools = append(config.Tools, newCollaboratorTool(collab))
	}

	a := &MultiAgent{
		BaseAgent:     newBaseAgent(llm, config, optFns...),
		collaborators: byName,
	}

	g := newStateGraph()
	g.addNode(nodePresetOperation, a.presetOperation)
	g.addNode(nodeLongTermMemoryRecall, a.longTermMemoryRecall)
	g.addNode(nodeLLM, a.llmNode)
	g.addNode(nodeTools, a.toolsNode)
	g.setEntryPoint(nodePresetOperation)
	g.addConditionalEdge(nodePresetOperation, a.routeAfterPreset)
	g.addEdge(nodeLongTermMemoryRecall, nodeLLM)
	g.addConditionalEdge(nodeLLM, a.routeAfterCoordinatorLLM)
	g.addEdge(nodeTools, nodeLLM)
	for name, collab := range byName {
		g.addNode(dispatchNodeName(name), a.dispatchNode(collab))
		g.addEdge(dispatchNodeName(name), nodeLLM)
	}

	graph, err := g.compile()
	if err != nil {
		return nil, err
	}
	a.graph = graph

	return a, nil
}

// newCollaboratorTool builds the hand-off tool whose invocation runs the
// collaborator to completion and returns its final answer.
func newCollaboratorTool(collab Collaborator) tool.Tool {
	return tool.NewTransferTool(collab.Name, collab.Description, func(ctx context.Context, args map[string]any) (any, error) {
		task, _ := args["task_description"].(string)

		sub := &State{Messages: []core.Message{core.NewHumanMessage(task)}}
		if history, ok := args[transferHistoryArg].([]core.Message); ok {
			sub.History = history
		}
		if memory, ok := args[transferMemoryArg].(string); ok {
			sub.LongTermMemory = memory
		}

		result, err := collab.Agent.Invoke(ctx, sub)
		if err != nil {
			return nil, err
		}
		if result.Status != core.EventAgentEnd {
			return nil, fmt.Errorf("collaborator %s finished with status %s: %s", collab.Name, result.Status, result.Error)
		}
		return result.Answer, nil
	})
}

// routeAfterCoordinatorLLM extends the standard routing with a hand-off
// branch: when the first tool call targets a known collaborator, the turn
// moves to that collaborator's dispatch node.
func (a *MultiAgent) routeAfterCoordinatorLLM(state *State) string {
	if state.halted {
		return End
	}
	last := state.lastMessage()
	if last == nil || last.Role != core.RoleAI || len(last.ToolCalls) == 0 {
		return End
	}
	if target := tool.TransferTarget(last.ToolCalls[0].Name); target != "" {
		if _, ok := a.collaborators[target]; ok {
			return dispatchNodeName(target)
		}
	}
	return nodeTools
}

// dispatchNode delegates the described sub-task to one collaborator. The
// hand-off is announced as an agent_dispatch event; the collaborator's
// answer (or a readable failure description) is spliced back as the tool
// result so the coordinating model can keep going. Tool calls issued in
// the same turn after the hand-off run through the regular tool path.
func (a *MultiAgent) dispatchNode(collab Collaborator) nodeFunc {
	return func(ctx context.Context, state *State) error {
		last := state.lastMessage()
		if last == nil || len(last.ToolCalls) == 0 {
			return nil
		}
		calls := last.ToolCalls

		call := calls[0]
		args := map[string]any{}
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				state.Messages = append(state.Messages, core.NewToolMessage("协作Agent执行出错: "+err.Error(), call.ID))
				return nil
			}
		}

		thought := core.NewAgentThought(state.TaskID, core.EventAgentDispatch)
		thought.Tool = call.Name
		thought.ToolInput = args
		thought.Observation = "任务已移交协作Agent: " + collab.Name
		a.publish(state.TaskID, thought)

		handoff, ok := a.config.toolByName(call.Name)
		if !ok {
			state.Messages = append(state.Messages, core.NewToolMessage("协作Agent执行出错: 不存在名为 "+collab.Name+" 的协作Agent", call.ID))
			return nil
		}

		args[transferHistoryArg] = state.History
		args[transferMemoryArg] = state.LongTermMemory

		var resultText string
		result, err := handoff.Invoke(ctx, args)
		if err != nil {
			a.logger.Warn("agent.dispatch_failed", "collaborator", collab.Name, "error", err.Error())
			resultText = "协作Agent执行出错: " + err.Error()
		} else {
			resultText = stringifyToolResult(result)
		}
		state.Messages = append(state.Messages, core.NewToolMessage(resultText, call.ID))

		// Remaining calls from the same turn are ordinary tool executions.
		for _, extra := range calls[1:] {
			extraArgs, extraResult := a.executeToolCall(ctx, extra)

			event := core.EventAgentAction
			if extra.Name == tool.DatasetRetrievalToolName {
				event = core.EventDatasetRetrieval
			}
			extraThought := core.NewAgentThought(state.TaskID, event)
			extraThought.Tool = extra.Name
			extraThought.ToolInput = extraArgs
			extraThought.Observation = extraResult
			a.publish(state.TaskID, extraThought)

			state.Messages = append(state.Messages, core.NewToolMessage(extraResult, extra.ID))
		}

		return nil
	}
}
