package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/moxie-ai/agentgraph/core"
	"github.com/moxie-ai/agentgraph/model"
	"github.com/moxie-ai/agentgraph/tool"
)

func handoffNodeName(collaboratorName string) string { return "agent_" + collaboratorName }

// SupervisorAgent hands the whole turn over to one collaborator instead of
// sub-calling it: once the supervising model picks a collaborator, that
// agent's live event stream is relayed to the caller re-keyed onto the
// supervisor's task, and the turn ends when the collaborator ends. Use
// MultiAgent when the coordinator should keep reasoning after delegation.
//
// SupervisorAgent requires a model with native tool calling.
type SupervisorAgent struct {
	BaseAgent
	collaborators map[string]Collaborator
}

// NewSupervisorAgent constructs the supervisor with hand-off tools for
// every collaborator and compiles the graph with one sibling node per
// collaborator.
func NewSupervisorAgent(llm model.Model, config Config, collaborators []Collaborator, optFns ...func(o *Options)) (*SupervisorAgent, error) {
	if !model.HasFeature(llm, model.FeatureToolCall) {
		return nil, fmt.Errorf("supervisor coordination requires a model with native tool calling")
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
		name := collab.Name
		config.Tools = append(config.Tools, tool.NewTransferTool(collab.Name, collab.Description,
			func(ctx context.Context, args map[string]any) (any, error) {
				return nil, fmt.Errorf("hand-off to %s must be the first tool call of a turn", name)
			}))
	}

	a := &SupervisorAgent{
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
	g.addConditionalEdge(nodeLLM, a.routeAfterSupervisorLLM)
	g.addEdge(nodeTools, nodeLLM)
	for name, collab := range byName {
		g.addNode(handoffNodeName(name), a.handoffNode(collab))
		g.addEdge(handoffNodeName(name), End)
	}

	graph, err := g.compile()
	if err != nil {
		return nil, err
	}
	a.graph = graph

	return a, nil
}

// routeAfterSupervisorLLM sends a hand-off call to the chosen
// collaborator's sibling node; everything else follows standard routing.
func (a *SupervisorAgent) routeAfterSupervisorLLM(state *State) string {
	if state.halted {
		return End
	}
	last := state.lastMessage()
	if last == nil || last.Role != core.RoleAI || len(last.ToolCalls) == 0 {
		return End
	}
	if target := tool.TransferTarget(last.ToolCalls[0].Name); target != "" {
		if _, ok := a.collaborators[target]; ok {
			return handoffNodeName(target)
		}
	}
	return nodeTools
}

// handoffNode streams the collaborator's run, relaying its progress events
// onto the supervisor's task. The collaborator's accumulated answer is the
// turn's answer; its end event becomes the supervisor's end event.
func (a *SupervisorAgent) handoffNode(collab Collaborator) nodeFunc {
	return func(ctx context.Context, state *State) error {
		last := state.lastMessage()
		if last == nil || len(last.ToolCalls) == 0 {
			return nil
		}
		call := last.ToolCalls[0]

		args := map[string]any{}
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				return fmt.Errorf("invalid hand-off arguments for %s: %w", collab.Name, err)
			}
		}
		task, _ := args["task_description"].(string)

		thought := core.NewAgentThought(state.TaskID, core.EventAgentDispatch)
		thought.Tool = call.Name
		thought.ToolInput = args
		thought.Observation = "任务已移交协作Agent: " + collab.Name
		a.publish(state.TaskID, thought)

		sub := &State{
			Messages:       []core.Message{core.NewHumanMessage(task)},
			History:        state.History,
			LongTermMemory: state.LongTermMemory,
		}
		events, err := collab.Agent.Stream(ctx, sub)
		if err != nil {
			return fmt.Errorf("collaborator %s: %w", collab.Name, err)
		}

		var answer string
		for event := range events {
			switch event.Event {
			case core.EventPing, core.EventAgentEnd:
				continue
			case core.EventError:
				return fmt.Errorf("collaborator %s: %s", collab.Name, event.Observation)
			case core.EventStop, core.EventTimeout:
				relay := *event
				relay.TaskID = state.TaskID
				a.publish(state.TaskID, &relay)
				return nil
			}

			if event.Event == core.EventAgentMessage {
				answer += event.Answer
			}
			relay := *event
			relay.TaskID = state.TaskID
			a.publish(state.TaskID, &relay)
		}

		state.Messages = append(state.Messages, core.NewToolMessage(answer, call.ID))
		a.publishEnd(state.TaskID)
		return nil
	}
}
