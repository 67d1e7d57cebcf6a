package tool

import (
	"context"
	"strings"
)

// TransferPrefix is the reserved name prefix marking a tool call as a
// hand-off to a collaborator agent. Routing inspects the first tool call's
// name: prefixed calls go to that collaborator's dispatch node, everything
// else falls through to the shared tool node.
const TransferPrefix = "transfer_to_"

// TransferToolName builds the hand-off tool name for a collaborator.
func TransferToolName(agentName string) string { return TransferPrefix + agentName }

// IsTransfer reports whether the tool name is a hand-off request.
func IsTransfer(toolName string) bool { return strings.HasPrefix(toolName, TransferPrefix) }

// TransferTarget returns the collaborator name encoded in a hand-off tool
// name, or "" when the name is not a hand-off.
func TransferTarget(toolName string) string {
	if !IsTransfer(toolName) {
		return ""
	}
	return strings.TrimPrefix(toolName, TransferPrefix)
}

// transferParameters is the trimmed argument schema of every hand-off tool:
// the supervisor passes only a task description; conversation history and
// long-term memory are spliced in by the dispatch node itself.
func transferParameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_description": map[string]any{
				"type":        "string",
				"description": "Concrete description of the sub-task to delegate",
			},
		},
		"required": []string{"task_description"},
	}
}

// NewTransferTool builds the hand-off tool for a named collaborator. The
// supplied function performs the actual delegation (invoking the
// collaborator agent); the tool contributes the reserved name and the
// trimmed argument schema the router depends on.
func NewTransferTool(
	agentName, description string,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *FunctionTool {
	if description == "" {
		description = "Delegate a sub-task to the " + agentName + " agent. Use when that agent is better suited."
	}
	return NewFunctionTool(TransferToolName(agentName), description, transferParameters(), fn)
}
