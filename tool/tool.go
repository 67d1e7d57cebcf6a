// Package tool implements the function/tool calling subsystem that lets
// agents invoke structured capabilities with schema-validated arguments and
// consistent error handling. Tool failures are data, not control flow: the
// graph's tool node catches and stringifies every error.
package tool

import (
	"context"
	"fmt"
)

// DatasetRetrievalToolName is the reserved identifier of the knowledge-base
// retrieval tool. Executions of this tool are reported as dataset_retrieval
// events instead of generic agent_action events.
const DatasetRetrievalToolName = "dataset_retrieval"

// Tool is the capability contract consumed by the graph's tool node.
//
// Implementations should:
//   - Provide clear, descriptive names (snake_case recommended)
//   - Define a minimal JSON schema for parameters
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description is shown to the model to guide tool selection.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Invoke executes the tool. Errors are converted to observation text by
	// the caller; they never abort the graph.
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
