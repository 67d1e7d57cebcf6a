package agent

import (
	"github.com/moxie-ai/agentgraph/core"
	"github.com/moxie-ai/agentgraph/tool"
)

// defaultMaxIterationCount bounds the llm ⟷ tools loop when the caller
// does not configure a limit.
const defaultMaxIterationCount = 5

// ReviewInputsConfig configures the input-side keyword short-circuit.
type ReviewInputsConfig struct {
	Enable         bool     `json:"enable"`
	Keywords       []string `json:"keywords"`
	PresetResponse string   `json:"preset_response"`
}

// ReviewOutputsConfig configures output-side keyword redaction.
type ReviewOutputsConfig struct {
	Enable   bool     `json:"enable"`
	Keywords []string `json:"keywords"`
}

// ReviewConfig is the content review configuration: a keyword list with
// independent input/output switches and a preset replacement response.
type ReviewConfig struct {
	Enable        bool                `json:"enable"`
	InputsConfig  ReviewInputsConfig  `json:"inputs_config"`
	OutputsConfig ReviewOutputsConfig `json:"outputs_config"`
}

// Config is the immutable per-invocation agent configuration.
type Config struct {
	// UserID and InvokeFrom identify the invocation owner; together they
	// form the task-owner string gating external stop requests.
	UserID     string
	InvokeFrom core.InvokeFrom

	// PresetPrompt is the application's system prompt fragment.
	PresetPrompt string

	// EnableLongTermMemory toggles memory recall; when disabled the
	// long-term memory section of the system prompt stays empty.
	EnableLongTermMemory bool

	// MaxIterationCount bounds llm node executions per turn.
	MaxIterationCount int

	// Tools are the capabilities bound to the model for this invocation.
	Tools []tool.Tool

	// Review is the content review configuration.
	Review ReviewConfig
}

// withDefaults returns a copy with unset fields filled in.
func (c Config) withDefaults() Config {
	if c.MaxIterationCount <= 0 {
		c.MaxIterationCount = defaultMaxIterationCount
	}
	return c
}

// toolByName returns the configured tool with the given name.
func (c Config) toolByName(name string) (tool.Tool, bool) {
	for _, t := range c.Tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}
