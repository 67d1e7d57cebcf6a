// Package model defines the language-model capability consumed by agents:
// stream chunks for a message list, count tokens, report pricing and expose
// feature flags (native tool calling, structured agent thought). Provider
// adapters live in subpackages; MockModel supports tests.
package model

import (
	"context"

	"github.com/moxie-ai/agentgraph/core"
)

// Feature flags a capability of a concrete model.
type Feature string

const (
	// FeatureToolCall marks native structured tool/function calling.
	FeatureToolCall Feature = "tool_call"
	// FeatureAgentThought marks support for multi-step reasoning turns.
	FeatureAgentThought Feature = "agent_thought"
)

// Usage captures token usage for a response. Providers occasionally omit
// sub-fields; consumers must treat a nil Usage or zero field as zero rather
// than propagating nulls.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates another usage record, tolerating nil.
func (u *Usage) Add(other *Usage) {
	if other == nil {
		return
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// Pricing is the per-token price schedule of a model. A token count is
// priced as count * price * unit.
type Pricing struct {
	InputPrice  float64 `json:"input_price"`
	OutputPrice float64 `json:"output_price"`
	Unit        float64 `json:"unit"`
}

// Chunk is one streamed fragment of a model response. Content carries a
// text delta; ToolCalls carries the aggregated-so-far structured calls
// (later chunks supersede earlier ones); Usage, when present, reports
// token accounting for the whole response.
type Chunk struct {
	Content   string          `json:"content"`
	ToolCalls []core.ToolCall `json:"tool_calls,omitempty"`
	Usage     *Usage          `json:"usage,omitempty"`
}

// ToolDefinition declaratively exposes a callable tool to the model.
// Parameters is a minimal JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Model is the black-box language model capability driven by graph nodes.
type Model interface {
	// Stream generates a response for the messages, emitting chunks until
	// the response channel closes. A value on the error channel means the
	// stream failed and is unrecoverable within the turn.
	Stream(ctx context.Context, messages []core.Message) (<-chan Chunk, <-chan error)

	// CountTokens estimates the token footprint of the messages.
	CountTokens(messages []core.Message) int

	// Pricing returns the model's price schedule.
	Pricing() Pricing

	// Features returns the capability flags of this model.
	Features() []Feature

	// BindTools returns a model that advertises the given tools on every
	// generation. Only meaningful when FeatureToolCall is present.
	BindTools(tools []ToolDefinition) Model

	// Info returns metadata about the model implementation.
	Info() Info
}

// HasFeature reports whether the model advertises the feature.
func HasFeature(m Model, f Feature) bool {
	for _, feature := range m.Features() {
		if feature == f {
			return true
		}
	}
	return false
}

// MessagesText concatenates the text of all messages; shared helper for
// token estimation in adapters that lack a provider tokenizer.
func MessagesText(messages []core.Message) string {
	var out string
	for _, m := range messages {
		out += m.Text()
	}
	return out
}
