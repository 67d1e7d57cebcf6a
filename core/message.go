package core

import "github.com/google/uuid"

// MessageRole identifies the conversational role of a Message.
type MessageRole string

const (
	// RoleSystem carries instructions injected ahead of the conversation.
	RoleSystem MessageRole = "system"
	// RoleHuman is an end-user turn.
	RoleHuman MessageRole = "human"
	// RoleAI is a model-authored turn (text and/or tool calls).
	RoleAI MessageRole = "ai"
	// RoleTool carries the result of a single tool call back to the model.
	RoleTool MessageRole = "tool"
)

// Part represents a polymorphic segment of message content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string `json:"text"`
}

func (TextPart) isPart() {}

// ImageURLPart references an image by URL (multimodal human input).
type ImageURLPart struct {
	URL string `json:"url"`
}

func (ImageURLPart) isPart() {}

// ToolCall describes a structured tool invocation request produced by a
// model (natively) or synthesized from parsed text (ReACT emulation).
// Arguments is the serialized JSON argument payload.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry of the conversation threaded through graph nodes.
// Messages are append-only except for explicit remove-then-reinsert edits
// used to normalize history, so every message carries a stable ID.
type Message struct {
	ID         string      `json:"id"`
	Role       MessageRole `json:"role"`
	Parts      []Part      `json:"parts"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
}

// NewID generates a unique identifier used for messages, events and tasks.
func NewID() string { return uuid.NewString() }

// NewSystemMessage constructs a system instruction message.
func NewSystemMessage(text string) Message {
	return Message{ID: NewID(), Role: RoleSystem, Parts: []Part{TextPart{Text: text}}}
}

// NewHumanMessage constructs a plain text human message.
func NewHumanMessage(text string) Message {
	return Message{ID: NewID(), Role: RoleHuman, Parts: []Part{TextPart{Text: text}}}
}

// NewHumanMessageWithParts constructs a multimodal human message.
func NewHumanMessageWithParts(parts ...Part) Message {
	return Message{ID: NewID(), Role: RoleHuman, Parts: parts}
}

// NewAIMessage constructs a model-authored text message.
func NewAIMessage(text string) Message {
	return Message{ID: NewID(), Role: RoleAI, Parts: []Part{TextPart{Text: text}}}
}

// NewAIMessageWithToolCalls constructs a model-authored message carrying
// structured tool calls alongside optional text.
func NewAIMessageWithToolCalls(text string, calls ...ToolCall) Message {
	m := NewAIMessage(text)
	m.ToolCalls = calls
	return m
}

// NewToolMessage constructs a tool result message correlated to the
// originating tool call.
func NewToolMessage(content, toolCallID string) Message {
	return Message{
		ID:         NewID(),
		Role:       RoleTool,
		Parts:      []Part{TextPart{Text: content}},
		ToolCallID: toolCallID,
	}
}

// Text concatenates all text parts of the message in order.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// ImageURLs returns the URLs of all image parts in order.
func (m Message) ImageURLs() []string {
	var urls []string
	for _, p := range m.Parts {
		if ip, ok := p.(ImageURLPart); ok {
			urls = append(urls, ip.URL)
		}
	}
	return urls
}
