package agent

import "github.com/moxie-ai/agentgraph/core"

// State is the mutable record threaded through every graph node for one
// conversational turn. Messages are append-only except for the explicit
// remove-then-reinsert edits used to normalize history.
type State struct {
	// TaskID correlates this run's events; generated on Stream if absent.
	TaskID string

	// Messages is the working conversation the model sees.
	Messages []core.Message

	// History holds prior short-term turns. It must be an even-length
	// alternating human/ai sequence; the memory-recall node enforces this.
	History []core.Message

	// LongTermMemory is the recalled free-text summary, empty if disabled.
	LongTermMemory string

	// IterationCount counts llm node executions; bounded by the config.
	IterationCount int

	// halted is set by a node that already published the closing events
	// (preset short-circuit, iteration bound); routing goes straight to End.
	halted bool
}

// lastMessage returns the most recent message or nil when empty.
func (s *State) lastMessage() *core.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// removeMessage deletes the message with the given id, preserving order.
func (s *State) removeMessage(id string) {
	for i, m := range s.Messages {
		if m.ID == id {
			s.Messages = append(s.Messages[:i], s.Messages[i+1:]...)
			return
		}
	}
}

// snapshotMessages copies the current message list for event records, so
// later node mutations do not alter published snapshots.
func (s *State) snapshotMessages() []core.Message {
	snapshot := make([]core.Message, len(s.Messages))
	copy(snapshot, s.Messages)
	return snapshot
}
