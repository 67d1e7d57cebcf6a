package core

// QueueEvent tags an AgentThought with the kind of progress it reports. The
// same enum doubles as the terminal/non-terminal marker that drives stream
// closure, so new kinds must be classified in Terminal below.
type QueueEvent string

const (
	// EventLongTermMemoryRecall reports the recalled long-term memory text.
	EventLongTermMemoryRecall QueueEvent = "long_term_memory_recall"
	// EventAgentThought reports a model turn that requested tool calls.
	EventAgentThought QueueEvent = "agent_thought"
	// EventAgentMessage carries a streamed chunk of the final answer.
	EventAgentMessage QueueEvent = "agent_message"
	// EventAgentAction reports a generic tool execution.
	EventAgentAction QueueEvent = "agent_action"
	// EventDatasetRetrieval reports execution of the reserved retrieval tool.
	EventDatasetRetrieval QueueEvent = "dataset_retrieval"
	// EventAgentDispatch reports a hand-off to a collaborator agent.
	EventAgentDispatch QueueEvent = "agent_dispatch"
	// EventAgentEnd marks the natural end of the turn.
	EventAgentEnd QueueEvent = "agent_end"
	// EventPing is the listener heartbeat; it never closes the stream.
	EventPing QueueEvent = "ping"
	// EventStop reports an authorized external stop request.
	EventStop QueueEvent = "stop"
	// EventError reports an unrecoverable failure.
	EventError QueueEvent = "error"
	// EventTimeout reports the listener watchdog firing.
	EventTimeout QueueEvent = "timeout"
)

// Terminal reports whether the event closes the task's stream. Every
// terminal publish is immediately followed by the channel-closing sentinel.
func (e QueueEvent) Terminal() bool {
	switch e {
	case EventStop, EventError, EventTimeout, EventAgentEnd:
		return true
	default:
		return false
	}
}

// AgentThought is one unit of the agent's observable progress and the wire
// record relayed to streaming clients (one SSE frame per thought). It is
// also the unit of persistence for the external thought store.
type AgentThought struct {
	ID     string     `json:"id"`
	TaskID string     `json:"task_id"`
	Event  QueueEvent `json:"event"`

	Thought     string         `json:"thought"`
	Observation string         `json:"observation"`
	Tool        string         `json:"tool"`
	ToolInput   map[string]any `json:"tool_input"`

	// Message is the snapshot of the conversation the model saw; Answer is
	// the delta of the final answer carried by this event.
	Message []Message `json:"message"`
	Answer  string    `json:"answer"`

	MessageTokenCount int     `json:"message_token_count"`
	MessageUnitPrice  float64 `json:"message_unit_price"`
	AnswerTokenCount  int     `json:"answer_token_count"`
	AnswerUnitPrice   float64 `json:"answer_unit_price"`
	TotalTokenCount   int     `json:"total_token_count"`
	TotalPrice        float64 `json:"total_price"`

	// Latency is seconds elapsed for the step this event reports.
	Latency float64 `json:"latency"`
}

// NewAgentThought constructs a thought of the given kind bound to a task.
func NewAgentThought(taskID string, event QueueEvent) *AgentThought {
	return &AgentThought{ID: NewID(), TaskID: taskID, Event: event}
}
