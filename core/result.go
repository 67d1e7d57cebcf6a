package core

// AgentResult is the blocking-interface aggregate folded from a finished
// event stream. It carries the same information content as the stream:
// batch consumers (service-to-service calls, tests) read it instead of
// relaying events.
type AgentResult struct {
	Query     string   `json:"query"`
	ImageURLs []string `json:"image_urls"`

	// Message is the message snapshot of the first agent_message event.
	Message []Message `json:"message"`
	// Answer is the concatenation of every agent_message answer delta in
	// arrival order; it grows monotonically while the stream is folded.
	Answer string `json:"answer"`

	AgentThoughts []AgentThought `json:"agent_thoughts"`

	// Status is the terminal event kind that ended the stream, or
	// EventAgentEnd for a natural completion.
	Status QueueEvent `json:"status"`
	Error  string     `json:"error"`

	// Latency is the sum of every folded event's latency, in seconds.
	Latency float64 `json:"latency"`
}
