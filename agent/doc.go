// Package agent implements the conversational agent execution core: a
// declarative state graph driving preset-check, memory-recall, LLM and
// tool-dispatch nodes, executed on a background goroutine and observed
// through the queue package's event stream.
//
// Graphs are data, not inheritance: each agent variant (function-call,
// ReACT, multi-agent, supervisor) selects node implementations and routing
// functions when it builds its graph, so variants differ only in the node
// set they register.
package agent
