// Package runner is the serving layer in front of an agent: it starts
// invocations, persists the resulting thoughts, and relays the live event
// stream to clients as server-sent events (one frame per thought).
//
// The Runner owns invocation lifecycle (task id assignment, cancellation)
// but no agent semantics; everything it relays comes from the agent's own
// event stream. Public methods are safe for concurrent use.
package runner
