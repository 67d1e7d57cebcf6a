// Package core contains the shared vocabulary of the agent execution core:
// chat messages and their content parts, the queue event taxonomy, the
// AgentThought record streamed to consumers and the AgentResult aggregate
// assembled from a finished stream. Higher layers (queue, model, agent,
// runner) depend on core; core depends on nothing but the standard library
// and uuid.
package core
