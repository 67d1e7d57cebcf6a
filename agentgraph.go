// Package agentgraph provides a high-level façade over the agent execution
// core (graph-driven agents, event queues, tool calling) enabling rapid
// construction of LLM agent applications. Most applications interact with
// this package by:
//  1. Creating an App via New() with an agent builder (optionally overriding
//     the default in-memory services)
//  2. Running turns asynchronously (Run / ServeSSE) or synchronously (RunSync)
//  3. Stopping in-flight turns from other processes via Stop
//
// The façade wires one shared cache store through the agent and the stop
// path so cross-process stop requests authorize against the same records.
// All defaults are safe for local development and testing; production
// deployments typically supply a Redis-backed store and a structured logger.
package agentgraph

import (
	"context"
	"net/http"

	"github.com/moxie-ai/agentgraph/agent"
	"github.com/moxie-ai/agentgraph/cache"
	"github.com/moxie-ai/agentgraph/core"
	"github.com/moxie-ai/agentgraph/logging"
	"github.com/moxie-ai/agentgraph/runner"
)

// AgentBuilder constructs the application's agent with the façade's shared
// options applied, e.g.:
//
//	agentgraph.New(func(optFns ...func(o *agent.Options)) (agent.Agent, error) {
//		return agent.NewFunctionCallAgent(llm, config, optFns...)
//	})
type AgentBuilder func(optFns ...func(o *agent.Options)) (agent.Agent, error)

// Options configures the App instance.
type Options struct {
	// Store backs task ownership and stop flags. Defaults to an in-memory
	// store; supply cache.RedisStore for multi-process deployments.
	Store cache.Store

	// ThoughtStore persists every non-heartbeat thought of a run.
	ThoughtStore runner.ThoughtStore

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// App is the high-level façade aggregating the agent, its serving runner
// and the shared cache store.
type App struct {
	opts   Options
	agent  agent.Agent
	runner *runner.Runner
}

// New builds the agent through the supplied builder and wires it to a
// runner. Any unset service is initialized with an in-memory
// implementation.
func New(build AgentBuilder, optFns ...func(o *Options)) (*App, error) {
	opts := Options{
		Store:        cache.NewInMemoryStore(),
		ThoughtStore: runner.NewInMemoryThoughtStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	a, err := build(func(o *agent.Options) {
		o.Store = opts.Store
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	r := runner.New(a, func(o *runner.Options) {
		o.ThoughtStore = opts.ThoughtStore
		o.Logger = opts.Logger
	})

	return &App{opts: opts, agent: a, runner: r}, nil
}

// Agent returns the wrapped agent for direct use.
func (app *App) Agent() agent.Agent { return app.agent }

// Run starts an asynchronous turn returning the task id and event stream.
func (app *App) Run(ctx context.Context, state *agent.State) (string, <-chan *core.AgentThought, error) {
	return app.runner.Run(ctx, state)
}

// RunSync drives a turn to completion and returns the folded result.
func (app *App) RunSync(ctx context.Context, state *agent.State) (*core.AgentResult, error) {
	return app.agent.Invoke(ctx, state)
}

// ServeSSE relays a turn's events to the client as server-sent events.
func (app *App) ServeSSE(ctx context.Context, w http.ResponseWriter, state *agent.State) error {
	return app.runner.ServeSSE(ctx, w, state)
}

// Cancel cancels an in-process run by task id.
func (app *App) Cancel(taskID string) error { return app.runner.Cancel(taskID) }

// Stop requests a stop for a task through the shared store. The request is
// honored only when the channel/user pair matches the task's recorded
// owner; it works across processes when the store is shared.
func (app *App) Stop(ctx context.Context, taskID string, invokeFrom core.InvokeFrom, userID string) error {
	return agent.SetStopFlag(ctx, app.opts.Store, taskID, invokeFrom, userID)
}

// Thoughts returns the persisted thoughts of a task in append order.
func (app *App) Thoughts(ctx context.Context, taskID string) ([]core.AgentThought, error) {
	return app.opts.ThoughtStore.List(ctx, taskID)
}
