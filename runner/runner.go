package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/moxie-ai/agentgraph/agent"
	"github.com/moxie-ai/agentgraph/core"
	"github.com/moxie-ai/agentgraph/logging"
)

// ThoughtStore persists the thoughts of completed and in-flight tasks so
// conversations can be replayed after the live stream is gone.
type ThoughtStore interface {
	// Append stores one thought for its task.
	Append(ctx context.Context, thought *core.AgentThought) error

	// List returns the stored thoughts of a task in append order.
	List(ctx context.Context, taskID string) ([]core.AgentThought, error)
}

// InMemoryThoughtStore is a process-local ThoughtStore for tests and
// single-instance deployments.
type InMemoryThoughtStore struct {
	mu       sync.RWMutex
	thoughts map[string][]core.AgentThought
}

// NewInMemoryThoughtStore creates an empty in-memory store.
func NewInMemoryThoughtStore() *InMemoryThoughtStore {
	return &InMemoryThoughtStore{thoughts: map[string][]core.AgentThought{}}
}

// Append implements ThoughtStore.
func (s *InMemoryThoughtStore) Append(_ context.Context, thought *core.AgentThought) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thoughts[thought.TaskID] = append(s.thoughts[thought.TaskID], *thought)
	return nil
}

// List implements ThoughtStore.
func (s *InMemoryThoughtStore) List(_ context.Context, taskID string) ([]core.AgentThought, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.thoughts[taskID]
	out := make([]core.AgentThought, len(stored))
	copy(out, stored)
	return out, nil
}

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// ThoughtStore receives every non-heartbeat thought of a run.
	ThoughtStore ThoughtStore
	// Logger receives runner lifecycle diagnostics.
	Logger logging.Logger
}

// Runner drives agent invocations and fans their event streams out to
// persistence and transport.
type Runner struct {
	agent  agent.Agent
	store  ThoughtStore
	logger logging.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// New constructs a Runner with optional overrides.
func New(a agent.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		ThoughtStore: NewInMemoryThoughtStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		agent:  a,
		store:  opts.ThoughtStore,
		logger: opts.Logger,
		active: map[string]context.CancelFunc{},
	}
}

// Run starts an asynchronous invocation and returns the task id together
// with the relayed event stream. Every non-heartbeat event is persisted
// before it is delivered; the stream closes when the task's terminal event
// has been relayed.
func (r *Runner) Run(ctx context.Context, state *agent.State) (string, <-chan *core.AgentThought, error) {
	if state.TaskID == "" {
		state.TaskID = core.NewID()
	}
	taskID := state.TaskID

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.active[taskID] = cancel
	r.mu.Unlock()

	events, err := r.agent.Stream(ctx, state)
	if err != nil {
		r.release(taskID)
		return "", nil, fmt.Errorf("failed to start agent: %w", err)
	}

	out := make(chan *core.AgentThought)
	go func() {
		defer close(out)
		defer r.release(taskID)

		for event := range events {
			if event.Event != core.EventPing {
				if err := r.store.Append(ctx, event); err != nil {
					r.logger.Warn("runner.persist_failed", "task_id", taskID, "error", err.Error())
				}
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	r.logger.Info("runner.run_started", "task_id", taskID)
	return taskID, out, nil
}

// Cancel cancels a running task by id.
func (r *Runner) Cancel(taskID string) error {
	r.mu.Lock()
	cancel, exists := r.active[taskID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("task %s not found", taskID)
	}

	cancel()
	return nil
}

func (r *Runner) release(taskID string) {
	r.mu.Lock()
	cancel, exists := r.active[taskID]
	delete(r.active, taskID)
	r.mu.Unlock()

	if exists {
		cancel()
	}
}

// ServeSSE runs the invocation and writes each event to w as one
// server-sent-events frame, flushing after every frame when the writer
// supports it. It returns once the stream is closed by a terminal event.
func (r *Runner) ServeSSE(ctx context.Context, w http.ResponseWriter, state *agent.State) error {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	taskID, events, err := r.Run(ctx, state)
	if err != nil {
		return err
	}

	flusher, _ := w.(http.Flusher)
	for event := range events {
		if err := WriteFrame(w, event); err != nil {
			r.logger.Warn("runner.sse_write_failed", "task_id", taskID, "error", err.Error())
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	r.logger.Info("runner.run_finished", "task_id", taskID)
	return nil
}

// WriteFrame writes one thought as a server-sent-events frame:
//
//	event: <kind>
//	data: <json>
//
// followed by a blank line.
func WriteFrame(w io.Writer, thought *core.AgentThought) error {
	data, err := json.Marshal(thought)
	if err != nil {
		return fmt.Errorf("failed to encode thought: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", thought.Event, data)
	return err
}
