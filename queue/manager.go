package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/moxie-ai/agentgraph/cache"
	"github.com/moxie-ai/agentgraph/core"
	"github.com/moxie-ai/agentgraph/logging"
)

const (
	// defaultBelongTTLSeconds bounds how long a task's ownership record
	// survives in the shared cache.
	defaultBelongTTLSeconds = 1800
	// defaultStoppedTTLSeconds bounds the lifetime of a stop marker.
	defaultStoppedTTLSeconds = 600
)

func taskBelongCacheKey(taskID string) string { return "generate_task_belong:" + taskID }

func taskStoppedCacheKey(taskID string) string { return "generate_task_stopped:" + taskID }

// Options tune the listener loop. The defaults reproduce the production
// timings; tests shrink them.
type Options struct {
	// PollTimeout is the blocking-read timeout per poll cycle.
	PollTimeout time.Duration
	// PingInterval is the heartbeat period; a ping event is published when
	// a full interval has elapsed without one.
	PingInterval time.Duration
	// ListenTimeout is the absolute watchdog: once this much wall-clock
	// time has passed since listening began, a timeout event closes the
	// stream regardless of producer liveness.
	ListenTimeout time.Duration
	// BelongTTLSeconds / StoppedTTLSeconds are the cache record lifetimes.
	BelongTTLSeconds  int
	StoppedTTLSeconds int
	// Logger receives queue lifecycle diagnostics.
	Logger logging.Logger
}

// Manager owns the per-task event channels for one agent invocation. The
// background execution goroutine is the sole producer, the foreground
// consumer the sole reader. The shared cache store is the cross-process
// synchronization point for stop signaling.
type Manager struct {
	userID     string
	invokeFrom core.InvokeFrom
	store      cache.Store
	opts       Options

	mu     sync.Mutex
	queues map[string]*fifo
}

// NewManager creates a queue manager bound to the invoking user and channel.
func NewManager(userID string, invokeFrom core.InvokeFrom, store cache.Store, optFns ...func(o *Options)) *Manager {
	opts := Options{
		PollTimeout:       time.Second,
		PingInterval:      10 * time.Second,
		ListenTimeout:     150 * time.Second,
		BelongTTLSeconds:  defaultBelongTTLSeconds,
		StoppedTTLSeconds: defaultStoppedTTLSeconds,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Manager{
		userID:     userID,
		invokeFrom: invokeFrom,
		store:      store,
		opts:       opts,
		queues:     map[string]*fifo{},
	}
}

// queue returns the task's channel, creating it on first access. Creation
// registers task ownership in the shared cache so a separate process can
// authorize a stop request for this task.
func (m *Manager) queue(taskID string) *fifo {
	m.mu.Lock()
	q, ok := m.queues[taskID]
	if !ok {
		q = newFIFO()
		m.queues[taskID] = q
	}
	m.mu.Unlock()

	if !ok {
		owner := m.invokeFrom.Owner(m.userID)
		if err := m.store.SetEx(context.Background(), taskBelongCacheKey(taskID), owner, m.opts.BelongTTLSeconds); err != nil {
			m.opts.Logger.Warn("queue.register_owner_failed", "task_id", taskID, "error", err.Error())
		}
	}

	return q
}

// Publish enqueues an event for the task. Terminal events are immediately
// followed by the closure sentinel so the listener stops after them.
func (m *Manager) Publish(taskID string, thought *core.AgentThought) {
	m.queue(taskID).push(thought)
	m.opts.Logger.Debug("queue.publish", "task_id", taskID, "event", string(thought.Event))

	if thought.Event.Terminal() {
		m.StopListen(taskID)
	}
}

// PublishError publishes an error event carrying the error text as the
// observation, which closes the stream.
func (m *Manager) PublishError(taskID string, err error) {
	thought := core.NewAgentThought(taskID, core.EventError)
	thought.Observation = err.Error()
	m.Publish(taskID, thought)
}

// StopListen enqueues the closure sentinel directly, forcing the listener
// to finish after draining prior events.
func (m *Manager) StopListen(taskID string) {
	m.queue(taskID).push(nil)
}

// Listen returns a finite stream of events for the task. The channel is
// closed when the sentinel is dequeued. Watchdog checks run on every idle
// poll cycle: a heartbeat ping at each ping interval, a stream-closing
// timeout once the listen deadline passes, and a stop event when an
// authorized stop flag appears in the shared cache.
func (m *Manager) Listen(ctx context.Context, taskID string) <-chan *core.AgentThought {
	out := make(chan *core.AgentThought)
	q := m.queue(taskID)

	go func() {
		defer close(out)

		startedAt := time.Now()
		pingsSent := 0

		for {
			item, ok := q.pop(m.opts.PollTimeout)
			if ok {
				if item == nil {
					return
				}
				select {
				case out <- item:
				case <-ctx.Done():
					return
				}
				continue
			}

			elapsed := time.Since(startedAt)

			if intervals := int(elapsed / m.opts.PingInterval); intervals > pingsSent {
				pingsSent = intervals
				m.Publish(taskID, core.NewAgentThought(taskID, core.EventPing))
			}

			if elapsed >= m.opts.ListenTimeout {
				m.opts.Logger.Warn("queue.listen_timeout", "task_id", taskID)
				m.Publish(taskID, core.NewAgentThought(taskID, core.EventTimeout))
				continue
			}

			if m.stopFlagSet(ctx, taskID) {
				m.opts.Logger.Info("queue.stop_observed", "task_id", taskID)
				m.Publish(taskID, core.NewAgentThought(taskID, core.EventStop))
			}
		}
	}()

	return out
}

// stopFlagSet reports whether an external stop marker exists for the task.
func (m *Manager) stopFlagSet(ctx context.Context, taskID string) bool {
	_, err := m.store.Get(ctx, taskStoppedCacheKey(taskID))
	return err == nil
}

// SetStopFlag requests a stop for a running task from outside the owning
// invocation. The request is honored only when the supplied channel/user
// pair matches the owner recorded at channel creation; a mismatch or an
// unknown task is a silent no-op. A honored request sets a short-lived stop
// marker which the active listener converts into a stop event.
func SetStopFlag(ctx context.Context, store cache.Store, taskID string, invokeFrom core.InvokeFrom, userID string) error {
	owner, err := store.Get(ctx, taskBelongCacheKey(taskID))
	if errors.Is(err, cache.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if owner != invokeFrom.Owner(userID) {
		return nil
	}

	return store.SetEx(ctx, taskStoppedCacheKey(taskID), "1", defaultStoppedTTLSeconds)
}
