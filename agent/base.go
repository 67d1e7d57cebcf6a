package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/moxie-ai/agentgraph/cache"
	"github.com/moxie-ai/agentgraph/core"
	"github.com/moxie-ai/agentgraph/logging"
	"github.com/moxie-ai/agentgraph/model"
	"github.com/moxie-ai/agentgraph/queue"
)

// ErrGraphNotBuilt is returned by Stream when the agent was constructed
// without a compiled graph. This is a structural error, not a runtime one.
var ErrGraphNotBuilt = errors.New("agent graph is not built")

// Agent is the externally consumed runtime contract: a live event stream
// for streaming consumers, a folded aggregate for batch consumers.
type Agent interface {
	Stream(ctx context.Context, state *State) (<-chan *core.AgentThought, error)
	Invoke(ctx context.Context, state *State) (*core.AgentResult, error)
}

// Options configure agent construction. The cache store defaults to an
// in-process store; multi-process deployments supply cache.RedisStore so
// stop requests work across processes.
type Options struct {
	Store        cache.Store
	Logger       logging.Logger
	QueueOptions []func(o *queue.Options)
}

// BaseAgent owns the compiled state graph, the model capability and the
// per-invocation queue manager. Concrete agent variants embed it and
// register their node set; BaseAgent contributes the Stream/Invoke
// runtime.
type BaseAgent struct {
	llm    model.Model
	config Config
	graph  *compiledGraph
	queue  *queue.Manager
	logger logging.Logger
}

func newBaseAgent(llm model.Model, config Config, optFns ...func(o *Options)) BaseAgent {
	opts := Options{
		Store:  cache.NewInMemoryStore(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	config = config.withDefaults()
	queueOpts := append(
		[]func(o *queue.Options){func(o *queue.Options) { o.Logger = opts.Logger }},
		opts.QueueOptions...,
	)

	return BaseAgent{
		llm:    llm,
		config: config,
		queue:  queue.NewManager(config.UserID, config.InvokeFrom, opts.Store, queueOpts...),
		logger: opts.Logger,
	}
}

// Stream starts graph execution on a background goroutine and returns the
// task's live event stream. The returned sequence is single-pass and
// terminates when a terminal event closes the channel; the worker is never
// killed by the consumer going away, it finishes on its own.
func (a *BaseAgent) Stream(ctx context.Context, state *State) (<-chan *core.AgentThought, error) {
	if a.graph == nil {
		return nil, ErrGraphNotBuilt
	}

	if state.TaskID == "" {
		state.TaskID = core.NewID()
	}
	if state.History == nil {
		state.History = []core.Message{}
	}

	events := a.queue.Listen(ctx, state.TaskID)

	go func() {
		if err := a.graph.execute(ctx, state); err != nil {
			a.logger.Error("agent.graph_failed", "task_id", state.TaskID, "error", err.Error())
			a.queue.PublishError(state.TaskID, err)
		}
	}()

	return events, nil
}

// Invoke drives Stream to completion and folds the event sequence into an
// AgentResult. Events are folded per id: agent_message events accumulate
// thought/answer text across chunks sharing an id (scalar fields follow
// the newest chunk), every other kind overwrites its prior entry.
func (a *BaseAgent) Invoke(ctx context.Context, state *State) (*core.AgentResult, error) {
	result := &core.AgentResult{Status: core.EventAgentEnd}
	if len(state.Messages) > 0 {
		first := state.Messages[0]
		result.Query = first.Text()
		result.ImageURLs = first.ImageURLs()
	}

	events, err := a.Stream(ctx, state)
	if err != nil {
		return nil, err
	}

	folded := map[string]*core.AgentThought{}
	var order []string

	for event := range events {
		if event.Event == core.EventPing {
			continue
		}

		if event.Event == core.EventAgentMessage {
			result.Answer += event.Answer

			if existing, ok := folded[event.ID]; ok {
				existing.Thought += event.Thought
				existing.Answer += event.Answer
				existing.Latency = event.Latency
				existing.MessageTokenCount = event.MessageTokenCount
				existing.MessageUnitPrice = event.MessageUnitPrice
				existing.AnswerTokenCount = event.AnswerTokenCount
				existing.AnswerUnitPrice = event.AnswerUnitPrice
				existing.TotalTokenCount = event.TotalTokenCount
				existing.TotalPrice = event.TotalPrice
				if len(event.Message) > 0 {
					existing.Message = event.Message
				}
			} else {
				copied := *event
				folded[event.ID] = &copied
				order = append(order, event.ID)
			}
			continue
		}

		copied := *event
		if _, ok := folded[event.ID]; !ok {
			order = append(order, event.ID)
		}
		folded[event.ID] = &copied

		switch event.Event {
		case core.EventStop, core.EventTimeout:
			result.Status = event.Event
		case core.EventError:
			result.Status = core.EventError
			result.Error = event.Observation
		}
	}

	for _, id := range order {
		event := folded[id]
		result.AgentThoughts = append(result.AgentThoughts, *event)
		result.Latency += event.Latency
		if result.Message == nil && event.Event == core.EventAgentMessage {
			result.Message = event.Message
		}
	}
	if result.Message == nil {
		result.Message = []core.Message{}
	}

	return result, nil
}

// publish forwards a thought to the task's event channel.
func (a *BaseAgent) publish(taskID string, thought *core.AgentThought) {
	a.queue.Publish(taskID, thought)
}

// publishEnd closes the turn with an agent_end event.
func (a *BaseAgent) publishEnd(taskID string) {
	a.publish(taskID, core.NewAgentThought(taskID, core.EventAgentEnd))
}

// SetStopFlag requests a stop for a task owned by this user/channel pair.
// It delegates to the queue package's authorization-gated flag; the store
// must be the same one the agent was constructed with (or share its
// backing Redis).
func SetStopFlag(ctx context.Context, store cache.Store, taskID string, invokeFrom core.InvokeFrom, userID string) error {
	return queue.SetStopFlag(ctx, store, taskID, invokeFrom, userID)
}

// redactKeywords replaces every configured keyword, case-insensitively,
// with "**".
func redactKeywords(text string, keywords []string) string {
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		text = replaceInsensitive(text, keyword, "**")
	}
	return text
}

func replaceInsensitive(text, old, replacement string) string {
	lowerText := strings.ToLower(text)
	lowerOld := strings.ToLower(old)

	var b strings.Builder
	for {
		idx := strings.Index(lowerText, lowerOld)
		if idx < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:idx])
		b.WriteString(replacement)
		text = text[idx+len(old):]
		lowerText = lowerText[idx+len(lowerOld):]
	}
}
