package queue

import (
	"sync"
	"time"

	"github.com/moxie-ai/agentgraph/core"
)

// fifo is an unbounded multi-producer/single-consumer queue. Unbounded
// matters: the producer must never block on a slow or departed consumer,
// so a fixed-capacity channel is not an option here. A nil item is the
// closure sentinel.
type fifo struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []*core.AgentThought
}

func newFIFO() *fifo {
	f := &fifo{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// push appends an item and wakes the consumer.
func (f *fifo) push(item *core.AgentThought) {
	f.mu.Lock()
	f.items = append(f.items, item)
	f.mu.Unlock()
	f.cond.Broadcast()
}

// pop blocks until an item is available or the timeout elapses. The second
// return value is false on timeout; a (nil, true) result is the sentinel.
func (f *fifo) pop(timeout time.Duration) (*core.AgentThought, bool) {
	deadline := time.Now().Add(timeout)

	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.items) == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false
		}
		wakeup := time.AfterFunc(remaining, f.cond.Broadcast)
		f.cond.Wait()
		wakeup.Stop()
	}

	item := f.items[0]
	f.items = f.items[1:]
	return item, true
}
