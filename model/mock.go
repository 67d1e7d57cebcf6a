package model

import (
	"context"
	"sync"

	"github.com/moxie-ai/agentgraph/core"
)

// MockModel is a scripted in-memory Model for tests. Each AddTurn call
// registers the chunk sequence for one Stream invocation; turns are
// consumed in order.
type MockModel struct {
	mu       sync.Mutex
	turns    [][]Chunk
	errs     []error
	features []Feature
	pricing  Pricing
	bound    []ToolDefinition
	calls    int
}

// NewMockModel constructs a mock advertising the given features.
func NewMockModel(features ...Feature) *MockModel {
	return &MockModel{
		features: features,
		pricing:  Pricing{InputPrice: 0.001, OutputPrice: 0.002, Unit: 0.001},
	}
}

// AddTurn registers the chunks for the next Stream call.
func (m *MockModel) AddTurn(chunks ...Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, chunks)
	m.errs = append(m.errs, nil)
}

// AddErrorTurn registers a failing Stream call.
func (m *MockModel) AddErrorTurn(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, nil)
	m.errs = append(m.errs, err)
}

// Calls returns how many times Stream was invoked.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// BoundTools returns the tools bound by the last BindTools call.
func (m *MockModel) BoundTools() []ToolDefinition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bound
}

// Stream implements Model, replaying the next scripted turn.
func (m *MockModel) Stream(ctx context.Context, _ []core.Message) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	var chunks []Chunk
	var err error
	if m.calls < len(m.turns) {
		chunks = m.turns[m.calls]
		err = m.errs[m.calls]
	} else {
		chunks = []Chunk{{Content: "mock response", Usage: &Usage{}}}
	}
	m.calls++
	m.mu.Unlock()

	go func() {
		defer close(out)
		defer close(errCh)
		if err != nil {
			errCh <- err
			return
		}
		for _, chunk := range chunks {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- chunk:
			}
		}
	}()

	return out, errCh
}

// CountTokens implements Model with a deterministic character heuristic.
func (m *MockModel) CountTokens(messages []core.Message) int {
	return len(MessagesText(messages)) / 4
}

// Pricing implements Model.
func (m *MockModel) Pricing() Pricing { return m.pricing }

// Features implements Model.
func (m *MockModel) Features() []Feature { return m.features }

// BindTools implements Model, recording the bound set for assertions.
func (m *MockModel) BindTools(tools []ToolDefinition) Model {
	m.mu.Lock()
	m.bound = tools
	m.mu.Unlock()
	return m
}

// Info implements Model.
func (m *MockModel) Info() Info { return Info{Name: "mock", Provider: "mock"} }
