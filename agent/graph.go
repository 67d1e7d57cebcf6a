package agent

import (
	"context"
	"fmt"
)

// End is the reserved route target terminating graph execution.
const End = "__end__"

// Node names shared by every agent variant. Variants register different
// implementations under the same names, keeping the graph shape stable.
const (
	nodePresetOperation      = "preset_operation"
	nodeLongTermMemoryRecall = "long_term_memory_recall"
	nodeLLM                  = "llm"
	nodeTools                = "tools"
)

// nodeFunc runs one graph node to completion, mutating the state.
type nodeFunc func(ctx context.Context, state *State) error

// routeFunc picks the next node name (or End) after a node completes.
type routeFunc func(state *State) string

// stateGraph is a declarative set of named nodes plus unconditional and
// conditional edges. Build it, then compile it; compilation validates the
// wiring so execution cannot dangle.
type stateGraph struct {
	entryPoint string
	nodes      map[string]nodeFunc
	edges      map[string]string
	branches   map[string]routeFunc
}

func newStateGraph() *stateGraph {
	return &stateGraph{
		nodes:    map[string]nodeFunc{},
		edges:    map[string]string{},
		branches: map[string]routeFunc{},
	}
}

func (g *stateGraph) addNode(name string, fn nodeFunc) {
	g.nodes[name] = fn
}

func (g *stateGraph) setEntryPoint(name string) {
	g.entryPoint = name
}

// addEdge wires an unconditional transition.
func (g *stateGraph) addEdge(from, to string) {
	g.edges[from] = to
}

// addConditionalEdge wires a routing function deciding the next node from
// the state. A conditional edge supersedes an unconditional one.
func (g *stateGraph) addConditionalEdge(from string, route routeFunc) {
	g.branches[from] = route
}

// compile validates the wiring and freezes the graph.
func (g *stateGraph) compile() (*compiledGraph, error) {
	if g.entryPoint == "" {
		return nil, fmt.Errorf("graph has no entry point")
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return nil, fmt.Errorf("entry point %q is not a registered node", g.entryPoint)
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("edge from unknown node %q", from)
		}
		if _, ok := g.nodes[to]; to != End && !ok {
			return nil, fmt.Errorf("edge from %q to unknown node %q", from, to)
		}
	}
	for name := range g.nodes {
		if _, hasEdge := g.edges[name]; hasEdge {
			continue
		}
		if _, hasBranch := g.branches[name]; hasBranch {
			continue
		}
		return nil, fmt.Errorf("node %q has no outgoing edge", name)
	}
	return &compiledGraph{graph: g}, nil
}

// compiledGraph executes nodes sequentially following edges until End.
// Execution is cooperative: one active node at a time, each run to
// completion on the calling goroutine.
type compiledGraph struct {
	graph *stateGraph
}

func (cg *compiledGraph) execute(ctx context.Context, state *State) error {
	current := cg.graph.entryPoint
	for current != End {
		if err := ctx.Err(); err != nil {
			return err
		}

		fn, ok := cg.graph.nodes[current]
		if !ok {
			return fmt.Errorf("graph routed to unknown node %q", current)
		}
		if err := fn(ctx, state); err != nil {
			return fmt.Errorf("node %s: %w", current, err)
		}

		if route, ok := cg.graph.branches[current]; ok {
			current = route(state)
			continue
		}
		next, ok := cg.graph.edges[current]
		if !ok {
			return fmt.Errorf("node %q has no outgoing edge", current)
		}
		current = next
	}
	return nil
}
