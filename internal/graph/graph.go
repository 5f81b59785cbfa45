// Package graph implements the small state-graph engine driving the chat
// pipeline: named nodes over a shared state, static and conditional edges,
// and sequential execution with optional per-node retries.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// END is the sentinel node name that terminates execution.
const END = "END"

var (
	// ErrEntryPointNotSet is returned by Compile when no entry point was set.
	ErrEntryPointNotSet = errors.New("graph: entry point not set")

	// ErrNodeNotFound is returned when execution reaches an unknown node.
	ErrNodeNotFound = errors.New("graph: node not found")

	// ErrNoOutgoingEdge is returned when a node has no way forward.
	ErrNoOutgoingEdge = errors.New("graph: no outgoing edge")
)

// NodeFunc mutates the state of a single pipeline stage.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// CondFunc picks the next node name from the current state.
type CondFunc[S any] func(ctx context.Context, state S) string

// Node is a named pipeline stage.
type Node[S any] struct {
	Name     string
	Function NodeFunc[S]
}

// BackoffStrategy selects the delay progression between retries.
type BackoffStrategy int

const (
	FixedBackoff BackoffStrategy = iota
	ExponentialBackoff
)

// RetryPolicy retries failed nodes. The zero policy means no retries.
type RetryPolicy struct {
	MaxRetries int
	Backoff    BackoffStrategy
	BaseDelay  time.Duration
}

// StateGraph builds a graph of nodes and edges over state type S.
type StateGraph[S any] struct {
	nodes      map[string]Node[S]
	edges      map[string]string
	conditions map[string]CondFunc[S]
	entryPoint string
	retry      *RetryPolicy
}

// NewStateGraph creates an empty state graph.
func NewStateGraph[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:      make(map[string]Node[S]),
		edges:      make(map[string]string),
		conditions: make(map[string]CondFunc[S]),
	}
}

// AddNode registers a named node.
func (g *StateGraph[S]) AddNode(name string, fn NodeFunc[S]) {
	g.nodes[name] = Node[S]{Name: name, Function: fn}
}

// AddEdge connects from -> to unconditionally.
func (g *StateGraph[S]) AddEdge(from, to string) {
	g.edges[from] = to
}

// AddConditionalEdge picks the successor of from at runtime. The condition
// must return an existing node name or END.
func (g *StateGraph[S]) AddConditionalEdge(from string, cond CondFunc[S]) {
	g.conditions[from] = cond
}

// SetEntryPoint sets the node execution starts from.
func (g *StateGraph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetRetryPolicy enables retries for every node in the graph.
func (g *StateGraph[S]) SetRetryPolicy(p *RetryPolicy) {
	g.retry = p
}

// Runnable is a compiled graph ready for execution.
type Runnable[S any] struct {
	graph *StateGraph[S]
}

// Compile validates the graph and returns a Runnable.
func (g *StateGraph[S]) Compile() (*Runnable[S], error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, g.entryPoint)
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: edge from %s", ErrNodeNotFound, from)
		}
		if to != END {
			if _, ok := g.nodes[to]; !ok {
				return nil, fmt.Errorf("%w: edge to %s", ErrNodeNotFound, to)
			}
		}
	}
	return &Runnable[S]{graph: g}, nil
}

// Invoke runs the graph to END and returns the final state.
func (r *Runnable[S]) Invoke(ctx context.Context, initial S) (S, error) {
	return r.run(ctx, initial, nil)
}

// StreamEvent reports one completed node during streaming execution.
type StreamEvent[S any] struct {
	Node  string
	State S
}

// Stream runs the graph, emitting an event after each node. The channel is
// closed when execution finishes; the error (if any) is delivered on errc.
func (r *Runnable[S]) Stream(ctx context.Context, initial S) (<-chan StreamEvent[S], <-chan error) {
	events := make(chan StreamEvent[S], 16)
	errc := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errc)
		if _, err := r.run(ctx, initial, events); err != nil {
			errc <- err
		}
	}()

	return events, errc
}

func (r *Runnable[S]) run(ctx context.Context, state S, events chan<- StreamEvent[S]) (S, error) {
	current := r.graph.entryPoint

	for current != END {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		node, ok := r.graph.nodes[current]
		if !ok {
			return state, fmt.Errorf("%w: %s", ErrNodeNotFound, current)
		}

		next, err := r.executeWithRetry(ctx, node, state)
		if err != nil {
			return state, fmt.Errorf("graph: node %s: %w", current, err)
		}
		state = next

		if events != nil {
			select {
			case events <- StreamEvent[S]{Node: current, State: state}:
			case <-ctx.Done():
				return state, ctx.Err()
			}
		}

		current, err = r.nextNode(ctx, current, state)
		if err != nil {
			return state, err
		}
	}

	return state, nil
}

func (r *Runnable[S]) nextNode(ctx context.Context, current string, state S) (string, error) {
	if cond, ok := r.graph.conditions[current]; ok {
		next := cond(ctx, state)
		if next == "" {
			return "", fmt.Errorf("graph: conditional edge from %s returned empty node", current)
		}
		if next != END {
			if _, ok := r.graph.nodes[next]; !ok {
				return "", fmt.Errorf("%w: %s", ErrNodeNotFound, next)
			}
		}
		return next, nil
	}
	if next, ok := r.graph.edges[current]; ok {
		return next, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, current)
}

func (r *Runnable[S]) executeWithRetry(ctx context.Context, node Node[S], state S) (S, error) {
	policy := r.graph.retry
	attempts := 1
	if policy != nil {
		attempts = policy.MaxRetries + 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoffDelay(policy, attempt-1)):
			case <-ctx.Done():
				var zero S
				return zero, ctx.Err()
			}
		}

		result, err := node.Function(ctx, state)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	var zero S
	return zero, lastErr
}

func backoffDelay(p *RetryPolicy, attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	if p.Backoff == ExponentialBackoff {
		return base * time.Duration(1<<attempt)
	}
	return base
}
