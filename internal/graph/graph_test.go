package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct {
	Path  []string
	Count int
}

func appendNode(name string) NodeFunc[testState] {
	return func(_ context.Context, s testState) (testState, error) {
		s.Path = append(s.Path, name)
		return s, nil
	}
}

func TestInvokeLinear(t *testing.T) {
	g := NewStateGraph[testState]()
	g.AddNode("a", appendNode("a"))
	g.AddNode("b", appendNode("b"))
	g.SetEntryPoint("a")
	g.AddEdge("a", "b")
	g.AddEdge("b", END)

	r, err := g.Compile()
	require.NoError(t, err)

	out, err := r.Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out.Path)
}

func TestConditionalEdge(t *testing.T) {
	g := NewStateGraph[testState]()
	g.AddNode("start", func(_ context.Context, s testState) (testState, error) {
		s.Count++
		return s, nil
	})
	g.AddNode("left", appendNode("left"))
	g.AddNode("right", appendNode("right"))
	g.SetEntryPoint("start")
	g.AddConditionalEdge("start", func(_ context.Context, s testState) string {
		if s.Count > 1 {
			return "right"
		}
		return "left"
	})
	g.AddEdge("left", END)
	g.AddEdge("right", END)

	r, err := g.Compile()
	require.NoError(t, err)

	out, err := r.Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.Equal(t, []string{"left"}, out.Path)

	out, err = r.Invoke(context.Background(), testState{Count: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"right"}, out.Path)
}

func TestConditionalLoop(t *testing.T) {
	g := NewStateGraph[testState]()
	g.AddNode("work", func(_ context.Context, s testState) (testState, error) {
		s.Count++
		return s, nil
	})
	g.SetEntryPoint("work")
	g.AddConditionalEdge("work", func(_ context.Context, s testState) string {
		if s.Count < 3 {
			return "work"
		}
		return END
	})

	r, err := g.Compile()
	require.NoError(t, err)

	out, err := r.Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Count)
}

func TestCompileValidation(t *testing.T) {
	t.Run("missing entry point", func(t *testing.T) {
		g := NewStateGraph[testState]()
		g.AddNode("a", appendNode("a"))
		_, err := g.Compile()
		assert.ErrorIs(t, err, ErrEntryPointNotSet)
	})

	t.Run("unknown entry point", func(t *testing.T) {
		g := NewStateGraph[testState]()
		g.AddNode("a", appendNode("a"))
		g.SetEntryPoint("nope")
		_, err := g.Compile()
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})

	t.Run("edge to unknown node", func(t *testing.T) {
		g := NewStateGraph[testState]()
		g.AddNode("a", appendNode("a"))
		g.SetEntryPoint("a")
		g.AddEdge("a", "ghost")
		_, err := g.Compile()
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})
}

func TestNoOutgoingEdge(t *testing.T) {
	g := NewStateGraph[testState]()
	g.AddNode("a", appendNode("a"))
	g.SetEntryPoint("a")

	r, err := g.Compile()
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), testState{})
	assert.ErrorIs(t, err, ErrNoOutgoingEdge)
}

func TestNodeErrorWrapped(t *testing.T) {
	boom := errors.New("boom")
	g := NewStateGraph[testState]()
	g.AddNode("a", func(_ context.Context, s testState) (testState, error) {
		return s, boom
	})
	g.SetEntryPoint("a")
	g.AddEdge("a", END)

	r, err := g.Compile()
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), testState{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "node a")
}

func TestRetryPolicy(t *testing.T) {
	calls := 0
	g := NewStateGraph[testState]()
	g.AddNode("flaky", func(_ context.Context, s testState) (testState, error) {
		calls++
		if calls < 3 {
			return s, errors.New("transient")
		}
		return s, nil
	})
	g.SetEntryPoint("flaky")
	g.AddEdge("flaky", END)
	g.SetRetryPolicy(&RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond})

	r, err := g.Compile()
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestStream(t *testing.T) {
	g := NewStateGraph[testState]()
	g.AddNode("a", appendNode("a"))
	g.AddNode("b", appendNode("b"))
	g.SetEntryPoint("a")
	g.AddEdge("a", "b")
	g.AddEdge("b", END)

	r, err := g.Compile()
	require.NoError(t, err)

	events, errc := r.Stream(context.Background(), testState{})

	var names []string
	for ev := range events {
		names = append(names, ev.Node)
	}
	require.NoError(t, <-errc)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestInvokeContextCancelled(t *testing.T) {
	g := NewStateGraph[testState]()
	g.AddNode("spin", func(_ context.Context, s testState) (testState, error) {
		return s, nil
	})
	g.SetEntryPoint("spin")
	g.AddConditionalEdge("spin", func(_ context.Context, _ testState) string {
		return "spin"
	})

	r, err := g.Compile()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Invoke(ctx, testState{})
	assert.ErrorIs(t, err, context.Canceled)
}
