package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/document"
	"ragchat/internal/grader"
	"ragchat/internal/history"
	"ragchat/internal/llm"
	"ragchat/internal/log"
	"ragchat/internal/memory"
	"ragchat/internal/search"
	"ragchat/internal/vectorstore"
)

type fakeSearcher struct {
	results []search.Result
	err     error
	calls   int
}

func (f *fakeSearcher) Search(_ context.Context, _ string) ([]search.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fixture struct {
	model    *llm.FakeModel
	embedder *llm.FakeEmbedder
	store    *vectorstore.MemoryStore
	searcher *fakeSearcher
	memory   memory.Recaller
	history  history.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		model:    llm.NewFakeModel(`{"score": "yes"}`),
		embedder: llm.NewFakeEmbedder(1, 0, 0),
		store:    vectorstore.NewMemoryStore(),
		searcher: &fakeSearcher{},
		history:  history.NewMemoryStore(),
	}
}

func (f *fixture) pipeline(t *testing.T) *Pipeline {
	t.Helper()
	g, err := grader.New(f.model)
	require.NoError(t, err)

	p, err := New(f.model, f.embedder, f.store, g, f.searcher, f.memory, f.history, log.NopLogger{}, Options{})
	require.NoError(t, err)
	return p
}

func (f *fixture) index(t *testing.T, content string) {
	t.Helper()
	doc := document.New("notes.txt", 0, content)
	require.NoError(t, f.store.Add(context.Background(), []document.Document{doc}, [][]float32{{1, 0, 0}}))
}

func TestRunAnswersFromDocuments(t *testing.T) {
	f := newFixture(t)
	f.index(t, "Go is a statically typed language designed at Google.")
	f.model.
		Respond("assessing relevance", `{"score": "yes"}`).
		Respond("grounded in / supported by", `{"score": "yes"}`).
		Respond("useful to resolve", `{"score": "yes"}`).
		Respond("research assistant", "Go is a statically typed language.")

	res, err := f.pipeline(t).Run(context.Background(), "user-alice", "s1", "what is go?")
	require.NoError(t, err)
	assert.Equal(t, "Go is a statically typed language.", res.Answer)
	assert.Equal(t, "documents", res.Source)
	assert.Zero(t, f.searcher.calls)
}

func TestRunFallsBackToWebSearch(t *testing.T) {
	f := newFixture(t)
	f.searcher.results = []search.Result{{URL: "https://go.dev", Content: "Go 1.24 is out."}}
	f.model.
		Respond("assessing relevance", `{"score": "no"}`).
		Respond("grounded in / supported by", `{"score": "yes"}`).
		Respond("useful to resolve", `{"score": "yes"}`).
		Respond("research assistant", "Go 1.24 was released recently.")

	res, err := f.pipeline(t).Run(context.Background(), "user-alice", "s1", "latest go release?")
	require.NoError(t, err)
	assert.Equal(t, "Go 1.24 was released recently.", res.Answer)
	assert.Equal(t, "websearch", res.Source)
	assert.Equal(t, 1, f.searcher.calls)
}

func TestRunAnswersFromMemory(t *testing.T) {
	f := newFixture(t)
	mem, err := memory.NewLocalMemory(history.NewMemoryStore())
	require.NoError(t, err)
	f.memory = mem
	require.NoError(t, mem.Record(context.Background(), "user-alice", "s1", []memory.Message{
		{Role: "USER", Text: "my favorite language is Go"},
		{Role: "ASSISTANT", Text: "Noted."},
	}))
	f.model.
		Respond("assessing relevance", `{"score": "yes"}`).
		Respond("grounded in / supported by", `{"score": "yes"}`).
		Respond("useful to resolve", `{"score": "yes"}`).
		Respond("research assistant", "Your favorite language is Go.")

	res, err := f.pipeline(t).Run(context.Background(), "user-alice", "s1", "what is my favorite language?")
	require.NoError(t, err)
	assert.Equal(t, "Your favorite language is Go.", res.Answer)
	assert.Equal(t, "memory", res.Source)
	assert.Zero(t, f.searcher.calls)
}

func TestEmptyGenerationUsesFallbackAnswer(t *testing.T) {
	f := newFixture(t)
	f.index(t, "Some content.")
	f.model.
		Respond("assessing relevance", `{"score": "yes"}`).
		Respond("research assistant", "   ")

	res, err := f.pipeline(t).Run(context.Background(), "user-alice", "s1", "anything?")
	require.NoError(t, err)
	assert.Equal(t, fallbackAnswer, res.Answer)
}

func TestModelErrorYieldsApology(t *testing.T) {
	f := newFixture(t)
	f.index(t, "Some content.")

	broken := llm.NewFakeModel("")
	broken.Err = errors.New("bedrock throttled")
	g, err := grader.New(llm.NewFakeModel(`{"score": "yes"}`))
	require.NoError(t, err)
	p, err := New(broken, f.embedder, f.store, g, f.searcher, nil, nil, log.NopLogger{}, Options{})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), "user-alice", "s1", "anything?")
	require.NoError(t, err)
	assert.Equal(t, errorAnswer, res.Answer)
}

func TestUngroundedAnswerRegeneratesOnce(t *testing.T) {
	f := newFixture(t)
	f.index(t, "The sky is blue.")
	f.model.
		Respond("assessing relevance", `{"score": "yes"}`).
		Respond("grounded in / supported by", `{"score": "no"}`, `{"score": "yes"}`).
		Respond("useful to resolve", `{"score": "yes"}`).
		Respond("research assistant", "The sky is green.", "The sky is blue.")

	res, err := f.pipeline(t).Run(context.Background(), "user-alice", "s1", "what color is the sky?")
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", res.Answer)
}

func TestRegenerationCapTerminates(t *testing.T) {
	f := newFixture(t)
	f.index(t, "The sky is blue.")
	f.model.
		Respond("assessing relevance", `{"score": "yes"}`).
		Respond("grounded in / supported by", `{"score": "no"}`).
		Respond("useful to resolve", `{"score": "yes"}`).
		Respond("research assistant", "The sky is green.")

	res, err := f.pipeline(t).Run(context.Background(), "user-alice", "s1", "what color is the sky?")
	require.NoError(t, err)
	assert.Equal(t, "The sky is green.", res.Answer)

	generations := 0
	for _, req := range f.model.Prompts {
		if req.System == ragSystemPrompt {
			generations++
		}
	}
	assert.Equal(t, 2, generations)
}

func TestNotUsefulAnswerTriesWebSearch(t *testing.T) {
	f := newFixture(t)
	f.index(t, "Unrelated local notes.")
	f.searcher.results = []search.Result{{URL: "https://example.com", Content: "Fresh facts."}}
	f.model.
		Respond("assessing relevance", `{"score": "yes"}`).
		Respond("grounded in / supported by", `{"score": "yes"}`).
		Respond("useful to resolve", `{"score": "no"}`, `{"score": "yes"}`).
		Respond("research assistant", "Vague non-answer.", "A sharp answer from the web.")

	res, err := f.pipeline(t).Run(context.Background(), "user-alice", "s1", "something current?")
	require.NoError(t, err)
	assert.Equal(t, "A sharp answer from the web.", res.Answer)
	assert.Equal(t, "websearch", res.Source)
	assert.Equal(t, 1, f.searcher.calls)
}

func TestFallbackAnswerAcceptedWithoutGrading(t *testing.T) {
	f := newFixture(t)
	f.searcher.err = errors.New("tavily down")
	f.model.
		Respond("assessing relevance", `{"score": "no"}`).
		Respond("research assistant", "I don't have enough information to answer this question.")

	res, err := f.pipeline(t).Run(context.Background(), "user-alice", "s1", "unknowable?")
	require.NoError(t, err)
	assert.Equal(t, fallbackAnswer, res.Answer)

	for _, req := range f.model.Prompts {
		assert.NotContains(t, req.System, "grounded in / supported by")
	}
}

func TestRunRecordsTranscript(t *testing.T) {
	f := newFixture(t)
	f.index(t, "Go is a language.")
	f.model.
		Respond("assessing relevance", `{"score": "yes"}`).
		Respond("grounded in / supported by", `{"score": "yes"}`).
		Respond("useful to resolve", `{"score": "yes"}`).
		Respond("research assistant", "Go is a language.")

	_, err := f.pipeline(t).Run(context.Background(), "user-alice", "s1", "what is go?")
	require.NoError(t, err)

	turns, err := f.history.List(context.Background(), "user-alice", "s1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "what is go?", turns[0].Question)
	assert.Equal(t, "Go is a language.", turns[0].Answer)
	assert.Equal(t, "documents", turns[0].Source)
}

func TestStreamEmitsNodeProgress(t *testing.T) {
	f := newFixture(t)
	f.index(t, "Go is a language.")
	f.model.
		Respond("assessing relevance", `{"score": "yes"}`).
		Respond("grounded in / supported by", `{"score": "yes"}`).
		Respond("useful to resolve", `{"score": "yes"}`).
		Respond("research assistant", "Go is a language.")

	events, errc := f.pipeline(t).Stream(context.Background(), "user-alice", "s1", "what is go?")

	var nodes []string
	var last Event
	for ev := range events {
		nodes = append(nodes, ev.Node)
		last = ev
	}
	require.NoError(t, <-errc)

	assert.Equal(t, []string{NodeSearchMemory, NodeGradeMemory, NodeRetrieve, NodeGradeDocuments, NodeGenerate}, nodes)
	assert.Equal(t, "Go is a language.", last.State.Generation)
}

func TestIngestor(t *testing.T) {
	f := newFixture(t)
	ing, err := NewIngestor(document.NewSplitter(512, 50), f.embedder, f.store, log.NopLogger{})
	require.NoError(t, err)

	doc := document.New("notes.txt", 0, "Go is a statically typed, compiled language.")
	n, err := ing.Ingest(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.store.Count())
}

func TestIngestorEmbedsEveryChunk(t *testing.T) {
	f := newFixture(t)
	ing, err := NewIngestor(document.NewSplitter(20, 5), f.embedder, f.store, log.NopLogger{})
	require.NoError(t, err)

	doc := document.New("long.txt", 0, "alpha beta gamma delta epsilon zeta eta theta iota kappa")
	n, err := ing.Ingest(context.Background(), doc)
	require.NoError(t, err)
	assert.Greater(t, n, 1)
	assert.Equal(t, n, f.store.Count())
}
