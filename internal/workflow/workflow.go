// Package workflow wires the adaptive answer pipeline: conversation memory
// first, then the local document index, then web search, with graded
// checkpoints deciding each hop and a bounded regeneration loop guarding
// answer quality.
package workflow

import (
	"context"
	"fmt"
	"strings"

	"ragchat/internal/grader"
	"ragchat/internal/graph"
	"ragchat/internal/history"
	"ragchat/internal/llm"
	"ragchat/internal/log"
	"ragchat/internal/memory"
	"ragchat/internal/search"
	"ragchat/internal/vectorstore"
)

// Node names, also surfaced as progress events on the streaming API.
const (
	NodeSearchMemory   = "search_memory"
	NodeGradeMemory    = "grade_memory"
	NodeRetrieve       = "retrieve"
	NodeGradeDocuments = "grade_documents"
	NodeWebSearch      = "websearch"
	NodeGenerate       = "generate"
)

const (
	fallbackAnswer  = "I don't have enough information to answer this question."
	errorAnswer     = "I'm sorry, I encountered an error while generating an answer."
	webSearchFailed = "Web search failed to return results."
	noWebResults    = "No relevant information found from web search."

	// maxGenerations bounds the regenerate/websearch loop after grading.
	maxGenerations = 2
)

const ragSystemPrompt = `You are an AI research assistant for question-answering tasks.
Use the retrieved context to answer questions accurately and concisely.
If you don't know the answer, say so. Keep responses to three sentences maximum.`

// State carries a question through the pipeline.
type State struct {
	Question   string
	Generation string
	Documents  []string
	Source     string

	// NeedsSearch routes to the next data source when grading rejects the
	// current context.
	NeedsSearch bool

	// Attempts counts generations for this question.
	Attempts int

	ActorID   string
	SessionID string
}

// Result is the outcome of one answered question.
type Result struct {
	Answer string
	Source string
}

// Event reports pipeline progress during streaming execution.
type Event struct {
	Node  string
	State State
}

// Options configures pipeline behavior.
type Options struct {
	TopK       int // retrieval depth, default 5
	MaxRecall  int // memory events considered for grading, default 10
	ContextMax int // memory events folded into generation context, default 5
}

func (o *Options) defaults() {
	if o.TopK <= 0 {
		o.TopK = 5
	}
	if o.MaxRecall <= 0 {
		o.MaxRecall = 10
	}
	if o.ContextMax <= 0 {
		o.ContextMax = 5
	}
}

// Pipeline owns the compiled answer graph and its collaborators.
type Pipeline struct {
	model    llm.Model
	embedder llm.Embedder
	store    vectorstore.Store
	grader   *grader.Grader
	searcher search.Searcher
	memory   memory.Recaller // optional
	history  history.Store   // optional
	logger   log.Logger
	opts     Options

	runnable *graph.Runnable[State]
}

// New assembles and compiles the pipeline. memory and transcripts may be
// nil; the pipeline degrades to retrieval-plus-websearch without them.
func New(model llm.Model, embedder llm.Embedder, store vectorstore.Store,
	g *grader.Grader, searcher search.Searcher, mem memory.Recaller,
	transcripts history.Store, logger log.Logger, opts Options) (*Pipeline, error) {

	if model == nil {
		return nil, fmt.Errorf("workflow: model must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("workflow: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("workflow: vector store must not be nil")
	}
	if g == nil {
		return nil, fmt.Errorf("workflow: grader must not be nil")
	}
	if searcher == nil {
		return nil, fmt.Errorf("workflow: searcher must not be nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	opts.defaults()

	p := &Pipeline{
		model:    model,
		embedder: embedder,
		store:    store,
		grader:   g,
		searcher: searcher,
		memory:   mem,
		history:  transcripts,
		logger:   logger,
		opts:     opts,
	}

	sg := graph.NewStateGraph[State]()
	sg.AddNode(NodeSearchMemory, p.searchMemory)
	sg.AddNode(NodeGradeMemory, p.gradeMemory)
	sg.AddNode(NodeRetrieve, p.retrieve)
	sg.AddNode(NodeGradeDocuments, p.gradeDocuments)
	sg.AddNode(NodeWebSearch, p.webSearch)
	sg.AddNode(NodeGenerate, p.generate)

	sg.SetEntryPoint(NodeSearchMemory)
	sg.AddEdge(NodeSearchMemory, NodeGradeMemory)
	sg.AddConditionalEdge(NodeGradeMemory, p.decideAfterMemory)
	sg.AddEdge(NodeRetrieve, NodeGradeDocuments)
	sg.AddConditionalEdge(NodeGradeDocuments, p.decideToGenerate)
	sg.AddEdge(NodeWebSearch, NodeGenerate)
	sg.AddConditionalEdge(NodeGenerate, p.gradeGeneration)

	runnable, err := sg.Compile()
	if err != nil {
		return nil, fmt.Errorf("workflow: compile graph: %w", err)
	}
	p.runnable = runnable
	return p, nil
}

// Run answers a question for the given actor and session, then records the
// accepted turn to memory and the transcript.
func (p *Pipeline) Run(ctx context.Context, actorID, sessionID, question string) (Result, error) {
	final, err := p.runnable.Invoke(ctx, State{
		Question:  question,
		ActorID:   actorID,
		SessionID: sessionID,
	})
	if err != nil {
		return Result{}, err
	}
	p.recordTurn(ctx, final)
	return Result{Answer: final.Generation, Source: final.Source}, nil
}

// Stream answers a question, emitting an event after each pipeline stage.
// The events channel closes when the run finishes.
func (p *Pipeline) Stream(ctx context.Context, actorID, sessionID, question string) (<-chan Event, <-chan error) {
	out := make(chan Event, 16)
	errc := make(chan error, 1)

	events, gerrc := p.runnable.Stream(ctx, State{
		Question:  question,
		ActorID:   actorID,
		SessionID: sessionID,
	})

	go func() {
		defer close(out)
		defer close(errc)

		var final State
		for ev := range events {
			final = ev.State
			select {
			case out <- Event{Node: ev.Node, State: ev.State}:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		if err := <-gerrc; err != nil {
			errc <- err
			return
		}
		p.recordTurn(ctx, final)
	}()

	return out, errc
}

func (p *Pipeline) recordTurn(ctx context.Context, final State) {
	if final.Generation == "" {
		return
	}
	if p.memory != nil {
		err := p.memory.Record(ctx, final.ActorID, final.SessionID, []memory.Message{
			{Role: "USER", Text: final.Question},
			{Role: "ASSISTANT", Text: final.Generation},
		})
		if err != nil {
			p.logger.Warnf("workflow: record memory: %v", err)
		}
	}
	if p.history != nil {
		err := p.history.Append(ctx, history.Turn{
			ActorID:   final.ActorID,
			SessionID: final.SessionID,
			Question:  final.Question,
			Answer:    final.Generation,
			Source:    final.Source,
		})
		if err != nil {
			p.logger.Warnf("workflow: append transcript: %v", err)
		}
	}
}

func (p *Pipeline) searchMemory(ctx context.Context, state State) (State, error) {
	state.Documents = nil
	state.NeedsSearch = false

	if p.memory == nil {
		p.logger.Debugf("workflow: no memory backend, skipping recall")
		return state, nil
	}

	events, err := p.memory.Recall(ctx, state.ActorID, state.SessionID, p.opts.MaxRecall)
	if err != nil {
		p.logger.Warnf("workflow: memory recall: %v", err)
		return state, nil
	}

	for _, ev := range events {
		state.Documents = append(state.Documents, ev.Role+": "+ev.Text)
	}
	p.logger.Infof("workflow: recalled %d memory events", len(events))
	return state, nil
}

func (p *Pipeline) gradeMemory(ctx context.Context, state State) (State, error) {
	if len(state.Documents) == 0 {
		state.NeedsSearch = true
		return state, nil
	}

	var kept []string
	for _, doc := range state.Documents {
		relevant, err := p.grader.Relevant(ctx, state.Question, doc)
		if err != nil {
			p.logger.Warnf("workflow: grade memory event: %v", err)
			continue
		}
		if relevant {
			kept = append(kept, doc)
		}
	}

	state.Documents = kept
	state.NeedsSearch = len(kept) == 0
	if !state.NeedsSearch {
		state.Source = "memory"
		p.logger.Infof("workflow: %d relevant memory events, answering from memory", len(kept))
	}
	return state, nil
}

func (p *Pipeline) decideAfterMemory(_ context.Context, state State) string {
	if state.NeedsSearch {
		return NodeRetrieve
	}
	return NodeGenerate
}

func (p *Pipeline) retrieve(ctx context.Context, state State) (State, error) {
	state.Documents = nil
	state.Source = "documents"

	embedding, err := p.embedder.Embed(ctx, state.Question)
	if err != nil {
		p.logger.Warnf("workflow: embed question: %v", err)
		return state, nil
	}

	results, err := p.store.Search(ctx, embedding, p.opts.TopK)
	if err != nil {
		p.logger.Warnf("workflow: vector search: %v", err)
		return state, nil
	}

	for _, r := range results {
		state.Documents = append(state.Documents, r.Document.Content)
	}
	p.logger.Infof("workflow: retrieved %d chunks", len(results))
	return state, nil
}

func (p *Pipeline) gradeDocuments(ctx context.Context, state State) (State, error) {
	if len(state.Documents) == 0 {
		p.logger.Infof("workflow: nothing retrieved, falling back to web search")
		state.NeedsSearch = true
		return state, nil
	}

	var kept []string
	for _, doc := range state.Documents {
		relevant, err := p.grader.Relevant(ctx, state.Question, doc)
		if err != nil {
			p.logger.Warnf("workflow: grade chunk: %v", err)
			continue
		}
		if relevant {
			kept = append(kept, doc)
		}
	}

	state.Documents = kept
	state.NeedsSearch = len(kept) == 0
	if state.NeedsSearch {
		p.logger.Infof("workflow: no relevant chunks, falling back to web search")
	}
	return state, nil
}

func (p *Pipeline) decideToGenerate(_ context.Context, state State) string {
	if state.NeedsSearch {
		return NodeWebSearch
	}
	return NodeGenerate
}

func (p *Pipeline) webSearch(ctx context.Context, state State) (State, error) {
	state.Source = "websearch"

	results, err := p.searcher.Search(ctx, state.Question)
	if err != nil {
		p.logger.Warnf("workflow: web search: %v", err)
		state.Documents = []string{webSearchFailed}
		return state, nil
	}
	if len(results) == 0 {
		state.Documents = []string{noWebResults}
		return state, nil
	}

	state.Documents = []string{search.FormatResults(results)}
	p.logger.Infof("workflow: web search returned %d results", len(results))
	return state, nil
}

func (p *Pipeline) generate(ctx context.Context, state State) (State, error) {
	state.Attempts++

	promptContext := strings.Join(state.Documents, "\n\n")
	if extra := p.memoryContext(ctx, state); extra != "" {
		promptContext += "\n\nRecent conversation context:\n" + extra
	}

	prompt := fmt.Sprintf("Question: %s\nContext: %s", state.Question, promptContext)
	out, err := p.model.Generate(ctx, llm.Request{System: ragSystemPrompt, Prompt: prompt})
	if err != nil {
		p.logger.Errorf("workflow: generate: %v", err)
		state.Generation = errorAnswer
		return state, nil
	}

	out = strings.TrimSpace(out)
	if out == "" {
		p.logger.Warnf("workflow: empty generation, using fallback answer")
		out = fallbackAnswer
	}
	state.Generation = out
	return state, nil
}

// memoryContext folds a few recent events into the generation prompt so the
// answer can reference earlier turns even when memory was not the source.
func (p *Pipeline) memoryContext(ctx context.Context, state State) string {
	if p.memory == nil {
		return ""
	}
	events, err := p.memory.Recall(ctx, state.ActorID, state.SessionID, p.opts.ContextMax)
	if err != nil {
		p.logger.Warnf("workflow: memory context: %v", err)
		return ""
	}
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, ev.Role+": "+ev.Text)
	}
	return strings.Join(lines, "\n")
}

func (p *Pipeline) gradeGeneration(ctx context.Context, state State) string {
	if strings.Contains(state.Generation, "I don't have enough information") ||
		state.Generation == errorAnswer {
		return graph.END
	}
	if state.Attempts >= maxGenerations {
		p.logger.Warnf("workflow: generation attempts exhausted, accepting answer")
		return graph.END
	}

	facts := strings.Join(state.Documents, "\n\n")
	grounded, err := p.grader.Grounded(ctx, facts, state.Generation)
	if err != nil {
		p.logger.Warnf("workflow: grounding grade: %v", err)
		grounded = true
	}
	if !grounded {
		p.logger.Infof("workflow: answer not grounded, regenerating")
		return NodeGenerate
	}

	useful, err := p.grader.Useful(ctx, state.Question, state.Generation)
	if err != nil {
		p.logger.Warnf("workflow: usefulness grade: %v", err)
		useful = true
	}
	if !useful {
		p.logger.Infof("workflow: answer not useful, trying web search")
		return NodeWebSearch
	}
	return graph.END
}
