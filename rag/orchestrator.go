package rag

import (
	"context"
	"time"

	"github.com/camilo-ai/camilo/rag/types"
	"github.com/google/uuid"
	"github.com/mudler/xlog"
)

// TurnResult is what a successful turn returns to the caller.
type TurnResult struct {
	Reply   string        `json:"reply"`
	LinkMap types.LinkMap `json:"linkData"`
}

// ChatOrchestrator drives one chat turn end to end.
type ChatOrchestrator struct {
	ranker          *ContextRanker
	assembler       *PromptAssembler
	completer       Completer
	recorder        TurnRecorder
	completionModel string
	personaName     string
	callTimeout     time.Duration
	now             func() time.Time
}

type OrchestratorOption func(*ChatOrchestrator)

func WithCompletionModel(model string) OrchestratorOption {
	return func(o *ChatOrchestrator) { o.completionModel = model }
}

func WithPersonaName(name string) OrchestratorOption {
	return func(o *ChatOrchestrator) { o.personaName = name }
}

// WithCompletionTimeout bounds the completion and persistence calls.
func WithCompletionTimeout(d time.Duration) OrchestratorOption {
	return func(o *ChatOrchestrator) { o.callTimeout = d }
}

// WithClock overrides the clock used for the prompt date.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *ChatOrchestrator) { o.now = now }
}

func NewChatOrchestrator(ranker *ContextRanker, completer Completer, recorder TurnRecorder, opts ...OrchestratorOption) *ChatOrchestrator {
	o := &ChatOrchestrator{
		ranker:          ranker,
		completer:       completer,
		recorder:        recorder,
		completionModel: "o1",
		personaName:     defaultPersonaName,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.assembler = NewPromptAssembler(o.personaName)
	return o
}

// HandleTurn answers the last user message of transcript.
func (o *ChatOrchestrator) HandleTurn(ctx context.Context, transcript []Message) (*TurnResult, error) {
	turnID := uuid.New().String()

	queries := SelectQueryMessages(transcript, o.ranker.maxQueries)
	if len(queries) == 0 {
		return nil, newTurnError(KindInconsistentInput, "no user messages in transcript")
	}

	ranked, err := o.ranker.Rank(ctx, queries)
	if err != nil {
		return nil, err
	}
	links := ranked.LinkMap()

	history, current, err := SplitTranscript(transcript)
	if err != nil {
		xlog.Error("Inconsistent transcript, answering without a current question", "turn", turnID, "error", err)
	}

	prompt := o.assembler.Assemble(PromptInput{
		Persona:         PersonaDirective(o.personaName),
		History:         history,
		Segments:        ranked.Segments,
		Questions:       ranked.Questions,
		Conversations:   ranked.Conversations,
		CurrentQuestion: current,
		CurrentDate:     o.now().Format(DateLayout),
	})
	xlog.Debug("Assembled prompt", "turn", turnID, "length", len(prompt))

	reply, err := o.complete(ctx, prompt)
	if err != nil {
		return nil, newTurnError(KindCompletion, "completing prompt: %w", err)
	}

	question := queries[len(queries)-1].Content
	if err := o.record(ctx, question, reply); err != nil {
		xlog.Error("Failed to record turn", "turn", turnID, "kind", KindPersistence, "error", err)
	}

	xlog.Info("Turn completed", "turn", turnID, "references", len(links))

	return &TurnResult{Reply: reply, LinkMap: links}, nil
}

func (o *ChatOrchestrator) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := o.scoped(ctx)
	defer cancel()
	return o.completer.Complete(ctx, prompt, o.completionModel)
}

func (o *ChatOrchestrator) record(ctx context.Context, question, answer string) error {
	if o.recorder == nil {
		return nil
	}
	ctx, cancel := o.scoped(ctx)
	defer cancel()
	return o.recorder.RecordTurn(ctx, question, answer)
}

func (o *ChatOrchestrator) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.callTimeout)
}
