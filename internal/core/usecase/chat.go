package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/adaptive-rag/internal/core/domain"
	"github.com/kirillkom/adaptive-rag/internal/core/ports"
)

// webSearchEmptyContext stands in for the context set when the search
// provider returns no usable snippets, so generation never runs against an
// empty web context.
const webSearchEmptyContext = "No relevant information found."

type workflowStep int

const (
	stepRoute workflowStep = iota
	stepRetrieve
	stepGrade
	stepWebSearch
	stepGenerate
	stepCheck
	stepDone
)

func (s workflowStep) String() string {
	switch s {
	case stepRoute:
		return "route"
	case stepRetrieve:
		return "retrieve"
	case stepGrade:
		return "grade"
	case stepWebSearch:
		return "web_search"
	case stepGenerate:
		return "generate"
	case stepCheck:
		return "check"
	case stepDone:
		return "done"
	default:
		return "unknown"
	}
}

// WorkflowLimits bounds the adaptive workflow. MaxCorrections is the number
// of hallucination-correction cycles allowed per turn; the grade-to-web
// fallback is not counted against it.
type WorkflowLimits struct {
	QueryVariants  int
	VariantTopK    int
	FusedTopK      int
	FusionRRFK     int
	MaxCorrections int
	HistoryLimit   int
}

func (l WorkflowLimits) normalize() WorkflowLimits {
	out := l
	if out.QueryVariants <= 0 {
		out.QueryVariants = 3
	}
	if out.VariantTopK <= 0 {
		out.VariantTopK = 5
	}
	if out.FusedTopK <= 0 {
		out.FusedTopK = 5
	}
	if out.FusionRRFK <= 0 {
		out.FusionRRFK = 60
	}
	if out.MaxCorrections <= 0 {
		out.MaxCorrections = 3
	}
	if out.HistoryLimit <= 0 {
		out.HistoryLimit = 12
	}
	return out
}

// ChatWorkflow drives one chat turn through the cyclic route/retrieve/grade/
// search/generate/check state machine.
type ChatWorkflow struct {
	router    ports.IntentRouter
	expander  ports.QueryExpander
	embedder  ports.Embedder
	store     ports.SessionStore
	grader    ports.RelevanceGrader
	searcher  ports.WebSearcher
	generator ports.AnswerGenerator
	checker   ports.GroundednessChecker
	observer  ports.WorkflowObserver
	limits    WorkflowLimits
}

// NewChatWorkflow assembles the workflow. observer may be nil.
func NewChatWorkflow(
	router ports.IntentRouter,
	expander ports.QueryExpander,
	embedder ports.Embedder,
	store ports.SessionStore,
	grader ports.RelevanceGrader,
	searcher ports.WebSearcher,
	generator ports.AnswerGenerator,
	checker ports.GroundednessChecker,
	observer ports.WorkflowObserver,
	limits WorkflowLimits,
) *ChatWorkflow {
	return &ChatWorkflow{
		router:    router,
		expander:  expander,
		embedder:  embedder,
		store:     store,
		grader:    grader,
		searcher:  searcher,
		generator: generator,
		checker:   checker,
		observer:  observer,
		limits:    limits.normalize(),
	}
}

// Chat executes the full workflow for one turn. History is committed only
// after the workflow completes, as a single atomic exchange, so an aborted
// turn leaves no partial writes in the session store.
func (w *ChatWorkflow) Chat(ctx context.Context, sessionID, question string) (*domain.TurnResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	question = strings.TrimSpace(question)
	if sessionID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("session_id is required"))
	}
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("question is required"))
	}

	history, err := w.store.History(ctx, sessionID, w.limits.HistoryLimit)
	if err != nil && !domain.IsKind(err, domain.ErrSessionNotFound) {
		return nil, fmt.Errorf("load history: %w", err)
	}

	state := &domain.WorkflowState{
		SessionID: sessionID,
		Question:  question,
	}

	for step := stepRoute; step != stepDone; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := w.advance(ctx, step, state, history)
		if err != nil {
			return nil, err
		}
		slog.Debug("workflow_transition",
			"session_id", sessionID,
			"from", step.String(),
			"to", next.String(),
			"route", string(state.Route),
			"retries", state.Retries,
		)
		step = next
	}

	exchange := []domain.ConversationTurn{
		{Role: domain.RoleUser, Text: question},
		{Role: domain.RoleAssistant, Text: state.Answer},
	}
	if err := w.store.AppendExchange(ctx, sessionID, exchange...); err != nil {
		return nil, fmt.Errorf("append exchange: %w", err)
	}

	grade := "no"
	if !state.Grounded {
		grade = "yes"
	}
	return &domain.TurnResult{
		Answer:             state.Answer,
		Source:             state.Route,
		HallucinationGrade: grade,
		Retries:            state.Retries,
		Sources:            state.Sources,
	}, nil
}

func (w *ChatWorkflow) notifyRetrieval(fused, kept int) {
	if w.observer != nil {
		w.observer.RetrievalSizes(fused, kept)
	}
}

func (w *ChatWorkflow) notifyFallback(trigger string) {
	if w.observer != nil {
		w.observer.WebFallback(trigger)
	}
}

func (w *ChatWorkflow) advance(
	ctx context.Context,
	step workflowStep,
	state *domain.WorkflowState,
	history []domain.ConversationTurn,
) (workflowStep, error) {
	switch step {
	case stepRoute:
		return w.route(ctx, state, history)
	case stepRetrieve:
		return w.retrieve(ctx, state)
	case stepGrade:
		return w.grade(ctx, state)
	case stepWebSearch:
		return w.webSearch(ctx, state)
	case stepGenerate:
		return w.generate(ctx, state, history)
	case stepCheck:
		return w.check(ctx, state)
	default:
		return stepDone, fmt.Errorf("workflow reached invalid step %d", step)
	}
}

// route classifies the question and resets all per-turn transient state.
func (w *ChatWorkflow) route(ctx context.Context, state *domain.WorkflowState, history []domain.ConversationTurn) (workflowStep, error) {
	state.Retries = 0
	state.Context = nil
	state.Sources = nil
	state.Answer = ""
	state.Grounded = false

	route, err := w.router.RouteQuestion(ctx, state.Question, history)
	if err != nil {
		return stepDone, fmt.Errorf("route question: %w", err)
	}
	if !route.Valid() {
		route = domain.RouteGenerate
	}
	state.Route = route

	switch route {
	case domain.RouteVectorstore:
		if !w.store.Exists(state.SessionID) {
			return stepDone, domain.WrapError(domain.ErrSessionNotFound, "route",
				fmt.Errorf("no index for session %q", state.SessionID))
		}
		return stepRetrieve, nil
	case domain.RouteWebSearch:
		return stepWebSearch, nil
	default:
		return stepGenerate, nil
	}
}

func (w *ChatWorkflow) retrieve(ctx context.Context, state *domain.WorkflowState) (workflowStep, error) {
	fused, err := w.retrieveFused(ctx, state.SessionID, state.Question)
	if err != nil {
		return stepDone, err
	}
	state.Sources = fused
	return stepGrade, nil
}

// grade filters the fused ranking one document at a time. All documents
// filtered out (including an empty ranking) triggers the one-time
// web-search fallback; that transition does not touch the retry counter.
func (w *ChatWorkflow) grade(ctx context.Context, state *domain.WorkflowState) (workflowStep, error) {
	kept := make([]domain.ScoredChunk, 0, len(state.Sources))
	for _, candidate := range state.Sources {
		relevant, err := w.grader.GradeRelevance(ctx, state.Question, candidate.Chunk.Text)
		if err != nil {
			return stepDone, fmt.Errorf("grade document: %w", err)
		}
		if relevant {
			kept = append(kept, candidate)
		}
	}
	slog.Debug("grade_documents", "session_id", state.SessionID, "candidates", len(state.Sources), "kept", len(kept))
	w.notifyRetrieval(len(state.Sources), len(kept))

	if len(kept) == 0 {
		state.Sources = nil
		w.notifyFallback("no_relevant_documents")
		return stepWebSearch, nil
	}
	state.Sources = kept
	state.Context = make([]string, 0, len(kept))
	for _, c := range kept {
		state.Context = append(state.Context, c.Chunk.Text)
	}
	return stepGenerate, nil
}

func (w *ChatWorkflow) webSearch(ctx context.Context, state *domain.WorkflowState) (workflowStep, error) {
	snippets, err := w.searcher.Search(ctx, state.Question)
	if err != nil {
		return stepDone, fmt.Errorf("web search: %w", err)
	}
	if len(snippets) == 0 {
		snippets = []string{webSearchEmptyContext}
	}
	state.Route = domain.RouteWebSearch
	state.Context = snippets
	state.Sources = nil
	return stepGenerate, nil
}

func (w *ChatWorkflow) generate(ctx context.Context, state *domain.WorkflowState, history []domain.ConversationTurn) (workflowStep, error) {
	answer, err := w.generator.GenerateAnswer(ctx, state.Question, history, state.Context)
	if err != nil {
		return stepDone, fmt.Errorf("generate answer: %w", err)
	}
	state.Answer = answer
	return stepCheck, nil
}

// check verifies the answer against the context that produced it. The
// direct-generation route has no external context to verify against, so the
// check is skipped and the answer counts as grounded. A failed check forces
// a context refresh through web search, never a re-fusion of the same
// vectorstore results, and at most MaxCorrections times per turn.
func (w *ChatWorkflow) check(ctx context.Context, state *domain.WorkflowState) (workflowStep, error) {
	if state.Route == domain.RouteGenerate || len(state.Context) == 0 {
		state.Grounded = true
		return stepDone, nil
	}

	grounded, err := w.checker.CheckGrounding(ctx, state.Answer, state.Context)
	if err != nil {
		return stepDone, fmt.Errorf("check grounding: %w", err)
	}
	if grounded {
		state.Grounded = true
		return stepDone, nil
	}

	if state.Retries >= w.limits.MaxCorrections {
		state.Grounded = false
		return stepDone, nil
	}
	state.Retries++
	w.notifyFallback("hallucination")
	slog.Info("hallucination_retry",
		"session_id", state.SessionID,
		"retry", state.Retries,
		"max", w.limits.MaxCorrections,
	)
	return stepWebSearch, nil
}
