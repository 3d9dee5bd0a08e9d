package domain

// Route is the retrieval strategy selected for one chat turn.
type Route string

const (
	RouteVectorstore Route = "vectorstore"
	RouteWebSearch   Route = "web_search"
	RouteGenerate    Route = "generate"
)

func (r Route) Valid() bool {
	switch r {
	case RouteVectorstore, RouteWebSearch, RouteGenerate:
		return true
	default:
		return false
	}
}

// WorkflowState carries everything one turn mutates while moving through the
// workflow. It is created at ROUTE entry and discarded at DONE; nothing in it
// survives across turns.
type WorkflowState struct {
	SessionID string
	Question  string

	Route    Route
	Context  []string
	Sources  []ScoredChunk
	Answer   string
	Grounded bool
	Retries  int
}

// TurnResult is what a completed turn reports back to the caller. Source is
// the route that produced the final context after any fallback or correction
// transitions. HallucinationGrade is "yes" when the returned answer failed
// the groundedness check even after the bounded correction loop.
type TurnResult struct {
	Answer             string        `json:"answer"`
	Source             Route         `json:"source"`
	HallucinationGrade string        `json:"hallucination_grade"`
	Retries            int           `json:"retries"`
	Sources            []ScoredChunk `json:"sources,omitempty"`
}
