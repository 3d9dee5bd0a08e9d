package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/adaptive-rag/internal/core/domain"
	"github.com/kirillkom/adaptive-rag/internal/infrastructure/resilience"
)

// Client talks to one Ollama server and backs every model capability the
// workflow consumes: intent routing, query expansion, relevance and
// groundedness grading, answer generation, and embeddings.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, genModel, embedModel string, exec *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		exec:       exec,
	}
}

// Router classifies a question into a workflow route.
type Router struct {
	client *Client
}

func NewRouter(client *Client) *Router {
	return &Router{client: client}
}

func (r *Router) RouteQuestion(ctx context.Context, question string, history []domain.ConversationTurn) (domain.Route, error) {
	respText, err := r.client.generateJSON(ctx, "route", buildRouterPrompt(question, history))
	if err != nil {
		return "", err
	}

	var result struct {
		Datasource string `json:"datasource"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return "", fmt.Errorf("parse route json: %w", err)
	}

	route := domain.Route(strings.ToLower(strings.TrimSpace(result.Datasource)))
	if !route.Valid() {
		return domain.RouteGenerate, nil
	}
	return route, nil
}

// Expander generates alternative phrasings for retrieval fan-out.
type Expander struct {
	client   *Client
	variants int
}

func NewExpander(client *Client, variants int) *Expander {
	if variants <= 0 {
		variants = 3
	}
	return &Expander{client: client, variants: variants}
}

func (e *Expander) ExpandQuery(ctx context.Context, question string) ([]string, error) {
	respText, err := e.client.generateJSON(ctx, "expand", buildExpandPrompt(question, e.variants))
	if err != nil {
		return nil, err
	}

	var result struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return nil, fmt.Errorf("parse expansion json: %w", err)
	}
	if len(result.Questions) > e.variants {
		result.Questions = result.Questions[:e.variants]
	}
	return result.Questions, nil
}

// Grader answers the binary relevance question for one document.
type Grader struct {
	client *Client
}

func NewGrader(client *Client) *Grader {
	return &Grader{client: client}
}

func (g *Grader) GradeRelevance(ctx context.Context, question, document string) (bool, error) {
	respText, err := g.client.generateJSON(ctx, "grade", buildRelevancePrompt(question, document))
	if err != nil {
		return false, err
	}
	return parseBinaryScore(respText, "relevance")
}

// Checker answers the binary groundedness question for a generated answer.
type Checker struct {
	client *Client
}

func NewChecker(client *Client) *Checker {
	return &Checker{client: client}
}

func (c *Checker) CheckGrounding(ctx context.Context, answer string, facts []string) (bool, error) {
	respText, err := c.client.generateJSON(ctx, "check", buildGroundingPrompt(answer, facts))
	if err != nil {
		return false, err
	}
	return parseBinaryScore(respText, "grounding")
}

// Generator creates the final user-facing answer.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, history []domain.ConversationTurn, contextDocs []string) (string, error) {
	return g.client.generateText(ctx, "generate", buildAnswerPrompt(question, history, contextDocs))
}

// Embedder builds vectors for chunks and query text.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (c *Client) generateJSON(ctx context.Context, operation, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	return c.generate(ctx, operation, reqBody)
}

func (c *Client) generateText(ctx context.Context, operation, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	}
	return c.generate(ctx, operation, reqBody)
}

func (c *Client) generate(ctx context.Context, operation string, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, operation); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func parseBinaryScore(raw, operation string) (bool, error) {
	var result struct {
		BinaryScore string `json:"binary_score"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &result); err != nil {
		return false, fmt.Errorf("parse %s json: %w", operation, err)
	}
	return strings.EqualFold(strings.TrimSpace(result.BinaryScore), "yes"), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
