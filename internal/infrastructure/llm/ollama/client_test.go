package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/adaptive-rag/internal/core/domain"
)

type generateCall struct {
	path   string
	model  string
	prompt string
	format string
	input  []string
}

func newOllamaServer(t *testing.T, response string, embeddings [][]float32) (*httptest.Server, *[]generateCall) {
	t.Helper()
	calls := &[]generateCall{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		call := generateCall{path: r.URL.Path}
		call.model, _ = payload["model"].(string)
		call.prompt, _ = payload["prompt"].(string)
		call.format, _ = payload["format"].(string)
		if raw, ok := payload["input"].([]any); ok {
			for _, v := range raw {
				s, _ := v.(string)
				call.input = append(call.input, s)
			}
		}
		*calls = append(*calls, call)

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/embed":
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"response": response})
		}
	}))
	t.Cleanup(server.Close)
	return server, calls
}

func TestRouterParsesDatasource(t *testing.T) {
	server, calls := newOllamaServer(t, `{"datasource": "web_search"}`, nil)
	client := New(server.URL, "test-gen", "test-embed", nil)

	route, err := NewRouter(client).RouteQuestion(context.Background(), "latest release notes?", nil)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if route != domain.RouteWebSearch {
		t.Fatalf("route: got %q, want web_search", route)
	}

	call := (*calls)[0]
	if call.path != "/api/generate" || call.model != "test-gen" {
		t.Fatalf("request wrong: path %q model %q", call.path, call.model)
	}
	if call.format != "json" {
		t.Fatalf("router must request json format, got %q", call.format)
	}
	if !strings.Contains(call.prompt, "latest release notes?") {
		t.Fatalf("prompt missing question: %q", call.prompt)
	}
}

func TestRouterUnknownDatasourceDegradesToGenerate(t *testing.T) {
	server, _ := newOllamaServer(t, `{"datasource": "sql_database"}`, nil)
	client := New(server.URL, "g", "e", nil)

	route, err := NewRouter(client).RouteQuestion(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if route != domain.RouteGenerate {
		t.Fatalf("unknown datasource must degrade to generate, got %q", route)
	}
}

func TestRouterIncludesHistoryInPrompt(t *testing.T) {
	server, calls := newOllamaServer(t, `{"datasource": "generate"}`, nil)
	client := New(server.URL, "g", "e", nil)

	history := []domain.ConversationTurn{
		{Role: domain.RoleUser, Text: "earlier question"},
		{Role: domain.RoleAssistant, Text: "earlier answer"},
	}
	if _, err := NewRouter(client).RouteQuestion(context.Background(), "follow up", history); err != nil {
		t.Fatalf("route: %v", err)
	}
	prompt := (*calls)[0].prompt
	if !strings.Contains(prompt, "earlier question") || !strings.Contains(prompt, "earlier answer") {
		t.Fatalf("history missing from prompt: %q", prompt)
	}
}

func TestExpanderCapsVariants(t *testing.T) {
	server, _ := newOllamaServer(t, `{"questions": ["v1", "v2", "v3", "v4", "v5"]}`, nil)
	client := New(server.URL, "g", "e", nil)

	variants, err := NewExpander(client, 3).ExpandQuery(context.Background(), "original")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(variants) != 3 {
		t.Fatalf("expected 3 variants, got %d: %v", len(variants), variants)
	}
	if variants[0] != "v1" || variants[2] != "v3" {
		t.Fatalf("variant order wrong: %v", variants)
	}
}

func TestGraderReadsBinaryScore(t *testing.T) {
	server, calls := newOllamaServer(t, `{"binary_score": "Yes"}`, nil)
	client := New(server.URL, "g", "e", nil)

	relevant, err := NewGrader(client).GradeRelevance(context.Background(), "question", "document body")
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if !relevant {
		t.Fatalf("expected relevant for binary_score yes")
	}
	if prompt := (*calls)[0].prompt; !strings.Contains(prompt, "document body") {
		t.Fatalf("prompt missing document: %q", prompt)
	}
}

func TestCheckerNoMeansUngrounded(t *testing.T) {
	server, calls := newOllamaServer(t, `{"binary_score": "no"}`, nil)
	client := New(server.URL, "g", "e", nil)

	grounded, err := NewChecker(client).CheckGrounding(context.Background(), "an answer", []string{"fact one", "fact two"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if grounded {
		t.Fatalf("binary_score no must mean ungrounded")
	}
	prompt := (*calls)[0].prompt
	if !strings.Contains(prompt, "fact one") || !strings.Contains(prompt, "an answer") {
		t.Fatalf("prompt missing facts or answer: %q", prompt)
	}
}

func TestGeneratorReturnsPlainText(t *testing.T) {
	server, calls := newOllamaServer(t, "  a plain answer  ", nil)
	client := New(server.URL, "g", "e", nil)

	answer, err := NewGenerator(client).GenerateAnswer(context.Background(), "q", nil, []string{"ctx doc"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if answer != "a plain answer" {
		t.Fatalf("answer: got %q", answer)
	}
	call := (*calls)[0]
	if call.format == "json" {
		t.Fatalf("answer generation must not force json format")
	}
	if !strings.Contains(call.prompt, "ctx doc") {
		t.Fatalf("prompt missing context: %q", call.prompt)
	}
}

func TestEmbedderBatchesInput(t *testing.T) {
	server, calls := newOllamaServer(t, "", [][]float32{{1, 2}, {3, 4}})
	client := New(server.URL, "g", "test-embed", nil)

	vectors, err := NewEmbedder(client).Embed(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vectors) != 2 || vectors[1][0] != 3 {
		t.Fatalf("vectors wrong: %v", vectors)
	}

	call := (*calls)[0]
	if call.path != "/api/embed" || call.model != "test-embed" {
		t.Fatalf("request wrong: path %q model %q", call.path, call.model)
	}
	if len(call.input) != 2 || call.input[0] != "one" {
		t.Fatalf("input wrong: %v", call.input)
	}
}

func TestEmbedderEmptyInputShortCircuits(t *testing.T) {
	client := New("http://127.0.0.1:1", "g", "e", nil)
	vectors, err := NewEmbedder(client).Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if vectors != nil {
		t.Fatalf("expected nil vectors, got %v", vectors)
	}
}

func TestServerErrorBecomesTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	client := New(server.URL, "g", "e", nil)

	_, err := NewGenerator(client).GenerateAnswer(context.Background(), "q", nil, nil)
	if err == nil {
		t.Fatalf("expected error for 503")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("retryable status must map to temporary, got %v", err)
	}
}

func TestClientErrorIsNotTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unknown model", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)
	client := New(server.URL, "g", "e", nil)

	_, err := NewGenerator(client).GenerateAnswer(context.Background(), "q", nil, nil)
	if err == nil {
		t.Fatalf("expected error for 404")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("404 must not map to temporary: %v", err)
	}
}

func TestParseBinaryScoreToleratesChatter(t *testing.T) {
	raw := "Sure! Here is the JSON you asked for:\n{\"binary_score\": \"yes\"}\nHope that helps."
	got, err := parseBinaryScore(raw, "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got {
		t.Fatalf("expected yes through surrounding chatter")
	}
}
