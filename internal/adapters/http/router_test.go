package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/adaptive-rag/internal/core/domain"
	"github.com/kirillkom/adaptive-rag/internal/observability/metrics"
)

type fakeIngestor struct {
	doc       *domain.Document
	err       error
	sessionID string
	filename  string
}

func (f *fakeIngestor) Upload(_ context.Context, sessionID, filename, _ string, body io.Reader) (*domain.Document, error) {
	f.sessionID = sessionID
	f.filename = filename
	_, _ = io.Copy(io.Discard, body)
	return f.doc, f.err
}

type fakeChatService struct {
	result *domain.TurnResult
	err    error
}

func (f *fakeChatService) Chat(_ context.Context, _, _ string) (*domain.TurnResult, error) {
	return f.result, f.err
}

func newTestRouter(ingestor *fakeIngestor, chat *fakeChatService, cfg Config) http.Handler {
	if cfg.Service == "" {
		cfg.Service = "test"
	}
	return NewRouter(ingestor, chat, metrics.New(cfg.Service), cfg).Handler()
}

func multipartUpload(t *testing.T, sessionID, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if sessionID != "" {
		if err := writer.WriteField("session_id", sessionID); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	handler := newTestRouter(&fakeIngestor{}, &fakeChatService{}, Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestUploadDocument(t *testing.T) {
	ingestor := &fakeIngestor{
		doc: &domain.Document{ID: "doc-1", SessionID: "s1", Filename: "notes.txt", Chunks: 3},
	}
	handler := newTestRouter(ingestor, &fakeChatService{}, Config{})

	body, contentType := multipartUpload(t, "s1", "notes.txt", "some text")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var doc domain.Document
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.ID != "doc-1" || doc.Chunks != 3 {
		t.Fatalf("unexpected document payload: %+v", doc)
	}
	if ingestor.sessionID != "s1" || ingestor.filename != "notes.txt" {
		t.Fatalf("ingestor received session %q file %q", ingestor.sessionID, ingestor.filename)
	}
}

func TestUploadValidation(t *testing.T) {
	handler := newTestRouter(&fakeIngestor{}, &fakeChatService{}, Config{})

	// No file part.
	body, contentType := multipartUpload(t, "s1", "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("missing file: expected 400, got %d", res.Code)
	}

	// No session_id.
	body, contentType = multipartUpload(t, "", "notes.txt", "text")
	req = httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("missing session_id: expected 400, got %d", res.Code)
	}

	// Wrong method.
	req = httptest.NewRequest(http.MethodGet, "/api/upload", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET upload: expected 405, got %d", res.Code)
	}
}

func TestChatTurn(t *testing.T) {
	chat := &fakeChatService{
		result: &domain.TurnResult{
			Answer:             "the answer",
			Source:             domain.RouteVectorstore,
			HallucinationGrade: "no",
			Retries:            0,
		},
	}
	handler := newTestRouter(&fakeIngestor{}, chat, Config{})

	payload := `{"session_id":"s1","question":"what is indexed?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var result domain.TurnResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Answer != "the answer" || result.Source != domain.RouteVectorstore {
		t.Fatalf("unexpected turn payload: %+v", result)
	}
	if result.HallucinationGrade != "no" {
		t.Fatalf("grade: got %q", result.HallucinationGrade)
	}
}

func TestChatErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("bad")), http.StatusBadRequest},
		{"session not found", domain.WrapError(domain.ErrSessionNotFound, "route", errors.New("gone")), http.StatusNotFound},
		{"temporary", domain.WrapError(domain.ErrTemporary, "ollama", errors.New("down")), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestRouter(&fakeIngestor{}, &fakeChatService{err: tc.err}, Config{})

			req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"session_id":"s1","question":"q"}`))
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
			var payload map[string]string
			if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if payload["error"] == "" {
				t.Fatalf("expected error message in body")
			}
		})
	}
}

func TestChatRejectsMalformedJSON(t *testing.T) {
	handler := newTestRouter(&fakeIngestor{}, &fakeChatService{}, Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	handler := newTestRouter(&fakeIngestor{}, &fakeChatService{}, Config{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "arag_http_requests_total") {
		t.Fatalf("expected registered metrics in exposition output")
	}
}

func TestRequestTimeoutAppliedToChat(t *testing.T) {
	blocked := make(chan struct{})
	chatFn := chatFunc(func(ctx context.Context, _, _ string) (*domain.TurnResult, error) {
		select {
		case <-ctx.Done():
			close(blocked)
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
			return &domain.TurnResult{}, nil
		}
	})

	router := NewRouter(&fakeIngestor{}, chatFn, metrics.New("test"), Config{
		Service:        "test",
		RequestTimeout: 10 * time.Millisecond,
	}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"session_id":"s1","question":"q"}`))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	select {
	case <-blocked:
	default:
		t.Fatalf("handler context was not cancelled by the request timeout")
	}
	if res.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", res.Code)
	}
}

type chatFunc func(ctx context.Context, sessionID, question string) (*domain.TurnResult, error)

func (f chatFunc) Chat(ctx context.Context, sessionID, question string) (*domain.TurnResult, error) {
	return f(ctx, sessionID, question)
}
