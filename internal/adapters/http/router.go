package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/adaptive-rag/internal/core/ports"
	"github.com/kirillkom/adaptive-rag/internal/observability/metrics"
)

// Config carries the traffic-control settings for the HTTP surface.
// Zero values disable the corresponding gate.
type Config struct {
	Service        string
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	MaxConcurrent  int
}

type Router struct {
	ingestor ports.DocumentIngestor
	chat     ports.ChatService
	metrics  *metrics.Metrics
	cfg      Config
}

func NewRouter(
	ingestor ports.DocumentIngestor,
	chat ports.ChatService,
	m *metrics.Metrics,
	cfg Config,
) *Router {
	return &Router{
		ingestor: ingestor,
		chat:     chat,
		metrics:  m,
		cfg:      cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/api/upload", rt.uploadDocument)
	mux.HandleFunc("/api/chat", rt.chatTurn)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.cfg.MaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.MaxConcurrent, 50*time.Millisecond)
	}
	if rt.cfg.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.Service, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	sessionID := strings.TrimSpace(r.FormValue("session_id"))
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "form field 'session_id' is required"})
		return
	}

	ctx, cancel := rt.requestContext(r)
	defer cancel()

	doc, err := rt.ingestor.Upload(
		ctx,
		sessionID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordIngest(rt.cfg.Service, doc.Chunks)
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) chatTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
		Question  string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := rt.requestContext(r)
	defer cancel()

	start := time.Now()
	result, err := rt.chat.Chat(ctx, req.SessionID, req.Question)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordTurn(
			rt.cfg.Service,
			string(result.Source),
			result.HallucinationGrade,
			result.Retries,
			time.Since(start),
		)
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if rt.cfg.RequestTimeout <= 0 {
		return r.Context(), func() {}
	}
	return context.WithTimeout(r.Context(), rt.cfg.RequestTimeout)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
