package bootstrap

import (
	"fmt"
	"time"

	"github.com/kirillkom/adaptive-rag/internal/config"
	"github.com/kirillkom/adaptive-rag/internal/core/ports"
	"github.com/kirillkom/adaptive-rag/internal/core/usecase"
	"github.com/kirillkom/adaptive-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/adaptive-rag/internal/infrastructure/extractor"
	"github.com/kirillkom/adaptive-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/adaptive-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/adaptive-rag/internal/infrastructure/search/tavily"
	"github.com/kirillkom/adaptive-rag/internal/infrastructure/session/memstore"
	"github.com/kirillkom/adaptive-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/adaptive-rag/internal/observability/metrics"
)

const serviceName = "adaptive-rag"

// App wires every adapter behind the core ports. All state lives in
// process memory; Close has nothing external to release.
type App struct {
	Config  config.Config
	Metrics *metrics.Metrics

	IngestUC ports.DocumentIngestor
	ChatUC   ports.ChatService
}

func New(cfg config.Config) (*App, error) {
	storage, err := localfs.New(cfg.UploadPath)
	if err != nil {
		return nil, fmt.Errorf("init upload storage: %w", err)
	}

	m := metrics.New(serviceName)
	exec := resilience.NewExecutor(resilience.DefaultConfig())

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, exec)
	router := ollama.NewRouter(ollamaClient)
	expander := ollama.NewExpander(ollamaClient, cfg.QueryVariants)
	grader := ollama.NewGrader(ollamaClient)
	checker := ollama.NewChecker(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)

	searcher := tavily.New(cfg.TavilyBaseURL, cfg.TavilyAPIKey, cfg.TavilyMaxResults, exec)

	store := memstore.New()
	splitter := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extract := extractor.New()

	ingestUC := usecase.NewIngestDocumentUseCase(storage, extract, splitter, embedder, store)
	chatUC := usecase.NewChatWorkflow(
		router,
		expander,
		embedder,
		store,
		grader,
		searcher,
		generator,
		checker,
		m.WorkflowRecorder(serviceName),
		usecase.WorkflowLimits{
			QueryVariants:  cfg.QueryVariants,
			VariantTopK:    cfg.VariantTopK,
			FusedTopK:      cfg.FusedTopK,
			FusionRRFK:     cfg.FusionRRFK,
			MaxCorrections: cfg.MaxCorrections,
			HistoryLimit:   cfg.HistoryLimit,
		},
	)

	return &App{
		Config:   cfg,
		Metrics:  m,
		IngestUC: ingestUC,
		ChatUC:   chatUC,
	}, nil
}

// RequestTimeout converts the configured per-request budget.
func (a *App) RequestTimeout() time.Duration {
	return time.Duration(a.Config.RequestTimeoutSeconds) * time.Second
}
