package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	OllamaURL        string `yaml:"ollama_url"`
	OllamaGenModel   string `yaml:"ollama_gen_model"`
	OllamaEmbedModel string `yaml:"ollama_embed_model"`

	TavilyBaseURL    string `yaml:"tavily_base_url"`
	TavilyAPIKey     string `yaml:"tavily_api_key"`
	TavilyMaxResults int    `yaml:"tavily_max_results"`

	UploadPath string `yaml:"upload_path"`

	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	QueryVariants  int `yaml:"query_variants"`
	VariantTopK    int `yaml:"variant_top_k"`
	FusedTopK      int `yaml:"fused_top_k"`
	FusionRRFK     int `yaml:"fusion_rrf_k"`
	MaxCorrections int `yaml:"max_corrections"`
	HistoryLimit   int `yaml:"history_limit"`

	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
	APIRateLimitRPS       float64 `yaml:"api_rate_limit_rps"`
	APIRateLimitBurst     int     `yaml:"api_rate_limit_burst"`
	APIMaxConcurrent      int     `yaml:"api_max_concurrent"`
}

func defaults() Config {
	return Config{
		APIPort:  "8080",
		LogLevel: "info",

		OllamaURL:        "http://localhost:11434",
		OllamaGenModel:   "llama3.1:8b",
		OllamaEmbedModel: "nomic-embed-text",

		TavilyBaseURL:    "https://api.tavily.com",
		TavilyMaxResults: 3,

		UploadPath: "./data/uploads",

		ChunkSize:    1000,
		ChunkOverlap: 200,

		QueryVariants:  3,
		VariantTopK:    5,
		FusedTopK:      5,
		FusionRRFK:     60,
		MaxCorrections: 3,
		HistoryLimit:   12,

		RequestTimeoutSeconds: 120,
		APIRateLimitRPS:       10,
		APIRateLimitBurst:     20,
		APIMaxConcurrent:      32,
	}
}

// Load builds the config in three layers: compiled defaults, an optional
// YAML file named by CONFIG_FILE, then environment variable overrides.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.APIPort = envString("API_PORT", cfg.APIPort)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)

	cfg.OllamaURL = envString("OLLAMA_URL", cfg.OllamaURL)
	cfg.OllamaGenModel = envString("OLLAMA_GEN_MODEL", cfg.OllamaGenModel)
	cfg.OllamaEmbedModel = envString("OLLAMA_EMBED_MODEL", cfg.OllamaEmbedModel)

	cfg.TavilyBaseURL = envString("TAVILY_BASE_URL", cfg.TavilyBaseURL)
	cfg.TavilyAPIKey = envString("TAVILY_API_KEY", cfg.TavilyAPIKey)
	cfg.TavilyMaxResults = envInt("TAVILY_MAX_RESULTS", cfg.TavilyMaxResults)

	cfg.UploadPath = envString("UPLOAD_PATH", cfg.UploadPath)

	cfg.ChunkSize = envInt("CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = envInt("CHUNK_OVERLAP", cfg.ChunkOverlap)

	cfg.QueryVariants = envInt("QUERY_VARIANTS", cfg.QueryVariants)
	cfg.VariantTopK = envInt("VARIANT_TOP_K", cfg.VariantTopK)
	cfg.FusedTopK = envInt("FUSED_TOP_K", cfg.FusedTopK)
	cfg.FusionRRFK = envInt("FUSION_RRF_K", cfg.FusionRRFK)
	cfg.MaxCorrections = envInt("MAX_CORRECTIONS", cfg.MaxCorrections)
	cfg.HistoryLimit = envInt("HISTORY_LIMIT", cfg.HistoryLimit)

	cfg.RequestTimeoutSeconds = envInt("REQUEST_TIMEOUT_SECONDS", cfg.RequestTimeoutSeconds)
	cfg.APIRateLimitRPS = envFloat("API_RATE_LIMIT_RPS", cfg.APIRateLimitRPS)
	cfg.APIRateLimitBurst = envInt("API_RATE_LIMIT_BURST", cfg.APIRateLimitBurst)
	cfg.APIMaxConcurrent = envInt("API_MAX_CONCURRENT", cfg.APIMaxConcurrent)

	return cfg, nil
}

func envString(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
