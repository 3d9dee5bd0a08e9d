package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/adaptive-rag/internal/core/domain"
	"github.com/kirillkom/adaptive-rag/internal/infrastructure/resilience"
)

// Client is the web-search capability backed by the Tavily search API.
type Client struct {
	baseURL    string
	apiKey     string
	maxResults int
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, apiKey string, maxResults int, exec *resilience.Executor) *Client {
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	if maxResults <= 0 {
		maxResults = 3
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		exec:       exec,
	}
}

// Search returns snippet texts for the query. An empty result set is not an
// error; the workflow degrades it to a fixed no-results context.
func (c *Client) Search(ctx context.Context, query string) ([]string, error) {
	reqBody, err := json.Marshal(map[string]any{
		"api_key":     c.apiKey,
		"query":       query,
		"max_results": c.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	var response struct {
		Results []struct {
			Content string `json:"content"`
		} `json:"results"`
	}

	do := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(reqBody))
		if err != nil {
			return fmt.Errorf("create search request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("tavily search request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &statusError{
				status: resp.Status,
				code:   resp.StatusCode,
				body:   strings.TrimSpace(string(raw)),
			}
		}
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return fmt.Errorf("decode search response: %w", err)
		}
		return nil
	}

	if c.exec != nil {
		err = c.exec.Execute(ctx, "tavily_search", do, classifySearchError)
	} else {
		err = do(ctx)
	}
	if err != nil {
		if classifySearchError(err).Retryable || resilience.IsCircuitOpen(err) {
			return nil, domain.WrapError(domain.ErrTemporary, "web search", err)
		}
		return nil, err
	}

	snippets := make([]string, 0, len(response.Results))
	for _, result := range response.Results {
		content := strings.TrimSpace(result.Content)
		if content != "" {
			snippets = append(snippets, content)
		}
	}
	return snippets, nil
}
