package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/lgreg1908/papa-rag/internal/domain"
	"github.com/lgreg1908/papa-rag/internal/logger"
)

// Options tune the HTTP embedder independently of the provider endpoint.
type Options struct {
	Dimension      int
	BatchSize      int
	RequestTimeout time.Duration
	MaxRetries     int
	RequestsPerSec float64 // 0 disables rate limiting
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint. Transient
// provider errors are retried with exponential backoff; deadline overruns
// surface as domain.ErrTimeout.
type OpenAIEmbedder struct {
	apiKey     string
	model      string
	baseURL    string
	dimension  int
	batchSize  int
	timeout    time.Duration
	maxRetries int
	limiter    *rate.Limiter
	client     *http.Client
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func NewOpenAIEmbedder(apiKeyEnv, model string, opts Options) (*OpenAIEmbedder, error) {
	return NewOpenAICompatibleEmbedder(apiKeyEnv, model, "https://api.openai.com/v1", opts)
}

// NewOllamaEmbedder targets a local Ollama server, which speaks the same
// embeddings API and needs no key.
func NewOllamaEmbedder(model, baseURL string, opts Options) (*OpenAIEmbedder, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	e := newEmbedder("ollama", model, baseURL, opts)
	return e, nil
}

func NewOpenAICompatibleEmbedder(apiKeyEnv, model, baseURL string, opts Options) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	return newEmbedder(apiKey, model, baseURL, opts), nil
}

func newEmbedder(apiKey, model, baseURL string, opts Options) *OpenAIEmbedder {
	if opts.Dimension <= 0 {
		opts.Dimension = 1536
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1)
	}

	return &OpenAIEmbedder{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		dimension:  opts.Dimension,
		batchSize:  opts.BatchSize,
		timeout:    opts.RequestTimeout,
		maxRetries: opts.MaxRetries,
		limiter:    limiter,
		client:     &http.Client{},
	}
}

// Embed generates embeddings for the given texts, batching requests to the
// provider.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var all [][]float32
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		embeddings, err := e.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, embeddings...)
	}

	return all, nil
}

func (e *OpenAIEmbedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	backoff := 500 * time.Millisecond

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn("embedding request failed (attempt %d/%d), retrying in %s: %v",
				attempt, e.maxRetries, backoff, lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
			}
			backoff *= 2
		}

		embeddings, err := e.embedBatch(ctx, texts)
		if err == nil {
			return embeddings, nil
		}
		if errors.Is(err, domain.ErrTimeout) || !isTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: retries exhausted: %v", domain.ErrEmbeddingFailure, lastErr)
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrTimeout, err)
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	jsonData, err := json.Marshal(embeddingRequest{Input: texts, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return nil, fmt.Errorf("%w: embedding request: %v", domain.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: request failed: %v", domain.ErrEmbeddingFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", domain.ErrEmbeddingFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: API returned status %d: %s", domain.ErrEmbeddingFailure, resp.StatusCode, truncate(string(body), 200))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response (body: %s): %v", domain.ErrEmbeddingFailure, truncate(string(body), 200), err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("%w: API error: %s", domain.ErrEmbeddingFailure, embResp.Error.Message)
	}

	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: API returned %d embeddings for %d inputs", domain.ErrEmbeddingFailure, len(embResp.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, fmt.Errorf("%w: API returned out-of-range embedding index %d", domain.ErrEmbeddingFailure, data.Index)
		}
		embeddings[data.Index] = data.Embedding
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, fmt.Errorf("%w: API returned no embedding for input %d", domain.ErrEmbeddingFailure, i)
		}
	}

	return embeddings, nil
}

// isTransient reports whether a provider error is worth retrying. Rate
// limits and 5xx responses are; malformed requests are not.
func isTransient(err error) bool {
	if !errors.Is(err, domain.ErrEmbeddingFailure) {
		return false
	}
	msg := err.Error()
	for _, status := range []string{"status 400", "status 401", "status 403", "status 404"} {
		if strings.Contains(msg, status) {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
