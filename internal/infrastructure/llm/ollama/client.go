package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/verifiquant/internal/core/domain"
	"github.com/kirillkom/verifiquant/internal/infrastructure/llm/contract"
	"github.com/kirillkom/verifiquant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// WithResilience routes every call through the executor's retry and
// circuit breaker policy.
func (c *Client) WithResilience(executor *resilience.Executor) *Client {
	c.executor = executor
	return c
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Model() string { return "ollama/" + e.client.embedModel }

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
	if err := e.client.call(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d vectors for %d texts", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

type Selector struct {
	client *Client
}

func NewSelector(client *Client) *Selector {
	return &Selector{client: client}
}

func (s *Selector) Select(ctx context.Context, question string, candidates []domain.RetrievalCandidate) (domain.Selection, error) {
	if len(candidates) == 0 {
		return domain.Selection{}, domain.WrapError(domain.ErrInvalidArgument, "select card", fmt.Errorf("no candidates"))
	}
	raw, err := s.client.generateJSON(ctx, contract.SelectionPrompt(question, candidates), "select")
	if err != nil {
		return domain.Selection{}, err
	}
	return contract.DecodeSelection(raw)
}

type Extractor struct {
	client *Client
}

func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

func (x *Extractor) Extract(ctx context.Context, question string, card *domain.DefinitionCard) (domain.Extraction, error) {
	raw, err := x.client.generateJSON(ctx, contract.ExtractionPrompt(question, card), "extract")
	if err != nil {
		return domain.Extraction{}, err
	}
	return contract.DecodeExtraction(raw)
}

type Fallback struct {
	client *Client
}

func NewFallback(client *Client) *Fallback {
	return &Fallback{client: client}
}

func (f *Fallback) Calculate(ctx context.Context, req domain.FallbackRequest) (domain.FallbackResult, error) {
	raw, err := f.client.generateJSON(ctx, contract.FallbackPrompt(req), "fallback")
	if err != nil {
		return domain.FallbackResult{}, err
	}
	return contract.DecodeFallback(raw)
}

func (c *Client) generateJSON(ctx context.Context, prompt, operation string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0,
		},
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := c.call(ctx, "/api/generate", reqBody, &response, operation); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) call(ctx context.Context, path string, payload any, out any, operation string) error {
	if c.executor == nil {
		return wrapTemporaryIfNeeded("ollama "+operation, c.postJSON(ctx, path, payload, out, operation))
	}
	err := c.executor.Execute(ctx, "ollama."+operation, func(ctx context.Context) error {
		return c.postJSON(ctx, path, payload, out, operation)
	}, classifyOllamaError)
	return wrapTemporaryIfNeeded("ollama "+operation, err)
}
