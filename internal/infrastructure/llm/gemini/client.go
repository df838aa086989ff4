package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/kirillkom/verifiquant/internal/core/domain"
	"github.com/kirillkom/verifiquant/internal/infrastructure/llm/contract"
	"github.com/kirillkom/verifiquant/internal/infrastructure/resilience"
)

const (
	DefaultGenerateModel = "gemini-2.5-flash"
	DefaultEmbedModel    = "gemini-embedding-001"
)

type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint; empty uses the public Gemini API.
	BaseURL        string
	SelectorModel  string
	ExtractorModel string
	FallbackModel  string
	EmbedModel     string
}

func (c Config) withDefaults() Config {
	if c.SelectorModel == "" {
		c.SelectorModel = DefaultGenerateModel
	}
	if c.ExtractorModel == "" {
		c.ExtractorModel = DefaultGenerateModel
	}
	if c.FallbackModel == "" {
		c.FallbackModel = c.ExtractorModel
	}
	if c.EmbedModel == "" {
		c.EmbedModel = DefaultEmbedModel
	}
	return c
}

type Client struct {
	api      *genai.Client
	cfg      Config
	executor *resilience.Executor
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "gemini client", fmt.Errorf("GEMINI_API_KEY is not set"))
	}
	cfg = cfg.withDefaults()

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	api, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{api: api, cfg: cfg}, nil
}

func (c *Client) WithResilience(executor *resilience.Executor) *Client {
	c.executor = executor
	return c
}

func (c *Client) generateJSON(ctx context.Context, model, prompt string, schema *genai.Schema, operation string) (string, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
		Temperature:      genai.Ptr[float32](0),
	}
	text, err := resilience.Call(ctx, c.executor, "gemini."+operation, func(ctx context.Context) (string, error) {
		resp, err := c.api.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
		if err != nil {
			return "", fmt.Errorf("gemini %s: %w", operation, err)
		}
		return resp.Text(), nil
	}, classifyError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("gemini "+operation, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini %s: empty response", operation)
	}
	return text, nil
}

type Selector struct{ client *Client }

func NewSelector(client *Client) *Selector { return &Selector{client: client} }

func (s *Selector) Select(ctx context.Context, question string, candidates []domain.RetrievalCandidate) (domain.Selection, error) {
	if len(candidates) == 0 {
		return domain.Selection{}, domain.WrapError(domain.ErrInvalidArgument, "select card", fmt.Errorf("no candidates"))
	}
	raw, err := s.client.generateJSON(ctx, s.client.cfg.SelectorModel, contract.SelectionPrompt(question, candidates), selectionSchema, "select")
	if err != nil {
		return domain.Selection{}, err
	}
	return contract.DecodeSelection(raw)
}

type Extractor struct{ client *Client }

func NewExtractor(client *Client) *Extractor { return &Extractor{client: client} }

func (x *Extractor) Extract(ctx context.Context, question string, card *domain.DefinitionCard) (domain.Extraction, error) {
	raw, err := x.client.generateJSON(ctx, x.client.cfg.ExtractorModel, contract.ExtractionPrompt(question, card), extractionSchema, "extract")
	if err != nil {
		return domain.Extraction{}, err
	}
	return contract.DecodeExtraction(raw)
}

type Fallback struct{ client *Client }

func NewFallback(client *Client) *Fallback { return &Fallback{client: client} }

func (f *Fallback) Calculate(ctx context.Context, req domain.FallbackRequest) (domain.FallbackResult, error) {
	raw, err := f.client.generateJSON(ctx, f.client.cfg.FallbackModel, contract.FallbackPrompt(req), fallbackSchema, "fallback")
	if err != nil {
		return domain.FallbackResult{}, err
	}
	return contract.DecodeFallback(raw)
}

// Documents and queries use asymmetric retrieval task types.
const (
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

type Embedder struct{ client *Client }

func NewEmbedder(client *Client) *Embedder { return &Embedder{client: client} }

func (e *Embedder) Model() string { return "gemini/" + e.client.cfg.EmbedModel }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, texts, taskRetrievalDocument)
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	vectors, err := resilience.Call(ctx, e.client.executor, "gemini.embed", func(ctx context.Context) ([][]float32, error) {
		result, err := e.client.api.Models.EmbedContent(ctx, e.client.cfg.EmbedModel, contents, &genai.EmbedContentConfig{TaskType: task})
		if err != nil {
			return nil, fmt.Errorf("gemini embed: %w", err)
		}
		out := make([][]float32, len(result.Embeddings))
		for i, emb := range result.Embeddings {
			out[i] = emb.Values
		}
		return out, nil
	}, classifyError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("gemini embed", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("gemini embed: got %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

func classifyError(err error) resilience.ErrorClassification {
	var (
		apiErr genai.APIError
		netErr net.Error
	)
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case errors.As(err, &apiErr):
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{}
	case errors.As(err, &netErr):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
