package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/verifiquant/internal/config"
	"github.com/kirillkom/verifiquant/internal/core/domain"
	"github.com/kirillkom/verifiquant/internal/core/usecase"
)

const currentRatioJSON = `{
  "id": "current_ratio",
  "name": "Current Ratio",
  "short_description": "Liquidity ratio of current assets to current liabilities.",
  "domain": "accounting",
  "topic": "liquidity",
  "inputs": [
    {"name": "current_assets", "type": "number", "description": "Total current assets"},
    {"name": "current_liabilities", "type": "number", "description": "Total current liabilities"}
  ],
  "output_var": "ratio",
  "sympy_formulas": [{"variable": "ratio", "formula": "current_assets / current_liabilities"}],
  "tags": ["liquidity", "ratio"]
}`

func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/embed":
			inputs, _ := body["input"].([]any)
			vectors := make([][]float32, len(inputs))
			for i := range inputs {
				vectors[i] = []float32{1, 0.5}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors})
		case "/api/generate":
			prompt, _ := body["prompt"].(string)
			var response string
			switch {
			case strings.Contains(prompt, "Candidate Cards:"):
				response = `{"chosen_id": "current_ratio", "reason": "liquidity question"}`
			case strings.Contains(prompt, "Required inputs:"):
				response = `{"provided_inputs": [{"variable": "current_assets", "value": 200}, {"variable": "current_liabilities", "value": "$100"}], "missing_inputs": []}`
			default:
				t.Errorf("unexpected prompt %q", prompt)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"response": response})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, ollamaURL string) config.Config {
	t.Helper()
	cards := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cards, "ratios.json"), []byte(currentRatioJSON), 0o644))
	return config.Config{
		CardsDir:         cards,
		ArtifactBackend:  config.ArtifactBackendLocalFS,
		ArtifactPath:     t.TempDir(),
		ArtifactKey:      "cards.vqidx",
		EventsSink:       config.EventsSinkNone,
		LLMProvider:      config.ProviderOllama,
		OllamaURL:        ollamaURL,
		OllamaGenModel:   "test-gen",
		OllamaEmbedModel: "test-embed",
		RetrievalTopK:    3,
		RetrievalAlpha:   0.4,
		LLMRetryAttempts: 1,
	}
}

func TestBuildThenServeSolvesQuestion(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, fakeOllama(t).URL)

	rt, err := NewRuntime(ctx, cfg)
	require.NoError(t, err)
	defer rt.Close()

	_, report, err := rt.Indexer.Build(ctx, usecase.BuildRequest{Key: cfg.ArtifactKey})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Cards)
	assert.Equal(t, "ollama/test-embed", report.Model)

	app, err := rt.Serve(ctx)
	require.NoError(t, err)

	outcome, err := app.Solver.Solve(ctx, domain.SolveRequest{Question: "Current ratio with current assets 200 and liabilities $100?"})
	require.NoError(t, err)
	require.Equal(t, domain.SolveSuccess, outcome.Status, outcome.Reason)
	assert.Equal(t, "current_ratio", outcome.CardID)
	assert.InDelta(t, 2.0, outcome.Result.OutputValue, 1e-12)
	assert.False(t, outcome.Result.Fallback)

	card, err := app.Cards.CardByID("current_ratio")
	require.NoError(t, err)
	assert.Equal(t, "Current Ratio", card.Name)
}

func TestServeFailsWithoutBuiltIndex(t *testing.T) {
	cfg := testConfig(t, fakeOllama(t).URL)

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrNotFound), "got %v", err)
}

func TestNewRuntimeRequiresGeminiKey(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.LLMProvider = config.ProviderGemini

	_, err := NewRuntime(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrConfiguration), "got %v", err)
}
