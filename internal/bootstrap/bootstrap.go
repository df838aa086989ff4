package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/verifiquant/internal/config"
	"github.com/kirillkom/verifiquant/internal/core/calculator"
	"github.com/kirillkom/verifiquant/internal/core/ports"
	"github.com/kirillkom/verifiquant/internal/core/retrieval"
	"github.com/kirillkom/verifiquant/internal/core/usecase"
	"github.com/kirillkom/verifiquant/internal/infrastructure/artifact"
	"github.com/kirillkom/verifiquant/internal/infrastructure/catalog/jsondir"
	"github.com/kirillkom/verifiquant/internal/infrastructure/events/nats"
	"github.com/kirillkom/verifiquant/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/verifiquant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/verifiquant/internal/infrastructure/resilience"
	"github.com/kirillkom/verifiquant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/verifiquant/internal/infrastructure/storage/postgres"
	"github.com/kirillkom/verifiquant/internal/observability/metrics"
)

// Runtime holds the collaborators shared by every entry point. It does not
// require a built index.
type Runtime struct {
	Config config.Config

	Catalog   *jsondir.Source
	Embedder  ports.Embedder
	Selector  ports.CardSelector
	Extractor ports.InputExtractor
	Fallback  ports.CalculationFallback
	Artifacts *artifact.Repository
	Indexer   *usecase.IndexUseCase

	Events      ports.SolveEventPublisher
	NATS        *nats.Publisher
	EventsStore *postgres.SolveEventRepository

	closers []func()
}

// App is the fully wired service around a loaded index.
type App struct {
	*Runtime

	Index    *retrieval.Index
	Solver   *usecase.SolveUseCase
	Searcher *usecase.SearchUseCase
	Cards    *usecase.CatalogService
	Registry *prometheus.Registry
}

type llmCollaborators struct {
	embedder  ports.Embedder
	selector  ports.CardSelector
	extractor ports.InputExtractor
	fallback  ports.CalculationFallback
}

func NewRuntime(ctx context.Context, cfg config.Config) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Catalog: jsondir.New(cfg.CardsDir)}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	llm, err := newLLM(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.Embedder = llm.embedder
	rt.Selector = llm.selector
	rt.Extractor = llm.extractor
	rt.Fallback = llm.fallback

	var db *sql.DB
	if cfg.ArtifactBackend == config.ArtifactBackendPostgres || cfg.EventsSink == config.EventsSinkPostgres {
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	var storage ports.ArtifactStorage
	switch cfg.ArtifactBackend {
	case config.ArtifactBackendPostgres:
		storage = postgres.NewArtifactStorage(db)
	default:
		fs, err := localfs.New(cfg.ArtifactPath)
		if err != nil {
			return nil, fmt.Errorf("init artifact storage: %w", err)
		}
		storage = fs
	}
	rt.Artifacts = artifact.NewRepository(storage)
	rt.Indexer = usecase.NewIndexUseCase(rt.Catalog, rt.Embedder, rt.Artifacts, retrieval.BuildOptions{
		BatchSize: cfg.EmbedBatchSize,
		Workers:   cfg.EmbedWorkers,
	})

	switch cfg.EventsSink {
	case config.EventsSinkNATS:
		publisher, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.ForPublish()),
		})
		if err != nil {
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		rt.closers = append(rt.closers, publisher.Close)
		rt.NATS = publisher
		rt.Events = publisher
	case config.EventsSinkPostgres:
		rt.EventsStore = postgres.NewSolveEventRepository(db)
		rt.Events = rt.EventsStore
	}

	slog.Info("runtime_ready",
		"llm_provider", cfg.LLMProvider,
		"embed_model", rt.Embedder.Model(),
		"artifact_backend", cfg.ArtifactBackend,
		"events_sink", cfg.EventsSink,
	)
	ok = true
	return rt, nil
}

func newLLM(ctx context.Context, cfg config.Config) (llmCollaborators, error) {
	executor := resilience.NewExecutor(resilience.ForLLM(cfg.LLMRetryAttempts, cfg.LLMTimeout))

	switch cfg.LLMProvider {
	case config.ProviderGemini:
		client, err := gemini.New(ctx, gemini.Config{
			APIKey:         cfg.GeminiAPIKey,
			BaseURL:        cfg.GeminiBaseURL,
			SelectorModel:  cfg.GeminiSelectorModel,
			ExtractorModel: cfg.GeminiExtractorModel,
			FallbackModel:  cfg.GeminiFallbackModel,
			EmbedModel:     cfg.GeminiEmbedModel,
		})
		if err != nil {
			return llmCollaborators{}, fmt.Errorf("init gemini: %w", err)
		}
		client = client.WithResilience(executor)
		return llmCollaborators{
			embedder:  gemini.NewEmbedder(client),
			selector:  gemini.NewSelector(client),
			extractor: gemini.NewExtractor(client),
			fallback:  gemini.NewFallback(client),
		}, nil
	default:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel).WithResilience(executor)
		return llmCollaborators{
			embedder:  ollama.NewEmbedder(client),
			selector:  ollama.NewSelector(client),
			extractor: ollama.NewExtractor(client),
			fallback:  ollama.NewFallback(client),
		}, nil
	}
}

// New wires the solve and search services around the index stored under
// cfg.ArtifactKey. The index must have been built beforehand.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	rt, err := NewRuntime(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app, err := rt.Serve(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return app, nil
}

// Serve loads the persisted index and wires the services on top of it.
func (rt *Runtime) Serve(ctx context.Context) (*App, error) {
	index, err := rt.Indexer.Load(ctx, rt.Config.ArtifactKey)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	opts := usecase.SolveOptions{TopK: rt.Config.RetrievalTopK, Alpha: rt.Config.RetrievalAlpha}

	solver := usecase.NewSolveUseCase(index, rt.Selector, rt.Extractor, calculator.NewEngine(rt.Fallback), opts).
		WithObserver(metrics.NewSolveMetrics("verifiquant", registry))
	if rt.Events != nil {
		solver = solver.WithEvents(rt.Events)
	}

	return &App{
		Runtime:  rt,
		Index:    index,
		Solver:   solver,
		Searcher: usecase.NewSearchUseCase(index, opts),
		Cards:    usecase.NewCatalogService(index.Catalog()),
		Registry: registry,
	}, nil
}

func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
