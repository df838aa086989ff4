package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/verifiquant/internal/bootstrap"
	"github.com/kirillkom/verifiquant/internal/config"
	"github.com/kirillkom/verifiquant/internal/core/domain"
	"github.com/kirillkom/verifiquant/internal/core/usecase"
	"github.com/kirillkom/verifiquant/internal/infrastructure/catalog/jsondir"
	"github.com/kirillkom/verifiquant/internal/observability/logging"
)

type rootOptions struct {
	configFile string
	cardsDir   string
	key        string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "vqindex",
		Short:         "Build, inspect and query definition card indexes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.configFile != "" {
				if err := os.Setenv("CONFIG_FILE", opts.configFile); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	cmd.PersistentFlags().StringVar(&opts.cardsDir, "cards", "", "card directory (overrides CARDS_DIR)")
	cmd.PersistentFlags().StringVar(&opts.key, "key", "", "artifact key (overrides ARTIFACT_KEY)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	cmd.AddCommand(
		newCatalogCmd(opts),
		newBuildCmd(opts),
		newInspectCmd(opts),
		newQueryCmd(opts),
		newSolveCmd(opts),
		newEventsCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if o.cardsDir != "" {
		cfg.CardsDir = o.cardsDir
	}
	if o.key != "" {
		cfg.ArtifactKey = o.key
	}
	slog.SetDefault(logging.New(cmd.ErrOrStderr(), "verifiquant-indexer", o.logLevel, "text"))
	return cfg, nil
}

func (o *rootOptions) runtime(cmd *cobra.Command) (*bootstrap.Runtime, error) {
	cfg, err := o.load(cmd)
	if err != nil {
		return nil, err
	}
	return bootstrap.NewRuntime(cmd.Context(), cfg)
}

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	var filter domain.CardFilter
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Load the card directory and report skipped entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			catalog, report, err := jsondir.New(cfg.CardsDir).LoadWithReport(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "files: %d  cards: %d  skipped: %d\n", report.Files, report.Cards, len(report.Skipped))
			for _, s := range report.Skipped {
				if s.Entry < 0 {
					fmt.Fprintf(out, "skipped %s: %s\n", s.Path, s.Reason)
					continue
				}
				fmt.Fprintf(out, "skipped %s[%d]: %s\n", s.Path, s.Entry, s.Reason)
			}
			for _, facet := range catalog.Facets() {
				fmt.Fprintf(out, "%s: %v\n", facet.Domain, facet.Topics)
			}
			return nil
		},
	}
	addFilterFlags(cmd, &filter)
	return cmd
}

func newBuildCmd(opts *rootOptions) *cobra.Command {
	var filter domain.CardFilter
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Embed the card catalog and persist the index artifact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.runtime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			started := time.Now()
			_, report, err := rt.Indexer.Build(cmd.Context(), usecase.BuildRequest{Key: rt.Config.ArtifactKey, Filter: filter})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "built %s: %d cards, model %s, %s\n",
				report.Key, report.Cards, report.Model, time.Since(started).Round(time.Millisecond))
			return nil
		},
	}
	addFilterFlags(cmd, &filter)
	return cmd
}

func newInspectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print metadata of a persisted index artifact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.runtime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			snap, err := rt.Artifacts.Inspect(cmd.Context(), rt.Config.ArtifactKey)
			if err != nil {
				return err
			}
			dim := 0
			if len(snap.Embeddings) > 0 {
				dim = len(snap.Embeddings[0])
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "key: %s\nversion: %d\nmodel: %s\nbuilt_at: %s\ncards: %d\ndimension: %d\n",
				rt.Config.ArtifactKey, snap.Version, snap.Model, snap.BuiltAt.Format(time.RFC3339), len(snap.Cards), dim)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDOMAIN\tTOPIC\tTOKENS\tSOURCE")
			for i, card := range snap.Cards {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", card.ID, card.Domain, card.Topic, len(snap.Tokens[i]), snap.Sources[i])
			}
			return tw.Flush()
		},
	}
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		filter domain.CardFilter
		topK   int
		alpha  float64
	)
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Run hybrid retrieval against the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := serve(cmd, opts)
			if err != nil {
				return err
			}
			defer app.Close()

			req := domain.SearchRequest{Query: args[0], Filter: filter, TopK: topK}
			if cmd.Flags().Changed("alpha") {
				req.Alpha = &alpha
			}
			candidates, err := app.Searcher.Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(candidates) == 0 {
				fmt.Fprintln(out, "no cards matched")
				return nil
			}
			for i, c := range candidates {
				fmt.Fprintf(out, "#%d %s\n\n", i+1, c.AsContext())
			}
			return nil
		},
	}
	addFilterFlags(cmd, &filter)
	cmd.Flags().IntVar(&topK, "top-k", 0, "number of cards (default from config)")
	cmd.Flags().Float64Var(&alpha, "alpha", usecase.DefaultAlpha, "keyword weight in [0, 1]")
	return cmd
}

func newSolveCmd(opts *rootOptions) *cobra.Command {
	var filter domain.CardFilter
	cmd := &cobra.Command{
		Use:   "solve <question>",
		Short: "Answer a question end to end and print the outcome as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := serve(cmd, opts)
			if err != nil {
				return err
			}
			defer app.Close()

			outcome, err := app.Solver.Solve(cmd.Context(), domain.SolveRequest{Question: args[0], Filter: filter})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), outcome)
		},
	}
	addFilterFlags(cmd, &filter)
	return cmd
}

func newEventsCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		follow bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List archived solve events, or follow them live on NATS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.runtime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			switch {
			case follow && rt.NATS != nil:
				return rt.NATS.SubscribeSolveEvents(cmd.Context(), func(_ context.Context, event domain.SolveEvent) error {
					return writeJSON(out, event)
				})
			case rt.EventsStore != nil:
				events, err := rt.EventsStore.RecentSolveEvents(cmd.Context(), limit)
				if err != nil {
					return err
				}
				for _, event := range events {
					if err := writeJSON(out, event); err != nil {
						return err
					}
				}
				return nil
			default:
				return fmt.Errorf("events require EVENTS_SINK=postgres, or EVENTS_SINK=nats with --follow")
			}
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of events to list")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "follow live events on NATS")
	return cmd
}

func serve(cmd *cobra.Command, opts *rootOptions) (*bootstrap.App, error) {
	rt, err := opts.runtime(cmd)
	if err != nil {
		return nil, err
	}
	app, err := rt.Serve(cmd.Context())
	if err != nil {
		rt.Close()
		return nil, err
	}
	return app, nil
}

func addFilterFlags(cmd *cobra.Command, filter *domain.CardFilter) {
	cmd.Flags().StringVar(&filter.Domain, "domain", "", "restrict to a domain")
	cmd.Flags().StringVar(&filter.Topic, "topic", "", "restrict to a topic")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
