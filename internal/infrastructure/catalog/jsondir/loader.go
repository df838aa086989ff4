package jsondir

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/verifiquant/internal/core/domain"
)

// SkippedEntry describes a file or array entry that was not admitted.
type SkippedEntry struct {
	Path   string
	Entry  int
	Reason string
}

type LoadReport struct {
	Files   int
	Cards   int
	Skipped []SkippedEntry
}

// Source loads definition cards from a directory tree of JSON files.
type Source struct {
	root string
}

func New(root string) *Source {
	return &Source{root: root}
}

func (s *Source) Load(ctx context.Context, filter domain.CardFilter) (*domain.Catalog, error) {
	catalog, report, err := s.LoadWithReport(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(report.Skipped) > 0 {
		slog.Warn("catalog_entries_skipped", "root", s.root, "skipped", len(report.Skipped))
	}
	return catalog, nil
}

// LoadWithReport walks root for *.json files in sorted path order. A file
// holds one card object or an array of them. Malformed files and entries
// are skipped and listed in the report.
func (s *Source) LoadWithReport(ctx context.Context, filter domain.CardFilter) (*domain.Catalog, LoadReport, error) {
	var report LoadReport

	info, err := os.Stat(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, report, domain.WrapError(domain.ErrNotFound, "load catalog", fmt.Errorf("card directory %s", s.root))
		}
		return nil, report, fmt.Errorf("stat card directory: %w", err)
	}
	if !info.IsDir() {
		return nil, report, domain.WrapError(domain.ErrConfiguration, "load catalog", fmt.Errorf("%s is not a directory", s.root))
	}

	paths, err := jsonFiles(s.root)
	if err != nil {
		return nil, report, err
	}

	records := make([]domain.CardRecord, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		report.Files++

		cards, skipped := readFile(path)
		report.Skipped = append(report.Skipped, skipped...)
		for _, card := range cards {
			if !filter.IsEmpty() && !card.MatchesFilter(filter) {
				continue
			}
			records = append(records, domain.CardRecord{Card: card, Source: path})
		}
	}

	if len(records) == 0 {
		return nil, report, domain.WrapError(domain.ErrConfiguration, "load catalog",
			fmt.Errorf("no cards found under %s (domain=%q topic=%q)", s.root, filter.Domain, filter.Topic))
	}
	catalog, err := domain.NewCatalog(records)
	if err != nil {
		return nil, report, err
	}
	report.Cards = catalog.Len()

	slog.Info("catalog_loaded",
		"root", s.root,
		"files", report.Files,
		"cards", report.Cards,
		"skipped", len(report.Skipped),
	)
	return catalog, report, nil
}

func jsonFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk card directory: %w", err)
	}
	sort.Slice(paths, func(i, j int) bool { return lessPath(paths[i], paths[j]) })
	return paths, nil
}

// lessPath orders paths component by component, so "a/b.json" sorts
// before "a-c.json" even though '-' precedes '/' bytewise.
func lessPath(a, b string) bool {
	pa := strings.Split(filepath.ToSlash(a), "/")
	pb := strings.Split(filepath.ToSlash(b), "/")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return len(pa) < len(pb)
}

func readFile(path string) ([]domain.DefinitionCard, []SkippedEntry) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, []SkippedEntry{{Path: path, Entry: -1, Reason: err.Error()}}
	}

	var entries []json.RawMessage
	trimmed := bytes.TrimSpace(raw)
	switch {
	case bytes.HasPrefix(trimmed, []byte("[")):
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, []SkippedEntry{{Path: path, Entry: -1, Reason: "invalid json: " + err.Error()}}
		}
	case bytes.HasPrefix(trimmed, []byte("{")):
		entries = []json.RawMessage{trimmed}
	default:
		return nil, []SkippedEntry{{Path: path, Entry: -1, Reason: "expected a card object or an array of cards"}}
	}

	cards := make([]domain.DefinitionCard, 0, len(entries))
	var skipped []SkippedEntry
	for i, entry := range entries {
		var card domain.DefinitionCard
		if err := json.Unmarshal(entry, &card); err != nil {
			skipped = append(skipped, SkippedEntry{Path: path, Entry: i, Reason: "invalid card: " + err.Error()})
			continue
		}
		if err := card.Validate(); err != nil {
			skipped = append(skipped, SkippedEntry{Path: path, Entry: i, Reason: err.Error()})
			continue
		}
		cards = append(cards, card)
	}
	return cards, skipped
}
